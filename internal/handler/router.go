package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"vtu/internal/domain"
	"vtu/internal/middleware"
)

// RouterDeps carries everything the API surface needs.
type RouterDeps struct {
	Auth        *AuthHandler
	User        *UserHandler
	Wallet      *WalletHandler
	Transaction *TransactionHandler
	Plan        *PlanHandler
	Sim         *SimHandler
	Kyc         *KycHandler
	Support     *SupportHandler
	Beneficiary *BeneficiaryHandler
	Admin       *AdminHandler
	Stream      *StreamHandler

	AuthMW  *middleware.AuthMiddleware
	Logging *middleware.LoggingMiddleware
	Limiter *middleware.RateLimiter
	Idem    *middleware.IdempotencyMiddleware
	Recover func(http.Handler) http.Handler
}

// NewRouter assembles the /api tree. Role gates follow the capability table:
// purchases for any authenticated user, SIM visibility for resellers and
// admins, everything mutating pool/plans/users for admins only.
func NewRouter(d RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(d.Recover)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS)
	r.Use(d.Logging.Log)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.Limiter.Limit)

	// Public.
	api.HandleFunc("/auth/register", d.Auth.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", d.Auth.Login).Methods(http.MethodPost)
	api.HandleFunc("/plans", d.Plan.Catalog).Methods(http.MethodGet)

	// Authenticated.
	authed := api.NewRoute().Subrouter()
	authed.Use(d.AuthMW.Authenticate)

	authed.HandleFunc("/auth/profile", d.Auth.Profile).Methods(http.MethodGet)
	authed.HandleFunc("/auth/profile", d.Auth.UpdateProfile).Methods(http.MethodPut)
	authed.HandleFunc("/auth/password", d.Auth.ChangePassword).Methods(http.MethodPut)
	authed.HandleFunc("/auth/kyc", d.Kyc.Submit).Methods(http.MethodPost)
	authed.HandleFunc("/auth/kyc", d.Kyc.Status).Methods(http.MethodGet)
	authed.HandleFunc("/auth/totp/setup", d.Auth.SetupTOTP).Methods(http.MethodPost)
	authed.HandleFunc("/auth/totp/verify", d.Auth.VerifyTOTP).Methods(http.MethodPost)

	authed.HandleFunc("/wallet", d.Wallet.Balance).Methods(http.MethodGet)
	authed.HandleFunc("/wallet/entries", d.Wallet.Entries).Methods(http.MethodGet)

	// Purchases ride behind the idempotency replay cache; the ledger
	// constraint is the real guarantee.
	purchases := authed.PathPrefix("/transactions").Subrouter()
	purchases.Use(d.Idem.Require)
	purchases.HandleFunc("/data", d.Transaction.BuyData).Methods(http.MethodPost)
	purchases.HandleFunc("/airtime", d.Transaction.BuyAirtime).Methods(http.MethodPost)
	purchases.HandleFunc("/bill", d.Transaction.PayBill).Methods(http.MethodPost)
	purchases.HandleFunc("/result-checker", d.Transaction.BuyResultChecker).Methods(http.MethodPost)
	purchases.HandleFunc("/bulk-sms", d.Transaction.SendBulkSMS).Methods(http.MethodPost)

	authed.HandleFunc("/transactions/fund", d.Transaction.Fund).Methods(http.MethodPost)
	authed.HandleFunc("/transactions/my", d.Transaction.My).Methods(http.MethodGet)
	authed.HandleFunc("/transactions/stats/{userId}", d.Transaction.Stats).Methods(http.MethodGet)
	authed.HandleFunc("/transactions/{id}", d.Transaction.Get).Methods(http.MethodGet)

	authed.HandleFunc("/beneficiaries", d.Beneficiary.List).Methods(http.MethodGet)
	authed.HandleFunc("/beneficiaries", d.Beneficiary.Create).Methods(http.MethodPost)
	authed.HandleFunc("/beneficiaries/{id}", d.Beneficiary.Delete).Methods(http.MethodDelete)

	authed.HandleFunc("/support", d.Support.Create).Methods(http.MethodPost)
	authed.HandleFunc("/support", d.Support.My).Methods(http.MethodGet)

	authed.HandleFunc("/users/apikey", d.User.GetAPIKey).Methods(http.MethodGet)
	authed.HandleFunc("/users/apikey/regenerate", d.User.RotateAPIKey).Methods(http.MethodPost)
	authed.HandleFunc("/users/affiliate-stats", d.User.AffiliateStats).Methods(http.MethodGet)

	// Resellers and admins can see the pool.
	pool := authed.NewRoute().Subrouter()
	pool.Use(middleware.RequireRole(domain.RoleReseller, domain.RoleAdmin))
	pool.HandleFunc("/sims", d.Sim.List).Methods(http.MethodGet)

	// Admin-only.
	adm := authed.NewRoute().Subrouter()
	adm.Use(middleware.RequireRole(domain.RoleAdmin))

	adm.HandleFunc("/plans/admin", d.Plan.ListAll).Methods(http.MethodGet)
	adm.HandleFunc("/plans", d.Plan.Create).Methods(http.MethodPost)
	adm.HandleFunc("/plans/{id}", d.Plan.Update).Methods(http.MethodPut)

	adm.HandleFunc("/sims", d.Sim.Create).Methods(http.MethodPost)
	adm.HandleFunc("/sims/alerts", d.Sim.Alerts).Methods(http.MethodGet)
	adm.HandleFunc("/sims/alerts/{id}/ack", d.Sim.AcknowledgeAlert).Methods(http.MethodPut)
	adm.HandleFunc("/sims/{id}/status", d.Sim.SetStatus).Methods(http.MethodPut)
	adm.HandleFunc("/sims/{id}/topup", d.Sim.TopUp).Methods(http.MethodPut)

	adm.HandleFunc("/transactions/fund/{id}/confirm", d.Transaction.ConfirmFund).Methods(http.MethodPut)

	adm.HandleFunc("/admin/users", d.Admin.ListUsers).Methods(http.MethodGet)
	adm.HandleFunc("/admin/users/{id}/role", d.Admin.SetRole).Methods(http.MethodPut)
	adm.HandleFunc("/admin/users/{id}/status", d.Admin.SetActive).Methods(http.MethodPut)
	adm.HandleFunc("/admin/users/{id}/kyc/approve", d.Kyc.Approve).Methods(http.MethodPut)
	adm.HandleFunc("/admin/users/{id}/kyc/reject", d.Kyc.Reject).Methods(http.MethodPut)
	adm.HandleFunc("/admin/users/{id}/kyc/reset", d.Kyc.Reset).Methods(http.MethodPut)
	adm.HandleFunc("/admin/kyc/pending", d.Kyc.Pending).Methods(http.MethodGet)
	adm.HandleFunc("/admin/transactions", d.Admin.Transactions).Methods(http.MethodGet)
	adm.HandleFunc("/admin/transactions/stream", d.Stream.Transactions).Methods(http.MethodGet)
	adm.HandleFunc("/admin/stats", d.Admin.Stats).Methods(http.MethodGet)
	adm.HandleFunc("/admin/settings", d.Admin.Settings).Methods(http.MethodGet)
	adm.HandleFunc("/admin/settings", d.Admin.PutSetting).Methods(http.MethodPut)

	adm.HandleFunc("/support/admin", d.Support.ListAll).Methods(http.MethodGet)
	adm.HandleFunc("/support/{id}/reply", d.Support.Reply).Methods(http.MethodPut)
	adm.HandleFunc("/support/{id}/status", d.Support.SetStatus).Methods(http.MethodPut)

	return r
}
