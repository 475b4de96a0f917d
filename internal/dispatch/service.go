// Package dispatch runs the fulfillment pipeline: validate, reserve funds,
// select a SIM resource, call the upstream provider, settle.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vtu/internal/domain"
	"vtu/internal/wallet"
	"vtu/pkg/errors"
	"vtu/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByReservation(ctx context.Context, reservationID uuid.UUID) (*domain.Transaction, error)
	Complete(ctx context.Context, id uuid.UUID, status domain.TransactionStatus, resourceID *uuid.UUID, failureReason *string) error
	SetArtifacts(ctx context.Context, id uuid.UUID, artifacts domain.Metadata) error
	FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Transaction, error)
	FindStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error)
}

// Wallet is the slice of the ledger the dispatcher drives.
type Wallet interface {
	Reserve(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string, txID *uuid.UUID) (*wallet.Reservation, error)
	LinkTransaction(ctx context.Context, reservationID, txID uuid.UUID) error
	SettleSuccess(ctx context.Context, reservationID uuid.UUID) error
	SettleFailure(ctx context.Context, reservationID uuid.UUID) error
	CreditOnce(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reason, idempotencyKey string, txID *uuid.UUID) (*domain.LedgerEntry, bool, error)
	DailySpend(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Pool is the resource pool surface the pipeline needs.
type Pool interface {
	Select(ctx context.Context, network domain.Network, amountNeeded decimal.Decimal, exclude *uuid.UUID) (*domain.SimResource, error)
	MarkFailure(ctx context.Context, id uuid.UUID, chargedAmount decimal.Decimal) error
	Release(ctx context.Context, id uuid.UUID) error
}

type PlanStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.DataPlan, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Referral is notified when a deposit settles; it decides whether a
// commission is due.
type Referral interface {
	OnDepositSettled(ctx context.Context, tx *domain.Transaction) error
}

// Result-checker card prices per exam body and the per-message SMS rate.
// Catalog-style pricing lives in data_plans; these two product lines are flat.
var resultCheckerPrices = map[string]decimal.Decimal{
	"waec":   decimal.NewFromInt(3500),
	"neco":   decimal.NewFromInt(1300),
	"nabteb": decimal.NewFromInt(900),
}

var bulkSMSUnitPrice = decimal.RequireFromString("4.00")

type Config struct {
	Timeout              time.Duration
	UnverifiedDailyLimit decimal.Decimal
}

type Service struct {
	repo     Repository
	wallet   Wallet
	pool     Pool
	plans    PlanStore
	users    UserStore
	provider Client
	referral Referral
	cfg      Config
	logger   logger.Logger
}

func NewService(repo Repository, w Wallet, pool Pool, plans PlanStore, users UserStore, provider Client, referral Referral, cfg Config, log logger.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Service{
		repo:     repo,
		wallet:   w,
		pool:     pool,
		plans:    plans,
		users:    users,
		provider: provider,
		referral: referral,
		cfg:      cfg,
		logger:   log,
	}
}

type DataRequest struct {
	Network        domain.Network `json:"network" validate:"required,oneof=mtn glo airtel 9mobile"`
	Phone          string         `json:"phone" validate:"required,ng_phone"`
	PlanID         uuid.UUID      `json:"plan_id" validate:"required"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required,max=128"`
}

type AirtimeRequest struct {
	Network        domain.Network  `json:"network" validate:"required,oneof=mtn glo airtel 9mobile"`
	Phone          string          `json:"phone" validate:"required,ng_phone"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
}

type BillRequest struct {
	Biller         string          `json:"biller" validate:"required,max=64"`
	CustomerID     string          `json:"customer_id" validate:"required,max=64"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key" validate:"required,max=128"`
}

type ResultCheckerRequest struct {
	ExamType       string `json:"exam_type" validate:"required,oneof=waec neco nabteb"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=50"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,max=128"`
}

type BulkSMSRequest struct {
	Message        string   `json:"message" validate:"required,max=459"`
	Recipients     []string `json:"recipients" validate:"required,min=1,max=500,dive,ng_phone"`
	SenderID       string   `json:"sender_id" validate:"omitempty,max=11"`
	IdempotencyKey string   `json:"idempotency_key" validate:"required,max=128"`
}

// order is the normalized purchase the pipeline executes.
type order struct {
	kind           domain.TransactionKind
	network        domain.Network // empty means any channel
	recipient      string
	amount         decimal.Decimal
	externalPlanID string
	payload        domain.Metadata
	idempotencyKey string
}

func (s *Service) PurchaseData(ctx context.Context, userID uuid.UUID, req *DataRequest) (*domain.Transaction, error) {
	plan, err := s.plans.FindByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, errors.ErrPlanInactive
	}
	if plan.Network != req.Network {
		return nil, errors.Wrap(errors.ErrPlanNotFound, "plan does not belong to the requested network")
	}

	return s.execute(ctx, userID, &order{
		kind:           domain.KindData,
		network:        plan.Network,
		recipient:      req.Phone,
		amount:         plan.Price,
		externalPlanID: plan.ExternalPlanID,
		payload: domain.Metadata{
			"plan_id":   plan.ID.String(),
			"plan_name": plan.Name,
			"network":   string(plan.Network),
			"phone":     req.Phone,
			"size_mb":   plan.SizeMB,
		},
		idempotencyKey: req.IdempotencyKey,
	})
}

func (s *Service) PurchaseAirtime(ctx context.Context, userID uuid.UUID, req *AirtimeRequest) (*domain.Transaction, error) {
	if req.Amount.LessThan(decimal.NewFromInt(50)) {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "minimum airtime purchase is 50")
	}
	return s.execute(ctx, userID, &order{
		kind:      domain.KindAirtime,
		network:   req.Network,
		recipient: req.Phone,
		amount:    req.Amount,
		payload: domain.Metadata{
			"network": string(req.Network),
			"phone":   req.Phone,
		},
		idempotencyKey: req.IdempotencyKey,
	})
}

func (s *Service) PayBill(ctx context.Context, userID uuid.UUID, req *BillRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}
	return s.execute(ctx, userID, &order{
		kind:      domain.KindBill,
		recipient: req.CustomerID,
		amount:    req.Amount,
		payload: domain.Metadata{
			"biller":      req.Biller,
			"customer_id": req.CustomerID,
		},
		idempotencyKey: req.IdempotencyKey,
	})
}

func (s *Service) PurchaseResultChecker(ctx context.Context, userID uuid.UUID, req *ResultCheckerRequest) (*domain.Transaction, error) {
	unit, ok := resultCheckerPrices[req.ExamType]
	if !ok {
		return nil, errors.Wrap(errors.ErrInvalidStatus, "unknown exam type")
	}
	return s.execute(ctx, userID, &order{
		kind:   domain.KindResultChecker,
		amount: unit.Mul(decimal.NewFromInt(int64(req.Quantity))),
		payload: domain.Metadata{
			"exam_type": req.ExamType,
			"quantity":  req.Quantity,
		},
		idempotencyKey: req.IdempotencyKey,
	})
}

func (s *Service) SendBulkSMS(ctx context.Context, userID uuid.UUID, req *BulkSMSRequest) (*domain.Transaction, error) {
	return s.execute(ctx, userID, &order{
		kind:   domain.KindBulkSMS,
		amount: bulkSMSUnitPrice.Mul(decimal.NewFromInt(int64(len(req.Recipients)))),
		payload: domain.Metadata{
			"message":    req.Message,
			"recipients": req.Recipients,
			"sender_id":  req.SenderID,
		},
		idempotencyKey: req.IdempotencyKey,
	})
}

// execute runs the pipeline. Order of operations matters: the reservation is
// taken before the transaction row exists so a replayed idempotency key can
// never double-debit, and settlement always happens before the row goes
// terminal so the watchdog can finish anything left half-done.
func (s *Service) execute(ctx context.Context, userID uuid.UUID, o *order) (*domain.Transaction, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDailyLimit(ctx, user, o.amount); err != nil {
		return nil, err
	}

	res, err := s.wallet.Reserve(ctx, userID, o.amount, o.idempotencyKey, nil)
	if err != nil {
		return nil, err
	}
	if res.Replayed {
		orig, err := s.repo.FindByReservation(ctx, res.ID)
		if err != nil {
			// The original request holds the reservation but has not written
			// its transaction row yet.
			return nil, errors.ErrDuplicateKey
		}
		orig.Artifacts = nil // artifacts are returned once, on creation
		return orig, nil
	}

	now := time.Now()
	tx := &domain.Transaction{
		ID:            uuid.New(),
		Reference:     newReference(o.kind),
		UserID:        userID,
		Kind:          o.kind,
		Status:        domain.TransactionStatusPending,
		Amount:        o.amount,
		Payload:       o.payload,
		ReservationID: &res.ID,
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		// Nothing upstream happened; hand the money back immediately.
		if serr := s.wallet.SettleFailure(ctx, res.ID); serr != nil {
			s.logger.Error("Failed to refund reservation after create failure", map[string]interface{}{
				"reservation_id": res.ID, "error": serr.Error(),
			})
		}
		return nil, err
	}
	// Backfill the transaction id onto the debit entry: the reservation
	// predates the row, and a refund credit copies the link from the debit.
	if err := s.wallet.LinkTransaction(ctx, res.ID, tx.ID); err != nil {
		s.logger.Error("Failed to link reservation to transaction", map[string]interface{}{
			"transaction_id": tx.ID, "reservation_id": res.ID, "error": err.Error(),
		})
	}

	resource, vendRes, err := s.fulfill(ctx, tx, o)
	if err != nil {
		s.fail(ctx, tx, res.ID, err)
		return nil, err
	}

	if err := s.wallet.SettleSuccess(ctx, res.ID); err != nil {
		// Leave the row pending: the watchdog resolves the hold and closes
		// the transaction, so a debit entry can never stay pending forever.
		s.logger.Error("Failed to finalize reservation", map[string]interface{}{
			"transaction_id": tx.ID, "error": err.Error(),
		})
		return nil, errors.Wrap(err, "failed to finalize reservation")
	}
	if len(vendRes.Artifacts) > 0 {
		if err := s.repo.SetArtifacts(ctx, tx.ID, vendRes.Artifacts); err != nil {
			s.logger.Error("Failed to persist artifacts", map[string]interface{}{
				"transaction_id": tx.ID, "error": err.Error(),
			})
		}
	}
	var resourceID *uuid.UUID
	if resource != nil {
		resourceID = &resource.ID
	}
	if err := s.repo.Complete(ctx, tx.ID, domain.TransactionStatusSuccess, resourceID, nil); err != nil {
		return nil, err
	}

	tx.Status = domain.TransactionStatusSuccess
	tx.ResourceID = resourceID
	tx.Artifacts = vendRes.Artifacts
	completed := time.Now()
	tx.CompletedAt = &completed

	s.logger.Info("Transaction fulfilled", map[string]interface{}{
		"transaction_id": tx.ID,
		"reference":      tx.Reference,
		"kind":           tx.Kind,
		"amount":         tx.Amount.String(),
	})
	return tx, nil
}

// fulfill selects a resource and calls the provider, retrying exactly once on
// an alternate resource after an upstream failure.
func (s *Service) fulfill(ctx context.Context, tx *domain.Transaction, o *order) (*domain.SimResource, *VendResult, error) {
	first, err := s.pool.Select(ctx, o.network, o.amount, nil)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.vend(ctx, tx, o, first)
	if err == nil {
		if rerr := s.pool.Release(ctx, first.ID); rerr != nil {
			s.logger.Warn("Failed to reset resource failures", map[string]interface{}{
				"resource_id": first.ID, "error": rerr.Error(),
			})
		}
		return first, result, nil
	}

	s.logger.Warn("Upstream attempt failed, retrying on alternate resource", map[string]interface{}{
		"transaction_id": tx.ID,
		"resource_id":    first.ID,
		"error":          err.Error(),
	})
	if merr := s.pool.MarkFailure(ctx, first.ID, o.amount); merr != nil {
		s.logger.Error("Failed to record resource failure", map[string]interface{}{
			"resource_id": first.ID, "error": merr.Error(),
		})
	}

	second, serr := s.pool.Select(ctx, o.network, o.amount, &first.ID)
	if serr != nil {
		return nil, nil, errors.Wrap(errors.ErrUpstreamFailure, "no alternate resource for retry")
	}

	result, err = s.vend(ctx, tx, o, second)
	if err != nil {
		if merr := s.pool.MarkFailure(ctx, second.ID, o.amount); merr != nil {
			s.logger.Error("Failed to record resource failure", map[string]interface{}{
				"resource_id": second.ID, "error": merr.Error(),
			})
		}
		return nil, nil, err
	}

	if rerr := s.pool.Release(ctx, second.ID); rerr != nil {
		s.logger.Warn("Failed to reset resource failures", map[string]interface{}{
			"resource_id": second.ID, "error": rerr.Error(),
		})
	}
	return second, result, nil
}

// vend performs one bounded provider call. A timeout is a failure; it is
// never reported as success.
func (s *Service) vend(ctx context.Context, tx *domain.Transaction, o *order, res *domain.SimResource) (*VendResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	result, err := s.provider.Vend(callCtx, &VendRequest{
		Kind:           o.kind,
		Network:        o.network,
		Recipient:      o.recipient,
		Amount:         o.amount,
		ExternalPlanID: o.externalPlanID,
		ResourcePhone:  res.Phone,
		Reference:      tx.Reference,
		Payload:        o.payload,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrUpstreamFailure, "provider call timed out")
		}
		return nil, err
	}

	if o.kind == domain.KindResultChecker && len(result.Artifacts) == 0 {
		qty, _ := o.payload["quantity"].(int)
		result.Artifacts = generatePins(o.payload["exam_type"].(string), qty)
	}
	if o.kind == domain.KindBulkSMS {
		result.Artifacts = domain.Metadata{
			"batch_ref": result.ProviderRef,
			"accepted":  len(o.payload["recipients"].([]string)),
		}
	}
	return result, nil
}

func (s *Service) fail(ctx context.Context, tx *domain.Transaction, reservationID uuid.UUID, cause error) {
	if err := s.wallet.SettleFailure(ctx, reservationID); err != nil {
		s.logger.Error("Failed to refund reservation", map[string]interface{}{
			"transaction_id": tx.ID, "error": err.Error(),
		})
	}
	reason := cause.Error()
	if err := s.repo.Complete(ctx, tx.ID, domain.TransactionStatusFailed, nil, &reason); err != nil {
		s.logger.Error("Failed to mark transaction failed", map[string]interface{}{
			"transaction_id": tx.ID, "error": err.Error(),
		})
	}
	s.logger.Warn("Transaction failed", map[string]interface{}{
		"transaction_id": tx.ID,
		"reference":      tx.Reference,
		"reason":         reason,
	})
}

// checkDailyLimit enforces the unverified-account spend cap before any money
// moves.
func (s *Service) checkDailyLimit(ctx context.Context, user *domain.User, amount decimal.Decimal) error {
	if user.KYCStatus == domain.KYCStatusVerified {
		return nil
	}
	spent, err := s.wallet.DailySpend(ctx, user.ID)
	if err != nil {
		return err
	}
	if spent.Add(amount).GreaterThan(s.cfg.UnverifiedDailyLimit) {
		return errors.ErrDailyLimitExceeded
	}
	return nil
}

// Funding.

type FundRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Gateway string          `json:"gateway" validate:"required,oneof=paystack flutterwave monnify"`
}

// InitiateFund opens a pending deposit. The wallet is only credited when the
// gateway confirms payment.
func (s *Service) InitiateFund(ctx context.Context, userID uuid.UUID, req *FundRequest) (*domain.Transaction, error) {
	if req.Amount.LessThan(decimal.NewFromInt(100)) {
		return nil, errors.Wrap(errors.ErrInvalidAmount, "minimum deposit is 100")
	}

	tx := &domain.Transaction{
		ID:        uuid.New(),
		Reference: newReference(domain.KindFund),
		UserID:    userID,
		Kind:      domain.KindFund,
		Status:    domain.TransactionStatusPending,
		Amount:    req.Amount,
		Payload: domain.Metadata{
			"gateway": req.Gateway,
		},
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		return nil, err
	}
	s.logger.Info("Deposit initiated", map[string]interface{}{
		"transaction_id": tx.ID,
		"reference":      tx.Reference,
		"amount":         tx.Amount.String(),
	})
	return tx, nil
}

// ConfirmFund settles a deposit after gateway confirmation. Processing the
// same confirmation twice credits the wallet exactly once: the credit is
// keyed on the transaction, so replays and races reuse the original entry.
func (s *Service) ConfirmFund(ctx context.Context, txID uuid.UUID, providerRef string) (*domain.Transaction, error) {
	tx, err := s.repo.FindByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx.Kind != domain.KindFund {
		return nil, errors.Wrap(errors.ErrTransactionNotFound, "not a funding transaction")
	}
	if tx.Status.Terminal() {
		if tx.Status == domain.TransactionStatusSuccess {
			return tx, nil
		}
		return nil, errors.ErrReservationSettled
	}

	// Credit before the row goes terminal. If Complete fails afterwards the
	// deposit is still recoverable: the row stays pending and a retried
	// confirmation replays the credit by key instead of paying twice.
	if _, _, err := s.wallet.CreditOnce(ctx, tx.UserID, tx.Amount, "wallet funding "+tx.Reference, "fund:"+tx.ID.String(), &tx.ID); err != nil {
		return nil, err
	}

	if err := s.repo.Complete(ctx, txID, domain.TransactionStatusSuccess, nil, nil); err != nil {
		// Lost the race with a concurrent confirmation; the credit above
		// replayed the winner's entry.
		if kerr := errors.KindOf(err); kerr == errors.KindNotFound {
			return s.repo.FindByID(ctx, txID)
		}
		return nil, err
	}

	tx.Status = domain.TransactionStatusSuccess
	now := time.Now()
	tx.CompletedAt = &now

	if s.referral != nil {
		if err := s.referral.OnDepositSettled(ctx, tx); err != nil {
			s.logger.Error("Referral settlement hook failed", map[string]interface{}{
				"transaction_id": tx.ID, "error": err.Error(),
			})
		}
	}

	s.logger.Info("Deposit confirmed", map[string]interface{}{
		"transaction_id": tx.ID,
		"provider_ref":   providerRef,
		"amount":         tx.Amount.String(),
	})
	return tx, nil
}

// FailFund marks an abandoned or declined deposit.
func (s *Service) FailFund(ctx context.Context, txID uuid.UUID, reason string) error {
	tx, err := s.repo.FindByID(ctx, txID)
	if err != nil {
		return err
	}
	if tx.Kind != domain.KindFund {
		return errors.Wrap(errors.ErrTransactionNotFound, "not a funding transaction")
	}
	return s.repo.Complete(ctx, txID, domain.TransactionStatusFailed, nil, &reason)
}

// Queries.

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.Artifacts = nil
	return tx, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Transaction, error) {
	txs, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		tx.Artifacts = nil
	}
	return txs, nil
}

func (s *Service) StatsByUser(ctx context.Context, userID uuid.UUID) (*domain.UserStats, error) {
	return s.repo.StatsByUser(ctx, userID)
}

// ReconcileStale fails pending transactions older than the cutoff and refunds
// their reservations. The watchdog is the only resolver of abandoned
// reservations; nothing stays pending past the retry window.
func (s *Service) ReconcileStale(ctx context.Context, staleAfter time.Duration, limit int) (int, error) {
	cutoff := time.Now().Add(-staleAfter)
	stale, err := s.repo.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, tx := range stale {
		if tx.ReservationID != nil {
			if err := s.wallet.SettleFailure(ctx, *tx.ReservationID); err != nil &&
				errors.KindOf(err) != errors.KindConflict {
				s.logger.Error("Watchdog failed to refund reservation", map[string]interface{}{
					"transaction_id": tx.ID, "error": err.Error(),
				})
				continue
			}
		}
		reason := "dispatch timed out"
		if err := s.repo.Complete(ctx, tx.ID, domain.TransactionStatusFailed, nil, &reason); err != nil {
			s.logger.Error("Watchdog failed to close transaction", map[string]interface{}{
				"transaction_id": tx.ID, "error": err.Error(),
			})
			continue
		}
		swept++
		s.logger.Warn("Watchdog closed stale transaction", map[string]interface{}{
			"transaction_id": tx.ID,
			"reference":      tx.Reference,
			"pending_for":    time.Since(tx.CreatedAt).String(),
		})
	}
	return swept, nil
}

// newReference builds the human-readable receipt number, e.g. DAT-4F2A9C01D3.
func newReference(kind domain.TransactionKind) string {
	b := make([]byte, 5)
	if _, err := rand.Read(b); err != nil {
		// math/rand quality is acceptable for a display reference, but
		// crypto/rand failing means the process is in bad shape anyway.
		return fmt.Sprintf("%s-%d", prefixFor(kind), time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefixFor(kind), strings.ToUpper(hex.EncodeToString(b)))
}

func prefixFor(kind domain.TransactionKind) string {
	switch kind {
	case domain.KindFund:
		return "FND"
	case domain.KindData:
		return "DAT"
	case domain.KindAirtime:
		return "AIR"
	case domain.KindBill:
		return "BIL"
	case domain.KindResultChecker:
		return "EDU"
	case domain.KindBulkSMS:
		return "SMS"
	default:
		return "TXN"
	}
}

// generatePins creates card serial/pin pairs when the upstream debits the
// channel but leaves voucher generation to us.
func generatePins(examType string, quantity int) domain.Metadata {
	if quantity < 1 {
		quantity = 1
	}
	cards := make([]map[string]string, 0, quantity)
	for i := 0; i < quantity; i++ {
		cards = append(cards, map[string]string{
			"serial": strings.ToUpper(examType) + "-" + randomDigits(10),
			"pin":    randomDigits(12),
		})
	}
	return domain.Metadata{"cards": cards}
}

func randomDigits(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", n)
	}
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	return string(b)
}
