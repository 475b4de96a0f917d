// Package domain holds the core entity types shared across services.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role determines a session's capabilities. The claim is immutable per session.
type Role string

const (
	RoleUser     Role = "user"
	RoleReseller Role = "reseller"
	RoleAdmin    Role = "admin"
)

// Network identifies a mobile network operator a purchase is fulfilled on.
type Network string

const (
	NetworkMTN     Network = "mtn"
	NetworkGlo     Network = "glo"
	NetworkAirtel  Network = "airtel"
	Network9Mobile Network = "9mobile"
)

// User represents a platform account.
type User struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	FullName      string          `json:"full_name" db:"full_name"`
	Email         string          `json:"email" db:"email"`
	Phone         string          `json:"phone" db:"phone"`
	PasswordHash  string          `json:"-" db:"password_hash"`
	Role          Role            `json:"role" db:"role"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	KYCStatus     KYCStatus       `json:"kyc_status" db:"kyc_status"`
	KYCDocument   *string         `json:"kyc_document,omitempty" db:"kyc_document"`
	Avatar        *string         `json:"avatar,omitempty" db:"avatar"`
	ReferralCode  string          `json:"referral_code" db:"referral_code"`
	ReferredBy    *uuid.UUID      `json:"referred_by,omitempty" db:"referred_by"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	TOTPSecret    *string         `json:"-" db:"totp_secret"`
	IsTOTPEnabled bool            `json:"is_totp_enabled" db:"is_totp_enabled"`
	LastLogin     *time.Time      `json:"last_login,omitempty" db:"last_login"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type KYCStatus string

const (
	KYCStatusNone     KYCStatus = "none"
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusVerified KYCStatus = "verified"
	KYCStatusRejected KYCStatus = "rejected"
)

// EntryDirection is the side of a ledger entry.
type EntryDirection string

const (
	EntryDebit  EntryDirection = "debit"
	EntryCredit EntryDirection = "credit"
)

// EntryStatus tracks settlement of a ledger entry. Credits are final at
// creation; a debit starts pending (a reservation) and is finalized or
// refunded exactly once.
type EntryStatus string

const (
	EntryStatusPending  EntryStatus = "pending"
	EntryStatusFinal    EntryStatus = "final"
	EntryStatusRefunded EntryStatus = "refunded"
)

// LedgerEntry is an append-only wallet movement. Never mutated except the
// pending -> final/refunded settlement of a debit.
type LedgerEntry struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	Direction      EntryDirection  `json:"direction" db:"direction"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Status         EntryStatus     `json:"status" db:"status"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Reason         string          `json:"reason" db:"reason"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty" db:"transaction_id"`
	BalanceAfter   decimal.Decimal `json:"balance_after" db:"balance_after"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty" db:"settled_at"`
}

// TransactionKind is the purchase/fund category.
type TransactionKind string

const (
	KindFund          TransactionKind = "fund"
	KindData          TransactionKind = "data"
	KindAirtime       TransactionKind = "airtime"
	KindBill          TransactionKind = "bill"
	KindResultChecker TransactionKind = "result-checker"
	KindBulkSMS       TransactionKind = "bulk-sms"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusSuccess  TransactionStatus = "success"
	TransactionStatusFailed   TransactionStatus = "failed"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

// Terminal reports whether the status can never change again.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed || s == TransactionStatusRefunded
}

// Transaction is a fulfillment request and its outcome. Exactly one debit
// entry (plus an eventual refund credit on failure) belongs to it.
type Transaction struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	Reference     string            `json:"reference" db:"reference"`
	UserID        uuid.UUID         `json:"user_id" db:"user_id"`
	Kind          TransactionKind   `json:"kind" db:"kind"`
	Status        TransactionStatus `json:"status" db:"status"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	Payload       Metadata          `json:"payload" db:"payload"`
	Artifacts     Metadata          `json:"artifacts,omitempty" db:"artifacts"`
	ResourceID    *uuid.UUID        `json:"resource_id,omitempty" db:"resource_id"`
	ReservationID *uuid.UUID        `json:"-" db:"reservation_id"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

type ResourceStatus string

const (
	ResourceStatusActive   ResourceStatus = "active"
	ResourceStatusInactive ResourceStatus = "inactive"
	ResourceStatusPaused   ResourceStatus = "paused"
)

// SimResource is a provisioned SIM line / provider channel purchases are
// fulfilled through.
type SimResource struct {
	ID                  uuid.UUID       `json:"id" db:"id"`
	Label               string          `json:"label" db:"label"`
	Network             Network         `json:"network" db:"network"`
	Phone               string          `json:"phone" db:"phone"`
	Status              ResourceStatus  `json:"status" db:"status"`
	Balance             decimal.Decimal `json:"balance" db:"balance"`
	AssignedCount       int             `json:"assigned_count" db:"assigned_count"`
	ConsecutiveFailures int             `json:"consecutive_failures" db:"consecutive_failures"`
	LastUsedAt          *time.Time      `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// Eligible reports whether the pool may hand this resource out.
func (r *SimResource) Eligible() bool {
	return r.Status == ResourceStatusActive
}

// ResourceAlert is raised for the admin console when a SIM is auto-paused.
type ResourceAlert struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	ResourceID   uuid.UUID  `json:"resource_id" db:"resource_id"`
	Message      string     `json:"message" db:"message"`
	Acknowledged bool       `json:"acknowledged" db:"acknowledged"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	AckedAt      *time.Time `json:"acked_at,omitempty" db:"acked_at"`
}

// DataPlan is a sellable data bundle. Price and external id freeze once any
// transaction references the plan (historical pricing).
type DataPlan struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Network        Network         `json:"network" db:"network"`
	Category       string          `json:"category" db:"category"` // sme, gifting, corporate
	Name           string          `json:"name" db:"name"`
	Price          decimal.Decimal `json:"price" db:"price"`
	SizeMB         int             `json:"size_mb" db:"size_mb"`
	ValidityDays   int             `json:"validity_days" db:"validity_days"`
	ExternalPlanID string          `json:"external_plan_id" db:"external_plan_id"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// KycSubmission is a single review round of a user's identity document.
type KycSubmission struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	Document        string     `json:"document" db:"document"`
	Status          KYCStatus  `json:"status" db:"status"`
	RejectionReason *string    `json:"rejection_reason,omitempty" db:"rejection_reason"`
	ReviewedBy      *uuid.UUID `json:"reviewed_by,omitempty" db:"reviewed_by"`
	SubmittedAt     time.Time  `json:"submitted_at" db:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
}

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// SupportTicket moves open -> resolved -> closed; only an admin reply reopens.
type SupportTicket struct {
	ID            uuid.UUID      `json:"id" db:"id"`
	TicketNumber  string         `json:"ticket_number" db:"ticket_number"`
	UserID        uuid.UUID      `json:"user_id" db:"user_id"`
	Subject       string         `json:"subject" db:"subject"`
	Message       string         `json:"message" db:"message"`
	Priority      TicketPriority `json:"priority" db:"priority"`
	Status        TicketStatus   `json:"status" db:"status"`
	AdminResponse *string        `json:"admin_response,omitempty" db:"admin_response"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// ReferralCredit records a commission payout; unique per (referrer, referred).
type ReferralCredit struct {
	ID                      uuid.UUID       `json:"id" db:"id"`
	ReferrerID              uuid.UUID       `json:"referrer_id" db:"referrer_id"`
	ReferredUserID          uuid.UUID       `json:"referred_user_id" db:"referred_user_id"`
	QualifyingTransactionID uuid.UUID       `json:"qualifying_transaction_id" db:"qualifying_transaction_id"`
	CommissionAmount        decimal.Decimal `json:"commission_amount" db:"commission_amount"`
	CreatedAt               time.Time       `json:"created_at" db:"created_at"`
}

// Beneficiary is a saved recipient for quick top-ups.
type Beneficiary struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Phone     string    `json:"phone" db:"phone"`
	Network   Network   `json:"network" db:"network"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ApiKey is a reseller API credential; only the hash is stored.
type ApiKey struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Prefix     string     `json:"prefix" db:"prefix"`
	KeyHash    string     `json:"-" db:"key_hash"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Setting is opaque admin-managed configuration.
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserStats aggregates a user's transaction history for the dashboard.
type UserStats struct {
	Total      int             `db:"total" json:"total"`
	Successful int             `db:"successful" json:"successful"`
	Failed     int             `db:"failed" json:"failed"`
	Pending    int             `db:"pending" json:"pending"`
	TotalSpent decimal.Decimal `db:"total_spent" json:"total_spent"`
}

// SystemStats aggregates platform-wide numbers for the admin console.
type SystemStats struct {
	TotalTransactions int64           `db:"total_transactions" json:"total_transactions"`
	Successful        int64           `db:"successful" json:"successful"`
	Failed            int64           `db:"failed" json:"failed"`
	Pending           int64           `db:"pending" json:"pending"`
	TotalVolume       decimal.Decimal `db:"total_volume" json:"total_volume"`
	FundVolume        decimal.Decimal `db:"fund_volume" json:"fund_volume"`
}

// Metadata is a JSON-compatible map
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(Metadata{})
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}
