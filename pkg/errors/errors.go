// Package errors provides the platform error taxonomy and helpers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable machine-readable error category returned to clients.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNoCapacity        Kind = "no_capacity"
	KindUpstream          Kind = "upstream"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindInternal          Kind = "internal"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrInvalidTOTP        = errors.New("invalid totp code")

	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrDuplicateKey        = errors.New("duplicate idempotency key")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationSettled  = errors.New("reservation already settled")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")

	ErrNoCapacity       = errors.New("no eligible resource available")
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidStatus    = errors.New("invalid status value")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUpstreamFailure     = errors.New("upstream provider failure")
	ErrDailyLimitExceeded  = errors.New("daily spend limit exceeded for unverified account")

	ErrPlanNotFound   = errors.New("plan not found")
	ErrPlanInactive   = errors.New("plan is not active")
	ErrPlanImmutable  = errors.New("plan pricing is immutable once referenced by a transaction")
	ErrTicketNotFound = errors.New("ticket not found")

	ErrKYCPending        = errors.New("a kyc submission is already pending review")
	ErrKYCVerified       = errors.New("kyc already verified")
	ErrKYCNotFound       = errors.New("kyc submission not found")
	ErrRejectionReason   = errors.New("rejection requires a reason")
	ErrBeneficiaryExists = errors.New("beneficiary already saved")
	ErrNotFound          = errors.New("not found")
)

// KindOf maps an error to its taxonomy kind.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrDailyLimitExceeded):
		return KindInsufficientFunds
	case errors.Is(err, ErrNoCapacity):
		return KindNoCapacity
	case errors.Is(err, ErrUpstreamFailure):
		return KindUpstream
	case errors.Is(err, ErrDuplicateKey),
		errors.Is(err, ErrKYCPending),
		errors.Is(err, ErrKYCVerified),
		errors.Is(err, ErrReservationSettled),
		errors.Is(err, ErrUserAlreadyExists),
		errors.Is(err, ErrBeneficiaryExists),
		errors.Is(err, ErrPlanImmutable):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTOTPRequired), errors.Is(err, ErrInvalidTOTP):
		return KindUnauthorized
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrResourceNotFound),
		errors.Is(err, ErrReservationNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.Is(err, ErrTicketNotFound),
		errors.Is(err, ErrKYCNotFound),
		errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrRejectionReason),
		errors.Is(err, ErrPlanInactive):
		return KindValidation
	default:
		return KindInternal
	}
}

// HTTPStatus maps a taxonomy kind to an HTTP status code. Exact values are
// stable once published; clients only branch on success/failure.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindNoCapacity:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
