package domain

import (
	"errors"
	"fmt"
)

var (
	// Error taxonomy shared by use cases, repositories and transports.
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("entity not found")
	ErrAlreadyUsed = errors.New("gift card already used")
	ErrExpired     = errors.New("gift card expired")
	ErrGateway     = errors.New("payment gateway error")
	ErrPersistence = errors.New("persistence error")

	// ErrInvalidPlan is a validation failure: the plan is missing or inactive.
	ErrInvalidPlan = fmt.Errorf("%w: plan missing or inactive", ErrValidation)

	ErrCodeCollision  = errors.New("gift card code collision")
	ErrInvalidExecCtx = errors.New("invalid execution context")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnauthorized   = errors.New("unauthorized")
)

// ErrorKind is the closed set of failure classes surfaced to callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindInvalidPlan
	KindNotFound
	KindAlreadyUsed
	KindExpired
	KindGateway
	KindPersistence
	KindRateLimited
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidPlan:
		return "invalid_plan"
	case KindNotFound:
		return "not_found"
	case KindAlreadyUsed:
		return "already_used"
	case KindExpired:
		return "expired"
	case KindGateway:
		return "gateway"
	case KindPersistence:
		return "persistence"
	case KindRateLimited:
		return "rate_limited"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// KindOf classifies err. ErrInvalidPlan is checked before ErrValidation
// because it wraps it.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidPlan):
		return KindInvalidPlan
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyUsed):
		return KindAlreadyUsed
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrGateway):
		return KindGateway
	case errors.Is(err, ErrPersistence), errors.Is(err, ErrCodeCollision), errors.Is(err, ErrInvalidExecCtx):
		return KindPersistence
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindUnknown
	}
}

// Validationf builds an ErrValidation-wrapping error with a message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
