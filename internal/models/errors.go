package models

import (
	"errors"
	"fmt"
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// InsufficientFundsError reports a BUY that would take the balance negative.
// The order is rejected wholesale, never partially filled.
type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: required %.2f, available %.2f", e.Required, e.Available)
}

// InsufficientHoldingsError reports a SELL exceeding the held quantity.
type InsufficientHoldingsError struct {
	Symbol    string
	Required  float64
	Available float64
}

func (e *InsufficientHoldingsError) Error() string {
	return fmt.Sprintf("insufficient holdings in %s: required %g, available %g", e.Symbol, e.Required, e.Available)
}

// NotFoundError reports a missing account, position, or other resource.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Resource, e.Key)
}

// UpstreamError reports a prediction-service or execution-adapter failure.
// Timeout distinguishes deadline expiry from other transport errors.
// Indeterminate marks an execution failure that occurred after the Decision
// was already persisted: the pipeline outcome is unknown, not a clean reject.
type UpstreamError struct {
	Service       string // "model" or "execution"
	Timeout       bool
	Indeterminate bool
	Err           error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s service timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s service error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// GateRejectedError reports a risk-gate rejection. The Decision referenced
// by DecisionID was persisted; no trade was performed.
type GateRejectedError struct {
	Gate       string
	Reason     string
	DecisionID string
}

func (e *GateRejectedError) Error() string {
	return e.Reason
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDomainRejection reports whether err is a fail-fast domain rule violation
// (validation, funds, holdings) that left state untouched.
func IsDomainRejection(err error) bool {
	var ve *ValidationError
	var fe *InsufficientFundsError
	var he *InsufficientHoldingsError
	return errors.As(err, &ve) || errors.As(err, &fe) || errors.As(err, &he)
}
