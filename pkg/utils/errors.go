// Package utils provides shared utility helpers used across Lucid-sub001.
package utils

import (
	"errors"
	"fmt"
)

// Wrap adds context to an error message. It returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Kind identifies one of the closed set of error categories the core
// distinguishes (spec §7). The REST shell (out of scope here) maps each
// Kind to a stable LUCID_ERR_* code and HTTP status.
type Kind string

const (
	KindIntegrity          Kind = "integrity"
	KindValidation         Kind = "validation"
	KindGasLimitExceeded   Kind = "gas_limit_exceeded"
	KindKycRejected        Kind = "kyc_rejected"
	KindInsufficientEnergy Kind = "insufficient_energy"
	KindInsufficientBal    Kind = "insufficient_balance"
	KindDuplicateTx        Kind = "duplicate_transaction"
	KindChainUnavailable   Kind = "chain_unavailable"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindPipelineCanceled   Kind = "pipeline_canceled"
)

// TypedError is a typed error carrying a Kind plus an optional wrapped
// cause and the field/id that triggered it, so callers can distinguish
// error categories with errors.As instead of string matching.
type TypedError struct {
	Kind    Kind
	Message string
	Field   string
	Cause   error
}

func (e *TypedError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TypedError) Unwrap() error { return e.Cause }

// NewError constructs a TypedError of the given kind.
func NewError(kind Kind, message string) *TypedError {
	return &TypedError{Kind: kind, Message: message}
}

// NewFieldError constructs a TypedError annotated with the offending field.
func NewFieldError(kind Kind, message, field string) *TypedError {
	return &TypedError{Kind: kind, Message: message, Field: field}
}

// WrapAs constructs a TypedError of the given kind wrapping cause.
func WrapAs(kind Kind, message string, cause error) *TypedError {
	return &TypedError{Kind: kind, Message: message, Cause: cause}
}

// IsKind reports whether err (or any error it wraps) is a TypedError of kind.
func IsKind(err error, kind Kind) bool {
	var te *TypedError
	if errors.As(err, &te) {
		return te.Kind == kind
	}
	return false
}
