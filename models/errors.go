package models

import (
	"errors"

	"bitbucket.org/mmdatafocus/supplychain_backend/utils"
)

// ErrorKind classifies every ledger rejection so the transport layer can map it
// to a status code without parsing reason strings.
type ErrorKind string

const (
	ErrorKindUnauthenticated ErrorKind = "unauthenticated"
	ErrorKindAuthorization   ErrorKind = "authorization"
	ErrorKindValidation      ErrorKind = "validation"
	ErrorKindState           ErrorKind = "state"
	ErrorKindConsistency     ErrorKind = "consistency"
	ErrorKindNotFound        ErrorKind = "not_found"
)

// LedgerError is the only error type ledger operations return for domain
// rejections. Infrastructure errors (db, redis) pass through untouched.
type LedgerError struct {
	Kind   ErrorKind
	Reason string
}

func (e *LedgerError) Error() string {
	return e.Reason
}

func NewUnauthenticatedError(reason string) error {
	return &LedgerError{Kind: ErrorKindUnauthenticated, Reason: reason}
}

func NewAuthorizationError(reason string) error {
	return &LedgerError{Kind: ErrorKindAuthorization, Reason: reason}
}

func NewValidationError(reason string) error {
	return &LedgerError{Kind: ErrorKindValidation, Reason: reason}
}

func NewStateError(reason string) error {
	return &LedgerError{Kind: ErrorKindState, Reason: reason}
}

func NewConsistencyError(reason string) error {
	return &LedgerError{Kind: ErrorKindConsistency, Reason: reason}
}

func NewNotFoundError(reason string) error {
	return &LedgerError{Kind: ErrorKindNotFound, Reason: reason}
}

// KindOf reports the ErrorKind of err, treating the shared record-not-found
// sentinel as not_found. Unclassified errors report an empty kind.
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return ErrorKindNotFound
	}
	return ""
}
