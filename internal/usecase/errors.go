package usecase

import (
	"errors"

	"github.com/xavierca1/healing-ledger/internal/entity"
)

const (
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePreconditionFailed = "PRECONDITION_FAILED"
	CodeValidation         = "VALIDATION_ERROR"

	CodeDatabase = "DATABASE_ERROR"
	CodeQueue    = "QUEUE_ERROR"
)

// DomainError is a business-rule violation the caller can act on.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// DomainCode returns the code of a DomainError in err's chain, or "".
func DomainCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// TechnicalError wraps an infrastructure failure. Callers treat it as terminal for the request.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func notFound(msg string) error {
	return &DomainError{Code: CodeNotFound, Message: msg}
}

func validation(msg string) error {
	return &DomainError{Code: CodeValidation, Message: msg}
}

// translate maps repository sentinels onto the error taxonomy.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case IsDomainError(err):
		return err
	case errors.Is(err, entity.ErrNotFound):
		return notFound(err.Error())
	case errors.Is(err, entity.ErrDuplicateSlug):
		return &DomainError{Code: CodeConflict, Message: err.Error()}
	case errors.Is(err, entity.ErrProductHasPurchases):
		return &DomainError{Code: CodePreconditionFailed, Message: "product has purchases; deactivate it instead"}
	default:
		return &TechnicalError{Code: CodeDatabase, Message: op + ": " + err.Error(), Err: err}
	}
}
