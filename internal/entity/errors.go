package entity

import "errors"

var (
	ErrNotFound = errors.New("not found")

	ErrProductNotFound  = newNotFound("product")
	ErrCustomerNotFound = newNotFound("customer")
	ErrPurchaseNotFound = newNotFound("purchase")
	ErrEmailLogNotFound = newNotFound("email log")

	ErrDuplicateSlug       = errors.New("product slug already exists")
	ErrProductHasPurchases = errors.New("product has dependent purchases")
)

// notFoundError keeps errors.Is(err, ErrNotFound) true for every entity miss.
type notFoundError struct {
	what string
}

func (e *notFoundError) Error() string { return e.what + " not found" }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func newNotFound(what string) error {
	return &notFoundError{what: what}
}
