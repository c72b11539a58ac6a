package usecase

import (
	"fmt"
	"net/mail"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// validationFailure folds field errors into a single VALIDATION_ERROR.
func validationFailure(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return validation(strings.Join(parts, "; "))
}

func validateEmail(field, email string) []ValidationError {
	email = strings.TrimSpace(email)
	if email == "" {
		return []ValidationError{{field, "is required"}}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return []ValidationError{{field, "is invalid"}}
	}
	return nil
}

func ValidateLeadSubmission(input SubmitLeadInput) []ValidationError {
	errors := validateEmail("email", input.Email)
	if len(input.Source) > 64 {
		errors = append(errors, ValidationError{"source", "must not exceed 64 characters"})
	}
	if len(input.AttachmentStyle) > 64 {
		errors = append(errors, ValidationError{"attachment_style", "must not exceed 64 characters"})
	}
	return errors
}

func ValidateRecordPurchase(input RecordPurchaseInput) []ValidationError {
	var errors []ValidationError
	if strings.TrimSpace(input.CustomerID) == "" {
		errors = append(errors, ValidationError{"customer_id", "is required"})
	}
	if strings.TrimSpace(input.ProductID) == "" {
		errors = append(errors, ValidationError{"product_id", "is required"})
	}
	if input.Amount < 0 {
		errors = append(errors, ValidationError{"amount", "must not be negative"})
	}
	if input.Status != "" && !input.Status.Valid() {
		errors = append(errors, ValidationError{"status", "must be pending, completed, failed or refunded"})
	}
	return errors
}

func ValidateCheckout(input CheckoutInput) []ValidationError {
	errors := validateEmail("email", input.Email)
	if input.ProductID == "" && input.ProductSlug == "" {
		errors = append(errors, ValidationError{"product", "product_id or product_slug is required"})
	}
	if input.Amount < 0 {
		errors = append(errors, ValidationError{"amount", "must not be negative"})
	}
	return errors
}
