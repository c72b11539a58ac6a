package entity

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Answers is the raw quiz payload, stored as JSON text.
type Answers map[string]any

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Answers) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*a = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("answers: unsupported type %T", src)
	}
	if len(raw) == 0 {
		*a = nil
		return nil
	}
	return json.Unmarshal(raw, a)
}

type Lead struct {
	ID                  string    `json:"id" db:"id"`
	Email               string    `json:"email" db:"email"`
	Source              string    `json:"source" db:"source"`
	AttachmentStyle     *string   `json:"attachment_style,omitempty" db:"attachment_style"`
	Answers             Answers   `json:"answers,omitempty" db:"answers"`
	ConvertedToCustomer bool      `json:"converted_to_customer" db:"converted_to_customer"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

func NewLead(email, source, attachmentStyle string, answers Answers) (*Lead, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if source == "" {
		source = "quiz"
	}
	return &Lead{
		ID:              uuid.New().String(),
		Email:           email,
		Source:          source,
		AttachmentStyle: optional(attachmentStyle),
		Answers:         answers,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

type LeadRepositoryInterface interface {
	// Upsert replaces style and answers of an existing email and refreshes created_at.
	// It fills lead with the stored row and reports whether a new row was inserted.
	Upsert(ctx context.Context, lead *Lead) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*Lead, error)
	Count(ctx context.Context) (int, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error)
	CountConverted(ctx context.Context) (int, error)
	CountByAttachmentStyle(ctx context.Context) (map[string]int, error)
	MarkConverted(ctx context.Context, email string) error
}
