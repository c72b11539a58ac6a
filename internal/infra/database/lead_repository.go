package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

const leadColumns = `id, email, source, attachment_style, answers, converted_to_customer, created_at`

type LeadRepository struct {
	DB *sqlx.DB
}

func NewLeadRepository(db *sqlx.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// Upsert is a single statement so two submissions for the same email cannot both insert.
// Style and answers are replaced, not merged.
func (r *LeadRepository) Upsert(ctx context.Context, lead *entity.Lead) (bool, error) {
	query := r.DB.Rebind(`
		INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email)
		DO UPDATE SET
			attachment_style = excluded.attachment_style,
			answers = excluded.answers,
			created_at = excluded.created_at
	`)

	newID := lead.ID
	_, err := r.DB.ExecContext(ctx, query,
		lead.ID, lead.Email, lead.Source, lead.AttachmentStyle, lead.Answers, lead.ConvertedToCustomer, lead.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert lead: %w", err)
	}

	stored := r.DB.Rebind(`SELECT ` + leadColumns + ` FROM leads WHERE email = ?`)
	if err := r.DB.GetContext(ctx, lead, stored, lead.Email); err != nil {
		return false, fmt.Errorf("failed to reload lead: %w", err)
	}
	return lead.ID == newID, nil
}

func (r *LeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	query := r.DB.Rebind(`SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	leads := []*entity.Lead{}
	if err := r.DB.SelectContext(ctx, &leads, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	return leads, nil
}

func (r *LeadRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM leads`)
}

func (r *LeadRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM leads WHERE created_at >= ? AND created_at < ?`, from.UTC(), to.UTC())
}

func (r *LeadRepository) CountConverted(ctx context.Context) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM leads WHERE converted_to_customer = ?`, true)
}

// CountByAttachmentStyle leaves leads without a style out of the breakdown.
func (r *LeadRepository) CountByAttachmentStyle(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT attachment_style, COUNT(*)
		FROM leads
		WHERE attachment_style IS NOT NULL AND attachment_style <> ''
		GROUP BY attachment_style
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group leads: %w", err)
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var style string
		var n int
		if err := rows.Scan(&style, &n); err != nil {
			return nil, fmt.Errorf("failed to scan lead group: %w", err)
		}
		breakdown[style] = n
	}
	return breakdown, rows.Err()
}

func (r *LeadRepository) MarkConverted(ctx context.Context, email string) error {
	query := r.DB.Rebind(`UPDATE leads SET converted_to_customer = ? WHERE email = ?`)
	if _, err := r.DB.ExecContext(ctx, query, true, entity.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("failed to mark lead converted: %w", err)
	}
	return nil
}

func count(ctx context.Context, db *sqlx.DB, query string, args ...any) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
