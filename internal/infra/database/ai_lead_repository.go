package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

const aiLeadColumns = `id, email, session_id, message_count, last_interaction, converted_to_customer, created_at`

type AILeadRepository struct {
	DB *sqlx.DB
}

func NewAILeadRepository(db *sqlx.DB) *AILeadRepository {
	return &AILeadRepository{DB: db}
}

// Capture increments message_count on a known email instead of recounting the transcript.
func (r *AILeadRepository) Capture(ctx context.Context, lead *entity.AILead) (bool, error) {
	query := r.DB.Rebind(`
		INSERT INTO ai_leads (` + aiLeadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email)
		DO UPDATE SET
			message_count = ai_leads.message_count + 1,
			session_id = excluded.session_id,
			last_interaction = excluded.last_interaction
	`)

	newID := lead.ID
	_, err := r.DB.ExecContext(ctx, query,
		lead.ID, lead.Email, lead.SessionID, lead.MessageCount, lead.LastInteraction, lead.ConvertedToCustomer, lead.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to capture ai lead: %w", err)
	}

	stored := r.DB.Rebind(`SELECT ` + aiLeadColumns + ` FROM ai_leads WHERE email = ?`)
	if err := r.DB.GetContext(ctx, lead, stored, lead.Email); err != nil {
		return false, fmt.Errorf("failed to reload ai lead: %w", err)
	}
	return lead.ID == newID, nil
}

func (r *AILeadRepository) TouchSession(ctx context.Context, sessionID string, at time.Time) (bool, error) {
	query := r.DB.Rebind(`
		UPDATE ai_leads
		SET message_count = message_count + 1, last_interaction = ?
		WHERE session_id = ?
	`)
	res, err := r.DB.ExecContext(ctx, query, at.UTC(), sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to record ai lead activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *AILeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.AILead, error) {
	query := r.DB.Rebind(`SELECT ` + aiLeadColumns + ` FROM ai_leads ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`)
	leads := []*entity.AILead{}
	if err := r.DB.SelectContext(ctx, &leads, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list ai leads: %w", err)
	}
	return leads, nil
}

func (r *AILeadRepository) Recent(ctx context.Context, limit int) ([]*entity.AILead, error) {
	query := r.DB.Rebind(`SELECT ` + aiLeadColumns + ` FROM ai_leads ORDER BY last_interaction DESC, id DESC LIMIT ?`)
	leads := []*entity.AILead{}
	if err := r.DB.SelectContext(ctx, &leads, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list recent ai leads: %w", err)
	}
	return leads, nil
}

func (r *AILeadRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM ai_leads`)
}

func (r *AILeadRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM ai_leads WHERE created_at >= ? AND created_at < ?`, from.UTC(), to.UTC())
}

func (r *AILeadRepository) CountConverted(ctx context.Context) (int, error) {
	return count(ctx, r.DB, `SELECT COUNT(*) FROM ai_leads WHERE converted_to_customer = ?`, true)
}

func (r *AILeadRepository) SumMessageCount(ctx context.Context) (int64, error) {
	var total int64
	if err := r.DB.GetContext(ctx, &total, `SELECT COALESCE(SUM(message_count), 0) FROM ai_leads`); err != nil {
		return 0, fmt.Errorf("failed to sum ai lead messages: %w", err)
	}
	return total, nil
}

func (r *AILeadRepository) MarkConverted(ctx context.Context, email string) error {
	query := r.DB.Rebind(`UPDATE ai_leads SET converted_to_customer = ? WHERE email = ?`)
	if _, err := r.DB.ExecContext(ctx, query, true, entity.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("failed to mark ai lead converted: %w", err)
	}
	return nil
}
