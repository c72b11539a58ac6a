package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

const emailLogColumns = `id, recipient, subject, template, status, purchase_id, provider_id, attempts, last_error, created_at, updated_at`

type EmailLogRepository struct {
	DB *sqlx.DB
}

func NewEmailLogRepository(db *sqlx.DB) *EmailLogRepository {
	return &EmailLogRepository{DB: db}
}

func (r *EmailLogRepository) Create(ctx context.Context, l *entity.EmailLog) error {
	query := r.DB.Rebind(`
		INSERT INTO email_logs (` + emailLogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.DB.ExecContext(ctx, query,
		l.ID, l.To, l.Subject, l.Template, l.Status, l.PurchaseID, l.ProviderID, l.Attempts, l.LastError, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create email log: %w", err)
	}
	return nil
}

func (r *EmailLogRepository) FindByID(ctx context.Context, id string) (*entity.EmailLog, error) {
	var l entity.EmailLog
	if err := r.DB.GetContext(ctx, &l, r.DB.Rebind(`SELECT `+emailLogColumns+` FROM email_logs WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrEmailLogNotFound
		}
		return nil, fmt.Errorf("failed to get email log: %w", err)
	}
	return &l, nil
}

func (r *EmailLogRepository) RecordAttempt(ctx context.Context, id string, at time.Time) error {
	query := r.DB.Rebind(`UPDATE email_logs SET attempts = attempts + 1, updated_at = ? WHERE id = ?`)
	res, err := r.DB.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record email attempt: %w", err)
	}
	return expectAffected(res, entity.ErrEmailLogNotFound)
}

// UpdateStatus keeps the stored provider id / last error when the new ones are empty.
func (r *EmailLogRepository) UpdateStatus(ctx context.Context, id string, status entity.EmailStatus, providerID, lastError string) error {
	query := r.DB.Rebind(`
		UPDATE email_logs
		SET status = ?,
			provider_id = COALESCE(?, provider_id),
			last_error = COALESCE(?, last_error),
			updated_at = ?
		WHERE id = ?
	`)
	res, err := r.DB.ExecContext(ctx, query, status, nullString(providerID), nullString(lastError), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update email log: %w", err)
	}
	return expectAffected(res, entity.ErrEmailLogNotFound)
}

func (r *EmailLogRepository) UpdateStatusByProviderID(ctx context.Context, providerID string, status entity.EmailStatus) error {
	query := r.DB.Rebind(`UPDATE email_logs SET status = ?, updated_at = ? WHERE provider_id = ?`)
	res, err := r.DB.ExecContext(ctx, query, status, time.Now().UTC(), providerID)
	if err != nil {
		return fmt.Errorf("failed to update email log: %w", err)
	}
	return expectAffected(res, entity.ErrEmailLogNotFound)
}

func (r *EmailLogRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*entity.EmailLog, error) {
	query := r.DB.Rebind(`
		SELECT ` + emailLogColumns + `
		FROM email_logs
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC
		LIMIT ?
	`)
	logs := []*entity.EmailLog{}
	if err := r.DB.SelectContext(ctx, &logs, query, entity.EmailPending, olderThan.UTC(), limit); err != nil {
		return nil, fmt.Errorf("failed to list stale email logs: %w", err)
	}
	return logs, nil
}

// List filters by status unless status is empty.
func (r *EmailLogRepository) List(ctx context.Context, status entity.EmailStatus, limit, offset int) ([]*entity.EmailLog, error) {
	query := `SELECT ` + emailLogColumns + ` FROM email_logs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	logs := []*entity.EmailLog{}
	if err := r.DB.SelectContext(ctx, &logs, r.DB.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list email logs: %w", err)
	}
	return logs, nil
}

func (r *EmailLogRepository) Count(ctx context.Context, status entity.EmailStatus) (int, error) {
	if status == "" {
		return count(ctx, r.DB, `SELECT COUNT(*) FROM email_logs`)
	}
	return count(ctx, r.DB, `SELECT COUNT(*) FROM email_logs WHERE status = ?`, status)
}
