package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/xavierca1/healing-ledger/internal/entity"
)

type ChatRepository struct {
	DB *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) Append(ctx context.Context, msg *entity.ChatMessage) error {
	query := r.DB.Rebind(`
		INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING seq
	`)
	if err := r.DB.QueryRowxContext(ctx, query, msg.SessionID, msg.Role, msg.Content, msg.CreatedAt).Scan(&msg.Seq); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *ChatRepository) History(ctx context.Context, sessionID string) ([]*entity.ChatMessage, error) {
	query := r.DB.Rebind(`
		SELECT seq, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY created_at ASC, seq ASC
	`)
	messages := []*entity.ChatMessage{}
	if err := r.DB.SelectContext(ctx, &messages, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return messages, nil
}
