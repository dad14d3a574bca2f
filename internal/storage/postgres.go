package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "embed"

	"github.com/lib/pq"

	"mindwell-backend/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStorage persists conversations, messages and daily summaries in
// a Postgres database. The caller owns the *sql.DB lifecycle.
type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// Init verifies connectivity and applies the embedded schema. Statements
// use IF NOT EXISTS so repeated startups are safe.
func (p *PostgresStorage) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	return nil
}

func (p *PostgresStorage) Close() error {
	return p.db.Close()
}

func (p *PostgresStorage) CreateConversation(ctx context.Context, conv *model.Conversation) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at, is_active)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt, conv.IsActive,
	)
	return err
}

func (p *PostgresStorage) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := p.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at, is_active
         FROM conversations
         WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (p *PostgresStorage) UpdateConversation(ctx context.Context, conv *model.Conversation) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE conversations
         SET title = $1, updated_at = $2, is_active = $3
         WHERE id = $4`,
		conv.Title, conv.UpdatedAt, conv.IsActive, conv.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (p *PostgresStorage) DeleteConversation(ctx context.Context, id string) error {
	// Messages go with the conversation via ON DELETE CASCADE.
	res, err := p.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (p *PostgresStorage) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at, is_active
         FROM conversations
         WHERE user_id = $1
         ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := make([]*model.Conversation, 0)
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt, &conv.IsActive); err != nil {
			return nil, err
		}
		conversations = append(conversations, &conv)
	}
	return conversations, rows.Err()
}

func (p *PostgresStorage) SetActiveConversation(ctx context.Context, userID, conversationID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE conversations
         SET is_active = (id = $1)
         WHERE user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (p *PostgresStorage) AddMessage(ctx context.Context, msg *model.Message) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, user_id, sender, content, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.UserID, string(msg.Sender), msg.Content, msg.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		// 23503: foreign_key_violation, the conversation is gone.
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

func (p *PostgresStorage) GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error) {
	if _, err := p.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT id, conversation_id, user_id, sender, content, created_at
         FROM messages
         WHERE conversation_id = $1
         ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*model.Message, 0)
	for rows.Next() {
		var msg model.Message
		var sender string
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Sender = model.Sender(sender)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (p *PostgresStorage) CountMessagesBySender(ctx context.Context, conversationID string, sender model.Sender) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
         FROM messages
         WHERE conversation_id = $1 AND sender = $2`,
		conversationID, string(sender),
	).Scan(&count)
	return count, err
}

func (p *PostgresStorage) UpsertDailySummary(ctx context.Context, summary *model.DailySummary) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO daily_summaries
            (id, patient_id, summary_date, summary_text, mood_indicators, key_concerns, updated_at)
         VALUES ($1, $2, $3::date, $4, $5, $6, $7)
         ON CONFLICT (patient_id, summary_date) DO UPDATE
         SET summary_text = EXCLUDED.summary_text,
             mood_indicators = EXCLUDED.mood_indicators,
             key_concerns = EXCLUDED.key_concerns,
             updated_at = EXCLUDED.updated_at`,
		summary.ID, summary.PatientID, summary.SummaryDate, summary.SummaryText,
		pq.Array(summary.MoodIndicators), pq.Array(summary.KeyConcerns), summary.UpdatedAt,
	)
	return err
}

func (p *PostgresStorage) GetDailySummary(ctx context.Context, patientID, date string) (*model.DailySummary, error) {
	var s model.DailySummary
	err := p.db.QueryRowContext(ctx,
		`SELECT id, patient_id, to_char(summary_date, 'YYYY-MM-DD'), summary_text,
                mood_indicators, key_concerns, updated_at
         FROM daily_summaries
         WHERE patient_id = $1 AND summary_date = $2::date`,
		patientID, date,
	).Scan(&s.ID, &s.PatientID, &s.SummaryDate, &s.SummaryText,
		pq.Array(&s.MoodIndicators), pq.Array(&s.KeyConcerns), &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return &s, nil
}
