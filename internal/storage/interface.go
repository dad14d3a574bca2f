package storage

import (
	"context"

	"mindwell-backend/internal/model"
)

// Storage is the persistence boundary for conversations, their message
// logs, and daily summaries. Both backends order ListConversations by
// updated_at descending and GetMessages by created_at ascending.
type Storage interface {
	// Conversation management
	CreateConversation(ctx context.Context, conv *model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	UpdateConversation(ctx context.Context, conv *model.Conversation) error
	DeleteConversation(ctx context.Context, id string) error
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	// SetActiveConversation marks the given conversation active and clears
	// the flag on every other conversation of the same user.
	SetActiveConversation(ctx context.Context, userID, conversationID string) error

	// Message log. Deleting a conversation deletes its messages.
	AddMessage(ctx context.Context, msg *model.Message) error
	GetMessages(ctx context.Context, conversationID string) ([]*model.Message, error)
	CountMessagesBySender(ctx context.Context, conversationID string, sender model.Sender) (int, error)

	// Daily summaries, keyed on (patient_id, summary_date).
	UpsertDailySummary(ctx context.Context, summary *model.DailySummary) error
	GetDailySummary(ctx context.Context, patientID, date string) (*model.DailySummary, error)

	Init() error
	Close() error
}
