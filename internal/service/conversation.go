package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mindwell-backend/internal/config"
	"mindwell-backend/internal/model"
	"mindwell-backend/internal/storage"

	"github.com/google/uuid"
)

// ConversationService owns conversation lifecycle and the per-conversation
// message log: creating and finding today's active conversation, deleting
// with active reassignment, recency grouping, and the first-user-message
// title rename.
type ConversationService struct {
	storage storage.Storage
	cfg     config.ChatConfig
	now     func() time.Time
}

func NewConversationService(store storage.Storage, cfg config.ChatConfig) *ConversationService {
	return &ConversationService{
		storage: store,
		cfg:     cfg,
		now:     time.Now,
	}
}

// CreateConversation inserts a new conversation and makes it the user's
// active one. An empty title gets the "Chat - <date>" default.
func (s *ConversationService) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	now := s.now()
	if title == "" {
		title = fmt.Sprintf("%s - %s", s.cfg.DefaultTitlePrefix, now.Format("January 2, 2006"))
	}

	conv := &model.Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	if err := s.storage.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	if err := s.storage.SetActiveConversation(ctx, userID, conv.ID); err != nil {
		return nil, fmt.Errorf("failed to activate conversation: %w", err)
	}

	return conv, nil
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	conversations, err := s.storage.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// GetConversation fetches one conversation, treating another user's
// conversation as not found.
func (s *ConversationService) GetConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, err := s.storage.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, storage.ErrConversationNotFound
	}
	return conv, nil
}

// EnsureTodayActive returns the conversation created today that is marked
// active, creating one when absent. It makes at most one creation per
// call; concurrent callers may still race to create duplicates, which is
// tolerated because conversations are cheap.
func (s *ConversationService) EnsureTodayActive(ctx context.Context, userID string) (*model.Conversation, error) {
	conversations, err := s.storage.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	today := s.now()
	for _, conv := range conversations {
		if conv.IsActive && sameDay(conv.CreatedAt, today) {
			return conv, nil
		}
	}

	return s.CreateConversation(ctx, userID, "")
}

// SelectConversation marks the conversation active. No-op when it already
// is.
func (s *ConversationService) SelectConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if conv.IsActive {
		return conv, nil
	}

	if err := s.storage.SetActiveConversation(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("failed to select conversation: %w", err)
	}
	conv.IsActive = true
	return conv, nil
}

// DeleteConversation removes the conversation and its messages. If the
// deleted conversation was active, the most recently updated remaining
// conversation becomes active; with none remaining a fresh one is created.
func (s *ConversationService) DeleteConversation(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv, err := s.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.storage.DeleteConversation(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete conversation: %w", err)
	}

	if !conv.IsActive {
		return nil, nil
	}

	remaining, err := s.storage.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	if len(remaining) == 0 {
		return s.CreateConversation(ctx, userID, "")
	}

	// List is ordered by updated_at descending.
	next := remaining[0]
	if err := s.storage.SetActiveConversation(ctx, userID, next.ID); err != nil {
		return nil, fmt.Errorf("failed to reassign active conversation: %w", err)
	}
	next.IsActive = true
	return next, nil
}

// FetchMessages returns the conversation's messages in insertion order.
func (s *ConversationService) FetchMessages(ctx context.Context, userID, conversationID string) ([]*model.Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.storage.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

// AddMessage appends a message to the conversation log. The first user
// message in a conversation renames it: the title becomes the message's
// first 50 characters, with "..." appended when truncated. Every user
// message bumps updated_at.
func (s *ConversationService) AddMessage(ctx context.Context, userID, conversationID string, sender model.Sender, content string) (*model.Message, error) {
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: unknown sender %q", storage.ErrInvalidData, sender)
	}

	conv, err := s.storage.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	firstUserMessage := false
	if sender == model.SenderUser {
		count, err := s.storage.CountMessagesBySender(ctx, conversationID, model.SenderUser)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		firstUserMessage = count == 0
	}

	msg := &model.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		UserID:         userID,
		Sender:         sender,
		Content:        content,
		CreatedAt:      s.now(),
	}
	if err := s.storage.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	if sender == model.SenderUser {
		if firstUserMessage {
			conv.Title = truncateTitle(content, s.cfg.TitleMaxLen)
		}
		conv.UpdatedAt = s.now()
		if err := s.storage.UpdateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("failed to update conversation: %w", err)
		}
	}

	return msg, nil
}

// Recency bucket labels, in render order.
const (
	GroupToday         = "Today"
	GroupYesterday     = "Yesterday"
	GroupLastSevenDays = "Last 7 days"
)

// GroupByRecency partitions conversations by creation date into Today,
// Yesterday, Last 7 days, then "<Month> <Year>" buckets sorted most
// recent first. Within a bucket the input order is preserved.
func (s *ConversationService) GroupByRecency(conversations []*model.Conversation) []*model.ConversationGroup {
	now := s.now()
	yesterday := now.AddDate(0, 0, -1)
	weekAgo := now.AddDate(0, 0, -7)

	byLabel := make(map[string]*model.ConversationGroup)
	var monthLabels []string

	add := func(label string, conv *model.Conversation) {
		group, ok := byLabel[label]
		if !ok {
			group = &model.ConversationGroup{Label: label}
			byLabel[label] = group
		}
		group.Conversations = append(group.Conversations, conv)
	}

	for _, conv := range conversations {
		switch {
		case sameDay(conv.CreatedAt, now):
			add(GroupToday, conv)
		case sameDay(conv.CreatedAt, yesterday):
			add(GroupYesterday, conv)
		case conv.CreatedAt.After(weekAgo):
			add(GroupLastSevenDays, conv)
		default:
			label := conv.CreatedAt.Format("January 2006")
			if _, ok := byLabel[label]; !ok {
				monthLabels = append(monthLabels, label)
			}
			add(label, conv)
		}
	}

	sort.Slice(monthLabels, func(i, j int) bool {
		a, _ := time.Parse("January 2006", monthLabels[i])
		b, _ := time.Parse("January 2006", monthLabels[j])
		return a.After(b)
	})

	groups := make([]*model.ConversationGroup, 0, len(byLabel))
	for _, label := range []string{GroupToday, GroupYesterday, GroupLastSevenDays} {
		if group, ok := byLabel[label]; ok {
			groups = append(groups, group)
		}
	}
	for _, label := range monthLabels {
		groups = append(groups, byLabel[label])
	}
	return groups
}

func truncateTitle(content string, maxLen int) string {
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen]) + "..."
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
