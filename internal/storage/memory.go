package storage

import (
	"context"
	"sort"
	"sync"

	"mindwell-backend/internal/model"
)

// MemoryStorage keeps all state in process memory. It backs tests and
// single-instance deployments that do not need durability.
type MemoryStorage struct {
	conversations map[string]*model.Conversation
	messages      map[string][]*model.Message
	summaries     map[string]*model.DailySummary
	mu            sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		conversations: make(map[string]*model.Conversation),
		messages:      make(map[string][]*model.Message),
		summaries:     make(map[string]*model.DailySummary),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) CreateConversation(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *conv
	m.conversations[conv.ID] = &c
	return nil
}

func (m *MemoryStorage) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, exists := m.conversations[id]
	if !exists {
		return nil, ErrConversationNotFound
	}

	c := *conv
	return &c, nil
}

func (m *MemoryStorage) UpdateConversation(_ context.Context, conv *model.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conv.ID]; !exists {
		return ErrConversationNotFound
	}

	c := *conv
	m.conversations[conv.ID] = &c
	return nil
}

func (m *MemoryStorage) DeleteConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[id]; !exists {
		return ErrConversationNotFound
	}

	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryStorage) ListConversations(_ context.Context, userID string) ([]*model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conversations := make([]*model.Conversation, 0)
	for _, conv := range m.conversations {
		if conv.UserID != userID {
			continue
		}
		c := *conv
		conversations = append(conversations, &c)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})

	return conversations, nil
}

func (m *MemoryStorage) SetActiveConversation(_ context.Context, userID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[conversationID]; !exists {
		return ErrConversationNotFound
	}

	for _, conv := range m.conversations {
		if conv.UserID == userID {
			conv.IsActive = conv.ID == conversationID
		}
	}
	return nil
}

func (m *MemoryStorage) AddMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.conversations[msg.ConversationID]; !exists {
		return ErrConversationNotFound
	}

	mc := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &mc)
	return nil
}

func (m *MemoryStorage) GetMessages(_ context.Context, conversationID string) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.conversations[conversationID]; !exists {
		return nil, ErrConversationNotFound
	}

	stored := m.messages[conversationID]
	messages := make([]*model.Message, len(stored))
	for i, msg := range stored {
		mc := *msg
		messages[i] = &mc
	}

	return messages, nil
}

func (m *MemoryStorage) CountMessagesBySender(_ context.Context, conversationID string, sender model.Sender) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.conversations[conversationID]; !exists {
		return 0, ErrConversationNotFound
	}

	count := 0
	for _, msg := range m.messages[conversationID] {
		if msg.Sender == sender {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStorage) UpsertDailySummary(_ context.Context, summary *model.DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := *summary
	m.summaries[summary.PatientID+"/"+summary.SummaryDate] = &s
	return nil
}

func (m *MemoryStorage) GetDailySummary(_ context.Context, patientID, date string) (*model.DailySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary, exists := m.summaries[patientID+"/"+date]
	if !exists {
		return nil, ErrSummaryNotFound
	}

	s := *summary
	return &s, nil
}
