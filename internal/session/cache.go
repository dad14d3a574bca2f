package session

import (
	"sync"
	"time"

	"mindwell-backend/internal/model"
	"mindwell-backend/pkg/logger"

	"github.com/google/uuid"
)

// Cache holds the message lists of the zero-persistence chat variant,
// keyed by the authenticated user plus an opaque per-client session key.
// A session key only ever addresses slots of the user presenting it, so
// one patient can never read or clear another patient's transcript.
// Entries live outside the relational store entirely: an evicted or lost
// slot costs nothing but that session's transcript.
type Cache struct {
	slots    SlotStore
	greeting string

	mu     sync.Mutex
	loaded map[string][]model.Message
}

func NewCache(slots SlotStore, greeting string) *Cache {
	return &Cache{
		slots:    slots,
		greeting: greeting,
		loaded:   make(map[string][]model.Message),
	}
}

// Messages returns the ordered message list for the user's session,
// restoring it from the slot store on first touch. A missing or
// unparseable slot falls back to a single seeded greeting.
func (c *Cache) Messages(userID, key string) []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.load(slotKey(userID, key))...)
}

// Append adds a message to the user's session list and re-serializes the
// whole list to the slot store. Write failures are logged and swallowed:
// the session stays usable in memory.
func (c *Cache) Append(userID, key string, sender model.Sender, content string) model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := slotKey(userID, key)
	msg := model.Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
	messages := append(c.load(slot), msg)
	c.loaded[slot] = messages
	c.persist(slot, messages)
	return msg
}

// Clear resets the user's session to the seeded greeting and removes its
// slot.
func (c *Cache) Clear(userID, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := slotKey(userID, key)
	c.loaded[slot] = c.seed()
	if err := c.slots.Delete(slot); err != nil {
		logger.Warnf("Failed to delete session slot %s: %v", slot, err)
	}
}

// slotKey namespaces the caller-supplied session key under the
// authenticated user.
func slotKey(userID, key string) string {
	return userID + "/" + key
}

func (c *Cache) load(slot string) []model.Message {
	if messages, ok := c.loaded[slot]; ok {
		return messages
	}

	messages, err := c.slots.Load(slot)
	if err != nil || len(messages) == 0 {
		if err != nil {
			logger.Warnf("Failed to restore session slot %s, reseeding: %v", slot, err)
		}
		messages = c.seed()
	}
	c.loaded[slot] = messages
	return messages
}

func (c *Cache) persist(slot string, messages []model.Message) {
	if err := c.slots.Save(slot, messages); err != nil {
		logger.Warnf("Failed to persist session slot %s: %v", slot, err)
	}
}

func (c *Cache) seed() []model.Message {
	return []model.Message{{
		ID:        uuid.New().String(),
		Sender:    model.SenderBot,
		Content:   c.greeting,
		CreatedAt: time.Now(),
	}}
}
