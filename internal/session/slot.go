package session

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"mindwell-backend/internal/model"
)

// SlotStore is where a session's serialized message list lives between
// requests. Load returns nil with no error for an absent slot.
type SlotStore interface {
	Load(key string) ([]model.Message, error)
	Save(key string, messages []model.Message) error
	Delete(key string) error
}

// MemorySlotStore keeps serialized slots in a map. Used in tests and when
// no data directory is configured.
type MemorySlotStore struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemorySlotStore() *MemorySlotStore {
	return &MemorySlotStore{slots: make(map[string][]byte)}
}

func (s *MemorySlotStore) Load(key string) ([]model.Message, error) {
	s.mu.RLock()
	data, ok := s.slots[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MemorySlotStore) Save(key string, messages []model.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.slots[key] = data
	s.mu.Unlock()
	return nil
}

func (s *MemorySlotStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	return nil
}

// DiskSlotStore writes one JSON file per session under dataDir.
type DiskSlotStore struct {
	dataDir string
	mu      sync.Mutex
}

func NewDiskSlotStore(dataDir string) (*DiskSlotStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &DiskSlotStore{dataDir: dataDir}, nil
}

func (s *DiskSlotStore) path(key string) string {
	// Keys carry the user namespace and may contain separators; escape so
	// every distinct key maps to one flat file inside dataDir.
	return filepath.Join(s.dataDir, url.PathEscape(key)+".json")
}

func (s *DiskSlotStore) Load(key string) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *DiskSlotStore) Save(key string, messages []model.Message) error {
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *DiskSlotStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
