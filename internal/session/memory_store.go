package session

import "sync"

// MemoryStore keeps the identifier in process memory.
type MemoryStore struct {
	mu sync.Mutex
	id ID
}

func (s *MemoryStore) Load() (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		return "", ErrNotFound
	}
	return s.id, nil
}

func (s *MemoryStore) Save(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}
