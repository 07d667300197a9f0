package store

import (
	"context"
	"sync"

	"github.com/sells-group/leadhunter/internal/model"
)

// MemoryStore keeps leads in an insertion-ordered arena indexed by id.
// Values cross the boundary as deep copies.
type MemoryStore struct {
	mu       sync.RWMutex
	arena    []*model.Business
	index    map[string]int
	external map[string]string
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		index:    make(map[string]int),
		external: make(map[string]string),
	}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, notFound(id)
	}
	return s.arena[i].Clone(), nil
}

func (s *MemoryStore) List(context.Context) ([]*model.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Business, len(s.arena))
	for i, b := range s.arena {
		out[i] = b.Clone()
	}
	return out, nil
}

func (s *MemoryStore) Insert(_ context.Context, b *model.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.insertLocked(b) {
		return ErrDuplicate
	}
	return nil
}

func (s *MemoryStore) InsertMany(_ context.Context, bs []*model.Business) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, b := range bs {
		if s.insertLocked(b) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) insertLocked(b *model.Business) bool {
	if _, ok := s.index[b.ID]; ok {
		return false
	}
	key := externalKey(b)
	if key != "" {
		if _, ok := s.external[key]; ok {
			return false
		}
		s.external[key] = b.ID
	}
	s.index[b.ID] = len(s.arena)
	s.arena = append(s.arena, b.Clone())
	return true
}

// Update replaces every field of the stored business except its notes.
func (s *MemoryStore) Update(_ context.Context, b *model.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[b.ID]
	if !ok {
		return notFound(b.ID)
	}
	cur := s.arena[i]

	oldKey, newKey := externalKey(cur), externalKey(b)
	if newKey != oldKey {
		if owner, taken := s.external[newKey]; newKey != "" && taken && owner != b.ID {
			return ErrDuplicate
		}
		delete(s.external, oldKey)
		if newKey != "" {
			s.external[newKey] = b.ID
		}
	}

	next := b.Clone()
	next.Notes = cur.Notes
	s.arena[i] = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return notFound(id)
	}
	delete(s.external, externalKey(s.arena[i]))
	delete(s.index, id)

	s.arena = append(s.arena[:i], s.arena[i+1:]...)
	for j := i; j < len(s.arena); j++ {
		s.index[s.arena[j].ID] = j
	}
	return nil
}

func (s *MemoryStore) AddNote(_ context.Context, note model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[note.BusinessID]
	if !ok {
		return notFound(note.BusinessID)
	}
	b := s.arena[i]
	b.Notes = append(b.Notes, note)
	return nil
}
