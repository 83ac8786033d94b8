package storage

import (
	"sync"
	"time"
)

// HandshakeExpiry is how long a pending handshake remains consumable.
const HandshakeExpiry = 10 * time.Minute

// MemoryHandshakeStore keeps handshakes in process memory. Records are
// one-time use: Take deletes the record it returns.
type MemoryHandshakeStore struct {
	cache sync.Map // map[string]Handshake, keyed by provider
}

func NewMemoryHandshakeStore() *MemoryHandshakeStore {
	return &MemoryHandshakeStore{}
}

func (s *MemoryHandshakeStore) Put(provider string, h Handshake) {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	s.cache.Store(provider, h)
}

func (s *MemoryHandshakeStore) Take(provider string) (Handshake, bool) {
	v, ok := s.cache.Load(provider)
	if !ok {
		return Handshake{}, false
	}
	s.cache.Delete(provider) // one-time use

	h := v.(Handshake)
	if time.Since(h.CreatedAt) > HandshakeExpiry {
		return Handshake{}, false
	}
	return h, true
}
