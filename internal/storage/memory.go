package storage

import (
	"context"
	"sync"

	"durood/internal/core"
)

// MemoryStore keeps the encoded blob in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*core.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, nil
	}
	return DecodeState(m.blob)
}

func (m *MemoryStore) Save(_ context.Context, s core.State) error {
	b, err := EncodeState(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = b
	return nil
}

func (m *MemoryStore) Close() error { return nil }
