package credstore

import (
	"context"
	"sync"

	"github.com/MrEthical07/authmachine/state"
)

// Op names a store call for failure injection.
type Op string

const (
	OpSave     Op = "save"
	OpRetrieve Op = "retrieve"
	OpDelete   Op = "delete"
)

// MemoryStore keeps the encoded record in process memory. Records round-trip
// through Encode and Decode so callers never share backing maps.
type MemoryStore struct {
	mu       sync.Mutex
	data     []byte
	failures map[Op][]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{failures: make(map[Op][]error)}
}

// Fail makes the next call of op return err.
func (s *MemoryStore) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

func (s *MemoryStore) popLocked(op Op) error {
	q := s.failures[op]
	if len(q) == 0 {
		return nil
	}
	s.failures[op] = q[1:]
	return q[0]
}

func (s *MemoryStore) Save(ctx context.Context, creds state.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popLocked(OpSave); err != nil {
		return err
	}
	s.data = data
	return nil
}

func (s *MemoryStore) Retrieve(ctx context.Context) (state.Credentials, error) {
	if err := ctx.Err(); err != nil {
		return state.Credentials{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popLocked(OpRetrieve); err != nil {
		return state.Credentials{}, err
	}
	if s.data == nil {
		return state.Credentials{}, ErrNotFound
	}
	return Decode(s.data)
}

func (s *MemoryStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.popLocked(OpDelete); err != nil {
		return err
	}
	s.data = nil
	return nil
}
