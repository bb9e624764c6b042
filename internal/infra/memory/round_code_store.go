package memory

import (
	"context"
	"sync"

	"codearena-service/internal/domain"
)

// RoundCodeStore is an in-memory implementation of app.RoundCodeStore. The
// mutex makes verify-and-count atomic, matching the Redis Lua script.
type RoundCodeStore struct {
	mu    sync.Mutex
	codes map[int]*domain.RoundCode
}

func NewRoundCodeStore() *RoundCodeStore {
	return &RoundCodeStore{codes: make(map[int]*domain.RoundCode)}
}

func (s *RoundCodeStore) Set(_ context.Context, round int, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[round] = &domain.RoundCode{Round: round, Code: code, Active: true}
	return nil
}

func (s *RoundCodeStore) Reset(_ context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc, ok := s.codes[round]; ok {
		rc.Active = false
	}
	return nil
}

func (s *RoundCodeStore) Get(_ context.Context, round int) (domain.RoundCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rc, ok := s.codes[round]; ok {
		return *rc, nil
	}
	return domain.RoundCode{Round: round}, nil
}

func (s *RoundCodeStore) Verify(_ context.Context, round int, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.codes[round]
	if !ok || !rc.Active || rc.Code != code {
		return 0, domain.ErrCodeInvalid
	}
	rc.UsageCount++
	return rc.UsageCount, nil
}

func (s *RoundCodeStore) IncrCompletions(_ context.Context, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.codes[round]
	if !ok {
		rc = &domain.RoundCode{Round: round}
		s.codes[round] = rc
	}
	rc.Completions++
	return nil
}
