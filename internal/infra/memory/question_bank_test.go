package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"codearena-service/internal/domain"
)

type countingLoader struct {
	mu     sync.Mutex
	loads  int
	round2 domain.Round2Set
}

func (l *countingLoader) LoadRound2(context.Context) (domain.Round2Set, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	return l.round2, nil
}

func (l *countingLoader) LoadRound3(context.Context) (domain.Round3Set, error) {
	return domain.Round3Set{}, nil
}

func TestQuestionBankCachesWithinTTL(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{round2: domain.Round2Set{
		Aptitude: []domain.AptitudeQuestion{{ID: "a1"}},
	}}
	bank := NewQuestionBank(loader, time.Minute)

	for i := 0; i < 5; i++ {
		set, err := bank.Round2(ctx)
		if err != nil {
			t.Fatalf("round2: %v", err)
		}
		if len(set.Aptitude) != 1 {
			t.Fatalf("wrong content: %+v", set)
		}
	}
	if loader.loads != 1 {
		t.Fatalf("expected a single backing load, got %d", loader.loads)
	}
}

func TestQuestionBankReloadsAfterExpiry(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{}
	bank := NewQuestionBank(loader, time.Minute)

	current := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	bank.clock = func() time.Time { return current }

	if _, err := bank.Round2(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	current = current.Add(2 * time.Minute) // past TTL even with jitter
	if _, err := bank.Round2(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loader.loads != 2 {
		t.Fatalf("expected reload after expiry, got %d loads", loader.loads)
	}
}

func TestQuestionBankDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	bank := NewQuestionBank(NewEmptyBankLoader(), time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := bank.Round2(ctx); !errors.Is(err, domain.ErrQuestionSetUnavailable) {
			t.Fatalf("expected ErrQuestionSetUnavailable, got %v", err)
		}
	}
}

func TestRound2SetLookups(t *testing.T) {
	set := domain.Round2Set{
		Aptitude: []domain.AptitudeQuestion{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}},
		Coding: []domain.CodingChallenge{
			{Type: domain.QuestionDebug},
			{Type: domain.QuestionTrace},
			{Type: domain.QuestionProgram},
		},
	}

	for slot, wantID := range map[int]string{0: "a1", 2: "a2", 4: "a3"} {
		q, ok := set.AptitudeFor(slot)
		if !ok || q.ID != wantID {
			t.Fatalf("AptitudeFor(%d) = %+v, %v", slot, q, ok)
		}
	}
	if _, ok := set.AptitudeFor(1); ok {
		t.Fatalf("challenge slot must not resolve to an aptitude question")
	}
	if _, ok := set.ChallengeFor(domain.QuestionTrace); !ok {
		t.Fatalf("trace challenge missing")
	}
	if _, ok := set.ChallengeFor("riddle"); ok {
		t.Fatalf("unknown challenge type resolved")
	}
}
