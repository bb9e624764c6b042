package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"codearena-service/internal/domain"
	"codearena-service/internal/infra/memory"
)

func newTestStore(t *testing.T) (*RoundCodeStore, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRoundCodeStore(client), client
}

func TestVerifyIncrementsUsageAtomically(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Set(ctx, 2, "SECRET"); err != nil {
		t.Fatalf("set: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		seq, err := store.Verify(ctx, 2, "SECRET")
		if err != nil {
			t.Fatalf("verify %d: %v", want, err)
		}
		if seq != want {
			t.Fatalf("expected sequence %d, got %d", want, seq)
		}
	}

	rc, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rc.UsageCount != 3 || !rc.Active || rc.Code != "SECRET" {
		t.Fatalf("unexpected record: %+v", rc)
	}
}

func TestVerifyRejectsWrongOrInactiveCode(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if _, err := store.Verify(ctx, 2, "SECRET"); !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for missing key, got %v", err)
	}

	if err := store.Set(ctx, 2, "SECRET"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := store.Verify(ctx, 2, "WRONG"); !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid for wrong code, got %v", err)
	}

	if err := store.Reset(ctx, 2); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := store.Verify(ctx, 2, "SECRET"); !errors.Is(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid after reset, got %v", err)
	}

	// A failed verify never bumps the counter.
	rc, _ := store.Get(ctx, 2)
	if rc.UsageCount != 0 {
		t.Fatalf("failed verifies counted: %d", rc.UsageCount)
	}
}

func TestSetReArmsCounters(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	if err := store.Set(ctx, 3, "FIRST"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := store.Verify(ctx, 3, "FIRST"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := store.IncrCompletions(ctx, 3); err != nil {
		t.Fatalf("incr completions: %v", err)
	}

	if err := store.Set(ctx, 3, "SECOND"); err != nil {
		t.Fatalf("re-set: %v", err)
	}
	rc, _ := store.Get(ctx, 3)
	if rc.Code != "SECOND" || rc.UsageCount != 0 || rc.Completions != 0 {
		t.Fatalf("counters not re-armed: %+v", rc)
	}
}

func TestGetMissingRound(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	rc, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rc.Round != 2 || rc.Active || rc.Code != "" {
		t.Fatalf("expected empty record, got %+v", rc)
	}
}

func TestQuestionBankCachesBlob(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	loader := memory.NewStaticBankLoader(domain.Round2Set{
		Aptitude: []domain.AptitudeQuestion{{ID: "a1", Prompt: "p", Options: []string{"x", "y"}, Answer: 1}},
	}, domain.Round3Set{})
	bank := NewQuestionBank(client, loader, time.Minute)

	set, err := bank.Round2(ctx)
	if err != nil {
		t.Fatalf("round2: %v", err)
	}
	if len(set.Aptitude) != 1 || set.Aptitude[0].ID != "a1" {
		t.Fatalf("unexpected set: %+v", set)
	}

	if !mr.Exists("bank:round2") {
		t.Fatalf("cache key not written")
	}

	// Second read is served from the cached blob.
	again, err := bank.Round2(ctx)
	if err != nil {
		t.Fatalf("cached round2: %v", err)
	}
	if again.Aptitude[0].Answer != 1 {
		t.Fatalf("cached blob lost content: %+v", again)
	}
}
