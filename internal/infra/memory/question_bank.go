package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"codearena-service/internal/domain"
)

// BankLoader fetches question content from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadRound2(ctx context.Context) (domain.Round2Set, error)
	LoadRound3(ctx context.Context) (domain.Round3Set, error)
}

// QuestionBank caches question sets with TTL to avoid repeated DB hits. The
// bank is read-only during a round, so a short TTL is purely about restart
// and redeploy convenience.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	value     any
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (b *QuestionBank) Round2(ctx context.Context) (domain.Round2Set, error) {
	v, err := b.get(ctx, "round2", func() (any, error) { return b.loader.LoadRound2(ctx) })
	if err != nil {
		return domain.Round2Set{}, err
	}
	return v.(domain.Round2Set), nil
}

func (b *QuestionBank) Round3(ctx context.Context) (domain.Round3Set, error) {
	v, err := b.get(ctx, "round3", func() (any, error) { return b.loader.LoadRound3(ctx) })
	if err != nil {
		return domain.Round3Set{}, err
	}
	return v.(domain.Round3Set), nil
}

func (b *QuestionBank) get(_ context.Context, key string, load func() (any, error)) (any, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.value, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[key]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.value, nil
		}
		b.mu.RUnlock()

		value, err := load()
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[key] = cachedSet{value: value, expiresAt: now.Add(b.ttlWithJitter())}
		b.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves fixed question sets (useful for tests/demos).
type StaticBankLoader struct {
	round2 domain.Round2Set
	round3 domain.Round3Set
	loaded bool
}

func NewStaticBankLoader(round2 domain.Round2Set, round3 domain.Round3Set) *StaticBankLoader {
	return &StaticBankLoader{round2: round2, round3: round3, loaded: true}
}

// NewEmptyBankLoader serves no content; every load reports the question set as
// unavailable.
func NewEmptyBankLoader() *StaticBankLoader {
	return &StaticBankLoader{}
}

func (l *StaticBankLoader) LoadRound2(_ context.Context) (domain.Round2Set, error) {
	if !l.loaded {
		return domain.Round2Set{}, domain.ErrQuestionSetUnavailable
	}
	return l.round2, nil
}

func (l *StaticBankLoader) LoadRound3(_ context.Context) (domain.Round3Set, error) {
	if !l.loaded {
		return domain.Round3Set{}, domain.ErrQuestionSetUnavailable
	}
	return l.round3, nil
}
