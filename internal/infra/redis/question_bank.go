package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"codearena-service/internal/domain"
	"codearena-service/internal/infra/memory"
)

// QuestionBank caches serialized question sets in Redis and falls back to a
// loader on cache miss. Sets are stored as: SET bank:{round} {json} EX {ttl}.
type QuestionBank struct {
	client *redis.Client
	loader memory.BankLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader memory.BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) Round2(ctx context.Context) (domain.Round2Set, error) {
	var set domain.Round2Set
	err := b.get(ctx, "bank:round2", &set, func() (any, error) { return b.loader.LoadRound2(ctx) })
	return set, err
}

func (b *QuestionBank) Round3(ctx context.Context) (domain.Round3Set, error) {
	var set domain.Round3Set
	err := b.get(ctx, "bank:round3", &set, func() (any, error) { return b.loader.LoadRound3(ctx) })
	return set, err
}

func (b *QuestionBank) get(ctx context.Context, key string, dst any, load func() (any, error)) error {
	raw, err := b.client.Get(ctx, key).Bytes()
	if err == nil && len(raw) > 0 {
		return json.Unmarshal(raw, dst)
	}

	result, err, _ := b.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := b.client.Get(ctx, key).Bytes()
		if err == nil && len(raw) > 0 {
			return raw, nil
		}

		value, err := load()
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if ttl := b.ttlWithJitter(); ttl > 0 {
			_ = b.client.Set(ctx, key, encoded, ttl).Err()
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(result.([]byte), dst)
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
