package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"codearena-service/internal/domain"
)

// RoundCodeStore keeps per-round access codes in a Redis hash:
//
//	HSET round:{n}:code code {code} active {0|1} usage {n} completions {n}
//
// Verification and the usage-counter increment happen in one Lua script, so
// concurrent verifications can never undercount.
type RoundCodeStore struct {
	client *redis.Client
}

func NewRoundCodeStore(client *redis.Client) *RoundCodeStore {
	return &RoundCodeStore{client: client}
}

// verifyScript checks the code and active flag, then increments usage in the
// same atomic step. Returns the post-increment usage count, or -1 on mismatch.
var verifyScript = redis.NewScript(`
local code = redis.call('HGET', KEYS[1], 'code')
local active = redis.call('HGET', KEYS[1], 'active')
if code == ARGV[1] and active == '1' then
    return redis.call('HINCRBY', KEYS[1], 'usage', 1)
end
return -1
`)

func (s *RoundCodeStore) Set(ctx context.Context, round int, code string) error {
	// Setting a new code re-arms the round: counters restart from zero.
	return s.client.HSet(ctx, s.key(round), map[string]any{
		"code":        code,
		"active":      1,
		"usage":       0,
		"completions": 0,
	}).Err()
}

func (s *RoundCodeStore) Reset(ctx context.Context, round int) error {
	return s.client.HSet(ctx, s.key(round), "active", 0).Err()
}

func (s *RoundCodeStore) Get(ctx context.Context, round int) (domain.RoundCode, error) {
	fields, err := s.client.HGetAll(ctx, s.key(round)).Result()
	if err != nil {
		return domain.RoundCode{}, err
	}
	rc := domain.RoundCode{Round: round}
	if len(fields) == 0 {
		return rc, nil
	}
	rc.Code = fields["code"]
	rc.Active = fields["active"] == "1"
	rc.UsageCount, _ = strconv.ParseInt(fields["usage"], 10, 64)
	rc.Completions, _ = strconv.ParseInt(fields["completions"], 10, 64)
	return rc, nil
}

func (s *RoundCodeStore) Verify(ctx context.Context, round int, code string) (int64, error) {
	n, err := verifyScript.Run(ctx, s.client, []string{s.key(round)}, code).Int64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, domain.ErrCodeInvalid
	}
	return n, nil
}

func (s *RoundCodeStore) IncrCompletions(ctx context.Context, round int) error {
	return s.client.HIncrBy(ctx, s.key(round), "completions", 1).Err()
}

func (s *RoundCodeStore) key(round int) string {
	return fmt.Sprintf("round:%d:code", round)
}
