package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"codearena-service/internal/domain"
)

// BankLoader loads question-set JSONB from Postgres. The question bank is
// read-only during a round; rows are seeded by operators before it opens.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadRound2(ctx context.Context) (domain.Round2Set, error) {
	var set domain.Round2Set
	if err := l.load(ctx, "round2", &set); err != nil {
		return domain.Round2Set{}, err
	}
	return set, nil
}

func (l *BankLoader) LoadRound3(ctx context.Context) (domain.Round3Set, error) {
	var set domain.Round3Set
	if err := l.load(ctx, "round3", &set); err != nil {
		return domain.Round3Set{}, err
	}
	return set, nil
}

func (l *BankLoader) load(ctx context.Context, id string, dst any) error {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_sets WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrQuestionSetUnavailable
	}
	if err != nil {
		return fmt.Errorf("load question set %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal question set %s: %w", id, err)
	}
	return nil
}
