package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"codearena-service/internal/domain"
)

// SubmissionLog persists the append-only submission records. Rows are only
// ever inserted here; deletion happens inside TeamStore reset transactions.
type SubmissionLog struct {
	db *bun.DB
}

func NewSubmissionLog(db *bun.DB) *SubmissionLog {
	return &SubmissionLog{db: db}
}

func (l *SubmissionLog) Append(ctx context.Context, sub *domain.Submission) error {
	_, err := l.db.NewInsert().Model(sub).Exec(ctx)
	return err
}

func (l *SubmissionLog) ByTeam(ctx context.Context, teamID string) ([]domain.Submission, error) {
	var subs []domain.Submission
	err := l.db.NewSelect().
		Model(&subs).
		Where("s.team_id = ?", teamID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	return subs, err
}

func (l *SubmissionLog) CountForSlot(ctx context.Context, teamID string, slot int) (int, error) {
	return l.db.NewSelect().
		Model((*domain.Submission)(nil)).
		Where("s.team_id = ?", teamID).
		Where("s.slot = ?", slot).
		Count(ctx)
}
