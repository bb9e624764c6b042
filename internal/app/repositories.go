package app

import (
	"context"

	"codearena-service/internal/domain"
)

// TeamStore abstracts the durable team record store (Postgres, in-memory).
//
// Update is a compare-and-swap: it applies the record only if the stored
// Version still matches the one the caller loaded, returns domain.ErrConflict
// otherwise, and bumps Version on success. Bulk operations are single atomic
// set operations whose filters evaluate pre-operation field values.
type TeamStore interface {
	Create(ctx context.Context, team *domain.Team) error
	Get(ctx context.Context, id string) (domain.Team, error)
	GetByName(ctx context.Context, name string) (domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
	// UpdateWithSubmission applies the same compare-and-swap and appends the
	// submission in one transaction, so a scored attempt always has its audit
	// record. A nil submission degrades to a plain Update.
	UpdateWithSubmission(ctx context.Context, team *domain.Team, sub *domain.Submission) error
	List(ctx context.Context) ([]domain.Team, error)

	// ForceStatus writes a status directly, bypassing progression gating.
	ForceStatus(ctx context.Context, id string, status domain.Status) error
	// AdvanceTeams partitions teams at current status: ids move to next,
	// the complement moves to eliminated. Both updates run in one transaction.
	AdvanceTeams(ctx context.Context, ids []string, tr domain.RoundTransition) (advanced, eliminated int64, err error)
	// AnnounceResults flips resultsAnnounced for teams whose status is in the set.
	AnnounceResults(ctx context.Context, statuses []domain.Status) (int64, error)
	// ClearAnnouncements clears resultsAnnounced for every team.
	ClearAnnouncements(ctx context.Context) (int64, error)
	// ResetProgress restores one team's progression defaults and purges its
	// submissions in a single logical transaction.
	ResetProgress(ctx context.Context, id string) error
	// ResetAllProgress does the same for every non-eliminated team and
	// reports how many were reset.
	ResetAllProgress(ctx context.Context) (int64, error)
}

// SubmissionLog is the append-only record of every answer and autosave.
// Entries are never updated; deletion happens only inside TeamStore resets.
type SubmissionLog interface {
	Append(ctx context.Context, sub *domain.Submission) error
	ByTeam(ctx context.Context, teamID string) ([]domain.Submission, error)
	// CountForSlot returns how many entries (autosaves included) exist for a
	// team and slot; the next submission's attempt number is count+1.
	CountForSlot(ctx context.Context, teamID string, slot int) (int, error)
}

// RoundCodeStore holds per-round access codes with atomic verify-and-count.
type RoundCodeStore interface {
	Set(ctx context.Context, round int, code string) error
	Reset(ctx context.Context, round int) error
	Get(ctx context.Context, round int) (domain.RoundCode, error)
	// Verify checks code validity and increments the usage counter in the
	// same atomic step, returning the post-increment count. A mismatch or
	// inactive code yields domain.ErrCodeInvalid.
	Verify(ctx context.Context, round int, code string) (int64, error)
	IncrCompletions(ctx context.Context, round int) error
}

// QuestionBank loads question content, assumed read-only during a round.
// Implementations map missing content to domain.ErrQuestionSetUnavailable.
type QuestionBank interface {
	Round2(ctx context.Context) (domain.Round2Set, error)
	Round3(ctx context.Context) (domain.Round3Set, error)
}
