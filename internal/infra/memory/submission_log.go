package memory

import (
	"context"
	"sync"

	"codearena-service/internal/domain"
)

// SubmissionLog is an in-memory append-only submission log.
type SubmissionLog struct {
	mu     sync.RWMutex
	nextID int64
	subs   []domain.Submission
}

func NewSubmissionLog() *SubmissionLog {
	return &SubmissionLog{nextID: 1}
}

func (l *SubmissionLog) Append(_ context.Context, sub *domain.Submission) error {
	l.append(sub)
	return nil
}

// append is shared with the team store's combined update-and-log write.
func (l *SubmissionLog) append(sub *domain.Submission) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub.ID = l.nextID
	l.nextID++
	l.subs = append(l.subs, *sub)
}

func (l *SubmissionLog) ByTeam(_ context.Context, teamID string) ([]domain.Submission, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Submission
	for _, sub := range l.subs {
		if sub.TeamID == teamID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (l *SubmissionLog) CountForSlot(_ context.Context, teamID string, slot int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	count := 0
	for _, sub := range l.subs {
		if sub.TeamID == teamID && sub.Slot == slot {
			count++
		}
	}
	return count, nil
}

// deleteByTeam is called by the team store during resets, under its lock.
func (l *SubmissionLog) deleteByTeam(teamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.subs[:0]
	for _, sub := range l.subs {
		if sub.TeamID != teamID {
			kept = append(kept, sub)
		}
	}
	l.subs = kept
}
