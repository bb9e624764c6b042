package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"codearena-service/internal/domain"
)

// ProgressionService drives the round-2 state machine: gated slot unlocks,
// attempt-limited aptitude scoring and completion detection. All decisions are
// computed from the team's persisted fields and written back with a
// compare-and-swap, so a racing duplicate request loses cleanly.
type ProgressionService struct {
	teams TeamStore
	subs  SubmissionLog
	bank  QuestionBank
	now   func() time.Time
}

func NewProgressionService(teams TeamStore, subs SubmissionLog, bank QuestionBank) *ProgressionService {
	return NewProgressionServiceWithClock(teams, subs, bank, time.Now)
}

// NewProgressionServiceWithClock allows deterministic timestamps in tests.
func NewProgressionServiceWithClock(teams TeamStore, subs SubmissionLog, bank QuestionBank, now func() time.Time) *ProgressionService {
	return &ProgressionService{teams: teams, subs: subs, bank: bank, now: now}
}

// AptitudeResult is the outcome of one aptitude attempt.
type AptitudeResult struct {
	Correct       bool                    `json:"correct"`
	Awarded       int                     `json:"awarded"`
	AttemptsLeft  int                     `json:"attemptsLeft"`
	SlotCompleted bool                    `json:"slotCompleted"`
	Unlocked      [domain.SlotCount]bool  `json:"unlockedQuestions"`
	Completed     [domain.SlotCount]bool  `json:"completedQuestions"`
	TotalScore    int                     `json:"totalScore"`
}

// ChallengeResult is the outcome of one code-challenge submit or autosave.
type ChallengeResult struct {
	Saved         bool                   `json:"saved"`
	AutoSave      bool                   `json:"autoSave"`
	Unlocked      [domain.SlotCount]bool `json:"unlockedQuestions"`
	Completed     [domain.SlotCount]bool `json:"completedQuestions"`
	QuizCompleted bool                   `json:"isQuizCompleted"`
	TotalScore    int                    `json:"totalScore"`
}

// SubmitAptitude records one aptitude attempt for the given slot.
// Scoring: first correct attempt 2 points, second correct attempt 1 point,
// incorrect attempts 0. Exhausting both attempts completes the slot regardless
// of correctness so the team fails forward instead of being blocked.
func (s *ProgressionService) SubmitAptitude(ctx context.Context, teamID string, slot, selected int) (AptitudeResult, error) {
	set, err := s.bank.Round2(ctx)
	if err != nil {
		return AptitudeResult{}, err
	}
	question, ok := set.AptitudeFor(slot)
	if !ok {
		return AptitudeResult{}, domain.ErrQuestionSetUnavailable
	}

	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return AptitudeResult{}, err
	}

	sub, result, err := applyAptitudeAnswer(&team, slot, selected, question, s.now())
	if err != nil {
		return AptitudeResult{}, err
	}

	if err := s.teams.UpdateWithSubmission(ctx, &team, &sub); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return AptitudeResult{}, s.reclassifyAptitude(ctx, teamID, slot)
		}
		return AptitudeResult{}, err
	}
	return result, nil
}

// SubmitChallenge records a code-challenge submission or autosave. A real
// submission completes the slot and unlocks the next aptitude question; an
// autosave only appends to the submission log and never touches progression
// state, which makes races against a real submission harmless.
func (s *ProgressionService) SubmitChallenge(ctx context.Context, teamID string, challengeType domain.QuestionType, code string, timeTaken int64, autoSave bool) (ChallengeResult, error) {
	set, err := s.bank.Round2(ctx)
	if err != nil {
		return ChallengeResult{}, err
	}

	slot := domain.ChallengeSlot(challengeType)
	if slot < 0 {
		return ChallengeResult{}, domain.ErrInvalidChallengeType
	}
	challenge, ok := set.ChallengeFor(challengeType)
	if !ok {
		return ChallengeResult{}, domain.ErrQuestionSetUnavailable
	}

	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return ChallengeResult{}, err
	}
	prior, err := s.subs.CountForSlot(ctx, teamID, slot)
	if err != nil {
		return ChallengeResult{}, err
	}

	sub, saved, err := applyCodeSubmission(&team, slot, challenge, code, timeTaken, autoSave, prior+1, s.now())
	if err != nil {
		return ChallengeResult{}, err
	}

	if autoSave {
		if sub != nil {
			if err := s.subs.Append(ctx, sub); err != nil {
				return ChallengeResult{}, err
			}
		}
	} else {
		if err := s.teams.UpdateWithSubmission(ctx, &team, sub); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return ChallengeResult{}, s.reclassifyChallenge(ctx, teamID, slot)
			}
			return ChallengeResult{}, err
		}
	}

	return ChallengeResult{
		Saved:         saved,
		AutoSave:      autoSave,
		Unlocked:      team.Unlocked,
		Completed:     team.Completed,
		QuizCompleted: team.QuizCompleted,
		TotalScore:    team.TotalScore,
	}, nil
}

// ProgressView is the team-facing snapshot of round-2 state.
type ProgressView struct {
	CompetitionStatus domain.Status          `json:"competitionStatus"`
	ResultsAnnounced  bool                   `json:"resultsAnnounced"`
	Unlocked          [domain.SlotCount]bool `json:"unlockedQuestions"`
	Completed         [domain.SlotCount]bool `json:"completedQuestions"`
	AttemptsLeft      [3]int                 `json:"attemptsLeft"`
	Scores            [domain.SlotCount]int  `json:"scores"`
	TotalScore        int                    `json:"totalScore"`
	CurrentSlot       int                    `json:"currentSlot"`
	QuizCompleted     bool                   `json:"isQuizCompleted"`
	Round3Completed   bool                   `json:"round3Completed"`
	Round3OrderName   string                 `json:"round3QuestionOrderName,omitempty"`
}

// Progress returns the persisted progression snapshot for a team. The current
// slot is derived, never stored, so a reload or restart always reproduces it.
func (s *ProgressionService) Progress(ctx context.Context, teamID string) (ProgressView, error) {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return ProgressView{}, err
	}
	var left [3]int
	for i, used := range team.AptitudeAttempts {
		left[i] = domain.MaxAptitudeAttempts - used
	}
	return ProgressView{
		CompetitionStatus: team.CompetitionStatus,
		ResultsAnnounced:  team.ResultsAnnounced,
		Unlocked:          team.Unlocked,
		Completed:         team.Completed,
		AttemptsLeft:      left,
		Scores:            team.Scores,
		TotalScore:        team.TotalScore,
		CurrentSlot:       team.CurrentSlot(),
		QuizCompleted:     team.QuizCompleted,
		Round3Completed:   team.Round3Completed,
		Round3OrderName:   team.Round3OrderName,
	}, nil
}

// reclassifyAptitude reloads the team after a lost compare-and-swap and maps
// the conflict to the same precondition error a late duplicate would have hit,
// so a genuine race is indistinguishable from an ordinary rejection.
func (s *ProgressionService) reclassifyAptitude(ctx context.Context, teamID string, slot int) error {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if team.Completed[slot] {
		return domain.ErrAlreadyCompleted
	}
	if idx := domain.AptitudeIndex(slot); idx >= 0 && team.AptitudeAttempts[idx] >= domain.MaxAptitudeAttempts {
		return domain.ErrAttemptsExhausted
	}
	return domain.ErrConflict
}

func (s *ProgressionService) reclassifyChallenge(ctx context.Context, teamID string, slot int) error {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return err
	}
	if team.Completed[slot] {
		return domain.ErrAlreadyCompleted
	}
	if !team.Unlocked[slot] {
		return domain.ErrQuestionLocked
	}
	return domain.ErrConflict
}

// applyAptitudeAnswer is the pure round-2 aptitude transition: it validates
// preconditions against the team's current state, mutates the copy in place
// and returns the submission-log entry. No I/O.
func applyAptitudeAnswer(team *domain.Team, slot, selected int, question domain.AptitudeQuestion, now time.Time) (domain.Submission, AptitudeResult, error) {
	idx := domain.AptitudeIndex(slot)
	if idx < 0 {
		return domain.Submission{}, AptitudeResult{}, domain.ErrValidation
	}
	if !team.Unlocked[slot] {
		return domain.Submission{}, AptitudeResult{}, domain.ErrQuestionLocked
	}
	if team.Completed[slot] {
		return domain.Submission{}, AptitudeResult{}, domain.ErrAlreadyCompleted
	}
	if team.AptitudeAttempts[idx] >= domain.MaxAptitudeAttempts {
		return domain.Submission{}, AptitudeResult{}, domain.ErrAttemptsExhausted
	}

	attempt := team.AptitudeAttempts[idx] + 1
	team.AptitudeAttempts[idx] = attempt

	// The first attempt on q1 starts the authoritative quiz clock.
	if slot == 0 && team.StartTime == nil {
		start := now
		team.StartTime = &start
	}

	correct := selected == question.Answer
	awarded := 0
	if correct {
		if attempt == 1 {
			awarded = 2
		} else {
			awarded = 1
		}
	}

	exhausted := attempt >= domain.MaxAptitudeAttempts
	if correct || exhausted {
		team.Completed[slot] = true
		if slot+1 < domain.SlotCount {
			team.Unlocked[slot+1] = true
		}
	}
	if correct {
		team.Scores[slot] = awarded
	}
	team.TotalScore = team.SumScores()

	sub := domain.Submission{
		TeamID:        team.ID,
		Slot:          slot,
		QuestionType:  domain.QuestionAptitude,
		QuestionTitle: question.Prompt,
		Snapshot:      snapshotJSON(question),
		Answer:        optionText(question, selected),
		AttemptNumber: attempt,
		IsCorrect:     correct,
		Score:         awarded,
		CreatedAt:     now,
	}

	return sub, AptitudeResult{
		Correct:       correct,
		Awarded:       awarded,
		AttemptsLeft:  domain.MaxAptitudeAttempts - attempt,
		SlotCompleted: team.Completed[slot],
		Unlocked:      team.Unlocked,
		Completed:     team.Completed,
		TotalScore:    team.TotalScore,
	}, nil
}

// applyCodeSubmission is the pure round-2 challenge transition. A nil returned
// submission means the call was a silent no-op (autosave on a locked slot).
func applyCodeSubmission(team *domain.Team, slot int, challenge domain.CodingChallenge, code string, timeTaken int64, autoSave bool, attempt int, now time.Time) (*domain.Submission, bool, error) {
	if !team.Unlocked[slot] {
		if autoSave {
			// Observed behavior: drafts against a locked slot vanish quietly.
			return nil, false, nil
		}
		return nil, false, domain.ErrQuestionLocked
	}
	if team.Completed[slot] && !autoSave {
		return nil, false, domain.ErrAlreadyCompleted
	}

	if cap, ok := domain.ChallengeTimeCaps[challenge.Type]; ok && timeTaken > cap {
		timeTaken = cap
	}
	if timeTaken < 0 {
		timeTaken = 0
	}

	if !autoSave {
		team.Completed[slot] = true
		team.Scores[slot] = 0 // challenges are graded manually, not auto-scored
		if slot+1 < domain.SlotCount {
			team.Unlocked[slot+1] = true
		}
		team.TotalScore = team.SumScores()
		if team.AllCompleted() && !team.QuizCompleted {
			team.QuizCompleted = true
			end := now
			team.EndTime = &end
			if team.StartTime != nil {
				team.TotalTimeTaken = int64(end.Sub(*team.StartTime).Seconds())
			}
		}
	}

	sub := &domain.Submission{
		TeamID:        team.ID,
		Slot:          slot,
		QuestionType:  challenge.Type,
		ChallengeType: challenge.Type,
		QuestionTitle: challenge.Title,
		Snapshot:      snapshotJSON(challenge),
		Answer:        code,
		TimeTaken:     timeTaken,
		AttemptNumber: attempt,
		Score:         0,
		IsAutoSave:    autoSave,
		CreatedAt:     now,
	}
	return sub, true, nil
}

// snapshotJSON denormalizes the question into the submission so the record
// survives later question-bank edits.
func snapshotJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func optionText(q domain.AptitudeQuestion, selected int) string {
	if selected >= 0 && selected < len(q.Options) {
		return q.Options[selected]
	}
	return ""
}
