package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codearena-service/internal/app"
	"codearena-service/internal/domain"
	"codearena-service/internal/infra/memory"
)

type env struct {
	teams       *memory.TeamStore
	subs        *memory.SubmissionLog
	codes       *memory.RoundCodeStore
	bank        *memory.QuestionBank
	progression *app.ProgressionService
	round3      *app.Round3Service
	lifecycle   *app.LifecycleService
	admin       *app.AdminService
	query       *app.QueryService
	now         time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	subs := memory.NewSubmissionLog()
	teams := memory.NewTeamStore(subs)
	codes := memory.NewRoundCodeStore()
	bank := memory.NewQuestionBank(memory.NewStaticBankLoader(testRound2(), testRound3()), 5*time.Minute)

	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	round3 := app.NewRound3ServiceWithClock(teams, subs, bank, codes, clock)
	return &env{
		teams:       teams,
		subs:        subs,
		codes:       codes,
		bank:        bank,
		progression: app.NewProgressionServiceWithClock(teams, subs, bank, clock),
		round3:      round3,
		lifecycle:   app.NewLifecycleService(teams, codes, round3),
		admin:       app.NewAdminService(teams),
		query:       app.NewQueryService(teams, subs),
		now:         now,
	}
}

func (e *env) addTeam(t *testing.T, id, name string, status domain.Status) domain.Team {
	t.Helper()
	team := domain.Team{
		ID:                id,
		TeamName:          name,
		Member1Name:       "A",
		Member1Email:      "a@example.com",
		Member2Name:       "B",
		Member2Email:      "b@example.com",
		LeaderName:        "A",
		PasswordHash:      "x",
		CompetitionStatus: status,
		Unlocked:          [domain.SlotCount]bool{0: true},
		CreatedAt:         e.now,
		UpdatedAt:         e.now,
	}
	if err := e.teams.Create(context.Background(), &team); err != nil {
		t.Fatalf("create team: %v", err)
	}
	return team
}

func testRound2() domain.Round2Set {
	return domain.Round2Set{
		Aptitude: []domain.AptitudeQuestion{
			{ID: "a1", Prompt: "q1", Options: []string{"w", "r"}, Answer: 1},
			{ID: "a2", Prompt: "q3", Options: []string{"w", "r"}, Answer: 1},
			{ID: "a3", Prompt: "q5", Options: []string{"w", "r"}, Answer: 1},
		},
		Coding: []domain.CodingChallenge{
			{Type: domain.QuestionDebug, Title: "debug"},
			{Type: domain.QuestionTrace, Title: "trace"},
			{Type: domain.QuestionProgram, Title: "program"},
		},
	}
}

func testRound3() domain.Round3Set {
	return domain.Round3Set{
		Orders: []domain.QuestionOrder{
			{ID: "o1", Name: "Alpha", Sequence: []int{0, 1}},
			{ID: "o2", Name: "Beta", Sequence: []int{1, 0}},
		},
		Questions: []domain.Round3Question{
			{ID: "q1", Blocks: []domain.CodeBlock{
				{Index: 0, Code: "plain"},
				{Index: 1, IsPuzzle: true, Options: []string{"x", "y"}, Answer: 0},
			}},
			{ID: "q2", Blocks: []domain.CodeBlock{
				{Index: 0, IsPuzzle: true, Options: []string{"x", "y"}, Answer: 1, Points: 2},
			}},
		},
	}
}

func TestAptitudeFirstAttemptCorrect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	result, err := e.progression.SubmitAptitude(ctx, "t1", 0, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Awarded != 2 {
		t.Fatalf("expected first-attempt score 2, got %+v", result)
	}
	if !result.Completed[0] || !result.Unlocked[1] {
		t.Fatalf("expected q1 completed and q2 unlocked, got %+v", result)
	}

	// Second submit for the same slot must be rejected without mutation.
	if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 1); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	team, _ := e.teams.Get(ctx, "t1")
	if team.TotalScore != 2 {
		t.Fatalf("score mutated by rejected submit: %d", team.TotalScore)
	}
}

func TestAptitudeIncorrectThenCorrectScoresOne(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	result, err := e.progression.SubmitAptitude(ctx, "t1", 0, 0)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if result.Correct || result.Awarded != 0 || result.Completed[0] {
		t.Fatalf("incorrect first attempt should not complete: %+v", result)
	}
	if result.AttemptsLeft != 1 {
		t.Fatalf("expected 1 attempt left, got %d", result.AttemptsLeft)
	}

	result, err = e.progression.SubmitAptitude(ctx, "t1", 0, 1)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if !result.Correct || result.Awarded != 1 {
		t.Fatalf("expected second-attempt score 1, got %+v", result)
	}
}

func TestAptitudeFailsForwardOnExhaustion(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	for i := 0; i < 2; i++ {
		if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 0); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	team, _ := e.teams.Get(ctx, "t1")
	if !team.Completed[0] || team.Scores[0] != 0 {
		t.Fatalf("expected q1 completed with score 0, got completed=%v score=%d", team.Completed[0], team.Scores[0])
	}
	if !team.Unlocked[1] {
		t.Fatalf("expected q2 unlocked after exhaustion")
	}

	// A third attempt must fail and never touch the score.
	if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 1); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestAptitudeLockedSlotRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	if _, err := e.progression.SubmitAptitude(ctx, "t1", 2, 1); !errors.Is(err, domain.ErrQuestionLocked) {
		t.Fatalf("expected ErrQuestionLocked, got %v", err)
	}
}

func TestAptitudeStartsQuizClock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	team, _ := e.teams.Get(ctx, "t1")
	if team.StartTime == nil || !team.StartTime.Equal(e.now) {
		t.Fatalf("expected start time %v, got %v", e.now, team.StartTime)
	}
}

func TestChallengeLockedRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	_, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionDebug, "code", 10, false)
	if !errors.Is(err, domain.ErrQuestionLocked) {
		t.Fatalf("expected ErrQuestionLocked, got %v", err)
	}
}

func TestAutosaveIsNoOpOnProgression(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 1); err != nil {
		t.Fatalf("unlock debug slot: %v", err)
	}
	before, _ := e.teams.Get(ctx, "t1")

	for i := 0; i < 3; i++ {
		result, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionDebug, "draft code", 30, true)
		if err != nil {
			t.Fatalf("autosave %d: %v", i+1, err)
		}
		if !result.Saved || !result.AutoSave {
			t.Fatalf("autosave should be recorded: %+v", result)
		}
	}

	after, _ := e.teams.Get(ctx, "t1")
	if after.Completed != before.Completed || after.Unlocked != before.Unlocked ||
		after.Scores != before.Scores || after.TotalScore != before.TotalScore {
		t.Fatalf("autosave mutated progression state: before=%+v after=%+v", before, after)
	}

	result, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionDebug, "final code", 60, false)
	if err != nil {
		t.Fatalf("real submit: %v", err)
	}
	if !result.Completed[1] || !result.Unlocked[2] {
		t.Fatalf("real submit should complete slot and unlock next: %+v", result)
	}

	subs, _ := e.subs.ByTeam(ctx, "t1")
	var slotSubs []domain.Submission
	for _, sub := range subs {
		if sub.Slot == 1 {
			slotSubs = append(slotSubs, sub)
		}
	}
	if len(slotSubs) != 4 {
		t.Fatalf("expected 4 log entries (3 autosave + 1 real), got %d", len(slotSubs))
	}
	final := slotSubs[len(slotSubs)-1]
	if final.IsAutoSave || final.Answer != "final code" || final.AttemptNumber != 4 {
		t.Fatalf("unexpected final submission: %+v", final)
	}
}

func TestAutosaveOnLockedSlotIsSilent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	result, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionProgram, "early draft", 5, true)
	if err != nil {
		t.Fatalf("autosave on locked slot should not error: %v", err)
	}
	if result.Saved {
		t.Fatalf("autosave on locked slot should not be saved")
	}
	subs, _ := e.subs.ByTeam(ctx, "t1")
	if len(subs) != 0 {
		t.Fatalf("expected empty log, got %d entries", len(subs))
	}
}

func TestChallengeTimeClampedToCap(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	if _, err := e.progression.SubmitAptitude(ctx, "t1", 0, 1); err != nil {
		t.Fatalf("unlock debug slot: %v", err)
	}
	if _, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionDebug, "code", 10_000, false); err != nil {
		t.Fatalf("submit: %v", err)
	}

	subs, _ := e.subs.ByTeam(ctx, "t1")
	last := subs[len(subs)-1]
	if last.TimeTaken != 5*60 {
		t.Fatalf("expected time clamped to 300s, got %d", last.TimeTaken)
	}
}

func TestInvalidChallengeType(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	_, err := e.progression.SubmitChallenge(ctx, "t1", "riddle", "code", 10, false)
	if !errors.Is(err, domain.ErrInvalidChallengeType) {
		t.Fatalf("expected ErrInvalidChallengeType, got %v", err)
	}
}

func completeRound2(t *testing.T, e *env, teamID string) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		aptitude bool
		slot     int
		ctype    domain.QuestionType
	}{
		{aptitude: true, slot: 0},
		{ctype: domain.QuestionDebug},
		{aptitude: true, slot: 2},
		{ctype: domain.QuestionTrace},
		{aptitude: true, slot: 4},
		{ctype: domain.QuestionProgram},
	}
	for _, step := range steps {
		var err error
		if step.aptitude {
			_, err = e.progression.SubmitAptitude(ctx, teamID, step.slot, 1)
		} else {
			_, err = e.progression.SubmitChallenge(ctx, teamID, step.ctype, "solution", 60, false)
		}
		if err != nil {
			t.Fatalf("step %+v: %v", step, err)
		}
	}
}

func TestFullRound2FlowCompletesQuiz(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	completeRound2(t, e, "t1")

	team, _ := e.teams.Get(ctx, "t1")
	if !team.QuizCompleted {
		t.Fatalf("expected quiz completed")
	}
	if team.TotalScore != 6 {
		t.Fatalf("expected total score 6 (three first-attempt answers), got %d", team.TotalScore)
	}
	if team.EndTime == nil || team.StartTime == nil {
		t.Fatalf("expected both quiz clock timestamps set")
	}
	if team.TotalScore != team.SumScores() {
		t.Fatalf("aggregate drifted from slot scores")
	}
	if team.CurrentSlot() != -1 {
		t.Fatalf("expected no current slot after completion, got %d", team.CurrentSlot())
	}

	// Completion is terminal: further submits fail and never change timestamps.
	end := *team.EndTime
	if _, err := e.progression.SubmitChallenge(ctx, "t1", domain.QuestionProgram, "again", 60, false); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	team, _ = e.teams.Get(ctx, "t1")
	if !team.EndTime.Equal(end) {
		t.Fatalf("end time changed by rejected submit")
	}
}

func TestMonotonicUnlock(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addTeam(t, "t1", "alpha", domain.StatusRound2)

	completeRound2(t, e, "t1")
	team, _ := e.teams.Get(ctx, "t1")
	for i := 0; i < domain.SlotCount; i++ {
		if team.Completed[i] && !team.Unlocked[i] {
			t.Fatalf("slot %d completed but locked", i)
		}
	}
}

func TestTeamNotFound(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	if _, err := e.progression.SubmitAptitude(ctx, "ghost", 0, 1); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestQuestionSetUnavailable(t *testing.T) {
	ctx := context.Background()
	subs := memory.NewSubmissionLog()
	teams := memory.NewTeamStore(subs)
	bank := memory.NewQuestionBank(memory.NewEmptyBankLoader(), time.Minute)
	svc := app.NewProgressionService(teams, subs, bank)

	if _, err := svc.SubmitAptitude(ctx, "t1", 0, 1); !errors.Is(err, domain.ErrQuestionSetUnavailable) {
		t.Fatalf("expected ErrQuestionSetUnavailable, got %v", err)
	}
}
