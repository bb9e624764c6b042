package app

import (
	"context"
	"errors"
	"log"
	"time"

	"codearena-service/internal/domain"
)

// Round3Service grades the puzzle-ordering round. Every team answers the same
// question set in its assigned presentation order; completion is recorded
// exactly once and later submissions are rejected.
type Round3Service struct {
	teams TeamStore
	subs  SubmissionLog
	bank  QuestionBank
	codes RoundCodeStore
	now   func() time.Time
}

func NewRound3Service(teams TeamStore, subs SubmissionLog, bank QuestionBank, codes RoundCodeStore) *Round3Service {
	return NewRound3ServiceWithClock(teams, subs, bank, codes, time.Now)
}

// NewRound3ServiceWithClock allows deterministic timestamps in tests.
func NewRound3ServiceWithClock(teams TeamStore, subs SubmissionLog, bank QuestionBank, codes RoundCodeStore, now func() time.Time) *Round3Service {
	return &Round3Service{teams: teams, subs: subs, bank: bank, codes: codes, now: now}
}

// Round3Result is the outcome of the final round-3 submission.
type Round3Result struct {
	Score       int                          `json:"score"`
	TimeTaken   int64                        `json:"timeTaken"`
	Results     []domain.Round3BlockResult   `json:"results"`
	PerQuestion []domain.Round3QuestionScore `json:"perQuestion"`
	SubmittedAt time.Time                    `json:"submittedAt"`
}

// AssignOrder pins a question order to the team if it does not have one yet.
// The order is chosen round-robin over the bank's order list using the
// round-code usage counter, so concurrent entries spread evenly.
func (s *Round3Service) AssignOrder(ctx context.Context, teamID string, seq int64) (domain.QuestionOrder, error) {
	set, err := s.bank.Round3(ctx)
	if err != nil {
		return domain.QuestionOrder{}, err
	}
	if len(set.Orders) == 0 {
		return domain.QuestionOrder{}, domain.ErrQuestionSetUnavailable
	}

	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return domain.QuestionOrder{}, err
	}
	if team.Round3OrderID != "" {
		if order, ok := set.OrderByID(team.Round3OrderID); ok {
			return order, nil
		}
		return domain.QuestionOrder{}, domain.ErrQuestionSetUnavailable
	}

	order := set.Orders[int((seq-1)%int64(len(set.Orders)))]
	team.Round3OrderID = order.ID
	team.Round3OrderName = order.Name
	if err := s.teams.Update(ctx, &team); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent verify already assigned one; use whatever won.
			fresh, gerr := s.teams.Get(ctx, teamID)
			if gerr != nil {
				return domain.QuestionOrder{}, gerr
			}
			if assigned, ok := set.OrderByID(fresh.Round3OrderID); ok {
				return assigned, nil
			}
		}
		return domain.QuestionOrder{}, err
	}
	return order, nil
}

// QuestionsFor returns the team's round-3 questions in assigned order with
// answer keys stripped.
func (s *Round3Service) QuestionsFor(ctx context.Context, teamID string) ([]domain.Round3Question, string, error) {
	set, err := s.bank.Round3(ctx)
	if err != nil {
		return nil, "", err
	}
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return nil, "", err
	}
	order, ok := set.OrderByID(team.Round3OrderID)
	if !ok {
		return nil, "", domain.ErrQuestionLocked
	}
	questions := make([]domain.Round3Question, 0, len(order.Sequence))
	for idx := range order.Sequence {
		q, ok := set.QuestionAt(order, idx)
		if !ok {
			return nil, "", domain.ErrQuestionSetUnavailable
		}
		questions = append(questions, sanitizeRound3Question(q))
	}
	return questions, order.Name, nil
}

// Submit grades the team's complete round-3 answer sheet and records
// completion. Submitting for an already-completed team fails with
// ErrAlreadyCompleted so scores cannot be inflated by resubmission.
func (s *Round3Service) Submit(ctx context.Context, teamID string, answers []domain.Round3BlockAnswer) (Round3Result, error) {
	set, err := s.bank.Round3(ctx)
	if err != nil {
		return Round3Result{}, err
	}
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return Round3Result{}, err
	}
	if team.Round3Completed {
		return Round3Result{}, domain.ErrAlreadyCompleted
	}
	order, ok := set.OrderByID(team.Round3OrderID)
	if !ok {
		return Round3Result{}, domain.ErrQuestionLocked
	}

	now := s.now()
	results, perQuestion, total, elapsed, err := gradeRound3(set, order, answers)
	if err != nil {
		return Round3Result{}, err
	}

	team.Round3Completed = true
	team.Round3Score = total
	team.Round3Time = elapsed
	team.Round3Results = results
	team.Round3Scores = perQuestion
	team.Round3SubmittedAt = &now
	team.HasCompletedCycle = true

	if err := s.teams.Update(ctx, &team); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// The only competing writer that can flip completion is a
			// duplicate submit; report it as such.
			return Round3Result{}, domain.ErrAlreadyCompleted
		}
		return Round3Result{}, err
	}

	if err := s.codes.IncrCompletions(ctx, 3); err != nil {
		// Counter drift is tolerable; the team record is authoritative.
		log.Printf("round3 completion counter: %v", err)
	}

	return Round3Result{
		Score:       total,
		TimeTaken:   elapsed,
		Results:     results,
		PerQuestion: perQuestion,
		SubmittedAt: now,
	}, nil
}

// gradeRound3 is the pure round-3 grading function: it resolves each answered
// block through the team's presentation order and scores the puzzle blocks.
// Each {question, block} pair may appear at most once per sheet.
func gradeRound3(set domain.Round3Set, order domain.QuestionOrder, answers []domain.Round3BlockAnswer) ([]domain.Round3BlockResult, []domain.Round3QuestionScore, int, int64, error) {
	results := make([]domain.Round3BlockResult, 0, len(answers))
	byQuestion := make(map[int]*domain.Round3QuestionScore)
	seen := make(map[[2]int]struct{}, len(answers))

	total := 0
	var elapsed int64
	for _, ans := range answers {
		key := [2]int{ans.QuestionIndex, ans.BlockIndex}
		if _, dup := seen[key]; dup {
			return nil, nil, 0, 0, domain.ErrValidation
		}
		seen[key] = struct{}{}

		question, ok := set.QuestionAt(order, ans.QuestionIndex)
		if !ok {
			return nil, nil, 0, 0, domain.ErrValidation
		}
		if ans.BlockIndex < 0 || ans.BlockIndex >= len(question.Blocks) {
			return nil, nil, 0, 0, domain.ErrValidation
		}
		block := question.Blocks[ans.BlockIndex]
		if !block.IsPuzzle {
			return nil, nil, 0, 0, domain.ErrValidation
		}
		if ans.TimeTaken < 0 {
			ans.TimeTaken = 0
		}

		correct := ans.SelectedAnswer == block.Answer
		points := block.Points
		if points == 0 {
			points = 1
		}
		awarded := 0
		if correct {
			awarded = points
		}

		results = append(results, domain.Round3BlockResult{
			QuestionIndex:  ans.QuestionIndex,
			BlockIndex:     ans.BlockIndex,
			SelectedAnswer: ans.SelectedAnswer,
			IsCorrect:      correct,
			TimeTaken:      ans.TimeTaken,
		})

		agg, ok := byQuestion[ans.QuestionIndex]
		if !ok {
			agg = &domain.Round3QuestionScore{QuestionIndex: ans.QuestionIndex}
			byQuestion[ans.QuestionIndex] = agg
		}
		agg.Score += awarded
		agg.TimeTaken += ans.TimeTaken

		total += awarded
		elapsed += ans.TimeTaken
	}

	perQuestion := make([]domain.Round3QuestionScore, 0, len(byQuestion))
	for idx := 0; idx < len(order.Sequence); idx++ {
		if agg, ok := byQuestion[idx]; ok {
			perQuestion = append(perQuestion, *agg)
		}
	}
	return results, perQuestion, total, elapsed, nil
}

func sanitizeRound3Question(q domain.Round3Question) domain.Round3Question {
	blocks := make([]domain.CodeBlock, len(q.Blocks))
	copy(blocks, q.Blocks)
	for i := range blocks {
		blocks[i].Answer = 0
		blocks[i].Points = 0
	}
	q.Blocks = blocks
	return q
}
