package app

import (
	"context"
	"strings"

	"codearena-service/internal/domain"
)

// LifecycleService manages per-round access codes and the results-announcement
// gate. Round lifecycles are independent: rounds 2 and 3 never share state.
type LifecycleService struct {
	teams  TeamStore
	codes  RoundCodeStore
	round3 *Round3Service
}

func NewLifecycleService(teams TeamStore, codes RoundCodeStore, round3 *Round3Service) *LifecycleService {
	return &LifecycleService{teams: teams, codes: codes, round3: round3}
}

// SetCode activates an access code for a round.
func (s *LifecycleService) SetCode(ctx context.Context, round int, code string) error {
	if round != 2 && round != 3 {
		return domain.ErrValidation
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.ErrValidation
	}
	return s.codes.Set(ctx, round, code)
}

// ResetCode deactivates the current code for a round.
func (s *LifecycleService) ResetCode(ctx context.Context, round int) error {
	if round != 2 && round != 3 {
		return domain.ErrValidation
	}
	return s.codes.Reset(ctx, round)
}

// CodeStatus returns the current code record for a round.
func (s *LifecycleService) CodeStatus(ctx context.Context, round int) (domain.RoundCode, error) {
	if round != 2 && round != 3 {
		return domain.RoundCode{}, domain.ErrValidation
	}
	return s.codes.Get(ctx, round)
}

// VerifyResult reports a successful code verification. For round 3 the team's
// assigned question order rides along.
type VerifyResult struct {
	Round     int    `json:"round"`
	OrderID   string `json:"orderId,omitempty"`
	OrderName string `json:"orderName,omitempty"`
}

// VerifyCode checks a team-entered access code. The validity check and the
// usage-counter increment are one atomic store operation, so concurrent
// verifications never undercount. Entering round 3 also pins the team's
// question order, derived round-robin from the usage sequence number.
func (s *LifecycleService) VerifyCode(ctx context.Context, teamID string, round int, code string) (VerifyResult, error) {
	if round != 2 && round != 3 {
		return VerifyResult{}, domain.ErrValidation
	}
	seq, err := s.codes.Verify(ctx, round, strings.TrimSpace(code))
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{Round: round}
	if round == 3 {
		order, err := s.round3.AssignOrder(ctx, teamID, seq)
		if err != nil {
			return VerifyResult{}, err
		}
		result.OrderID = order.ID
		result.OrderName = order.Name
	}
	return result, nil
}

// AnnounceResults flips the announcement gate for every team whose status is
// reachable after the given round's selection, as a single conditional bulk
// update. Returns the number of teams affected.
func (s *LifecycleService) AnnounceResults(ctx context.Context, round int) (int64, error) {
	statuses, ok := domain.AnnouncedStatuses(round)
	if !ok {
		return 0, domain.ErrValidation
	}
	return s.teams.AnnounceResults(ctx, statuses)
}

// ResetAnnouncedResults clears the announcement gate for all teams, re-arming
// the announcement for reuse after a scoring correction.
func (s *LifecycleService) ResetAnnouncedResults(ctx context.Context) (int64, error) {
	return s.teams.ClearAnnouncements(ctx)
}
