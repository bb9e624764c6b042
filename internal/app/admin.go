package app

import (
	"context"

	"codearena-service/internal/domain"
)

// AdminService is the override layer: direct team-record writes that bypass
// the progression engine's gating by design. Administrative authority
// supersedes the state machine.
type AdminService struct {
	teams TeamStore
}

func NewAdminService(teams TeamStore) *AdminService {
	return &AdminService{teams: teams}
}

// ForceStatus sets a team's competition status directly. The status value is
// validated before any write.
func (s *AdminService) ForceStatus(ctx context.Context, teamID string, status domain.Status) error {
	if !domain.ValidStatus(status) {
		return domain.ErrInvalidStatus
	}
	return s.teams.ForceStatus(ctx, teamID, status)
}

// SelectionReport summarizes a bulk round selection.
type SelectionReport struct {
	Advanced   int64 `json:"advanced"`
	Eliminated int64 `json:"eliminated"`
}

// SelectTeams advances the listed teams past the given round and eliminates
// every other team still at that round's status. Both updates partition the
// filtered set exactly and run in one transaction.
func (s *AdminService) SelectTeams(ctx context.Context, round int, teamIDs []string) (SelectionReport, error) {
	tr, ok := domain.TransitionFor(round)
	if !ok {
		return SelectionReport{}, domain.ErrValidation
	}
	advanced, eliminated, err := s.teams.AdvanceTeams(ctx, teamIDs, tr)
	if err != nil {
		return SelectionReport{}, err
	}
	return SelectionReport{Advanced: advanced, Eliminated: eliminated}, nil
}

// ResetTeam restores one team's progression state to creation defaults and
// deletes its submissions in a single logical transaction: a team is never
// observed with reset fields but stale submissions, or vice versa.
func (s *AdminService) ResetTeam(ctx context.Context, teamID string) error {
	return s.teams.ResetProgress(ctx, teamID)
}

// ResetAllTeams does the same for every active team and reports the count.
func (s *AdminService) ResetAllTeams(ctx context.Context) (int64, error) {
	return s.teams.ResetAllProgress(ctx)
}

// Teams lists every registered team for the admin dashboard.
func (s *AdminService) Teams(ctx context.Context) ([]domain.Team, error) {
	return s.teams.List(ctx)
}
