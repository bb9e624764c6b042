package memory

import (
	"context"
	"sync"
	"time"

	"codearena-service/internal/domain"
)

// TeamStore is an in-memory implementation of app.TeamStore with the same
// compare-and-swap semantics as the Postgres store. Resets purge the linked
// submission log under the same lock, so the two mutations are observed
// together.
type TeamStore struct {
	mu    sync.RWMutex
	teams map[string]*domain.Team
	subs  *SubmissionLog
}

func NewTeamStore(subs *SubmissionLog) *TeamStore {
	return &TeamStore{teams: make(map[string]*domain.Team), subs: subs}
}

func (s *TeamStore) Create(_ context.Context, team *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.teams {
		if existing.TeamName == team.TeamName {
			return domain.ErrTeamExists
		}
	}
	clone := cloneTeam(team)
	s.teams[team.ID] = &clone
	return nil
}

func (s *TeamStore) Get(_ context.Context, id string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.teams[id]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return cloneTeam(team), nil
}

func (s *TeamStore) GetByName(_ context.Context, name string) (domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, team := range s.teams {
		if team.TeamName == name {
			return cloneTeam(team), nil
		}
	}
	return domain.Team{}, domain.ErrTeamNotFound
}

func (s *TeamStore) Update(_ context.Context, team *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(team)
}

// UpdateWithSubmission applies the CAS write and appends the submission under
// the same lock: a lost swap appends nothing.
func (s *TeamStore) UpdateWithSubmission(_ context.Context, team *domain.Team, sub *domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.applyLocked(team); err != nil {
		return err
	}
	if sub != nil && s.subs != nil {
		s.subs.append(sub)
	}
	return nil
}

func (s *TeamStore) applyLocked(team *domain.Team) error {
	stored, ok := s.teams[team.ID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	if stored.Version != team.Version {
		return domain.ErrConflict
	}
	team.Version++
	team.UpdatedAt = time.Now()
	clone := cloneTeam(team)
	s.teams[team.ID] = &clone
	return nil
}

func (s *TeamStore) List(_ context.Context) ([]domain.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams := make([]domain.Team, 0, len(s.teams))
	for _, team := range s.teams {
		teams = append(teams, cloneTeam(team))
	}
	return teams, nil
}

func (s *TeamStore) ForceStatus(_ context.Context, id string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return domain.ErrTeamNotFound
	}
	team.CompetitionStatus = status
	team.Version++
	team.UpdatedAt = time.Now()
	return nil
}

func (s *TeamStore) AdvanceTeams(_ context.Context, ids []string, tr domain.RoundTransition) (int64, int64, error) {
	selected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var advanced, eliminated int64
	for id, team := range s.teams {
		if team.CompetitionStatus != tr.Current {
			continue
		}
		if _, ok := selected[id]; ok {
			team.CompetitionStatus = tr.Next
			advanced++
		} else {
			team.CompetitionStatus = tr.Eliminated
			eliminated++
		}
		team.Version++
		team.UpdatedAt = time.Now()
	}
	return advanced, eliminated, nil
}

func (s *TeamStore) AnnounceResults(_ context.Context, statuses []domain.Status) (int64, error) {
	match := make(map[domain.Status]struct{}, len(statuses))
	for _, st := range statuses {
		match[st] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, team := range s.teams {
		if _, ok := match[team.CompetitionStatus]; !ok || team.ResultsAnnounced {
			continue
		}
		team.ResultsAnnounced = true
		team.Version++
		team.UpdatedAt = time.Now()
		affected++
	}
	return affected, nil
}

func (s *TeamStore) ClearAnnouncements(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, team := range s.teams {
		if !team.ResultsAnnounced {
			continue
		}
		team.ResultsAnnounced = false
		team.Version++
		team.UpdatedAt = time.Now()
		affected++
	}
	return affected, nil
}

func (s *TeamStore) ResetProgress(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.teams[id]
	if !ok {
		return domain.ErrTeamNotFound
	}
	team.ResetProgress()
	team.Version++
	team.UpdatedAt = time.Now()
	if s.subs != nil {
		s.subs.deleteByTeam(id)
	}
	return nil
}

func (s *TeamStore) ResetAllProgress(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for id, team := range s.teams {
		if team.CompetitionStatus == domain.StatusEliminated {
			continue
		}
		team.ResetProgress()
		team.Version++
		team.UpdatedAt = time.Now()
		if s.subs != nil {
			s.subs.deleteByTeam(id)
		}
		affected++
	}
	return affected, nil
}

func cloneTeam(t *domain.Team) domain.Team {
	clone := *t
	if t.Round3Results != nil {
		clone.Round3Results = append([]domain.Round3BlockResult(nil), t.Round3Results...)
	}
	if t.Round3Scores != nil {
		clone.Round3Scores = append([]domain.Round3QuestionScore(nil), t.Round3Scores...)
	}
	return clone
}
