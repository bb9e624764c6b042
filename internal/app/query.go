package app

import (
	"context"
	"math"
	"sort"

	"codearena-service/internal/domain"
)

// QueryService derives read-only dashboard views from the team store and the
// submission log. Every read recomputes from persisted state; nothing here is
// a cache that outlives a request.
type QueryService struct {
	teams TeamStore
	subs  SubmissionLog
}

func NewQueryService(teams TeamStore, subs SubmissionLog) *QueryService {
	return &QueryService{teams: teams, subs: subs}
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank      int    `json:"rank"`
	TeamID    string `json:"teamId"`
	TeamName  string `json:"teamName"`
	Score     int    `json:"score"`
	TimeTaken int64  `json:"timeTaken"`
	Completed bool   `json:"completed"`
}

// Round2Leaderboard ranks teams that have started round 2 by score descending,
// then time ascending, then name. The score/time tie-break is a
// competition-fairness rule, not a presentation choice.
func (s *QueryService) Round2Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		if t.StartTime == nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			TeamID:    t.ID,
			TeamName:  t.TeamName,
			Score:     t.TotalScore,
			TimeTaken: rankableTime(t.TotalTimeTaken, t.QuizCompleted),
			Completed: t.QuizCompleted,
		})
	}
	rankEntries(entries)
	return entries, nil
}

// Round3Leaderboard ranks teams that completed round 3.
func (s *QueryService) Round3Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(teams))
	for _, t := range teams {
		if !t.Round3Completed {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			TeamID:    t.ID,
			TeamName:  t.TeamName,
			Score:     t.Round3Score,
			TimeTaken: t.Round3Time,
			Completed: true,
		})
	}
	rankEntries(entries)
	return entries, nil
}

// rankEntries sorts score desc, time asc, then name for a stable order, and
// assigns 1-based ranks.
func rankEntries(entries []LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TimeTaken != entries[j].TimeTaken {
			return entries[i].TimeTaken < entries[j].TimeTaken
		}
		return entries[i].TeamName < entries[j].TeamName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// rankableTime treats an unfinished quiz as slowest so a zero elapsed time
// cannot outrank finished teams.
func rankableTime(elapsed int64, completed bool) int64 {
	if !completed && elapsed == 0 {
		return math.MaxInt64
	}
	return elapsed
}

// SubmissionHistory is the admin review view of one team's submissions.
// Official holds the display submission per challenge type: highest attempt
// number, tie-broken by most recent timestamp.
type SubmissionHistory struct {
	TeamID   string              `json:"teamId"`
	All      []domain.Submission `json:"all"`
	Official []domain.Submission `json:"official"`
}

// TeamSubmissions returns the full log plus the latest-per-challenge-type
// derivation for a team.
func (s *QueryService) TeamSubmissions(ctx context.Context, teamID string) (SubmissionHistory, error) {
	if _, err := s.teams.Get(ctx, teamID); err != nil {
		return SubmissionHistory{}, err
	}
	all, err := s.subs.ByTeam(ctx, teamID)
	if err != nil {
		return SubmissionHistory{}, err
	}

	best := make(map[domain.QuestionType]domain.Submission)
	for _, sub := range all {
		if sub.ChallengeType == "" {
			continue
		}
		current, ok := best[sub.ChallengeType]
		if !ok || betterOfficial(sub, current) {
			best[sub.ChallengeType] = sub
		}
	}

	official := make([]domain.Submission, 0, len(best))
	for _, t := range []domain.QuestionType{domain.QuestionDebug, domain.QuestionTrace, domain.QuestionProgram} {
		if sub, ok := best[t]; ok {
			official = append(official, sub)
		}
	}
	return SubmissionHistory{TeamID: teamID, All: all, Official: official}, nil
}

func betterOfficial(candidate, current domain.Submission) bool {
	if candidate.AttemptNumber != current.AttemptNumber {
		return candidate.AttemptNumber > current.AttemptNumber
	}
	return candidate.CreatedAt.After(current.CreatedAt)
}

// StatusCounts tallies teams by competition status.
func (s *QueryService) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Status]int)
	for _, t := range teams {
		counts[t.CompetitionStatus]++
	}
	return counts, nil
}
