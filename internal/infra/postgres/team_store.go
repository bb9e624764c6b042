package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"codearena-service/internal/domain"
)

// TeamStore persists team records in Postgres via bun.
//
// Single-record mutations are compare-and-swap updates guarded by the version
// column; bulk operations are single UPDATE statements whose WHERE clauses
// evaluate pre-operation field values, so they partition cleanly even under
// concurrent team traffic.
type TeamStore struct {
	db *bun.DB
}

func NewTeamStore(db *bun.DB) *TeamStore {
	return &TeamStore{db: db}
}

func (s *TeamStore) Create(ctx context.Context, team *domain.Team) error {
	_, err := s.db.NewInsert().Model(team).Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
			return domain.ErrTeamExists
		}
		return err
	}
	return nil
}

func (s *TeamStore) Get(ctx context.Context, id string) (domain.Team, error) {
	var team domain.Team
	err := s.db.NewSelect().Model(&team).Where("t.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return team, err
}

func (s *TeamStore) GetByName(ctx context.Context, name string) (domain.Team, error) {
	var team domain.Team
	err := s.db.NewSelect().Model(&team).Where("t.team_name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return team, err
}

// Update writes the full record only if the stored version still matches the
// one the caller loaded. Zero rows affected means a racing writer won.
func (s *TeamStore) Update(ctx context.Context, team *domain.Team) error {
	return s.UpdateWithSubmission(ctx, team, nil)
}

// UpdateWithSubmission runs the CAS update and the submission insert in one
// transaction: a lost swap inserts nothing, and a failed insert rolls back the
// team write.
func (s *TeamStore) UpdateWithSubmission(ctx context.Context, team *domain.Team, sub *domain.Submission) error {
	prev := team.Version
	team.Version = prev + 1
	team.UpdatedAt = time.Now()

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model(team).
			WherePK().
			Where("t.version = ?", prev).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrConflict
		}
		if sub != nil {
			if _, err := tx.NewInsert().Model(sub).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		team.Version = prev
		return err
	}
	return nil
}

func (s *TeamStore) List(ctx context.Context) ([]domain.Team, error) {
	var teams []domain.Team
	err := s.db.NewSelect().Model(&teams).Order("team_name ASC").Scan(ctx)
	return teams, err
}

func (s *TeamStore) ForceStatus(ctx context.Context, id string, status domain.Status) error {
	res, err := s.db.NewUpdate().
		Model((*domain.Team)(nil)).
		Set("competition_status = ?", status).
		Set("version = version + 1").
		Set("updated_at = now()").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

// AdvanceTeams moves the listed teams from tr.Current to tr.Next and every
// other team still at tr.Current to tr.Eliminated. The two updates run inside
// one transaction and together partition the filtered set exactly.
func (s *TeamStore) AdvanceTeams(ctx context.Context, ids []string, tr domain.RoundTransition) (int64, int64, error) {
	var advanced, eliminated int64
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if len(ids) > 0 {
			res, err := tx.NewUpdate().
				Model((*domain.Team)(nil)).
				Set("competition_status = ?", tr.Next).
				Set("version = version + 1").
				Set("updated_at = now()").
				Where("competition_status = ?", tr.Current).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx)
			if err != nil {
				return err
			}
			if advanced, err = res.RowsAffected(); err != nil {
				return err
			}
		}

		q := tx.NewUpdate().
			Model((*domain.Team)(nil)).
			Set("competition_status = ?", tr.Eliminated).
			Set("version = version + 1").
			Set("updated_at = now()").
			Where("competition_status = ?", tr.Current)
		if len(ids) > 0 {
			q = q.Where("id NOT IN (?)", bun.In(ids))
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		eliminated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return advanced, eliminated, nil
}

func (s *TeamStore) AnnounceResults(ctx context.Context, statuses []domain.Status) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	res, err := s.db.NewUpdate().
		Model((*domain.Team)(nil)).
		Set("results_announced = TRUE").
		Set("version = version + 1").
		Set("updated_at = now()").
		Where("competition_status IN (?)", bun.In(statuses)).
		Where("results_announced = FALSE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *TeamStore) ClearAnnouncements(ctx context.Context) (int64, error) {
	res, err := s.db.NewUpdate().
		Model((*domain.Team)(nil)).
		Set("results_announced = FALSE").
		Set("version = version + 1").
		Set("updated_at = now()").
		Where("results_announced = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetProgress restores one team's progression defaults and deletes its
// submissions in a single transaction.
func (s *TeamStore) ResetProgress(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := resetQuery(tx.NewUpdate()).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrTeamNotFound
		}
		_, err = tx.NewDelete().
			Model((*domain.Submission)(nil)).
			Where("team_id = ?", id).
			Exec(ctx)
		return err
	})
}

// ResetAllProgress resets every non-eliminated team and purges their
// submissions, reporting how many teams were touched.
func (s *TeamStore) ResetAllProgress(ctx context.Context) (int64, error) {
	var affected int64
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*domain.Submission)(nil)).
			Where("team_id IN (SELECT id FROM teams WHERE competition_status <> ?)", domain.StatusEliminated).
			Exec(ctx); err != nil {
			return err
		}
		res, err := resetQuery(tx.NewUpdate()).
			Where("competition_status <> ?", domain.StatusEliminated).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

// resetQuery sets every progression field back to its creation default.
func resetQuery(q *bun.UpdateQuery) *bun.UpdateQuery {
	return q.Model((*domain.Team)(nil)).
		Set("competition_status = ?", domain.StatusRegistered).
		Set("results_announced = FALSE").
		Set("has_completed_cycle = FALSE").
		Set("unlocked = '[true,false,false,false,false,false]'::jsonb").
		Set("completed = '[false,false,false,false,false,false]'::jsonb").
		Set("aptitude_attempts = '[0,0,0]'::jsonb").
		Set("scores = '[0,0,0,0,0,0]'::jsonb").
		Set("total_score = 0").
		Set("start_time = NULL").
		Set("end_time = NULL").
		Set("total_time_taken = 0").
		Set("is_quiz_completed = FALSE").
		Set("round3_completed = FALSE").
		Set("round3_score = 0").
		Set("round3_time = 0").
		Set("round3_order_id = ''").
		Set("round3_order_name = ''").
		Set("round3_results = 'null'::jsonb").
		Set("round3_individual_scores = 'null'::jsonb").
		Set("round3_submitted_at = NULL").
		Set("version = version + 1").
		Set("updated_at = now()")
}
