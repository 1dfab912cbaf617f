package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/jmoiron/sqlx"
)

const experimentColumns = `id, name, params, participant_threshold, current_round, status, version, created_at, updated_at`

type ExperimentRepository struct {
	db *Database
}

func NewExperimentRepository(db *Database) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

type dbExperiment struct {
	ID                   string         `db:"id"`
	Name                 string         `db:"name"`
	Params               sql.NullString `db:"params"`
	ParticipantThreshold int64          `db:"participant_threshold"`
	CurrentRound         int64          `db:"current_round"`
	Status               string         `db:"status"`
	Version              int64          `db:"version"`
	CreatedAt            int64          `db:"created_at"`
	UpdatedAt            int64          `db:"updated_at"`
}

func (d dbExperiment) toExperiment() (fl.Experiment, error) {
	e := fl.Experiment{
		ID:                   d.ID,
		Name:                 d.Name,
		ParticipantThreshold: uint64(d.ParticipantThreshold),
		CurrentRound:         uint64(d.CurrentRound),
		Status:               fl.Status(d.Status),
		Version:              uint64(d.Version),
		CreatedAt:            fromUnixNano(d.CreatedAt),
		UpdatedAt:            fromUnixNano(d.UpdatedAt),
	}
	if err := jsonUnmarshal(d.Params.String, &e.Params); err != nil {
		return fl.Experiment{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return e, nil
}

func (r *ExperimentRepository) Create(ctx context.Context, e fl.Experiment, initial fl.GlobalModel) error {
	params, err := jsonText(e.Params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO experiments (` + experimentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Name, params, int64(e.ParticipantThreshold), int64(e.CurrentRound),
			string(e.Status), int64(e.Version), unixNano(e.CreatedAt), unixNano(e.UpdatedAt),
		); err != nil {
			if isConstraintViolation(err) {
				return pkgerrors.ErrEntityExists
			}

			return fmt.Errorf("%w: %w", ErrCreate, err)
		}

		return insertModel(ctx, tx, initial)
	})
}

func (r *ExperimentRepository) Get(ctx context.Context, id string) (fl.Experiment, error) {
	return getExperiment(ctx, r.db, id)
}

func getExperiment(ctx context.Context, q sqlx.QueryerContext, id string) (fl.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = ?`

	var row dbExperiment
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Experiment{}, pkgerrors.ErrNotFound
		}

		return fl.Experiment{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toExperiment()
}

func (r *ExperimentRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Experiment, uint64, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments ORDER BY created_at, id LIMIT ? OFFSET ?`

	var rows []dbExperiment
	if err := r.db.SelectContext(ctx, &rows, query, int64(limit), int64(offset)); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM experiments`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	experiments := make([]fl.Experiment, 0, len(rows))
	for _, row := range rows {
		e, err := row.toExperiment()
		if err != nil {
			return nil, 0, err
		}
		experiments = append(experiments, e)
	}

	return experiments, total, nil
}

func (r *ExperimentRepository) UpdateStatus(ctx context.Context, id string, version uint64, status fl.Status) (fl.Experiment, error) {
	var updated fl.Experiment
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE experiments SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			string(status), unixNano(time.Now()), id, int64(version),
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}
		if err := checkUpdated(ctx, tx, res, id); err != nil {
			return err
		}
		updated, err = getExperiment(ctx, tx, id)

		return err
	})

	return updated, err
}

func (r *ExperimentRepository) AdvanceRound(ctx context.Context, id string, version uint64, next fl.GlobalModel) (fl.Experiment, error) {
	if next.Round == 0 {
		return fl.Experiment{}, pkgerrors.ErrConflict
	}

	var updated fl.Experiment
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE experiments SET current_round = ?, status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND current_round = ?`,
			int64(next.Round), string(fl.StatusTraining), unixNano(time.Now()), id, int64(version), int64(next.Round-1),
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}
		if err := checkUpdated(ctx, tx, res, id); err != nil {
			return err
		}
		if err := insertModel(ctx, tx, next); err != nil {
			if errors.Is(err, pkgerrors.ErrEntityExists) {
				return pkgerrors.ErrConflict
			}

			return err
		}
		updated, err = getExperiment(ctx, tx, id)

		return err
	})

	return updated, err
}

// checkUpdated turns a write that matched no rows into ErrNotFound or
// ErrConflict.
func checkUpdated(ctx context.Context, tx *sqlx.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM experiments WHERE id = ?)`, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if !exists {
		return pkgerrors.ErrNotFound
	}

	return pkgerrors.ErrConflict
}
