package postgres

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
	ID                   string    `db:"id"`
	Name                 string    `db:"name"`
	Params               []byte    `db:"params"`
	ParticipantThreshold int64     `db:"participant_threshold"`
	CurrentRound         int64     `db:"current_round"`
	Status               string    `db:"status"`
	Version              int64     `db:"version"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (d dbExperiment) toExperiment() (fl.Experiment, error) {
	e := fl.Experiment{
		ID:                   d.ID,
		Name:                 d.Name,
		ParticipantThreshold: uint64(d.ParticipantThreshold),
		CurrentRound:         uint64(d.CurrentRound),
		Status:               fl.Status(d.Status),
		Version:              uint64(d.Version),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
	if err := jsonUnmarshal(d.Params, &e.Params); err != nil {
		return fl.Experiment{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return e, nil
}

func (r *ExperimentRepository) Create(ctx context.Context, e fl.Experiment, initial fl.GlobalModel) error {
	params, err := jsonBytes(e.Params)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `INSERT INTO experiments (` + experimentColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Name, params, int64(e.ParticipantThreshold), int64(e.CurrentRound),
			string(e.Status), int64(e.Version), e.CreatedAt, e.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return pkgerrors.ErrEntityExists
			}

			return fmt.Errorf("%w: %w", ErrCreate, err)
		}

		return insertModel(ctx, tx, initial)
	})
}

func (r *ExperimentRepository) Get(ctx context.Context, id string) (fl.Experiment, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments WHERE id = $1`

	var row dbExperiment
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Experiment{}, pkgerrors.ErrNotFound
		}

		return fl.Experiment{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toExperiment()
}

func (r *ExperimentRepository) List(ctx context.Context, offset, limit uint64) ([]fl.Experiment, uint64, error) {
	query := `SELECT ` + experimentColumns + ` FROM experiments ORDER BY created_at, id LIMIT $1 OFFSET $2`

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
	query := `UPDATE experiments SET status = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
		RETURNING ` + experimentColumns

	var row dbExperiment
	err := r.db.QueryRowxContext(ctx, query, id, int64(version), string(status), time.Now().UTC()).StructScan(&row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fl.Experiment{}, r.conflictOrMissing(ctx, id)
	case err != nil:
		return fl.Experiment{}, fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return row.toExperiment()
}

func (r *ExperimentRepository) AdvanceRound(ctx context.Context, id string, version uint64, next fl.GlobalModel) (fl.Experiment, error) {
	if next.Round == 0 {
		return fl.Experiment{}, pkgerrors.ErrConflict
	}

	var row dbExperiment
	err := r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `UPDATE experiments SET current_round = $3, status = $4, version = version + 1, updated_at = $5
			WHERE id = $1 AND version = $2 AND current_round = $6
			RETURNING ` + experimentColumns
		err := tx.QueryRowxContext(ctx, query,
			id, int64(version), int64(next.Round), string(fl.StatusTraining), time.Now().UTC(), int64(next.Round-1),
		).StructScan(&row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return errNoRows
		case err != nil:
			return fmt.Errorf("%w: %w", ErrUpdate, err)
		}

		return insertModel(ctx, tx, next)
	})
	switch {
	case errors.Is(err, errNoRows):
		return fl.Experiment{}, r.conflictOrMissing(ctx, id)
	case errors.Is(err, pkgerrors.ErrEntityExists):
		return fl.Experiment{}, pkgerrors.ErrConflict
	case err != nil:
		return fl.Experiment{}, err
	}

	return row.toExperiment()
}

var errNoRows = errors.New("no rows updated")

func (r *ExperimentRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM experiments WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if !exists {
		return pkgerrors.ErrNotFound
	}

	return pkgerrors.ErrConflict
}
