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

const modelColumns = `experiment_id, round, architecture, weights, created_at`

type ModelRepository struct {
	db *Database
}

func NewModelRepository(db *Database) *ModelRepository {
	return &ModelRepository{db: db}
}

type dbModel struct {
	ExperimentID string    `db:"experiment_id"`
	Round        int64     `db:"round"`
	Architecture []byte    `db:"architecture"`
	Weights      []byte    `db:"weights"`
	CreatedAt    time.Time `db:"created_at"`
}

func (d dbModel) toModel() (fl.GlobalModel, error) {
	m := fl.GlobalModel{
		ExperimentID: d.ExperimentID,
		Round:        uint64(d.Round),
		CreatedAt:    d.CreatedAt,
	}
	if err := jsonUnmarshal(d.Architecture, &m.Architecture); err != nil {
		return fl.GlobalModel{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}
	if err := jsonUnmarshal(d.Weights, &m.Weights); err != nil {
		return fl.GlobalModel{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return m, nil
}

func insertModel(ctx context.Context, tx *sqlx.Tx, m fl.GlobalModel) error {
	arch, err := jsonBytes(m.Architecture)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}
	weights, err := jsonBytes(m.Weights)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	query := `INSERT INTO global_models (` + modelColumns + `) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, query, m.ExperimentID, int64(m.Round), arch, weights, m.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrEntityExists
		}
		if isForeignKeyViolation(err) {
			return pkgerrors.ErrNotFound
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *ModelRepository) Create(ctx context.Context, m fl.GlobalModel) error {
	if m.ExperimentID == "" {
		return pkgerrors.ErrEmptyKey
	}

	return r.db.withTx(ctx, func(tx *sqlx.Tx) error {
		return insertModel(ctx, tx, m)
	})
}

func (r *ModelRepository) Get(ctx context.Context, experimentID string, round uint64) (fl.GlobalModel, error) {
	query := `SELECT ` + modelColumns + ` FROM global_models WHERE experiment_id = $1 AND round = $2`

	return r.one(ctx, query, experimentID, int64(round))
}

func (r *ModelRepository) Latest(ctx context.Context, experimentID string) (fl.GlobalModel, error) {
	query := `SELECT ` + modelColumns + ` FROM global_models WHERE experiment_id = $1 ORDER BY round DESC LIMIT 1`

	return r.one(ctx, query, experimentID)
}

func (r *ModelRepository) one(ctx context.Context, query string, args ...any) (fl.GlobalModel, error) {
	var row dbModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.GlobalModel{}, pkgerrors.ErrNotFound
		}

		return fl.GlobalModel{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toModel()
}
