package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
)

type LocalModelRepository struct {
	db *Database
}

func NewLocalModelRepository(db *Database) *LocalModelRepository {
	return &LocalModelRepository{db: db}
}

type dbLocalModel struct {
	ExperimentID  string    `db:"experiment_id"`
	ParticipantID string    `db:"participant_id"`
	Round         int64     `db:"round"`
	Weights       []byte    `db:"weights"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *LocalModelRepository) Save(ctx context.Context, m fl.LocalModel) error {
	weights, err := jsonBytes(m.Weights)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	query := `INSERT INTO local_models (experiment_id, participant_id, round, weights, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (experiment_id, participant_id, round)
		DO UPDATE SET weights = EXCLUDED.weights, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, m.ExperimentID, m.ParticipantID, int64(m.Round), weights, m.UpdatedAt); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdate, err)
	}

	return nil
}

func (r *LocalModelRepository) Get(ctx context.Context, experimentID, participantID string, round uint64) (fl.LocalModel, error) {
	query := `SELECT experiment_id, participant_id, round, weights, updated_at FROM local_models
		WHERE experiment_id = $1 AND participant_id = $2 AND round = $3`

	var row dbLocalModel
	if err := r.db.GetContext(ctx, &row, query, experimentID, participantID, int64(round)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.LocalModel{}, pkgerrors.ErrNotFound
		}

		return fl.LocalModel{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	m := fl.LocalModel{
		ExperimentID:  row.ExperimentID,
		ParticipantID: row.ParticipantID,
		Round:         uint64(row.Round),
		UpdatedAt:     row.UpdatedAt,
	}
	if err := jsonUnmarshal(row.Weights, &m.Weights); err != nil {
		return fl.LocalModel{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return m, nil
}
