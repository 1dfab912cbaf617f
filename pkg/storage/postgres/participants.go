package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
)

const participantColumns = `id, experiment_id, principal_id, joined_at`

type ParticipantRepository struct {
	db *Database
}

func NewParticipantRepository(db *Database) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, p fl.Participant) (fl.Participant, bool, error) {
	query := `INSERT INTO participants (` + participantColumns + `) VALUES ($1, $2, $3, $4)
		ON CONFLICT (experiment_id, principal_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, p.ID, p.ExperimentID, p.PrincipalID, p.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fl.Participant{}, false, pkgerrors.ErrEntityExists
		}

		return fl.Participant{}, false, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fl.Participant{}, false, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	stored, err := r.GetByPrincipal(ctx, p.ExperimentID, p.PrincipalID)
	if err != nil {
		return fl.Participant{}, false, err
	}

	return stored, n > 0, nil
}

func (r *ParticipantRepository) Get(ctx context.Context, id string) (fl.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	return r.one(ctx, query, id)
}

func (r *ParticipantRepository) GetByPrincipal(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE experiment_id = $1 AND principal_id = $2`

	return r.one(ctx, query, experimentID, principalID)
}

func (r *ParticipantRepository) ListByExperiment(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE experiment_id = $1 ORDER BY joined_at, id`

	participants := []fl.Participant{}
	if err := r.db.SelectContext(ctx, &participants, query, experimentID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return participants, nil
}

func (r *ParticipantRepository) one(ctx context.Context, query string, args ...any) (fl.Participant, error) {
	var p fl.Participant
	if err := r.db.GetContext(ctx, &p, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Participant{}, pkgerrors.ErrNotFound
		}

		return fl.Participant{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return p, nil
}
