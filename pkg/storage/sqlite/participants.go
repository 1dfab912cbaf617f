package sqlite

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

type dbParticipant struct {
	ID           string `db:"id"`
	ExperimentID string `db:"experiment_id"`
	PrincipalID  string `db:"principal_id"`
	JoinedAt     int64  `db:"joined_at"`
}

func (d dbParticipant) toParticipant() fl.Participant {
	return fl.Participant{
		ID:           d.ID,
		ExperimentID: d.ExperimentID,
		PrincipalID:  d.PrincipalID,
		JoinedAt:     fromUnixNano(d.JoinedAt),
	}
}

func (r *ParticipantRepository) Create(ctx context.Context, p fl.Participant) (fl.Participant, bool, error) {
	query := `INSERT INTO participants (` + participantColumns + `) VALUES (?, ?, ?, ?)
		ON CONFLICT (experiment_id, principal_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, p.ID, p.ExperimentID, p.PrincipalID, unixNano(p.JoinedAt))
	if err != nil {
		if isConstraintViolation(err) {
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
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = ?`

	return r.one(ctx, query, id)
}

func (r *ParticipantRepository) GetByPrincipal(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE experiment_id = ? AND principal_id = ?`

	return r.one(ctx, query, experimentID, principalID)
}

func (r *ParticipantRepository) ListByExperiment(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE experiment_id = ? ORDER BY joined_at, id`

	var rows []dbParticipant
	if err := r.db.SelectContext(ctx, &rows, query, experimentID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	participants := make([]fl.Participant, 0, len(rows))
	for _, row := range rows {
		participants = append(participants, row.toParticipant())
	}

	return participants, nil
}

func (r *ParticipantRepository) one(ctx context.Context, query string, args ...any) (fl.Participant, error) {
	var row dbParticipant
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fl.Participant{}, pkgerrors.ErrNotFound
		}

		return fl.Participant{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return row.toParticipant(), nil
}
