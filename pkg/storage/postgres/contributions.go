package postgres

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
)

const contributionColumns = `id, experiment_id, participant_id, principal_id, round, weights, dataset_size, created_at`

type ContributionRepository struct {
	db *Database
}

func NewContributionRepository(db *Database) *ContributionRepository {
	return &ContributionRepository{db: db}
}

type dbContribution struct {
	ID            string    `db:"id"`
	ExperimentID  string    `db:"experiment_id"`
	ParticipantID string    `db:"participant_id"`
	PrincipalID   string    `db:"principal_id"`
	Round         int64     `db:"round"`
	Weights       []byte    `db:"weights"`
	DatasetSize   int64     `db:"dataset_size"`
	CreatedAt     time.Time `db:"created_at"`
}

func (d dbContribution) toContribution() (fl.Contribution, error) {
	c := fl.Contribution{
		ID:            d.ID,
		ExperimentID:  d.ExperimentID,
		ParticipantID: d.ParticipantID,
		PrincipalID:   d.PrincipalID,
		Round:         uint64(d.Round),
		DatasetSize:   d.DatasetSize,
		CreatedAt:     d.CreatedAt,
	}
	if err := jsonUnmarshal(d.Weights, &c.Weights); err != nil {
		return fl.Contribution{}, fmt.Errorf("%w: %w", ErrDBScan, err)
	}

	return c, nil
}

func toContributions(rows []dbContribution) ([]fl.Contribution, error) {
	out := make([]fl.Contribution, 0, len(rows))
	for _, row := range rows {
		c, err := row.toContribution()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, nil
}

func (r *ContributionRepository) Create(ctx context.Context, c fl.Contribution) error {
	weights, err := jsonBytes(c.Weights)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	query := `INSERT INTO contributions (` + contributionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.ExperimentID, c.ParticipantID, c.PrincipalID, int64(c.Round), weights, c.DatasetSize, c.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.ErrEntityExists
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *ContributionRepository) ListByRound(ctx context.Context, experimentID string, round uint64) ([]fl.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions
		WHERE experiment_id = $1 AND round = $2 ORDER BY created_at, id`

	var rows []dbContribution
	if err := r.db.SelectContext(ctx, &rows, query, experimentID, int64(round)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toContributions(rows)
}

func (r *ContributionRepository) List(ctx context.Context, experimentID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions
		WHERE experiment_id = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`

	var rows []dbContribution
	if err := r.db.SelectContext(ctx, &rows, query, experimentID, int64(limit), int64(offset)); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contributions WHERE experiment_id = $1`, experimentID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	contributions, err := toContributions(rows)
	if err != nil {
		return nil, 0, err
	}

	return contributions, total, nil
}
