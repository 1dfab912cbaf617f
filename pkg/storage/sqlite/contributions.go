package sqlite

import (
	"context"
	"fmt"

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
	ID            string `db:"id"`
	ExperimentID  string `db:"experiment_id"`
	ParticipantID string `db:"participant_id"`
	PrincipalID   string `db:"principal_id"`
	Round         int64  `db:"round"`
	Weights       string `db:"weights"`
	DatasetSize   int64  `db:"dataset_size"`
	CreatedAt     int64  `db:"created_at"`
}

func toContributions(rows []dbContribution) ([]fl.Contribution, error) {
	out := make([]fl.Contribution, 0, len(rows))
	for _, row := range rows {
		c := fl.Contribution{
			ID:            row.ID,
			ExperimentID:  row.ExperimentID,
			ParticipantID: row.ParticipantID,
			PrincipalID:   row.PrincipalID,
			Round:         uint64(row.Round),
			DatasetSize:   row.DatasetSize,
			CreatedAt:     fromUnixNano(row.CreatedAt),
		}
		if err := jsonUnmarshal(row.Weights, &c.Weights); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDBScan, err)
		}
		out = append(out, c)
	}

	return out, nil
}

func (r *ContributionRepository) Create(ctx context.Context, c fl.Contribution) error {
	weights, err := jsonText(c.Weights)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	query := `INSERT INTO contributions (` + contributionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		c.ID, c.ExperimentID, c.ParticipantID, c.PrincipalID, int64(c.Round), weights, c.DatasetSize, unixNano(c.CreatedAt),
	); err != nil {
		if isConstraintViolation(err) {
			return pkgerrors.ErrEntityExists
		}

		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *ContributionRepository) ListByRound(ctx context.Context, experimentID string, round uint64) ([]fl.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions
		WHERE experiment_id = ? AND round = ? ORDER BY created_at, id`

	var rows []dbContribution
	if err := r.db.SelectContext(ctx, &rows, query, experimentID, int64(round)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return toContributions(rows)
}

func (r *ContributionRepository) List(ctx context.Context, experimentID string, offset, limit uint64) ([]fl.Contribution, uint64, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions
		WHERE experiment_id = ? ORDER BY created_at, id LIMIT ? OFFSET ?`

	var rows []dbContribution
	if err := r.db.SelectContext(ctx, &rows, query, experimentID, int64(limit), int64(offset)); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	var total uint64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM contributions WHERE experiment_id = ?`, experimentID); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	contributions, err := toContributions(rows)
	if err != nil {
		return nil, 0, err
	}

	return contributions, total, nil
}
