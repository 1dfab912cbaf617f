package storage

import (
	"context"

	"github.com/absmach/siteguard/pkg/fl"
)

type ExperimentRepository interface {
	// Create stores the experiment together with its round-0 global model.
	// Neither is visible unless both are written.
	Create(ctx context.Context, e fl.Experiment, initial fl.GlobalModel) error
	Get(ctx context.Context, id string) (fl.Experiment, error)
	List(ctx context.Context, offset, limit uint64) ([]fl.Experiment, uint64, error)
	// UpdateStatus changes the status if the stored version still equals
	// version, bumping the version. A stale version yields ErrConflict.
	UpdateStatus(ctx context.Context, id string, version uint64, status fl.Status) (fl.Experiment, error)
	// AdvanceRound inserts next and moves the experiment to next.Round in
	// status TRAINING, only if the stored version still equals version and
	// next.Round is exactly one past the current round.
	AdvanceRound(ctx context.Context, id string, version uint64, next fl.GlobalModel) (fl.Experiment, error)
}

type ParticipantRepository interface {
	// Create inserts the participant unless the principal already joined the
	// experiment. The stored participant is returned either way; created
	// reports whether this call inserted it.
	Create(ctx context.Context, p fl.Participant) (stored fl.Participant, created bool, err error)
	Get(ctx context.Context, id string) (fl.Participant, error)
	GetByPrincipal(ctx context.Context, experimentID, principalID string) (fl.Participant, error)
	ListByExperiment(ctx context.Context, experimentID string) ([]fl.Participant, error)
}

type ModelRepository interface {
	// Create stores a snapshot. A snapshot already stored for the same
	// experiment and round is reported as EntityExists.
	Create(ctx context.Context, m fl.GlobalModel) error
	Get(ctx context.Context, experimentID string, round uint64) (fl.GlobalModel, error)
	Latest(ctx context.Context, experimentID string) (fl.GlobalModel, error)
}

type ContributionRepository interface {
	Create(ctx context.Context, c fl.Contribution) error
	// ListByRound returns the round's contributions ordered by creation time.
	ListByRound(ctx context.Context, experimentID string, round uint64) ([]fl.Contribution, error)
	List(ctx context.Context, experimentID string, offset, limit uint64) ([]fl.Contribution, uint64, error)
}

type LocalModelRepository interface {
	// Save inserts or replaces the participant's model for the round.
	Save(ctx context.Context, m fl.LocalModel) error
	Get(ctx context.Context, experimentID, participantID string, round uint64) (fl.LocalModel, error)
}
