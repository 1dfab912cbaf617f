package coordinator

import (
	"context"
	"time"

	"github.com/absmach/siteguard/pkg/fl"
)

type DuplicatePolicy string

const (
	// DuplicateLatest keeps only the newest contribution of each participant
	// in a round.
	DuplicateLatest DuplicatePolicy = "latest"
	// DuplicateAll aggregates every stored contribution.
	DuplicateAll DuplicatePolicy = "all"
)

type Config struct {
	DefaultThreshold  uint64          `env:"DEFAULT_THRESHOLD"   envDefault:"3"`
	TrainingTimeout   time.Duration   `env:"TRAINING_TIMEOUT"    envDefault:"2m"`
	MaxEpochs         int             `env:"MAX_EPOCHS"          envDefault:"1000"`
	DuplicatePolicy   DuplicatePolicy `env:"DUPLICATE_POLICY"    envDefault:"latest"`
	AggregateOnSubmit bool            `env:"AGGREGATE_ON_SUBMIT" envDefault:"false"`
}

func DefaultConfig() Config {
	return Config{
		DefaultThreshold: 3,
		TrainingTimeout:  2 * time.Minute,
		MaxEpochs:        1000,
		DuplicatePolicy:  DuplicateLatest,
	}
}

type Service interface {
	// CreateExperiment stores a new experiment at round 0 together with a
	// freshly initialized global model.
	CreateExperiment(ctx context.Context, e fl.Experiment) (fl.Experiment, error)
	GetExperiment(ctx context.Context, id string) (fl.Experiment, error)
	ListExperiments(ctx context.Context, offset, limit uint64) (fl.ExperimentPage, error)

	// JoinExperiment registers the principal as a participant. Joining twice
	// returns the existing participant.
	JoinExperiment(ctx context.Context, experimentID, principalID string) (fl.Participant, error)
	GetParticipant(ctx context.Context, experimentID, principalID string) (fl.Participant, error)
	ListParticipants(ctx context.Context, experimentID string) ([]fl.Participant, error)
	StartExperiment(ctx context.Context, experimentID string) (StartResult, error)

	TrainAndSubmit(ctx context.Context, req TrainRequest) (TrainResult, error)
	UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (fl.Contribution, error)
	ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (fl.ContributionPage, error)

	// Aggregate combines the contributions of the current round into the
	// next global model. A non-nil round must equal the current round.
	Aggregate(ctx context.Context, experimentID string, round *uint64) (AggregationResult, error)
	// AggregateIfReady aggregates the current round once enough valid
	// contributions have arrived, reporting whether it did.
	AggregateIfReady(ctx context.Context, experimentID string) (AggregationResult, bool, error)

	GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (fl.GlobalModel, error)
	Predict(ctx context.Context, experimentID string, inputs [][]float64) (Prediction, error)
}
