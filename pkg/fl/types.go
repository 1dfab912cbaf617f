package fl

import (
	"context"
	"time"
)

type Status string

const (
	StatusCreated  Status = "CREATED"
	StatusStarted  Status = "STARTED"
	StatusTraining Status = "TRAINING"
)

// Experiment is one federated training effort. CurrentRound only moves
// forward through a committed aggregation, and Version is bumped on every
// write so concurrent writers can detect each other.
type Experiment struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	Params               map[string]any `json:"params,omitempty"`
	ParticipantThreshold uint64         `json:"participant_threshold"`
	CurrentRound         uint64         `json:"current_round"`
	Status               Status         `json:"status"`
	Version              uint64         `json:"version"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

type ExperimentPage struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Experiments []Experiment `json:"experiments"`
}

type Participant struct {
	ID           string    `db:"id"            json:"id"`
	ExperimentID string    `db:"experiment_id" json:"experiment_id"`
	PrincipalID  string    `db:"principal_id"  json:"principal_id"`
	JoinedAt     time.Time `db:"joined_at"     json:"joined_at"`
}

// Architecture describes how to rebuild a model from its weights.
type Architecture struct {
	Kind      string `json:"kind"`
	InputDim  int    `json:"input_dim"`
	OutputDim int    `json:"output_dim"`
}

// IsZero reports whether the snapshot predates persisted architectures.
func (a Architecture) IsZero() bool {
	return a.Kind == "" && a.InputDim == 0 && a.OutputDim == 0
}

type GlobalModel struct {
	ExperimentID string       `json:"experiment_id"`
	Round        uint64       `json:"round"`
	Architecture Architecture `json:"architecture"`
	Weights      Weights      `json:"weights"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Contribution is a weight upload from one participant for one round.
type Contribution struct {
	ID            string    `json:"id"`
	ExperimentID  string    `json:"experiment_id"`
	ParticipantID string    `json:"participant_id"`
	PrincipalID   string    `json:"principal_id"`
	Round         uint64    `json:"round"`
	Weights       Weights   `json:"weights"`
	DatasetSize   int64     `json:"dataset_size"`
	CreatedAt     time.Time `json:"created_at"`
}

type ContributionPage struct {
	Offset        uint64         `json:"offset"`
	Limit         uint64         `json:"limit"`
	Total         uint64         `json:"total"`
	Contributions []Contribution `json:"contributions"`
}

// LocalModel is a participant's working copy of the model for a round.
type LocalModel struct {
	ExperimentID  string    `json:"experiment_id"`
	ParticipantID string    `json:"participant_id"`
	Round         uint64    `json:"round"`
	Weights       Weights   `json:"weights"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Sample struct {
	Features []float64 `json:"features"`
	Label    float64   `json:"label"`
}

// Rejection records why a contribution was left out of an aggregation.
type Rejection struct {
	ContributionID string `json:"contribution_id"`
	Reason         string `json:"reason"`
}

type AggregationResult struct {
	Weights      Weights        `json:"weights"`
	Accepted     []Contribution `json:"-"`
	Rejected     []Rejection    `json:"rejected"`
	TotalSamples int64          `json:"total_samples"`
}

type Aggregator interface {
	// Aggregate combines the contributions into a single weight mapping.
	// Reference holds the shapes of the current global model.
	Aggregate(contributions []Contribution, reference Weights) (AggregationResult, error)
}

type Trainer interface {
	// Train runs full-batch gradient descent over the samples and returns the
	// updated model with the final loss.
	Train(ctx context.Context, model LinearModel, samples []Sample, epochs int, lr float64) (LinearModel, float64, error)
}

type DatasetProvider interface {
	Dataset(ctx context.Context, projectID string) ([]Sample, error)
}
