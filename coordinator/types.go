package coordinator

import "github.com/absmach/siteguard/pkg/fl"

type LocalModelRef struct {
	ParticipantID string `json:"participant_id"`
	Round         uint64 `json:"round"`
}

type StartResult struct {
	ExperimentID string          `json:"experiment_id"`
	Status       fl.Status       `json:"status"`
	Round        uint64          `json:"round"`
	Participants []LocalModelRef `json:"participants"`
}

type TrainRequest struct {
	ExperimentID  string  `json:"experiment_id"`
	ParticipantID string  `json:"participant_id"`
	ProjectID     string  `json:"project_id"`
	Epochs        int     `json:"epochs"`
	LearningRate  float64 `json:"learning_rate"`
}

type TrainResult struct {
	ExperimentID   string  `json:"experiment_id"`
	ParticipantID  string  `json:"participant_id"`
	Round          uint64  `json:"round"`
	SamplesTrained int     `json:"samples_trained"`
	Loss           float64 `json:"loss"`
	ContributionID string  `json:"contribution_id"`
	Aggregated     bool    `json:"aggregated"`
	NewRound       *uint64 `json:"new_round,omitempty"`
}

type AggregationResult struct {
	ExperimentID      string         `json:"experiment_id"`
	Round             uint64         `json:"round"`
	AggregatedWeights fl.Weights     `json:"aggregated_weights"`
	RejectedUploads   []fl.Rejection `json:"rejected_uploads"`
	SupersededUploads []string       `json:"superseded_uploads"`
	Contributors      []string       `json:"contributors"`
	TotalSamples      int64          `json:"total_samples"`
}

type Prediction struct {
	ExperimentID string    `json:"experiment_id"`
	ModelRound   uint64    `json:"model_round"`
	Predictions  []float64 `json:"predictions"`
}
