package testutil

import (
	"time"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/google/uuid"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestExperiment(id string) fl.Experiment {
	ts := now()

	return fl.Experiment{
		ID:                   id,
		Name:                 "test-experiment-" + id,
		Params:               map[string]any{"model": "linear", "aggregation": "fedavg"},
		ParticipantThreshold: 2,
		CurrentRound:         0,
		Status:               fl.StatusCreated,
		Version:              1,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
}

func TestGlobalModel(experimentID string, round uint64) fl.GlobalModel {
	weight, _ := fl.Matrix([][]float64{{0.1, -0.2, 0.3, -0.4, 0.5, -0.6}})

	return fl.GlobalModel{
		ExperimentID: experimentID,
		Round:        round,
		Architecture: fl.DefaultArchitecture(),
		Weights: fl.Weights{
			fl.WeightLayer: weight,
			fl.BiasLayer:   fl.Vector(0.05),
		},
		CreatedAt: now(),
	}
}

func TestParticipant(experimentID, principalID string) fl.Participant {
	return fl.Participant{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		PrincipalID:  principalID,
		JoinedAt:     now(),
	}
}

func TestContribution(p fl.Participant, round uint64, size int64, createdAt time.Time) fl.Contribution {
	return fl.Contribution{
		ID:            uuid.NewString(),
		ExperimentID:  p.ExperimentID,
		ParticipantID: p.ID,
		PrincipalID:   p.PrincipalID,
		Round:         round,
		Weights:       fl.Weights{"w": fl.Vector(1, 2), "b": fl.Scalar(0.5)},
		DatasetSize:   size,
		CreatedAt:     createdAt.UTC().Truncate(time.Microsecond),
	}
}

// Normalize drops location information so values read back from a database
// compare equal to the fixtures.
func Normalize[T fl.Experiment | fl.Participant | fl.GlobalModel | fl.Contribution | fl.LocalModel](v T) T {
	switch x := any(&v).(type) {
	case *fl.Experiment:
		x.CreatedAt, x.UpdatedAt = x.CreatedAt.UTC(), x.UpdatedAt.UTC()
	case *fl.Participant:
		x.JoinedAt = x.JoinedAt.UTC()
	case *fl.GlobalModel:
		x.CreatedAt = x.CreatedAt.UTC()
	case *fl.Contribution:
		x.CreatedAt = x.CreatedAt.UTC()
	case *fl.LocalModel:
		x.UpdatedAt = x.UpdatedAt.UTC()
	}

	return v
}
