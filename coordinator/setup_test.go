package coordinator_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/dataset"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/trainer"
	"github.com/stretchr/testify/require"
)

type setup struct {
	cfg      coordinator.Config
	trainer  fl.Trainer
	datasets fl.DatasetProvider
	notifier coordinator.Notifier
	models   func(storage.ModelRepository) storage.ModelRepository
}

func newService(t *testing.T, s setup) (coordinator.Service, *storage.Repositories) {
	t.Helper()

	repos := storage.NewMemoryRepositories()
	if s.models != nil {
		repos.Models = s.models(repos.Models)
	}
	if s.trainer == nil {
		s.trainer = trainer.NewGradientDescent()
	}
	if s.datasets == nil {
		s.datasets = dataset.NewSynthetic(64, 0.01, 42)
	}
	svc := coordinator.NewService(
		repos,
		fl.NewFedAvgAggregator(),
		s.trainer,
		s.datasets,
		s.notifier,
		s.cfg,
		slog.New(slog.DiscardHandler),
	)

	return svc, repos
}

// newExperiment creates an experiment and joins the principals to it.
func newExperiment(t *testing.T, svc coordinator.Service, threshold uint64, principals ...string) (fl.Experiment, []fl.Participant) {
	t.Helper()

	e, err := svc.CreateExperiment(context.Background(), fl.Experiment{ParticipantThreshold: threshold})
	require.NoError(t, err)

	participants := make([]fl.Participant, 0, len(principals))
	for _, principal := range principals {
		p, err := svc.JoinExperiment(context.Background(), e.ID, principal)
		require.NoError(t, err)
		participants = append(participants, p)
	}

	return e, participants
}

func startExperiment(t *testing.T, svc coordinator.Service, threshold uint64, principals ...string) (fl.Experiment, []fl.Participant) {
	t.Helper()

	e, participants := newExperiment(t, svc, threshold, principals...)
	_, err := svc.StartExperiment(context.Background(), e.ID)
	require.NoError(t, err)

	return e, participants
}

func layer(values ...float64) fl.Payload {
	return fl.NewNamedLayers(fl.Weights{"w": fl.Vector(values...)})
}

func upload(t *testing.T, svc coordinator.Service, experimentID, principal string, size int64, values ...float64) fl.Contribution {
	t.Helper()

	c, err := svc.UploadContribution(context.Background(), experimentID, principal, layer(values...), size)
	require.NoError(t, err)

	return c
}

// storeContribution writes a contribution with a fixed creation time so the
// order between uploads is deterministic.
func storeContribution(t *testing.T, repos *storage.Repositories, p fl.Participant, round uint64, size int64, at time.Time, values ...float64) fl.Contribution {
	t.Helper()

	c := fl.Contribution{
		ID:            at.Format("150405.000000") + "-" + p.PrincipalID,
		ExperimentID:  p.ExperimentID,
		ParticipantID: p.ID,
		PrincipalID:   p.PrincipalID,
		Round:         round,
		Weights:       fl.Weights{"w": fl.Vector(values...)},
		DatasetSize:   size,
		CreatedAt:     at.UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repos.Contributions.Create(context.Background(), c))

	return c
}

func ptr[T any](v T) *T {
	return &v
}
