package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryTests exercises the behaviour every storage backend shares.
// The backend may already hold data from other tests.
func RunRepositoryTests(t *testing.T, repos *storage.Repositories) {
	t.Run("experiments", func(t *testing.T) { testExperiments(t, repos) })
	t.Run("advance round", func(t *testing.T) { testAdvanceRound(t, repos) })
	t.Run("models", func(t *testing.T) { testModels(t, repos) })
	t.Run("concurrent advance round", func(t *testing.T) { testConcurrentAdvance(t, repos) })
	t.Run("participants", func(t *testing.T) { testParticipants(t, repos) })
	t.Run("contributions", func(t *testing.T) { testContributions(t, repos) })
	t.Run("local models", func(t *testing.T) { testLocalModels(t, repos) })
}

func createExperiment(t *testing.T, repos *storage.Repositories) fl.Experiment {
	t.Helper()

	e := TestExperiment(uuid.NewString())
	require.NoError(t, repos.Experiments.Create(context.Background(), e, TestGlobalModel(e.ID, 0)))

	return e
}

func testExperiments(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)

	got, err := repos.Experiments.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e, Normalize(got))

	model, err := repos.Models.Get(ctx, e.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, TestGlobalModel(e.ID, 0).Weights, model.Weights)
	assert.Equal(t, fl.DefaultArchitecture(), model.Architecture)

	err = repos.Experiments.Create(ctx, e, TestGlobalModel(e.ID, 0))
	assert.Error(t, err, "duplicate experiment id must be rejected")

	cases := []struct {
		desc string
		id   string
		err  error
	}{
		{desc: "get existing experiment", id: e.ID},
		{desc: "get missing experiment", id: uuid.NewString(), err: pkgerrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := repos.Experiments.Get(ctx, tc.id)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			assert.NoError(t, err)
		})
	}

	createExperiment(t, repos)
	createExperiment(t, repos)
	list, total, err := repos.Experiments.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.GreaterOrEqual(t, total, uint64(3))

	list, _, err = repos.Experiments.List(ctx, total, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	updated, err := repos.Experiments.UpdateStatus(ctx, e.ID, e.Version, fl.StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, fl.StatusStarted, updated.Status)
	assert.Equal(t, e.Version+1, updated.Version)

	_, err = repos.Experiments.UpdateStatus(ctx, e.ID, e.Version, fl.StatusStarted)
	assert.ErrorIs(t, err, pkgerrors.ErrConflict)

	_, err = repos.Experiments.UpdateStatus(ctx, uuid.NewString(), 1, fl.StatusStarted)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func testAdvanceRound(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)

	cases := []struct {
		desc    string
		id      string
		version uint64
		round   uint64
		err     error
	}{
		{desc: "wrong target round", id: e.ID, version: e.Version, round: 2, err: pkgerrors.ErrConflict},
		{desc: "stale version", id: e.ID, version: e.Version + 5, round: 1, err: pkgerrors.ErrConflict},
		{desc: "missing experiment", id: uuid.NewString(), version: 1, round: 1, err: pkgerrors.ErrNotFound},
		{desc: "advance to round one", id: e.ID, version: e.Version, round: 1},
		{desc: "replay of the same advance", id: e.ID, version: e.Version, round: 1, err: pkgerrors.ErrConflict},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			next := TestGlobalModel(tc.id, tc.round)
			next.Weights = fl.Weights{"w": fl.Vector(float64(tc.round))}
			updated, err := repos.Experiments.AdvanceRound(ctx, tc.id, tc.version, next)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.round, updated.CurrentRound)
			assert.Equal(t, fl.StatusTraining, updated.Status)
			assert.Equal(t, tc.version+1, updated.Version)
		})
	}

	latest, err := repos.Models.Latest(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Round)
	assert.Equal(t, []float64{1}, latest.Weights["w"].Data())

	_, err = repos.Models.Get(ctx, e.ID, 7)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = repos.Models.Latest(ctx, uuid.NewString())
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func testModels(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)

	cases := []struct {
		desc  string
		model fl.GlobalModel
		err   error
	}{
		{desc: "round already stored", model: TestGlobalModel(e.ID, 0), err: pkgerrors.ErrEntityExists},
		{desc: "new round", model: TestGlobalModel(e.ID, 3)},
		{desc: "missing experiment", model: TestGlobalModel(uuid.NewString(), 0), err: pkgerrors.ErrNotFound},
		{desc: "empty experiment id", model: TestGlobalModel("", 0), err: pkgerrors.ErrEmptyKey},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			err := repos.Models.Create(ctx, tc.model)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			got, err := repos.Models.Get(ctx, tc.model.ExperimentID, tc.model.Round)
			require.NoError(t, err)
			assert.Equal(t, tc.model.Round, got.Round)
			assert.Equal(t, tc.model.Architecture, got.Architecture)
		})
	}

	latest, err := repos.Models.Latest(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), latest.Round)
}

func testConcurrentAdvance(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repos.Experiments.AdvanceRound(ctx, e.ID, e.Version, TestGlobalModel(e.ID, 1))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++

			continue
		}
		assert.ErrorIs(t, err, pkgerrors.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	got, err := repos.Experiments.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.CurrentRound)
}

func testParticipants(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)

	first := TestParticipant(e.ID, "principal-a")
	stored, created, err := repos.Participants.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first, Normalize(stored))

	again := TestParticipant(e.ID, "principal-a")
	stored, created, err = repos.Participants.Create(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID)

	second := TestParticipant(e.ID, "principal-b")
	_, created, err = repos.Participants.Create(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)

	got, err := repos.Participants.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second, Normalize(got))

	got, err = repos.Participants.GetByPrincipal(ctx, e.ID, "principal-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repos.Participants.GetByPrincipal(ctx, e.ID, "principal-c")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = repos.Participants.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	list, err := repos.Participants.ListByExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = repos.Participants.ListByExperiment(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testContributions(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)
	p := TestParticipant(e.ID, "principal-a")
	_, _, err := repos.Participants.Create(ctx, p)
	require.NoError(t, err)

	base := time.Now().UTC()
	later := TestContribution(p, 0, 10, base.Add(2*time.Second))
	earlier := TestContribution(p, 0, 20, base)
	nextRound := TestContribution(p, 1, 30, base.Add(time.Second))
	for _, c := range []fl.Contribution{later, earlier, nextRound} {
		require.NoError(t, repos.Contributions.Create(ctx, c))
	}

	round0, err := repos.Contributions.ListByRound(ctx, e.ID, 0)
	require.NoError(t, err)
	require.Len(t, round0, 2)
	assert.Equal(t, earlier, Normalize(round0[0]))
	assert.Equal(t, later, Normalize(round0[1]))

	round1, err := repos.Contributions.ListByRound(ctx, e.ID, 1)
	require.NoError(t, err)
	require.Len(t, round1, 1)
	assert.Equal(t, nextRound.ID, round1[0].ID)

	empty, err := repos.Contributions.ListByRound(ctx, e.ID, 9)
	require.NoError(t, err)
	assert.Empty(t, empty)

	list, total, err := repos.Contributions.List(ctx, e.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, nextRound.ID, list[0].ID)
	assert.Equal(t, later.ID, list[1].ID)
}

func testLocalModels(t *testing.T, repos *storage.Repositories) {
	ctx := context.Background()
	e := createExperiment(t, repos)
	p := TestParticipant(e.ID, "principal-a")

	m := fl.LocalModel{
		ExperimentID:  e.ID,
		ParticipantID: p.ID,
		Round:         0,
		Weights:       TestGlobalModel(e.ID, 0).Weights,
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repos.LocalModels.Save(ctx, m))

	got, err := repos.LocalModels.Get(ctx, e.ID, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, m, Normalize(got))

	m.Weights = fl.Weights{"w": fl.Vector(3)}
	require.NoError(t, repos.LocalModels.Save(ctx, m))
	got, err = repos.LocalModels.Get(ctx, e.ID, p.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, m.Weights, got.Weights)

	_, err = repos.LocalModels.Get(ctx, e.ID, p.ID, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}
