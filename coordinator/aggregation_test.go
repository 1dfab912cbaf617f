package coordinator_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/dataset"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/mqtt/mocks"
	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTwoSiteRounds(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()

	e, _ := startExperiment(t, svc, 1, "site-a", "site-b")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	res, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Round)
	assert.Equal(t, []string{"site-a"}, res.Contributors)

	gm, err := svc.GetGlobalModel(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gm.Round)
	assert.Equal(t, []float64{1.0}, gm.Weights["w"].Data())

	c := upload(t, svc, e.ID, "site-b", 5, 3.0)
	assert.Equal(t, uint64(1), c.Round)
	res, err = svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Round)
	assert.Equal(t, []string{"site-b"}, res.Contributors)

	gm, err = svc.GetGlobalModel(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gm.Round)
	assert.Equal(t, []float64{3.0}, gm.Weights["w"].Data())

	got, err := svc.GetExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.CurrentRound)
	assert.Equal(t, fl.StatusTraining, got.Status)
}

func TestAggregateWeightedAverage(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 2, "site-a", "site-b")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	upload(t, svc, e.ID, "site-b", 30, 2.0)

	res, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, res.AggregatedWeights["w"].Data()[0], 1e-12)
	assert.Equal(t, int64(40), res.TotalSamples)
	assert.ElementsMatch(t, []string{"site-a", "site-b"}, res.Contributors)
	assert.Empty(t, res.RejectedUploads)
}

func TestAggregateSanitizesNonFinite(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	upload(t, svc, e.ID, "site-a", 4, math.NaN(), math.Inf(1), 2.0)

	res, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 2.0}, res.AggregatedWeights["w"].Data())
}

func TestAggregateInsufficientData(t *testing.T) {
	cases := []struct {
		desc    string
		uploads func(t *testing.T, svc coordinator.Service, id string)
	}{
		{
			desc:    "no uploads",
			uploads: func(t *testing.T, svc coordinator.Service, id string) {},
		},
		{
			desc: "only empty datasets",
			uploads: func(t *testing.T, svc coordinator.Service, id string) {
				upload(t, svc, id, "site-a", 0, 1.0)
				upload(t, svc, id, "site-b", -3, 1.0)
			},
		},
		{
			desc: "only empty weights",
			uploads: func(t *testing.T, svc coordinator.Service, id string) {
				_, err := svc.UploadContribution(context.Background(), id, "site-a", fl.NewNamedLayers(nil), 10)
				require.NoError(t, err)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			svc, repos := newService(t, setup{})
			ctx := context.Background()
			e, _ := startExperiment(t, svc, 1, "site-a", "site-b")
			tc.uploads(t, svc, e.ID)

			_, err := svc.Aggregate(ctx, e.ID, nil)
			assert.ErrorIs(t, err, pkgerrors.ErrInsufficientData)

			got, err := svc.GetExperiment(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, uint64(0), got.CurrentRound)
			_, err = repos.Models.Get(ctx, e.ID, 1)
			assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
		})
	}
}

func TestAggregateRejections(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()
	e, ps := startExperiment(t, svc, 1, "site-a", "site-b", "site-c")

	at := time.Now()
	storeContribution(t, repos, ps[0], 0, 10, at, 1.0, 1.0)
	bad := storeContribution(t, repos, ps[1], 0, 10, at.Add(time.Second), 1.0)
	empty := storeContribution(t, repos, ps[2], 0, 0, at.Add(2*time.Second), 5.0, 5.0)

	res, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"site-a"}, res.Contributors)

	rejected := make([]string, 0, len(res.RejectedUploads))
	for _, r := range res.RejectedUploads {
		rejected = append(rejected, r.ContributionID)
		assert.NotEmpty(t, r.Reason)
	}
	assert.ElementsMatch(t, []string{bad.ID, empty.ID}, rejected)
}

func TestAggregateRoundOverride(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")
	upload(t, svc, e.ID, "site-a", 10, 1.0)

	_, err := svc.Aggregate(ctx, e.ID, ptr(uint64(3)))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
	assert.ErrorIs(t, err, coordinator.ErrRoundMismatch)

	res, err := svc.Aggregate(ctx, e.ID, ptr(uint64(0)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Round)

	_, err = svc.Aggregate(ctx, e.ID, ptr(uint64(0)))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	_, err = svc.Aggregate(ctx, "missing", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestAggregateDuplicatePolicy(t *testing.T) {
	cases := []struct {
		desc       string
		policy     coordinator.DuplicatePolicy
		value      float64
		samples    int64
		superseded int
	}{
		{
			desc:       "latest upload wins",
			policy:     coordinator.DuplicateLatest,
			value:      (3.0*10 + 2.0*10) / 20,
			samples:    20,
			superseded: 1,
		},
		{
			desc:       "every upload counts",
			policy:     coordinator.DuplicateAll,
			value:      (1.0*10 + 3.0*10 + 2.0*10) / 30,
			samples:    30,
			superseded: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			svc, repos := newService(t, setup{cfg: coordinator.Config{DuplicatePolicy: tc.policy}})
			ctx := context.Background()
			e, ps := startExperiment(t, svc, 1, "site-a", "site-b")

			at := time.Now()
			first := storeContribution(t, repos, ps[0], 0, 10, at, 1.0)
			storeContribution(t, repos, ps[0], 0, 10, at.Add(time.Second), 3.0)
			storeContribution(t, repos, ps[1], 0, 10, at.Add(2*time.Second), 2.0)

			res, err := svc.Aggregate(ctx, e.ID, nil)
			require.NoError(t, err)
			assert.InDelta(t, tc.value, res.AggregatedWeights["w"].Data()[0], 1e-12)
			assert.Equal(t, tc.samples, res.TotalSamples)
			assert.Len(t, res.SupersededUploads, tc.superseded)
			if tc.superseded > 0 {
				assert.Equal(t, []string{first.ID}, res.SupersededUploads)
			}
		})
	}
}

func TestConcurrentAggregate(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a", "site-b")
	upload(t, svc, e.ID, "site-a", 10, 1.0)
	upload(t, svc, e.ID, "site-b", 10, 3.0)

	const callers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		errs []error
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Aggregate(ctx, e.ID, ptr(uint64(0)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++

				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	for _, err := range errs {
		assert.True(t, errors.Is(err, pkgerrors.ErrConflict) || errors.Is(err, pkgerrors.ErrInvalidState), err.Error())
	}

	got, err := svc.GetExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.CurrentRound)
	_, err = repos.Models.Get(ctx, e.ID, 2)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestAggregateIfReady(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()

	created, _ := newExperiment(t, svc, 1, "site-a")
	upload(t, svc, created.ID, "site-a", 10, 1.0)
	_, ok, err := svc.AggregateIfReady(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	e, ps := startExperiment(t, svc, 2, "site-a", "site-b")
	_, ok, err = svc.AggregateIfReady(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Now()
	storeContribution(t, repos, ps[0], 0, 10, at, 1.0)
	storeContribution(t, repos, ps[0], 0, 10, at.Add(time.Second), 2.0)
	_, ok, err = svc.AggregateIfReady(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	storeContribution(t, repos, ps[1], 0, 0, at.Add(2*time.Second), 2.0)
	_, ok, err = svc.AggregateIfReady(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	storeContribution(t, repos, ps[1], 0, 10, at.Add(3*time.Second), 2.0)
	res, ok, err := svc.AggregateIfReady(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), res.Round)

	_, _, err = svc.AggregateIfReady(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestAggregateOnSubmit(t *testing.T) {
	svc, _ := newService(t, setup{cfg: coordinator.Config{AggregateOnSubmit: true}})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 2, "site-a", "site-b")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	got, err := svc.GetExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got.CurrentRound)

	upload(t, svc, e.ID, "site-b", 10, 3.0)
	got, err = svc.GetExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.CurrentRound)
}

func TestRoundNotification(t *testing.T) {
	pubsub := new(mocks.PubSub)
	notifier := coordinator.NewMQTTNotifier(pubsub, "siteguard")
	svc, _ := newService(t, setup{notifier: notifier})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	pubsub.On("Publish", mock.Anything, coordinator.RoundTopic("siteguard", e.ID), coordinator.RoundNotification{
		ExperimentID: e.ID,
		Round:        1,
		Status:       fl.StatusTraining,
		Contributors: []string{"site-a"},
		TotalSamples: 10,
	}).Return(nil).Once()

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	_, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	pubsub.AssertExpectations(t)
}

func TestRoundNotificationFailureKeepsRound(t *testing.T) {
	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	svc, _ := newService(t, setup{notifier: coordinator.NewMQTTNotifier(pubsub, "siteguard")})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	res, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Round)
}

func TestRoundNotificationFailureWithoutLogger(t *testing.T) {
	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	svc := coordinator.NewService(
		storage.NewMemoryRepositories(),
		fl.NewFedAvgAggregator(),
		trainer.NewGradientDescent(),
		dataset.NewSynthetic(16, 0.01, 1),
		coordinator.NewMQTTNotifier(pubsub, "siteguard"),
		coordinator.Config{},
		nil,
	)
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	assert.NotPanics(t, func() {
		res, err := svc.Aggregate(ctx, e.ID, nil)
		assert.NoError(t, err)
		assert.Equal(t, uint64(1), res.Round)
	})
}
