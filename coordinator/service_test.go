package coordinator_test

import (
	"context"
	"testing"

	"github.com/absmach/siteguard/coordinator"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExperiment(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()

	cases := []struct {
		desc      string
		req       fl.Experiment
		threshold uint64
	}{
		{
			desc:      "with defaults",
			req:       fl.Experiment{},
			threshold: coordinator.DefaultConfig().DefaultThreshold,
		},
		{
			desc:      "with explicit values",
			req:       fl.Experiment{Name: "tower-crane", ParticipantThreshold: 1, Params: map[string]any{"lr": 0.1}},
			threshold: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			e, err := svc.CreateExperiment(ctx, tc.req)
			require.NoError(t, err)

			assert.NotEmpty(t, e.ID)
			assert.NotEmpty(t, e.Name)
			assert.NotEmpty(t, e.Params)
			assert.Equal(t, tc.threshold, e.ParticipantThreshold)
			assert.Equal(t, uint64(0), e.CurrentRound)
			assert.Equal(t, fl.StatusCreated, e.Status)
			if tc.req.Name != "" {
				assert.Equal(t, tc.req.Name, e.Name)
			}

			gm, err := repos.Models.Get(ctx, e.ID, 0)
			require.NoError(t, err)
			assert.Equal(t, fl.DefaultArchitecture(), gm.Architecture)
			assert.Equal(t, []int{1, fl.DefaultInputDim}, gm.Weights[fl.WeightLayer].Shape())

			got, err := svc.GetExperiment(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, e.ID, got.ID)
		})
	}
}

func TestGetExperimentNotFound(t *testing.T) {
	svc, _ := newService(t, setup{})

	_, err := svc.GetExperiment(context.Background(), "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestListExperiments(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()

	for range 5 {
		_, err := svc.CreateExperiment(ctx, fl.Experiment{})
		require.NoError(t, err)
	}

	page, err := svc.ListExperiments(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), page.Total)
	assert.Len(t, page.Experiments, 3)

	page, err = svc.ListExperiments(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), page.Total)
	assert.Empty(t, page.Experiments)
}

func TestJoinExperiment(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := newExperiment(t, svc, 1)

	cases := []struct {
		desc         string
		experimentID string
		principalID  string
		err          error
	}{
		{
			desc:         "first join",
			experimentID: e.ID,
			principalID:  "site-a",
		},
		{
			desc:         "second join",
			experimentID: e.ID,
			principalID:  "site-a",
		},
		{
			desc:         "missing experiment",
			experimentID: "missing",
			principalID:  "site-a",
			err:          pkgerrors.ErrNotFound,
		},
		{
			desc:         "missing principal",
			experimentID: e.ID,
			err:          pkgerrors.ErrUnauthenticated,
		},
	}

	var first fl.Participant
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			p, err := svc.JoinExperiment(ctx, tc.experimentID, tc.principalID)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			if first.ID == "" {
				first = p
			}
			assert.Equal(t, first, p)
		})
	}

	participants, err := svc.ListParticipants(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)

	p, err := svc.GetParticipant(ctx, e.ID, "site-a")
	require.NoError(t, err)
	assert.Equal(t, first.ID, p.ID)

	_, err = svc.GetParticipant(ctx, e.ID, "site-z")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestStartExperiment(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()

	empty, _ := newExperiment(t, svc, 1)
	_, err := svc.StartExperiment(ctx, empty.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
	assert.ErrorIs(t, err, coordinator.ErrNoParticipants)

	e, participants := newExperiment(t, svc, 2, "site-a", "site-b")
	res, err := svc.StartExperiment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, fl.StatusStarted, res.Status)
	assert.Equal(t, uint64(0), res.Round)
	assert.Len(t, res.Participants, 2)

	initial, err := repos.Models.Get(ctx, e.ID, 0)
	require.NoError(t, err)
	for _, p := range participants {
		local, err := repos.LocalModels.Get(ctx, e.ID, p.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, initial.Weights, local.Weights)
	}

	_, err = svc.StartExperiment(ctx, e.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
	assert.ErrorIs(t, err, coordinator.ErrAlreadyStarted)

	_, err = svc.StartExperiment(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestUploadContribution(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	cases := []struct {
		desc        string
		principalID string
		payload     fl.Payload
		size        int64
		err         error
	}{
		{
			desc:        "named layers",
			principalID: "site-a",
			payload:     layer(1.0),
			size:        10,
		},
		{
			desc:        "single layer",
			principalID: "site-a",
			payload:     fl.NewSingleLayer(fl.Vector(2.0)),
			size:        5,
		},
		{
			desc:        "principal that never joined",
			principalID: "intruder",
			payload:     layer(1.0),
			size:        10,
			err:         pkgerrors.ErrPermissionDenied,
		},
		{
			desc:    "missing principal",
			payload: layer(1.0),
			size:    10,
			err:     pkgerrors.ErrUnauthenticated,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			before, err := repos.Contributions.ListByRound(ctx, e.ID, 0)
			require.NoError(t, err)

			c, err := svc.UploadContribution(ctx, e.ID, tc.principalID, tc.payload, tc.size)
			after, lerr := repos.Contributions.ListByRound(ctx, e.ID, 0)
			require.NoError(t, lerr)

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Len(t, after, len(before))

				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(0), c.Round)
			assert.Equal(t, tc.size, c.DatasetSize)
			assert.Equal(t, tc.payload.Weights(), c.Weights)
			assert.Len(t, after, len(before)+1)
		})
	}

	_, err := svc.UploadContribution(ctx, "missing", "site-a", layer(1.0), 1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestListContributions(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a", "site-b")

	upload(t, svc, e.ID, "site-a", 10, 1.0)
	upload(t, svc, e.ID, "site-b", 10, 2.0)
	_, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)
	upload(t, svc, e.ID, "site-a", 10, 3.0)

	cases := []struct {
		desc   string
		round  *uint64
		offset uint64
		limit  uint64
		total  uint64
		count  int
	}{
		{desc: "all rounds", limit: 10, total: 3, count: 3},
		{desc: "round zero", round: ptr(uint64(0)), limit: 10, total: 2, count: 2},
		{desc: "round one", round: ptr(uint64(1)), limit: 10, total: 1, count: 1},
		{desc: "paged round", round: ptr(uint64(0)), offset: 1, limit: 10, total: 2, count: 1},
		{desc: "offset past end", round: ptr(uint64(0)), offset: 5, limit: 10, total: 2, count: 0},
		{desc: "empty round", round: ptr(uint64(7)), limit: 10, total: 0, count: 0},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			page, err := svc.ListContributions(ctx, e.ID, tc.round, tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, tc.total, page.Total)
			assert.Len(t, page.Contributions, tc.count)
		})
	}
}

func TestGetGlobalModel(t *testing.T) {
	svc, _ := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")

	upload(t, svc, e.ID, "site-a", 10, 4.0)
	_, err := svc.Aggregate(ctx, e.ID, nil)
	require.NoError(t, err)

	latest, err := svc.GetGlobalModel(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Round)
	assert.Equal(t, []float64{4.0}, latest.Weights["w"].Data())

	initial, err := svc.GetGlobalModel(ctx, e.ID, ptr(uint64(0)))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), initial.Round)

	_, err = svc.GetGlobalModel(ctx, e.ID, ptr(uint64(9)))
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = svc.GetGlobalModel(ctx, "missing", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		desc   string
		policy coordinator.DuplicatePolicy
		err    error
	}{
		{desc: "latest", policy: coordinator.DuplicateLatest},
		{desc: "all", policy: coordinator.DuplicateAll},
		{desc: "unset", policy: ""},
		{desc: "unknown", policy: "first", err: coordinator.ErrUnknownDuplicates},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := coordinator.DefaultConfig()
			cfg.DuplicatePolicy = tc.policy
			assert.ErrorIs(t, cfg.Validate(), tc.err)
		})
	}
}
