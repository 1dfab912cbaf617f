package coordinator_test

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/absmach/siteguard/coordinator"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/mqtt/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const baseTopic = "siteguard"

func TestHandleContribution(t *testing.T) {
	svc, repos := newService(t, setup{})
	ctx := context.Background()
	e, _ := startExperiment(t, svc, 1, "site-a")
	handle := coordinator.Handle(ctx, baseTopic, svc, slog.New(slog.DiscardHandler))
	topic := coordinator.ContributionTopic(baseTopic, e.ID)

	cases := []struct {
		desc   string
		topic  string
		msg    map[string]any
		err    error
		stored bool
	}{
		{
			desc:  "named layers",
			topic: topic,
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": float64(10),
				"weights":      map[string]any{"w": []any{1.0, 2.0}},
			},
			stored: true,
		},
		{
			desc:  "bare list",
			topic: topic,
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": float64(4),
				"weights":      []any{0.5},
			},
			stored: true,
		},
		{
			desc:  "topic outside the experiment tree",
			topic: baseTopic + "/fl/coordinators/c1/status",
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": float64(10),
				"weights":      []any{1.0},
			},
		},
		{
			desc:  "missing principal",
			topic: topic,
			msg: map[string]any{
				"dataset_size": float64(10),
				"weights":      []any{1.0},
			},
		},
		{
			desc:  "fractional dataset size",
			topic: topic,
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": 2.5,
				"weights":      []any{1.0},
			},
		},
		{
			desc:  "dataset size beyond int64",
			topic: topic,
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": math.Ldexp(1, 63),
				"weights":      []any{1.0},
			},
		},
		{
			desc:  "malformed weights",
			topic: topic,
			msg: map[string]any{
				"principal_id": "site-a",
				"dataset_size": float64(10),
				"weights":      "heavy",
			},
			err: fl.ErrMalformedWeights,
		},
		{
			desc:  "principal that never joined",
			topic: topic,
			msg: map[string]any{
				"principal_id": "intruder",
				"dataset_size": float64(10),
				"weights":      []any{1.0},
			},
			err: pkgerrors.ErrPermissionDenied,
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			before, err := repos.Contributions.ListByRound(ctx, e.ID, 0)
			require.NoError(t, err)

			err = handle(tc.topic, tc.msg)
			after, lerr := repos.Contributions.ListByRound(ctx, e.ID, 0)
			require.NoError(t, lerr)

			if !tc.stored {
				assert.Error(t, err)
				if tc.err != nil {
					assert.ErrorIs(t, err, tc.err)
				}
				assert.Len(t, after, len(before))

				return
			}
			require.NoError(t, err)
			assert.Len(t, after, len(before)+1)
		})
	}
}

func TestSubscribeContributions(t *testing.T) {
	svc, _ := newService(t, setup{})
	pubsub := new(mocks.PubSub)
	pubsub.On("Subscribe", mock.Anything, baseTopic+"/fl/experiments/+/contributions", mock.Anything).Return(nil)

	err := coordinator.Subscribe(context.Background(), baseTopic, pubsub, svc, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	pubsub.AssertExpectations(t)
}
