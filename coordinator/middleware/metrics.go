package middleware

import (
	"context"
	"time"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) CreateExperiment(ctx context.Context, e fl.Experiment) (fl.Experiment, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create-experiment").Add(1)
		mm.latency.With("method", "create-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreateExperiment(ctx, e)
}

func (mm *metricsMiddleware) GetExperiment(ctx context.Context, id string) (fl.Experiment, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-experiment").Add(1)
		mm.latency.With("method", "get-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetExperiment(ctx, id)
}

func (mm *metricsMiddleware) ListExperiments(ctx context.Context, offset, limit uint64) (fl.ExperimentPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-experiments").Add(1)
		mm.latency.With("method", "list-experiments").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListExperiments(ctx, offset, limit)
}

func (mm *metricsMiddleware) JoinExperiment(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "join-experiment").Add(1)
		mm.latency.With("method", "join-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.JoinExperiment(ctx, experimentID, principalID)
}

func (mm *metricsMiddleware) GetParticipant(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-participant").Add(1)
		mm.latency.With("method", "get-participant").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetParticipant(ctx, experimentID, principalID)
}

func (mm *metricsMiddleware) ListParticipants(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-participants").Add(1)
		mm.latency.With("method", "list-participants").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListParticipants(ctx, experimentID)
}

func (mm *metricsMiddleware) StartExperiment(ctx context.Context, experimentID string) (coordinator.StartResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-experiment").Add(1)
		mm.latency.With("method", "start-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartExperiment(ctx, experimentID)
}

func (mm *metricsMiddleware) TrainAndSubmit(ctx context.Context, req coordinator.TrainRequest) (coordinator.TrainResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "train-and-submit").Add(1)
		mm.latency.With("method", "train-and-submit").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.TrainAndSubmit(ctx, req)
}

func (mm *metricsMiddleware) UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (fl.Contribution, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "upload-contribution").Add(1)
		mm.latency.With("method", "upload-contribution").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.UploadContribution(ctx, experimentID, principalID, payload, datasetSize)
}

func (mm *metricsMiddleware) ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (fl.ContributionPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-contributions").Add(1)
		mm.latency.With("method", "list-contributions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListContributions(ctx, experimentID, round, offset, limit)
}

func (mm *metricsMiddleware) Aggregate(ctx context.Context, experimentID string, round *uint64) (coordinator.AggregationResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate").Add(1)
		mm.latency.With("method", "aggregate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Aggregate(ctx, experimentID, round)
}

func (mm *metricsMiddleware) AggregateIfReady(ctx context.Context, experimentID string) (coordinator.AggregationResult, bool, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "aggregate-if-ready").Add(1)
		mm.latency.With("method", "aggregate-if-ready").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.AggregateIfReady(ctx, experimentID)
}

func (mm *metricsMiddleware) GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (fl.GlobalModel, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-global-model").Add(1)
		mm.latency.With("method", "get-global-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetGlobalModel(ctx, experimentID, round)
}

func (mm *metricsMiddleware) Predict(ctx context.Context, experimentID string, inputs [][]float64) (coordinator.Prediction, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "predict").Add(1)
		mm.latency.With("method", "predict").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Predict(ctx, experimentID, inputs)
}
