package middleware

import (
	"context"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/fl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func roundAttribute(round *uint64) attribute.KeyValue {
	if round == nil {
		return attribute.String("round", "current")
	}

	return attribute.Int64("round", int64(*round))
}

func (tm *tracing) CreateExperiment(ctx context.Context, e fl.Experiment) (fl.Experiment, error) {
	ctx, span := tm.tracer.Start(ctx, "create-experiment", trace.WithAttributes(
		attribute.String("name", e.Name),
		attribute.Int64("participant_threshold", int64(e.ParticipantThreshold)),
	))
	defer span.End()

	return tm.svc.CreateExperiment(ctx, e)
}

func (tm *tracing) GetExperiment(ctx context.Context, id string) (fl.Experiment, error) {
	ctx, span := tm.tracer.Start(ctx, "get-experiment", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetExperiment(ctx, id)
}

func (tm *tracing) ListExperiments(ctx context.Context, offset, limit uint64) (fl.ExperimentPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-experiments", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListExperiments(ctx, offset, limit)
}

func (tm *tracing) JoinExperiment(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "join-experiment", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("principal_id", principalID),
	))
	defer span.End()

	return tm.svc.JoinExperiment(ctx, experimentID, principalID)
}

func (tm *tracing) GetParticipant(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "get-participant", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("principal_id", principalID),
	))
	defer span.End()

	return tm.svc.GetParticipant(ctx, experimentID, principalID)
}

func (tm *tracing) ListParticipants(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "list-participants", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
	))
	defer span.End()

	return tm.svc.ListParticipants(ctx, experimentID)
}

func (tm *tracing) StartExperiment(ctx context.Context, experimentID string) (coordinator.StartResult, error) {
	ctx, span := tm.tracer.Start(ctx, "start-experiment", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
	))
	defer span.End()

	return tm.svc.StartExperiment(ctx, experimentID)
}

func (tm *tracing) TrainAndSubmit(ctx context.Context, req coordinator.TrainRequest) (coordinator.TrainResult, error) {
	ctx, span := tm.tracer.Start(ctx, "train-and-submit", trace.WithAttributes(
		attribute.String("experiment_id", req.ExperimentID),
		attribute.String("participant_id", req.ParticipantID),
		attribute.String("project_id", req.ProjectID),
		attribute.Int("epochs", req.Epochs),
		attribute.Float64("learning_rate", req.LearningRate),
	))
	defer span.End()

	return tm.svc.TrainAndSubmit(ctx, req)
}

func (tm *tracing) UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (fl.Contribution, error) {
	ctx, span := tm.tracer.Start(ctx, "upload-contribution", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("principal_id", principalID),
		attribute.Int64("dataset_size", datasetSize),
	))
	defer span.End()

	return tm.svc.UploadContribution(ctx, experimentID, principalID, payload, datasetSize)
}

func (tm *tracing) ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (fl.ContributionPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-contributions", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		roundAttribute(round),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListContributions(ctx, experimentID, round, offset, limit)
}

func (tm *tracing) Aggregate(ctx context.Context, experimentID string, round *uint64) (coordinator.AggregationResult, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		roundAttribute(round),
	))
	defer span.End()

	return tm.svc.Aggregate(ctx, experimentID, round)
}

func (tm *tracing) AggregateIfReady(ctx context.Context, experimentID string) (coordinator.AggregationResult, bool, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-if-ready", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
	))
	defer span.End()

	return tm.svc.AggregateIfReady(ctx, experimentID)
}

func (tm *tracing) GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (fl.GlobalModel, error) {
	ctx, span := tm.tracer.Start(ctx, "get-global-model", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		roundAttribute(round),
	))
	defer span.End()

	return tm.svc.GetGlobalModel(ctx, experimentID, round)
}

func (tm *tracing) Predict(ctx context.Context, experimentID string, inputs [][]float64) (coordinator.Prediction, error) {
	ctx, span := tm.tracer.Start(ctx, "predict", trace.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.Int("rows", len(inputs)),
	))
	defer span.End()

	return tm.svc.Predict(ctx, experimentID, inputs)
}
