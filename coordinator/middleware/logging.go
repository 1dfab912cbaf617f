package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/fl"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func roundAttr(round *uint64) slog.Attr {
	if round == nil {
		return slog.String("round", "current")
	}

	return slog.Uint64("round", *round)
}

func (lm *loggingMiddleware) CreateExperiment(ctx context.Context, e fl.Experiment) (resp fl.Experiment, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("experiment",
				slog.String("id", resp.ID),
				slog.String("name", resp.Name),
				slog.Uint64("participant_threshold", resp.ParticipantThreshold),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create experiment failed", args...)

			return
		}
		lm.logger.Info("Create experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateExperiment(ctx, e)
}

func (lm *loggingMiddleware) GetExperiment(ctx context.Context, id string) (resp fl.Experiment, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("experiment",
				slog.String("id", id),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get experiment failed", args...)

			return
		}
		lm.logger.Info("Get experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.GetExperiment(ctx, id)
}

func (lm *loggingMiddleware) ListExperiments(ctx context.Context, offset, limit uint64) (resp fl.ExperimentPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List experiments failed", args...)

			return
		}
		lm.logger.Info("List experiments completed successfully", args...)
	}(time.Now())

	return lm.svc.ListExperiments(ctx, offset, limit)
}

func (lm *loggingMiddleware) JoinExperiment(ctx context.Context, experimentID, principalID string) (resp fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", resp.ID),
				slog.String("experiment_id", experimentID),
				slog.String("principal_id", principalID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Join experiment failed", args...)

			return
		}
		lm.logger.Info("Join experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.JoinExperiment(ctx, experimentID, principalID)
}

func (lm *loggingMiddleware) GetParticipant(ctx context.Context, experimentID, principalID string) (resp fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("experiment_id", experimentID),
				slog.String("principal_id", principalID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get participant failed", args...)

			return
		}
		lm.logger.Info("Get participant completed successfully", args...)
	}(time.Now())

	return lm.svc.GetParticipant(ctx, experimentID, principalID)
}

func (lm *loggingMiddleware) ListParticipants(ctx context.Context, experimentID string) (resp []fl.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", experimentID),
			slog.Int("count", len(resp)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List participants failed", args...)

			return
		}
		lm.logger.Info("List participants completed successfully", args...)
	}(time.Now())

	return lm.svc.ListParticipants(ctx, experimentID)
}

func (lm *loggingMiddleware) StartExperiment(ctx context.Context, experimentID string) (resp coordinator.StartResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("experiment",
				slog.String("id", experimentID),
				slog.Int("participants", len(resp.Participants)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start experiment failed", args...)

			return
		}
		lm.logger.Info("Start experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.StartExperiment(ctx, experimentID)
}

func (lm *loggingMiddleware) TrainAndSubmit(ctx context.Context, req coordinator.TrainRequest) (resp coordinator.TrainResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("training",
				slog.String("experiment_id", req.ExperimentID),
				slog.String("participant_id", req.ParticipantID),
				slog.String("project_id", req.ProjectID),
				slog.Int("epochs", req.Epochs),
				slog.Float64("learning_rate", req.LearningRate),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train and submit failed", args...)

			return
		}
		args = append(args,
			slog.Float64("loss", resp.Loss),
			slog.String("contribution_id", resp.ContributionID),
			slog.Bool("aggregated", resp.Aggregated),
		)
		lm.logger.Info("Train and submit completed successfully", args...)
	}(time.Now())

	return lm.svc.TrainAndSubmit(ctx, req)
}

func (lm *loggingMiddleware) UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (resp fl.Contribution, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("contribution",
				slog.String("id", resp.ID),
				slog.String("experiment_id", experimentID),
				slog.String("principal_id", principalID),
				slog.Uint64("round", resp.Round),
				slog.Int64("dataset_size", datasetSize),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Upload contribution failed", args...)

			return
		}
		lm.logger.Info("Upload contribution completed successfully", args...)
	}(time.Now())

	return lm.svc.UploadContribution(ctx, experimentID, principalID, payload, datasetSize)
}

func (lm *loggingMiddleware) ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (resp fl.ContributionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", experimentID),
			roundAttr(round),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List contributions failed", args...)

			return
		}
		lm.logger.Info("List contributions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListContributions(ctx, experimentID, round, offset, limit)
}

func (lm *loggingMiddleware) Aggregate(ctx context.Context, experimentID string, round *uint64) (resp coordinator.AggregationResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("aggregation",
				slog.String("experiment_id", experimentID),
				roundAttr(round),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate failed", args...)

			return
		}
		args = append(args,
			slog.Uint64("new_round", resp.Round),
			slog.Int("contributors", len(resp.Contributors)),
			slog.Int("rejected", len(resp.RejectedUploads)),
			slog.Int64("total_samples", resp.TotalSamples),
		)
		lm.logger.Info("Aggregate completed successfully", args...)
	}(time.Now())

	return lm.svc.Aggregate(ctx, experimentID, round)
}

func (lm *loggingMiddleware) AggregateIfReady(ctx context.Context, experimentID string) (resp coordinator.AggregationResult, ready bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", experimentID),
			slog.Bool("ready", ready),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate if ready failed", args...)

			return
		}
		if ready {
			args = append(args, slog.Uint64("new_round", resp.Round))
		}
		lm.logger.Debug("Aggregate if ready completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateIfReady(ctx, experimentID)
}

func (lm *loggingMiddleware) GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (resp fl.GlobalModel, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", experimentID),
			roundAttr(round),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get global model failed", args...)

			return
		}
		lm.logger.Info("Get global model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetGlobalModel(ctx, experimentID, round)
}

func (lm *loggingMiddleware) Predict(ctx context.Context, experimentID string, inputs [][]float64) (resp coordinator.Prediction, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", experimentID),
			slog.Int("rows", len(inputs)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Predict failed", args...)

			return
		}
		args = append(args, slog.Uint64("model_round", resp.ModelRound))
		lm.logger.Info("Predict completed successfully", args...)
	}(time.Now())

	return lm.svc.Predict(ctx, experimentID, inputs)
}
