package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/absmach/siteguard/pkg/dataset"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/trainer"
)

func (svc *service) TrainAndSubmit(ctx context.Context, req TrainRequest) (TrainResult, error) {
	e, err := svc.experiments.Get(ctx, req.ExperimentID)
	if err != nil {
		return TrainResult{}, err
	}
	if e.Status == fl.StatusCreated {
		return TrainResult{}, invalidState(ErrNotStarted)
	}

	p, err := svc.participants.Get(ctx, req.ParticipantID)
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		return TrainResult{}, wrap(pkgerrors.ErrPermissionDenied, ErrNotJoined)
	case err != nil:
		return TrainResult{}, err
	case p.ExperimentID != e.ID:
		return TrainResult{}, wrap(pkgerrors.ErrPermissionDenied, ErrWrongExperiment)
	}

	if req.Epochs < 1 || req.Epochs > svc.cfg.MaxEpochs {
		return TrainResult{}, invalidArgument(fmt.Errorf("%w: %d not in [1, %d]", ErrEpochs, req.Epochs, svc.cfg.MaxEpochs))
	}
	if !(req.LearningRate > 0) || math.IsInf(req.LearningRate, 0) {
		return TrainResult{}, invalidArgument(ErrLearningRate)
	}

	samples, err := svc.datasets.Dataset(ctx, req.ProjectID)
	switch {
	case errors.Is(err, dataset.ErrNoDataset):
		return TrainResult{}, wrap(pkgerrors.ErrNotFound, err)
	case err != nil:
		return TrainResult{}, err
	case len(samples) == 0:
		return TrainResult{}, wrap(pkgerrors.ErrNotFound, dataset.ErrNoDataset)
	}

	gm, err := svc.latestOrInitial(ctx, e.ID)
	if err != nil {
		return TrainResult{}, err
	}
	model, err := fl.ModelFromSnapshot(gm)
	if err != nil {
		return TrainResult{}, invalidState(errors.Join(ErrUnbuildableModel, err))
	}

	tctx, cancel := context.WithTimeout(ctx, svc.cfg.TrainingTimeout)
	defer cancel()
	trained, loss, err := svc.trainer.Train(tctx, model, samples, req.Epochs, req.LearningRate)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TrainResult{}, wrap(pkgerrors.ErrDeadlineExceeded, err)
	case errors.Is(err, trainer.ErrFeatureCount), errors.Is(err, trainer.ErrUnsupportedOut):
		return TrainResult{}, invalidState(err)
	case err != nil:
		return TrainResult{}, err
	}

	weights := trained.Weights()
	local := fl.LocalModel{
		ExperimentID:  e.ID,
		ParticipantID: p.ID,
		Round:         e.CurrentRound,
		Weights:       weights,
		UpdatedAt:     now(),
	}
	if err := svc.localModels.Save(ctx, local); err != nil {
		return TrainResult{}, err
	}

	c, err := svc.submit(ctx, e, p, weights, int64(len(samples)))
	if err != nil {
		return TrainResult{}, err
	}

	res := TrainResult{
		ExperimentID:   e.ID,
		ParticipantID:  p.ID,
		Round:          c.Round,
		SamplesTrained: len(samples),
		Loss:           fl.Finite(loss),
		ContributionID: c.ID,
	}
	if agg, ok := svc.aggregateOnSubmit(ctx, e.ID); ok {
		res.Aggregated = true
		res.NewRound = &agg.Round
	}

	return res, nil
}

// latestOrInitial returns the latest snapshot, storing a round-0 snapshot
// first when the experiment has none.
func (svc *service) latestOrInitial(ctx context.Context, experimentID string) (fl.GlobalModel, error) {
	gm, err := svc.models.Latest(ctx, experimentID)
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		return gm, err
	}

	initial, err := initialModel(experimentID, now())
	if err != nil {
		return fl.GlobalModel{}, err
	}
	switch err := svc.models.Create(ctx, initial); {
	case errors.Is(err, pkgerrors.ErrEntityExists):
		return svc.models.Latest(ctx, experimentID)
	case err != nil:
		return fl.GlobalModel{}, err
	}
	svc.logger.WarnContext(ctx, "stored missing round-0 model", slog.String("experiment_id", experimentID))

	return initial, nil
}
