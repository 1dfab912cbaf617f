package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/siteguard/pkg/fl"
)

func (svc *service) GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (fl.GlobalModel, error) {
	if _, err := svc.experiments.Get(ctx, experimentID); err != nil {
		return fl.GlobalModel{}, err
	}
	if round != nil {
		return svc.models.Get(ctx, experimentID, *round)
	}

	return svc.models.Latest(ctx, experimentID)
}

// Predict scores every row with the latest snapshot. A single malformed row
// fails the whole batch.
func (svc *service) Predict(ctx context.Context, experimentID string, inputs [][]float64) (Prediction, error) {
	gm, err := svc.GetGlobalModel(ctx, experimentID, nil)
	if err != nil {
		return Prediction{}, err
	}
	if len(inputs) == 0 {
		return Prediction{}, invalidArgument(ErrEmptyBatch)
	}

	model, err := fl.ModelFromSnapshot(gm)
	if err != nil {
		return Prediction{}, invalidState(errors.Join(ErrUnbuildableModel, err))
	}

	predictions := make([]float64, 0, len(inputs))
	for i, row := range inputs {
		out, err := model.Predict(row)
		if err != nil {
			return Prediction{}, invalidArgument(fmt.Errorf("row %d: %w", i, err))
		}
		predictions = append(predictions, out[0])
	}

	return Prediction{
		ExperimentID: experimentID,
		ModelRound:   gm.Round,
		Predictions:  predictions,
	}, nil
}
