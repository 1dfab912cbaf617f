package coordinator

import (
	"context"
	"errors"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/google/uuid"
)

func (svc *service) UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (fl.Contribution, error) {
	if principalID == "" {
		return fl.Contribution{}, wrap(pkgerrors.ErrUnauthenticated, ErrMissingPrincipal)
	}
	e, err := svc.experiments.Get(ctx, experimentID)
	if err != nil {
		return fl.Contribution{}, err
	}
	p, err := svc.participants.GetByPrincipal(ctx, experimentID, principalID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			return fl.Contribution{}, wrap(pkgerrors.ErrPermissionDenied, ErrNotJoined)
		}

		return fl.Contribution{}, err
	}

	c, err := svc.submit(ctx, e, p, payload.Weights(), datasetSize)
	if err != nil {
		return fl.Contribution{}, err
	}
	svc.aggregateOnSubmit(ctx, e.ID)

	return c, nil
}

// submit stores a contribution against the experiment's current round.
func (svc *service) submit(ctx context.Context, e fl.Experiment, p fl.Participant, weights fl.Weights, datasetSize int64) (fl.Contribution, error) {
	c := fl.Contribution{
		ID:            uuid.NewString(),
		ExperimentID:  e.ID,
		ParticipantID: p.ID,
		PrincipalID:   p.PrincipalID,
		Round:         e.CurrentRound,
		Weights:       weights,
		DatasetSize:   datasetSize,
		CreatedAt:     now(),
	}
	if c.Weights == nil {
		c.Weights = fl.Weights{}
	}
	if err := svc.contributions.Create(ctx, c); err != nil {
		return fl.Contribution{}, err
	}

	return c, nil
}

// aggregateOnSubmit runs the threshold-gated aggregation when enabled. Its
// outcome never affects the submission that triggered it.
func (svc *service) aggregateOnSubmit(ctx context.Context, experimentID string) (AggregationResult, bool) {
	if !svc.cfg.AggregateOnSubmit {
		return AggregationResult{}, false
	}
	res, ok, err := svc.AggregateIfReady(ctx, experimentID)
	if err != nil {
		svc.logger.Warn("aggregation after submit failed", "experiment_id", experimentID, "error", err)

		return AggregationResult{}, false
	}

	return res, ok
}

func (svc *service) ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (fl.ContributionPage, error) {
	if _, err := svc.experiments.Get(ctx, experimentID); err != nil {
		return fl.ContributionPage{}, err
	}

	page := fl.ContributionPage{Offset: offset, Limit: limit}
	if round == nil {
		contributions, total, err := svc.contributions.List(ctx, experimentID, offset, limit)
		if err != nil {
			return fl.ContributionPage{}, err
		}
		page.Total = total
		page.Contributions = contributions

		return page, nil
	}

	contributions, err := svc.contributions.ListByRound(ctx, experimentID, *round)
	if err != nil {
		return fl.ContributionPage{}, err
	}
	page.Total = uint64(len(contributions))
	switch {
	case offset >= page.Total:
		page.Contributions = []fl.Contribution{}
	default:
		page.Contributions = contributions[offset:min(offset+limit, page.Total)]
	}

	return page, nil
}
