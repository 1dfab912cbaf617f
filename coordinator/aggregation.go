package coordinator

import (
	"context"
	"errors"
	"slices"

	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
)

func (svc *service) Aggregate(ctx context.Context, experimentID string, round *uint64) (AggregationResult, error) {
	res, _, err := svc.aggregate(ctx, experimentID, round, false)

	return res, err
}

func (svc *service) AggregateIfReady(ctx context.Context, experimentID string) (AggregationResult, bool, error) {
	return svc.aggregate(ctx, experimentID, nil, true)
}

// aggregate recomputes and commits the round until the version check
// succeeds, the round moves under it, or the attempts run out. When gated is
// set, an experiment that has not started or has fewer valid contributions
// than its threshold is left untouched.
func (svc *service) aggregate(ctx context.Context, experimentID string, round *uint64, gated bool) (AggregationResult, bool, error) {
	var startRound uint64
	for attempt := 1; ; attempt++ {
		e, err := svc.experiments.Get(ctx, experimentID)
		if err != nil {
			return AggregationResult{}, false, err
		}
		switch {
		case attempt == 1:
			startRound = e.CurrentRound
		case e.CurrentRound != startRound:
			return AggregationResult{}, false, wrap(pkgerrors.ErrConflict, ErrRoundAggregated)
		}
		if round != nil && *round != e.CurrentRound {
			return AggregationResult{}, false, invalidState(ErrRoundMismatch)
		}
		if gated && e.Status == fl.StatusCreated {
			return AggregationResult{}, false, nil
		}

		res, next, err := svc.combine(ctx, e)
		if err != nil {
			if gated && errors.Is(err, pkgerrors.ErrInsufficientData) {
				return AggregationResult{}, false, nil
			}

			return AggregationResult{}, false, err
		}
		if gated && uint64(len(res.Contributors)) < e.ParticipantThreshold {
			return AggregationResult{}, false, nil
		}

		updated, err := svc.experiments.AdvanceRound(ctx, e.ID, e.Version, next)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrConflict) && attempt < maxAggregateAttempts {
				continue
			}

			return AggregationResult{}, false, err
		}

		if err := svc.notifier.RoundAdvanced(ctx, updated, next, res); err != nil {
			svc.logger.Warn("failed to publish round notification",
				"experiment_id", updated.ID,
				"round", updated.CurrentRound,
				"error", err)
		}

		return res, true, nil
	}
}

// combine aggregates the experiment's current round without writing
// anything, returning the result and the snapshot that would commit it.
func (svc *service) combine(ctx context.Context, e fl.Experiment) (AggregationResult, fl.GlobalModel, error) {
	contributions, err := svc.contributions.ListByRound(ctx, e.ID, e.CurrentRound)
	if err != nil {
		return AggregationResult{}, fl.GlobalModel{}, err
	}

	reference, err := svc.models.Get(ctx, e.ID, e.CurrentRound)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		return AggregationResult{}, fl.GlobalModel{}, err
	}

	kept, superseded := applyDuplicatePolicy(svc.cfg.DuplicatePolicy, contributions)

	agg, err := svc.aggregator.Aggregate(kept, reference.Weights)
	if err != nil {
		if errors.Is(err, fl.ErrNoUpdates) {
			return AggregationResult{}, fl.GlobalModel{}, wrap(pkgerrors.ErrInsufficientData, err)
		}

		return AggregationResult{}, fl.GlobalModel{}, err
	}

	next := fl.GlobalModel{
		ExperimentID: e.ID,
		Round:        e.CurrentRound + 1,
		Architecture: carriedArchitecture(reference.Architecture, agg.Weights),
		Weights:      agg.Weights,
		CreatedAt:    now(),
	}

	res := AggregationResult{
		ExperimentID:      e.ID,
		Round:             next.Round,
		AggregatedWeights: agg.Weights,
		RejectedUploads:   agg.Rejected,
		SupersededUploads: superseded,
		Contributors:      make([]string, 0, len(agg.Accepted)),
		TotalSamples:      agg.TotalSamples,
	}
	if res.RejectedUploads == nil {
		res.RejectedUploads = []fl.Rejection{}
	}
	for _, c := range agg.Accepted {
		res.Contributors = append(res.Contributors, c.PrincipalID)
	}

	return res, next, nil
}

// carriedArchitecture keeps the previous architecture only while the new
// weights still fit it, so snapshots that drifted fall back to weight-based
// reconstruction.
func carriedArchitecture(prev fl.Architecture, w fl.Weights) fl.Architecture {
	if prev.IsZero() {
		return prev
	}
	if _, err := fl.LinearFromWeights(prev, w); err != nil {
		return fl.Architecture{}
	}

	return prev
}

// applyDuplicatePolicy returns the contributions to aggregate and the IDs of
// those dropped as superseded, both in creation order.
func applyDuplicatePolicy(policy DuplicatePolicy, contributions []fl.Contribution) ([]fl.Contribution, []string) {
	ordered := slices.Clone(contributions)
	fl.SortContributions(ordered)
	superseded := []string{}
	if policy == DuplicateAll {
		return ordered, superseded
	}

	latest := make(map[string]int, len(ordered))
	for i, c := range ordered {
		latest[c.ParticipantID] = i
	}

	kept := make([]fl.Contribution, 0, len(latest))
	for i, c := range ordered {
		if latest[c.ParticipantID] != i {
			superseded = append(superseded, c.ID)

			continue
		}
		kept = append(kept, c)
	}

	return kept, superseded
}
