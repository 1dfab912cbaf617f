package coordinator

import (
	"context"
	"errors"
	"maps"
	"math/rand/v2"
	"time"

	"github.com/0x6flab/namegenerator"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/google/uuid"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (svc *service) CreateExperiment(ctx context.Context, e fl.Experiment) (fl.Experiment, error) {
	ts := now()
	e.ID = uuid.NewString()
	if e.Name == "" {
		e.Name = namegenerator.NewGenerator().Generate()
	}
	if e.Params == nil {
		e.Params = maps.Clone(defaultParams)
	}
	if e.ParticipantThreshold == 0 {
		e.ParticipantThreshold = svc.cfg.DefaultThreshold
	}
	e.CurrentRound = 0
	e.Status = fl.StatusCreated
	e.Version = 1
	e.CreatedAt = ts
	e.UpdatedAt = ts

	initial, err := initialModel(e.ID, ts)
	if err != nil {
		return fl.Experiment{}, err
	}

	if err := svc.experiments.Create(ctx, e, initial); err != nil {
		return fl.Experiment{}, err
	}

	return e, nil
}

// initialModel is a randomly initialized round-0 snapshot of the default
// architecture.
func initialModel(experimentID string, ts time.Time) (fl.GlobalModel, error) {
	arch := fl.DefaultArchitecture()
	model, err := fl.NewLinearModel(arch, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		return fl.GlobalModel{}, err
	}

	return fl.GlobalModel{
		ExperimentID: experimentID,
		Round:        0,
		Architecture: arch,
		Weights:      model.Weights(),
		CreatedAt:    ts,
	}, nil
}

func (svc *service) GetExperiment(ctx context.Context, id string) (fl.Experiment, error) {
	return svc.experiments.Get(ctx, id)
}

func (svc *service) ListExperiments(ctx context.Context, offset, limit uint64) (fl.ExperimentPage, error) {
	experiments, total, err := svc.experiments.List(ctx, offset, limit)
	if err != nil {
		return fl.ExperimentPage{}, err
	}

	return fl.ExperimentPage{
		Offset:      offset,
		Limit:       limit,
		Total:       total,
		Experiments: experiments,
	}, nil
}

func (svc *service) JoinExperiment(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	if principalID == "" {
		return fl.Participant{}, wrap(pkgerrors.ErrUnauthenticated, ErrMissingPrincipal)
	}
	if _, err := svc.experiments.Get(ctx, experimentID); err != nil {
		return fl.Participant{}, err
	}

	p := fl.Participant{
		ID:           uuid.NewString(),
		ExperimentID: experimentID,
		PrincipalID:  principalID,
		JoinedAt:     now(),
	}
	stored, _, err := svc.participants.Create(ctx, p)
	if err != nil {
		return fl.Participant{}, err
	}

	return stored, nil
}

func (svc *service) GetParticipant(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	if principalID == "" {
		return fl.Participant{}, wrap(pkgerrors.ErrUnauthenticated, ErrMissingPrincipal)
	}
	if _, err := svc.experiments.Get(ctx, experimentID); err != nil {
		return fl.Participant{}, err
	}

	return svc.participants.GetByPrincipal(ctx, experimentID, principalID)
}

func (svc *service) ListParticipants(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	if _, err := svc.experiments.Get(ctx, experimentID); err != nil {
		return nil, err
	}

	return svc.participants.ListByExperiment(ctx, experimentID)
}

func (svc *service) StartExperiment(ctx context.Context, experimentID string) (StartResult, error) {
	e, err := svc.experiments.Get(ctx, experimentID)
	if err != nil {
		return StartResult{}, err
	}
	if e.Status != fl.StatusCreated {
		return StartResult{}, invalidState(ErrAlreadyStarted)
	}

	participants, err := svc.participants.ListByExperiment(ctx, experimentID)
	if err != nil {
		return StartResult{}, err
	}
	if len(participants) == 0 {
		return StartResult{}, invalidState(ErrNoParticipants)
	}

	initial, err := svc.models.Get(ctx, experimentID, 0)
	if err != nil {
		return StartResult{}, err
	}

	res := StartResult{
		ExperimentID: experimentID,
		Round:        0,
		Participants: make([]LocalModelRef, 0, len(participants)),
	}
	for _, p := range participants {
		if err := svc.provisionLocalModel(ctx, p, initial); err != nil {
			return StartResult{}, err
		}
		res.Participants = append(res.Participants, LocalModelRef{ParticipantID: p.ID, Round: initial.Round})
	}

	updated, err := svc.experiments.UpdateStatus(ctx, experimentID, e.Version, fl.StatusStarted)
	if err != nil {
		return StartResult{}, err
	}
	res.Status = updated.Status
	res.Round = updated.CurrentRound

	return res, nil
}

// provisionLocalModel copies the snapshot into the participant's working
// model unless one already exists.
func (svc *service) provisionLocalModel(ctx context.Context, p fl.Participant, gm fl.GlobalModel) error {
	_, err := svc.localModels.Get(ctx, p.ExperimentID, p.ID, gm.Round)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, pkgerrors.ErrNotFound):
		return err
	}

	return svc.localModels.Save(ctx, fl.LocalModel{
		ExperimentID:  p.ExperimentID,
		ParticipantID: p.ID,
		Round:         gm.Round,
		Weights:       gm.Weights.Clone(),
		UpdatedAt:     now(),
	})
}
