package api

import (
	"context"
	"errors"

	"github.com/absmach/siteguard/coordinator"
	pkgerrors "github.com/absmach/siteguard/pkg/errors"
	"github.com/absmach/siteguard/pkg/fl"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func createExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(experimentReq)
		if !ok {
			return experimentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return experimentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		e, err := svc.CreateExperiment(ctx, fl.Experiment{
			Name:                 req.Name,
			Params:               req.Params,
			ParticipantThreshold: req.ParticipantThreshold,
		})
		if err != nil {
			return experimentResponse{}, err
		}

		return experimentResponse{
			Experiment: e,
			created:    true,
		}, nil
	}
}

func getExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return experimentResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return experimentResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		e, err := svc.GetExperiment(ctx, req.id)
		if err != nil {
			return experimentResponse{}, err
		}

		return experimentResponse{
			Experiment: e,
		}, nil
	}
}

func listExperimentsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listExperimentsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listExperimentsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListExperiments(ctx, req.offset, req.limit)
		if err != nil {
			return listExperimentsResponse{}, err
		}

		return listExperimentsResponse{
			ExperimentPage: page,
		}, nil
	}
}

func joinExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(principalReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.JoinExperiment(ctx, req.id, req.principalID)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func getParticipantEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(principalReq)
		if !ok {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return participantResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.GetParticipant(ctx, req.id, req.principalID)
		if err != nil {
			return participantResponse{}, err
		}

		return participantResponse{
			Participant: p,
		}, nil
	}
}

func listParticipantsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return listParticipantsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listParticipantsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		ps, err := svc.ListParticipants(ctx, req.id)
		if err != nil {
			return listParticipantsResponse{}, err
		}

		return listParticipantsResponse{
			Total:        uint64(len(ps)),
			Participants: ps,
		}, nil
	}
}

func startExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return startResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return startResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.StartExperiment(ctx, req.id)
		if err != nil {
			return startResponse{}, err
		}

		return startResponse{
			StartResult: res,
		}, nil
	}
}

func trainEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(trainReq)
		if !ok {
			return trainResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return trainResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.TrainAndSubmit(ctx, coordinator.TrainRequest{
			ExperimentID:  req.id,
			ParticipantID: req.ParticipantID,
			ProjectID:     req.ProjectID,
			Epochs:        req.Epochs,
			LearningRate:  req.LearningRate,
		})
		if err != nil {
			return trainResponse{}, err
		}

		return trainResponse{
			TrainResult: res,
		}, nil
	}
}

func uploadContributionEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(uploadReq)
		if !ok {
			return contributionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return contributionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		c, err := svc.UploadContribution(ctx, req.id, req.principalID, req.Weights, req.DatasetSize)
		if err != nil {
			return contributionResponse{}, err
		}

		return contributionResponse{
			Contribution: c,
			created:      true,
		}, nil
	}
}

func listContributionsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listContributionsReq)
		if !ok {
			return listContributionsResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listContributionsResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		page, err := svc.ListContributions(ctx, req.id, req.round, req.offset, req.limit)
		if err != nil {
			return listContributionsResponse{}, err
		}

		return listContributionsResponse{
			ContributionPage: page,
		}, nil
	}
}

func aggregateEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return aggregationResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return aggregationResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Aggregate(ctx, req.id, req.round)
		if err != nil {
			return aggregationResponse{}, err
		}

		return aggregationResponse{
			AggregationResult: res,
		}, nil
	}
}

func getGlobalModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(roundReq)
		if !ok {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return modelResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		m, err := svc.GetGlobalModel(ctx, req.id, req.round)
		if err != nil {
			return modelResponse{}, err
		}

		return modelResponse{
			GlobalModel: m,
		}, nil
	}
}

func predictEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(predictReq)
		if !ok {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		res, err := svc.Predict(ctx, req.id, req.Inputs)
		if err != nil {
			return predictionResponse{}, err
		}

		return predictionResponse{
			Prediction: res,
		}, nil
	}
}
