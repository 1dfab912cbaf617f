package mocks

import (
	"context"

	"github.com/absmach/siteguard/coordinator"
	"github.com/absmach/siteguard/pkg/fl"
	"github.com/stretchr/testify/mock"
)

var _ coordinator.Service = (*Service)(nil)

// Service is a testify mock of coordinator.Service.
type Service struct {
	mock.Mock
}

func (m *Service) CreateExperiment(ctx context.Context, e fl.Experiment) (fl.Experiment, error) {
	args := m.Called(ctx, e)

	return args.Get(0).(fl.Experiment), args.Error(1)
}

func (m *Service) GetExperiment(ctx context.Context, id string) (fl.Experiment, error) {
	args := m.Called(ctx, id)

	return args.Get(0).(fl.Experiment), args.Error(1)
}

func (m *Service) ListExperiments(ctx context.Context, offset, limit uint64) (fl.ExperimentPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(fl.ExperimentPage), args.Error(1)
}

func (m *Service) JoinExperiment(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	args := m.Called(ctx, experimentID, principalID)

	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *Service) GetParticipant(ctx context.Context, experimentID, principalID string) (fl.Participant, error) {
	args := m.Called(ctx, experimentID, principalID)

	return args.Get(0).(fl.Participant), args.Error(1)
}

func (m *Service) ListParticipants(ctx context.Context, experimentID string) ([]fl.Participant, error) {
	args := m.Called(ctx, experimentID)

	return args.Get(0).([]fl.Participant), args.Error(1)
}

func (m *Service) StartExperiment(ctx context.Context, experimentID string) (coordinator.StartResult, error) {
	args := m.Called(ctx, experimentID)

	return args.Get(0).(coordinator.StartResult), args.Error(1)
}

func (m *Service) TrainAndSubmit(ctx context.Context, req coordinator.TrainRequest) (coordinator.TrainResult, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(coordinator.TrainResult), args.Error(1)
}

func (m *Service) UploadContribution(ctx context.Context, experimentID, principalID string, payload fl.Payload, datasetSize int64) (fl.Contribution, error) {
	args := m.Called(ctx, experimentID, principalID, payload, datasetSize)

	return args.Get(0).(fl.Contribution), args.Error(1)
}

func (m *Service) ListContributions(ctx context.Context, experimentID string, round *uint64, offset, limit uint64) (fl.ContributionPage, error) {
	args := m.Called(ctx, experimentID, round, offset, limit)

	return args.Get(0).(fl.ContributionPage), args.Error(1)
}

func (m *Service) Aggregate(ctx context.Context, experimentID string, round *uint64) (coordinator.AggregationResult, error) {
	args := m.Called(ctx, experimentID, round)

	return args.Get(0).(coordinator.AggregationResult), args.Error(1)
}

func (m *Service) AggregateIfReady(ctx context.Context, experimentID string) (coordinator.AggregationResult, bool, error) {
	args := m.Called(ctx, experimentID)

	return args.Get(0).(coordinator.AggregationResult), args.Bool(1), args.Error(2)
}

func (m *Service) GetGlobalModel(ctx context.Context, experimentID string, round *uint64) (fl.GlobalModel, error) {
	args := m.Called(ctx, experimentID, round)

	return args.Get(0).(fl.GlobalModel), args.Error(1)
}

func (m *Service) Predict(ctx context.Context, experimentID string, inputs [][]float64) (coordinator.Prediction, error) {
	args := m.Called(ctx, experimentID, inputs)

	return args.Get(0).(coordinator.Prediction), args.Error(1)
}
