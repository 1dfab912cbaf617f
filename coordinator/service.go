package coordinator

import (
	"fmt"
	"log/slog"

	"github.com/absmach/siteguard/pkg/fl"
	"github.com/absmach/siteguard/pkg/storage"
)

// maxAggregateAttempts bounds how often an aggregation is recomputed after
// losing a version race on an unchanged round.
const maxAggregateAttempts = 3

var defaultParams = map[string]any{
	"model":       "kenya-construction-linear",
	"aggregation": "fedavg",
}

type service struct {
	experiments   storage.ExperimentRepository
	participants  storage.ParticipantRepository
	models        storage.ModelRepository
	contributions storage.ContributionRepository
	localModels   storage.LocalModelRepository
	aggregator    fl.Aggregator
	trainer       fl.Trainer
	datasets      fl.DatasetProvider
	notifier      Notifier
	cfg           Config
	logger        *slog.Logger
}

func NewService(
	repos *storage.Repositories,
	aggregator fl.Aggregator,
	trainer fl.Trainer,
	datasets fl.DatasetProvider,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) Service {
	def := DefaultConfig()
	if cfg.DefaultThreshold == 0 {
		cfg.DefaultThreshold = def.DefaultThreshold
	}
	if cfg.TrainingTimeout <= 0 {
		cfg.TrainingTimeout = def.TrainingTimeout
	}
	if cfg.MaxEpochs <= 0 {
		cfg.MaxEpochs = def.MaxEpochs
	}
	if cfg.DuplicatePolicy == "" {
		cfg.DuplicatePolicy = def.DuplicatePolicy
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		experiments:   repos.Experiments,
		participants:  repos.Participants,
		models:        repos.Models,
		contributions: repos.Contributions,
		localModels:   repos.LocalModels,
		aggregator:    aggregator,
		trainer:       trainer,
		datasets:      datasets,
		notifier:      notifier,
		cfg:           cfg,
		logger:        logger,
	}
}

func (c Config) Validate() error {
	switch c.DuplicatePolicy {
	case DuplicateLatest, DuplicateAll, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDuplicates, c.DuplicatePolicy)
	}
}
