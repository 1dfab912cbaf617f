package storage

import (
	"fmt"
	"io"

	"github.com/absmach/siteguard/pkg/storage/badger"
	"github.com/absmach/siteguard/pkg/storage/postgres"
	"github.com/absmach/siteguard/pkg/storage/sqlite"
)

type Config struct {
	Type string `env:"SITEGUARD_STORAGE_TYPE" envDefault:"memory"`

	PostgresHost    string `env:"SITEGUARD_POSTGRES_HOST"    envDefault:"localhost"`
	PostgresPort    string `env:"SITEGUARD_POSTGRES_PORT"    envDefault:"5432"`
	PostgresUser    string `env:"SITEGUARD_POSTGRES_USER"    envDefault:"siteguard"`
	PostgresPass    string `env:"SITEGUARD_POSTGRES_PASS"    envDefault:"siteguard"`
	PostgresDB      string `env:"SITEGUARD_POSTGRES_DB"      envDefault:"siteguard"`
	PostgresSSLMode string `env:"SITEGUARD_POSTGRES_SSLMODE" envDefault:"disable"`

	SQLitePath string `env:"SITEGUARD_SQLITE_PATH" envDefault:"./siteguard.db"`

	BadgerPath string `env:"SITEGUARD_BADGER_PATH" envDefault:"./data/badger"`
}

type Repositories struct {
	Experiments   ExperimentRepository
	Participants  ParticipantRepository
	Models        ModelRepository
	Contributions ContributionRepository
	LocalModels   LocalModelRepository
	// Closer closes the underlying persistent storage connection.
	// It is nil for the in-memory backend.
	Closer io.Closer
}

func NewRepositories(cfg Config) (*Repositories, error) {
	switch cfg.Type {
	case "postgres":
		return newPostgresRepositories(cfg)
	case "sqlite":
		return newSQLiteRepositories(cfg)
	case "badger":
		return newBadgerRepositories(cfg)
	case "memory":
		return NewMemoryRepositories(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

func newPostgresRepositories(cfg Config) (*Repositories, error) {
	db, err := postgres.NewDatabase(
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresUser,
		cfg.PostgresPass,
		cfg.PostgresDB,
		cfg.PostgresSSLMode,
	)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Experiments:   postgres.NewExperimentRepository(db),
		Participants:  postgres.NewParticipantRepository(db),
		Models:        postgres.NewModelRepository(db),
		Contributions: postgres.NewContributionRepository(db),
		LocalModels:   postgres.NewLocalModelRepository(db),
		Closer:        db,
	}, nil
}

func newSQLiteRepositories(cfg Config) (*Repositories, error) {
	db, err := sqlite.NewDatabase(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Experiments:   sqlite.NewExperimentRepository(db),
		Participants:  sqlite.NewParticipantRepository(db),
		Models:        sqlite.NewModelRepository(db),
		Contributions: sqlite.NewContributionRepository(db),
		LocalModels:   sqlite.NewLocalModelRepository(db),
		Closer:        db,
	}, nil
}

func newBadgerRepositories(cfg Config) (*Repositories, error) {
	db, err := badger.NewDatabase(cfg.BadgerPath)
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Experiments:   badger.NewExperimentRepository(db),
		Participants:  badger.NewParticipantRepository(db),
		Models:        badger.NewModelRepository(db),
		Contributions: badger.NewContributionRepository(db),
		LocalModels:   badger.NewLocalModelRepository(db),
		Closer:        db,
	}, nil
}
