package postgres

import (
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection = errors.New("database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrDBScan       = errors.New("database scan error")
	ErrMigration    = errors.New("database migration error")
	ErrCreate       = errors.New("create error")
	ErrUpdate       = errors.New("update error")
)

type Database struct {
	*sqlx.DB
}

func NewDatabase(host, port, user, pass, name, sslMode string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s", host, port, user, pass, name, sslMode)
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

// NewFromDB wraps an existing connection without running migrations.
func NewFromDB(db *sqlx.DB) *Database {
	return &Database{DB: db}
}

func Migrations() *migrate.MemoryMigrationSource {
	return &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_fl_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS experiments (
						id                    VARCHAR(36) PRIMARY KEY,
						name                  VARCHAR(255) NOT NULL,
						params                JSONB,
						participant_threshold BIGINT NOT NULL DEFAULT 3,
						current_round         BIGINT NOT NULL DEFAULT 0,
						status                VARCHAR(16) NOT NULL,
						version               BIGINT NOT NULL DEFAULT 1,
						created_at            TIMESTAMPTZ NOT NULL,
						updated_at            TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_experiments_created_at ON experiments(created_at, id)`,
					`CREATE TABLE IF NOT EXISTS participants (
						id            VARCHAR(36) PRIMARY KEY,
						experiment_id VARCHAR(36) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						principal_id  VARCHAR(255) NOT NULL,
						joined_at     TIMESTAMPTZ NOT NULL,
						UNIQUE (experiment_id, principal_id)
					)`,
					`CREATE TABLE IF NOT EXISTS global_models (
						experiment_id VARCHAR(36) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						round         BIGINT NOT NULL,
						architecture  JSONB,
						weights       JSONB NOT NULL,
						created_at    TIMESTAMPTZ NOT NULL,
						PRIMARY KEY (experiment_id, round)
					)`,
					`CREATE TABLE IF NOT EXISTS contributions (
						id             VARCHAR(36) PRIMARY KEY,
						experiment_id  VARCHAR(36) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						participant_id VARCHAR(36) NOT NULL,
						principal_id   VARCHAR(255) NOT NULL,
						round          BIGINT NOT NULL,
						weights        JSONB NOT NULL,
						dataset_size   BIGINT NOT NULL,
						created_at     TIMESTAMPTZ NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contributions_round ON contributions(experiment_id, round, created_at)`,
					`CREATE TABLE IF NOT EXISTS local_models (
						experiment_id  VARCHAR(36) NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						participant_id VARCHAR(36) NOT NULL,
						round          BIGINT NOT NULL,
						weights        JSONB NOT NULL,
						updated_at     TIMESTAMPTZ NOT NULL,
						PRIMARY KEY (experiment_id, participant_id, round)
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS local_models`,
					`DROP INDEX IF EXISTS idx_contributions_round`,
					`DROP TABLE IF EXISTS contributions`,
					`DROP TABLE IF EXISTS global_models`,
					`DROP TABLE IF EXISTS participants`,
					`DROP INDEX IF EXISTS idx_experiments_created_at`,
					`DROP TABLE IF EXISTS experiments`,
				},
			},
		},
	}
}

func (db *Database) Migrate() error {
	if _, err := migrate.Exec(db.DB.DB, "postgres", Migrations(), migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}
