package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
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

func NewDatabase(path string) (*Database, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	// A single connection serializes writers so version checks and round
	// inserts never interleave.
	db.SetMaxOpenConns(1)

	database := &Database{DB: db}

	if err := database.Migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return database, nil
}

func (db *Database) Migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_fl_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS experiments (
						id                    TEXT PRIMARY KEY,
						name                  TEXT NOT NULL,
						params                TEXT,
						participant_threshold INTEGER NOT NULL DEFAULT 3,
						current_round         INTEGER NOT NULL DEFAULT 0,
						status                TEXT NOT NULL,
						version               INTEGER NOT NULL DEFAULT 1,
						created_at            INTEGER NOT NULL,
						updated_at            INTEGER NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_experiments_created_at ON experiments(created_at, id)`,
					`CREATE TABLE IF NOT EXISTS participants (
						id            TEXT PRIMARY KEY,
						experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						principal_id  TEXT NOT NULL,
						joined_at     INTEGER NOT NULL,
						UNIQUE (experiment_id, principal_id)
					)`,
					`CREATE TABLE IF NOT EXISTS global_models (
						experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						round         INTEGER NOT NULL,
						architecture  TEXT,
						weights       TEXT NOT NULL,
						created_at    INTEGER NOT NULL,
						PRIMARY KEY (experiment_id, round)
					)`,
					`CREATE TABLE IF NOT EXISTS contributions (
						id             TEXT PRIMARY KEY,
						experiment_id  TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						participant_id TEXT NOT NULL,
						principal_id   TEXT NOT NULL,
						round          INTEGER NOT NULL,
						weights        TEXT NOT NULL,
						dataset_size   INTEGER NOT NULL,
						created_at     INTEGER NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_contributions_round ON contributions(experiment_id, round, created_at)`,
					`CREATE TABLE IF NOT EXISTS local_models (
						experiment_id  TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
						participant_id TEXT NOT NULL,
						round          INTEGER NOT NULL,
						weights        TEXT NOT NULL,
						updated_at     INTEGER NOT NULL,
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

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("%w: %w", ErrMigration, err)
	}

	return nil
}

func (db *Database) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func jsonUnmarshal(data string, v any) error {
	if data == "" || data == "null" {
		return nil
	}

	return json.Unmarshal([]byte(data), v)
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error

	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
