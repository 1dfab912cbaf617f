//go:build integration

package postgres_test

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/storage/postgres"
	"github.com/absmach/siteguard/pkg/storage/testutil"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositories(t *testing.T) {
	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "could not connect to docker")

	container, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16.2-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "could not start container")
	t.Cleanup(func() {
		if err := pool.Purge(container); err != nil {
			t.Logf("could not purge container: %s", err)
		}
	})

	port := container.GetPort("5432/tcp")

	pool.MaxWait = 120 * time.Second
	require.NoError(t, pool.Retry(func() error {
		url := fmt.Sprintf("host=localhost port=%s user=test dbname=test password=test sslmode=disable", port)
		db, err := sql.Open("pgx", url)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Ping()
	}))

	db, err := postgres.NewDatabase("localhost", port, "test", "test", "test", "disable")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	testutil.RunRepositoryTests(t, &storage.Repositories{
		Experiments:   postgres.NewExperimentRepository(db),
		Participants:  postgres.NewParticipantRepository(db),
		Models:        postgres.NewModelRepository(db),
		Contributions: postgres.NewContributionRepository(db),
		LocalModels:   postgres.NewLocalModelRepository(db),
		Closer:        db,
	})
}
