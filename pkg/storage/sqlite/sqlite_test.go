package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/storage/sqlite"
	"github.com/absmach/siteguard/pkg/storage/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *sqlite.Database

func TestMain(m *testing.M) {
	dbPath := filepath.Join(os.TempDir(), "test_"+uuid.NewString()+".db")

	var err error
	testDB, err = sqlite.NewDatabase(dbPath)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	testDB.Close()
	os.Remove(dbPath)
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")

	os.Exit(code)
}

func TestSQLiteRepositories(t *testing.T) {
	testutil.RunRepositoryTests(t, &storage.Repositories{
		Experiments:   sqlite.NewExperimentRepository(testDB),
		Participants:  sqlite.NewParticipantRepository(testDB),
		Models:        sqlite.NewModelRepository(testDB),
		Contributions: sqlite.NewContributionRepository(testDB),
		LocalModels:   sqlite.NewLocalModelRepository(testDB),
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.Migrate())

	var tables int
	err := testDB.Get(&tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN
		('experiments', 'participants', 'global_models', 'contributions', 'local_models')`)
	require.NoError(t, err)
	assert.Equal(t, 5, tables)
}
