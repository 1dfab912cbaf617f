package storage_test

import (
	"errors"
	"testing"

	"github.com/absmach/siteguard/pkg/storage"
	"github.com/absmach/siteguard/pkg/storage/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositories(t *testing.T) {
	testutil.RunRepositoryTests(t, storage.NewMemoryRepositories())
}

func TestNewRepositories(t *testing.T) {
	repos, err := storage.NewRepositories(storage.Config{Type: "memory"})
	require.NoError(t, err)
	assert.Nil(t, repos.Closer)

	_, err = storage.NewRepositories(storage.Config{Type: "cassandra"})
	assert.True(t, errors.Is(err, storage.ErrUnsupportedType))
}
