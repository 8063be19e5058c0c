package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popeskul/gathering-dispatch/internal/repository"
)

func TestRepositoryImpl_Accessors(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)

	assert.NotNil(t, repo.MessageLog())
	assert.NotNil(t, repo.Template())
	assert.NotNil(t, repo.Person())
	assert.NotNil(t, repo.Event())
	assert.Equal(t, repo.MessageLog(), repo.MessageLog())

	count, err := repo.MessageLog().Count(context.Background(), repository.LogFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepositoryImpl_Ping_Success(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := repository.NewRepository(db)

	for i := 0; i < 3; i++ {
		assert.NoError(t, repo.Ping(context.Background()))
	}
}

func TestRepositoryImpl_Ping_Failure(t *testing.T) {
	tests := []struct {
		name          string
		setupRepo     func(t *testing.T) repository.Repository
		expectedError string
		timeout       time.Duration
	}{
		{
			name: "Ping with closed database connection",
			setupRepo: func(t *testing.T) repository.Repository {
				db, cleanup := setupTestDB(t)
				repo := repository.NewRepository(db)
				cleanup()
				return repo
			},
			expectedError: "database is closed",
			timeout:       3 * time.Second,
		},
		{
			name: "Ping with invalid connection string",
			setupRepo: func(t *testing.T) repository.Repository {
				db, err := sqlx.Open("postgres", "host=127.0.0.1 port=9999 user=test dbname=test sslmode=disable connect_timeout=1")
				require.NoError(t, err)
				return repository.NewRepository(db)
			},
			expectedError: "connection refused",
			timeout:       5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.setupRepo(t)

			done := make(chan error, 1)
			go func() {
				done <- repo.Ping(context.Background())
			}()

			select {
			case err := <-done:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			case <-time.After(tt.timeout):
				t.Fatal("Ping timeout exceeded")
			}
		})
	}
}
