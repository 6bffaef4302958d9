package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
	"github.com/cognicore/resintel/pkg/resintel/store"
	"github.com/cognicore/resintel/pkg/resintel/store/storetest"
)

// startPostgres runs a throwaway postgres:15 and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:15",
			Env: map[string]string{
				"POSTGRES_USER":     "resintel",
				"POSTGRES_PASSWORD": "resintel",
				"POSTGRES_DB":       "resintel",
			},
			ExposedPorts: []string{"5432/tcp"},
			// postgres logs readiness once for the init server and once for the real one
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("host=%s port=%s user=resintel password=resintel dbname=resintel sslmode=disable", host, port.Port())
}

func TestPostgresContract(t *testing.T) {
	dsn := startPostgres(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		st, err := Open(context.Background(), Config{DSN: dsn, MaxOpenConns: 4})
		require.NoError(t, err)
		require.NoError(t, st.db.Exec("TRUNCATE resintel_refinements, resintel_runs").Error)
		return st
	})
}

func TestOpenNeedsDSN(t *testing.T) {
	_, err := Open(context.Background(), Config{DSNEnv: "RESINTEL_TEST_UNSET_DSN"})
	assert.True(t, errors.Is(err, internalerr.ErrInvalidConfig))
}

func TestResolveDSN(t *testing.T) {
	t.Setenv("RESINTEL_TEST_DSN", "host=db")
	assert.Equal(t, "host=db", Config{DSNEnv: "RESINTEL_TEST_DSN"}.ResolveDSN())
	assert.Equal(t, "host=x", Config{DSN: "host=x", DSNEnv: "RESINTEL_TEST_DSN"}.ResolveDSN())
	assert.Empty(t, Config{}.ResolveDSN())
}
