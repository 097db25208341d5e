package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/cardforge/cardforge/internal/gateways/database"
	"github.com/cardforge/cardforge/internal/gateways/database/models"
)

// TestDatabase is a migrated Postgres container private to one test.
type TestDatabase struct {
	Container *postgres.PostgresContainer
	DB        *database.DB
	URL       string
}

// SetupTestDatabase starts a container and runs migrations. Tests using it
// are skipped under -short.
func SetupTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	labels := map[string]string{
		"test":      "cardforge-repository",
		"test-name": t.Name(),
		"timestamp": time.Now().Format("20060102-150405"),
		"cleanup":   "auto",
	}

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("cardforge_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithLabels(labels),
	)
	require.NoError(t, err)

	td := &TestDatabase{Container: container}
	t.Cleanup(func() { td.cleanup(t) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.MigrateUp(connStr))

	db, err := database.NewFromURL(ctx, connStr)
	require.NoError(t, err)

	td.DB = db
	td.URL = connStr
	return td
}

// Seed inserts reference rows the exchange only reads or mutates.
func (td *TestDatabase) Seed(t *testing.T, accounts []models.Account, defs []models.CardDefinition, cards []models.CardInstance) {
	t.Helper()
	require.NoError(t, td.DB.SeedReferenceData(context.Background(), accounts, defs, cards))
}

func (td *TestDatabase) cleanup(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Logf("Panic during container cleanup (recovered): %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.Container != nil {
		if err := td.Container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate test container: %v", err)
		}
	}
}
