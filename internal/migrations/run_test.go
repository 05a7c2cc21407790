package migrations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRun_AppliesSchemaAndPeriodIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute)),
	)
	require.NoError(t, err, "failed to start container")
	defer func() {
		_ = container.Terminate(ctx)
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	require.NoError(t, Run(db, "../../migrations"))

	// Повторный запуск не меняет схему
	require.NoError(t, Run(db, "../../migrations"))

	for _, table := range []string{"users", "plans", "subscribers", "payments", "audit_log"} {
		var exists bool
		err := db.QueryRow(`SELECT EXISTS (
			SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s must exist", table)
	}

	// Уникальный индекс по расчетному периоду должен блокировать дубликаты
	var subID string
	err = db.QueryRow(`INSERT INTO subscribers (name, phone) VALUES ('test', '+70000000000') RETURNING id`).
		Scan(&subID)
	require.NoError(t, err)

	insert := `INSERT INTO payments (subscriber_id, plan_name, cost_minor, amount_minor, period_start, due_date)
			   VALUES ($1, 'test', 100, 100, $2, $3)`
	first := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)

	_, err = db.Exec(insert, subID, first, first.AddDate(0, 1, 0))
	require.NoError(t, err)

	_, err = db.Exec(insert, subID, second, second.AddDate(0, 1, 0))
	assert.Error(t, err, "second entry in the same month must violate the unique index")
}
