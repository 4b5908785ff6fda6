//go:build unit || e2e

package dbtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func CreateTestProvider(t *testing.T, db DBLike, name string) uuid.UUID {
	t.Helper()

	providerID := uuid.New()
	ctx := context.Background()

	_, err := db.Exec(ctx,
		"INSERT INTO providers (id, display_name, active) VALUES ($1, $2, true)",
		providerID, name)
	require.NoError(t, err)

	return providerID
}

func CreateTestService(t *testing.T, db DBLike, providerID uuid.UUID, name string, priceCents int64, durationMin int32) uuid.UUID {
	t.Helper()

	serviceID := uuid.New()
	ctx := context.Background()

	_, err := db.Exec(ctx,
		"INSERT INTO provider_services (id, provider_id, name, price_cents, duration_min) VALUES ($1, $2, $3, $4, $5)",
		serviceID, providerID, name, priceCents, durationMin)
	require.NoError(t, err)

	return serviceID
}

// OpenAllWeek gives the provider a 24/7 calendar so booking tests do
// not depend on the wall-clock weekday.
func OpenAllWeek(t *testing.T, db DBLike, providerID uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	for weekday := 0; weekday < 7; weekday++ {
		_, err := db.Exec(ctx,
			"INSERT INTO availability_windows (provider_id, weekday, start_minute, end_minute) VALUES ($1, $2, 0, 1440)",
			providerID, weekday)
		require.NoError(t, err)
	}
}

func AddBlackout(t *testing.T, db DBLike, providerID uuid.UUID, from, to time.Time, reason string) {
	t.Helper()

	ctx := context.Background()
	_, err := db.Exec(ctx,
		"INSERT INTO blackouts (provider_id, span, reason) VALUES ($1, tstzrange($2, $3, '[)'), $4)",
		providerID, from, to, reason)
	require.NoError(t, err)
}

var (
	buildTruncateOnce sync.Once
	truncateSQL       atomic.Value // string
)

// truncates all tables so each subtest starts from a clean calendar
func ResetDB(pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	buildTruncateOnce.Do(func() {
		rows, err := pool.Query(ctx, `
		  SELECT 'public.' || quote_ident(tablename)
		  FROM pg_tables
		  WHERE schemaname = 'public'
		    AND tablename NOT IN ('schema_migrations')`)
		if err != nil {
			truncateSQL.Store("")
			return
		}
		defer rows.Close()
		var tables []string
		for rows.Next() {
			var t string
			if err := rows.Scan(&t); err != nil {
				truncateSQL.Store("")
				return
			}
			tables = append(tables, t)
		}
		if rows.Err() != nil {
			truncateSQL.Store("")
			return
		}
		if len(tables) == 0 {
			truncateSQL.Store("SELECT 1")
			return
		}
		truncateSQL.Store("TRUNCATE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;")
	})
	sqlAny := truncateSQL.Load()
	if sqlAny == nil || sqlAny.(string) == "" {
		return fmt.Errorf("failed to build TRUNCATE SQL")
	}
	if _, err := pool.Exec(ctx, sqlAny.(string)); err != nil {
		return err
	}

	return nil
}
