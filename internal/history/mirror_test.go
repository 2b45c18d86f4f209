package history

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/trendhealth/internal/contracts"
	"github.com/wonny/trendhealth/pkg/config"
	"github.com/wonny/trendhealth/pkg/database"
)

func TestPGMirror_Upsert(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" || testing.Short() {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.New(ctx, &config.Config{
		Database: config.DatabaseConfig{URL: url, MaxConns: 2, MinConns: 1},
	})
	require.NoError(t, err)
	defer db.Close()

	mirror := NewPGMirror(db.Pool)
	require.NoError(t, mirror.EnsureSchema(ctx))

	key := "test-" + uuid.New().String()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM health_history WHERE universe_key = $1`, key)
	})

	eligible := 8
	p := point("2024-03-08")
	p.EligibleCount = &eligible
	require.NoError(t, mirror.Upsert(ctx, key, []contracts.HealthHistoryPoint{point("2024-03-07"), p}))

	p.HeatScore = 61
	require.NoError(t, mirror.Upsert(ctx, key, []contracts.HealthHistoryPoint{p}))

	got, err := mirror.Points(ctx, key)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-07", got[0].Date)
	assert.Nil(t, got[0].EligibleCount)
	assert.Equal(t, 61.0, got[1].HeatScore)
	require.NotNil(t, got[1].EligibleCount)
	assert.Equal(t, 8, *got[1].EligibleCount)
}
