package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-withdrawer/internal/config"
	"github/chapool/go-withdrawer/internal/metrics"
	"github/chapool/go-withdrawer/internal/test"
	"github/chapool/go-withdrawer/internal/wallet/withdraw"
)

func TestRecorder(t *testing.T) {
	m, err := metrics.New(config.Server{}, nil)
	require.NoError(t, err)

	m.QueueDepth(3)
	m.Decision(withdraw.DecisionSubmitted)
	m.Decision(withdraw.DecisionSubmitted)
	m.Decision(withdraw.DecisionPending)
	m.Decision(withdraw.DecisionConfirmed)
	m.TickSkipped()
	m.TickDuration(250 * time.Millisecond)

	expected := `
# HELP withdrawer_queue_depth Pending withdrawal requests observed at the start of the last tick
# TYPE withdrawer_queue_depth gauge
withdrawer_queue_depth 3
# HELP withdrawer_engine_transfers_total Transfers by lifecycle event
# TYPE withdrawer_engine_transfers_total counter
withdrawer_engine_transfers_total{event="confirmed"} 1
withdrawer_engine_transfers_total{event="submitted"} 2
# HELP withdrawer_engine_ticks_skipped_total Ticks skipped because the previous tick was still running
# TYPE withdrawer_engine_ticks_skipped_total counter
withdrawer_engine_ticks_skipped_total 1
`
	err = testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"withdrawer_queue_depth",
		"withdrawer_engine_transfers_total",
		"withdrawer_engine_ticks_skipped_total",
	)
	require.NoError(t, err)

	// every decision is pre-created
	n, err := testutil.GatherAndCount(m.Registry, "withdrawer_engine_decisions_total")
	require.NoError(t, err)
	assert.Equal(t, len(withdraw.Decisions), n)

	n, err = testutil.GatherAndCount(m.Registry, "withdrawer_engine_tick_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDatabaseStats(t *testing.T) {
	db := test.NewTestSQLite(t)

	m, err := metrics.New(config.Server{Database: config.Database{Driver: config.DriverSQLite}}, db)
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry, "go_sql_stats_connections_open")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegistriesAreIndependent(t *testing.T) {
	_, err := metrics.New(config.Server{}, nil)
	require.NoError(t, err)

	_, err = metrics.New(config.Server{}, nil)
	require.NoError(t, err)
}
