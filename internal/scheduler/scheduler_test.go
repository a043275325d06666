package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/engine"
	"github.com/Veraticus/spice-quest/internal/metrics"
)

type fakeSweeper struct {
	err   error
	stats engine.SweepStats
	runs  atomic.Int32
}

func (f *fakeSweeper) SweepAll(context.Context) (engine.SweepStats, error) {
	f.runs.Add(1)
	return f.stats, f.err
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	_, err := New(&fakeSweeper{}, nil, "every now and then")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestRunOnce_RecordsResult(t *testing.T) {
	collector := metrics.NewCollector("test")

	ok := &fakeSweeper{stats: engine.SweepStats{Users: 2, Completed: 1}}
	s, err := New(ok, collector, "")
	require.NoError(t, err)
	stats, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Users)

	partial := &fakeSweeper{stats: engine.SweepStats{Users: 3, Errors: 1}}
	s, err = New(partial, collector, "")
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.NoError(t, err)

	broken := &fakeSweeper{err: errors.New("database gone")}
	s, err = New(broken, collector, "")
	require.NoError(t, err)
	_, err = s.RunOnce(context.Background())
	require.Error(t, err)

	expected := `
# HELP test_scheduler_sweeps_total Periodic mission sweeps by result
# TYPE test_scheduler_sweeps_total counter
test_scheduler_sweeps_total{result="error"} 1
test_scheduler_sweeps_total{result="ok"} 1
test_scheduler_sweeps_total{result="partial"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_scheduler_sweeps_total"))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, err := New(sweeper, nil, "@every 1s")
	require.NoError(t, err)
	assert.True(t, s.Next().IsZero())

	s.Start()

	assert.Eventually(t, func() bool {
		return sweeper.runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
