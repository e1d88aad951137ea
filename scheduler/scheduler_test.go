package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_price_updater/market"
)

func TestScheduleTaiwanJobs(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)

	err := s.ScheduleTaiwanJobs(func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, s.JobCount())
}

func TestScheduleUSJobsSummerWindow(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)

	window := market.SessionWindow{
		Start: market.TimeOfDay{Hour: 21, Minute: 30},
		End:   market.TimeOfDay{Hour: 4, Minute: 0},
	}
	err := s.ScheduleUSJobs(func() {}, window)
	require.NoError(t, err)
	assert.Equal(t, 2, s.JobCount(), "evening and morning ranges")
}

func TestScheduleUSJobsWinterWindow(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)

	window := market.SessionWindow{
		Start: market.TimeOfDay{Hour: 22, Minute: 30},
		End:   market.TimeOfDay{Hour: 5, Minute: 0},
	}
	err := s.ScheduleUSJobs(func() {}, window)
	require.NoError(t, err)
	assert.Equal(t, 2, s.JobCount())
}

func TestScheduleUSJobsOutOfBandWindow(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)

	// A daytime window matches neither the evening nor the morning band;
	// nothing is registered but that is not an error.
	window := market.SessionWindow{
		Start: market.TimeOfDay{Hour: 10, Minute: 0},
		End:   market.TimeOfDay{Hour: 16, Minute: 0},
	}
	err := s.ScheduleUSJobs(func() {}, window)
	require.NoError(t, err)
	assert.Equal(t, 0, s.JobCount())
}

func TestScheduleUSJobsInvalidWindow(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)

	window := market.SessionWindow{
		Start: market.TimeOfDay{Hour: 25, Minute: 0},
		End:   market.TimeOfDay{Hour: 4, Minute: 0},
	}
	err := s.ScheduleUSJobs(func() {}, window)
	require.Error(t, err)
	assert.Equal(t, 0, s.JobCount())
}

func TestSchedulerStartAndShutdownIdempotent(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)
	require.NoError(t, s.ScheduleTaiwanJobs(func() {}))

	s.Start()
	s.Start()
	s.Shutdown()
	s.Shutdown()
}

func TestSchedulerShutdownBeforeStart(t *testing.T) {
	s := NewRefreshScheduler(time.UTC)
	assert.NotPanics(t, func() { s.Shutdown() })
}
