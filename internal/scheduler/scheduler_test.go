package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Dan9191/institute-service/internal/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	days []time.Time
	err  error
}

func (f *fakeSweeper) Sweep(_ context.Context, today time.Time) (*service.SweepReport, error) {
	f.days = append(f.days, today)
	return &service.SweepReport{Day: today.Format("2006-01-02")}, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRunOnce_UsesLocalDay(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	sweeper := &fakeSweeper{}
	s, err := New(sweeper, "0 1 * * *", loc, quietLogger())
	require.NoError(t, err)
	// 20:00 UTC is already the next day in India
	s.now = func() time.Time { return time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC) }

	s.RunOnce()

	require.Len(t, sweeper.days, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, loc), sweeper.days[0])
}

func TestRunOnce_ErrorsAreLogged(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("installment 4: connection reset")}
	s, err := New(sweeper, "@daily", time.UTC, quietLogger())
	require.NoError(t, err)

	assert.NotPanics(t, s.RunOnce)
	assert.Len(t, sweeper.days, 1)
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(&fakeSweeper{}, "every tuesday", time.UTC, quietLogger())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakeSweeper{}, "@daily", nil, quietLogger())
	require.NoError(t, err)

	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
