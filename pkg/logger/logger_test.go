package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeveledDemotesInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	l := New(base, "cron")

	l.Info("wake", "now", "09:00")
	assert.Empty(t, buf.String())

	l.Error(errors.New("panic in job"), "recovered", "entry", 1)
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "component=cron")
	assert.Contains(t, out, "entry=1")
	assert.Contains(t, out, `error="panic in job"`)
}

func TestLeveledShowsInfoAtDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	New(base, "cron").Info("schedule", "entry", 1)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "msg=schedule")
}

func TestNilBaseDiscards(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		New(nil, "cron").Error(errors.New("x"), "dropped")
	})
}
