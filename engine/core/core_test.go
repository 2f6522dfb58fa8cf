package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second := "first", "second"

	require.True(t, bus.Register(EVENT_CODE_RESIZED, &first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "first")
		return data.Data.U32[0] == 42
	}))
	require.True(t, bus.Register(EVENT_CODE_RESIZED, &second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "second")
		return false
	}))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, &first, nil), "duplicate listener")

	ctx := EventContext{}
	ctx.Data.U32[0] = 42
	assert.True(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first"}, calls)

	require.True(t, bus.Unregister(EVENT_CODE_RESIZED, &first))
	calls = nil
	assert.False(t, bus.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"second"}, calls)
}

func TestInputTracksPreviousState(t *testing.T) {
	bus := NewEventBus()
	pressed := 0
	bus.Register(EVENT_CODE_KEY_PRESSED, nil, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		pressed++
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	assert.Equal(t, 1, pressed, "repeated state is not an event")
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.WasKeyDown(KEY_W))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_W))

	in.ProcessMouseMove(10, 5)
	dx, dy := in.MouseDelta()
	assert.Equal(t, float32(10), dx)
	assert.Equal(t, float32(5), dy)
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	assert.InDelta(t, 16.0, m.FrameTime(), 1e-9)
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.016)
	}
	assert.InDelta(t, 16.0, m.FrameTime(), 1e-9, "average does not accumulate across windows")
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	_, err := newLogger(&buf, LogConfig{Level: "chatty"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	l, err := newLogger(&buf, LogConfig{Level: "warn"})
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, ShortID(a), 8)
}

func TestClockTicks(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	c := &Clock{now: func() time.Time { return now }}

	assert.Zero(t, c.Tick(), "stopped clock")
	c.Start()
	now = now.Add(250 * time.Millisecond)
	assert.InDelta(t, 0.25, c.Tick(), 1e-9)
	now = now.Add(500 * time.Millisecond)
	assert.InDelta(t, 0.5, c.Tick(), 1e-9)
	assert.InDelta(t, 0.75, c.Elapsed(), 1e-9)

	c.Stop()
	assert.False(t, c.Running())
	assert.Zero(t, c.Elapsed())
}
