package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputFiresOnStateChangeOnly(t *testing.T) {
	bus := NewEventBus()
	var pressed, released int
	bus.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		ke := ctx.Data.(*KeyEvent)
		assert.Equal(t, KEY_W, ke.KeyCode)
		pressed++
		return false
	})
	bus.Register(EVENT_CODE_KEY_RELEASED, func(ctx EventContext) bool {
		released++
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	assert.Equal(t, 1, pressed)
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.WasKeyDown(KEY_W))

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_W))

	in.ProcessKey(KEY_W, false)
	assert.Equal(t, 1, released)
	assert.True(t, in.IsKeyUp(KEY_W))
}

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool { calls++; return true })
	bus.Register(EVENT_CODE_APPLICATION_QUIT, func(EventContext) bool { calls++; return true })

	assert.True(t, bus.Fire(EventContext{Type: EVENT_CODE_APPLICATION_QUIT}))
	assert.Equal(t, 1, calls)
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
}

func TestMouseDelta(t *testing.T) {
	in := NewInput(nil)
	in.ProcessMouseMove(100, 50)
	dx, dy := in.MouseDelta()
	assert.Zero(t, dx)
	assert.Zero(t, dy)

	in.Update()
	in.ProcessMouseMove(110, 45)
	dx, dy = in.MouseDelta()
	assert.Equal(t, 10.0, dx)
	assert.Equal(t, -5.0, dy)
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT+10; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(AVG_COUNT+10), m.FrameNumber)

	m.RecordDraws(3, 120)
	assert.Equal(t, uint32(3), m.DrawCount)
	assert.Equal(t, uint32(120), m.InstanceCount)
}
