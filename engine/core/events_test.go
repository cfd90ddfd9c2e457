package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	bus := NewEventBus()
	var calls []string
	first, second := "first", "second"

	assert.True(t, bus.Register(EVENT_CODE_RESIZED, first, func(ctx EventContext, l interface{}) bool {
		calls = append(calls, l.(string))
		return true
	}))
	assert.True(t, bus.Register(EVENT_CODE_RESIZED, second, func(ctx EventContext, l interface{}) bool {
		calls = append(calls, l.(string))
		return false
	}))
	assert.False(t, bus.Register(EVENT_CODE_RESIZED, first, nil), "duplicate listener")

	assert.True(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED, Data: &ResizeEvent{Width: 10, Height: 20}}))
	assert.Equal(t, []string{"first"}, calls)

	assert.True(t, bus.Unregister(EVENT_CODE_RESIZED, first))
	assert.False(t, bus.Fire(EventContext{Type: EVENT_CODE_RESIZED}))
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestInputStateDeltaAndEvents(t *testing.T) {
	bus := NewEventBus()
	var pressed []KeyCode
	bus.Register(EVENT_CODE_KEY_PRESSED, nil, func(ctx EventContext, _ interface{}) bool {
		pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode)
		return false
	})

	in := NewInputState(bus)
	in.ProcessMouseMove(10, 10)
	in.Update()
	in.ProcessMouseMove(14, 7)
	dx, dy := in.MouseDelta()
	assert.Equal(t, 4.0, dx)
	assert.Equal(t, -3.0, dy)

	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	assert.True(t, in.IsKeyDown(KEY_W))
	assert.False(t, in.WasKeyDown(KEY_W))
	assert.Equal(t, []KeyCode{KEY_W}, pressed, "repeated state must not refire")

	in.Update()
	assert.True(t, in.WasKeyDown(KEY_W))
	dx, dy = in.MouseDelta()
	assert.Zero(t, dx)
	assert.Zero(t, dy)
}

func TestMetricsReportsFPSOncePerSecond(t *testing.T) {
	m := NewMetrics()
	reported := 0
	// 31.25ms frames: the 33rd frame crosses the first second.
	for i := 0; i < 64; i++ {
		if m.Update(0.03125) {
			reported++
		}
	}
	assert.Equal(t, 1, reported)
	assert.Equal(t, 33.0, m.FPS())
	assert.Equal(t, 31.25, m.FrameTime())
}
