package renderer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
)

func newTestContext(t *testing.T, dev device.Device, kind device.QueueKind) *CommandContext {
	t.Helper()
	ctx, err := NewCommandContext(dev, kind, kind.String())
	require.NoError(t, err)
	t.Cleanup(ctx.Release)
	return ctx
}

func TestCommandContextLifecycle(t *testing.T) {
	dev := newTestDevice(t)
	ctx := newTestContext(t, dev, device.QueueGraphics)

	assert.Equal(t, CommandContextStateIdle, ctx.State())
	assert.Equal(t, uint64(1), ctx.FenceValue())

	require.NoError(t, ctx.Reset())
	assert.Equal(t, CommandContextStateRecording, ctx.State())
	assert.NotNil(t, ctx.List())
	require.NoError(t, ctx.Close())
	assert.Equal(t, CommandContextStateClosed, ctx.State())
	require.NoError(t, ctx.Execute())
	assert.Equal(t, CommandContextStateSubmitted, ctx.State())
	require.NoError(t, withTimeout(t, ctx.WaitForGPU))
	assert.Equal(t, CommandContextStateIdle, ctx.State())
	assert.Equal(t, uint64(1), ctx.CompletedValue())
	assertClean(t, dev)
}

func TestCommandContextMisusePanics(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx *CommandContext)
		bad   func(ctx *CommandContext)
	}{
		{"close while idle", func(*CommandContext) {}, func(ctx *CommandContext) { _ = ctx.Close() }},
		{"execute while idle", func(*CommandContext) {}, func(ctx *CommandContext) { _ = ctx.Execute() }},
		{"record while idle", func(*CommandContext) {}, func(ctx *CommandContext) { ctx.List() }},
		{"reset while recording", func(ctx *CommandContext) { _ = ctx.Reset() }, func(ctx *CommandContext) { _ = ctx.Reset() }},
		{"execute while recording", func(ctx *CommandContext) { _ = ctx.Reset() }, func(ctx *CommandContext) { _ = ctx.Execute() }},
		{"close twice", func(ctx *CommandContext) {
			_ = ctx.Reset()
			_ = ctx.Close()
		}, func(ctx *CommandContext) { _ = ctx.Close() }},
		{"reset before completion", func(ctx *CommandContext) {
			_ = ctx.Reset()
			_ = ctx.Close()
			_ = ctx.Execute()
		}, func(ctx *CommandContext) { _ = ctx.Reset() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			ctx, err := NewCommandContext(dev, device.QueueGraphics, "misuse")
			require.NoError(t, err)
			tt.setup(ctx)
			requirePrecondition(t, func() { tt.bad(ctx) })
		})
	}
}

func TestWaitForGPUTwiceAdvancesTheFence(t *testing.T) {
	dev := headless.NewDevice(headless.Options{ExecutionDelay: 10 * time.Millisecond})
	defer dev.Release()
	ctx := newTestContext(t, dev, device.QueueGraphics)

	require.NoError(t, ctx.Reset())
	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Execute())

	require.NoError(t, withTimeout(t, ctx.WaitForGPU))
	first := ctx.CompletedValue()
	require.NoError(t, withTimeout(t, ctx.WaitForGPU))
	second := ctx.CompletedValue()

	assert.Greater(t, second, first)
	assert.Equal(t, second+1, ctx.FenceValue())
}

func TestWaitForOrdersQueues(t *testing.T) {
	dev := headless.NewDevice(headless.Options{ExecutionDelay: 50 * time.Millisecond})
	defer dev.Release()
	graphics := newTestContext(t, dev, device.QueueGraphics)
	compute := newTestContext(t, dev, device.QueueCompute)

	require.NoError(t, graphics.Reset())
	require.NoError(t, graphics.Close())
	require.NoError(t, graphics.Execute())
	value, err := graphics.Signal()
	require.NoError(t, err)

	require.NoError(t, compute.WaitFor(graphics, value))
	require.NoError(t, withTimeout(t, compute.WaitForGPU))
	assert.GreaterOrEqual(t, graphics.CompletedValue(), value,
		"compute finished before the graphics work it waited on")
}

func TestSharedQueueContext(t *testing.T) {
	dev := newTestDevice(t)
	owner := newTestContext(t, dev, device.QueueGraphics)
	shared, err := NewCommandContextOnQueue(dev, owner.Queue(), "shared")
	require.NoError(t, err)

	require.NoError(t, shared.Reset())
	require.NoError(t, shared.Close())
	require.NoError(t, shared.Execute())
	require.NoError(t, withTimeout(t, shared.WaitForGPU))

	// Releasing the borrower leaves the owner's queue running.
	shared.Release()
	require.NoError(t, owner.Reset())
	require.NoError(t, owner.Close())
	require.NoError(t, owner.Execute())
	require.NoError(t, withTimeout(t, owner.WaitForGPU))
	assertClean(t, dev)
}
