package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/headless"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

func newTestTexture(t *testing.T, dev device.Device, state metadata.ResourceState) device.Resource {
	t.Helper()
	res, err := dev.CreateCommittedResource(
		metadata.NewTexture2DDesc("Target", 4, 4, metadata.FormatR8G8B8A8Unorm, metadata.ResourceFlagAllowRenderTarget),
		metadata.HeapTypeDefault, state, nil)
	require.NoError(t, err)
	t.Cleanup(res.Release)
	return res
}

func barriers(trace []headless.Command) []device.Barrier {
	var out []device.Barrier
	for _, c := range trace {
		if c.Kind == headless.CmdBarrier {
			out = append(out, c.Barrier)
		}
	}
	return out
}

// submit runs record on a fresh graphics list and waits for it.
func submit(t *testing.T, ctx *CommandContext, record func(list device.CommandList)) {
	t.Helper()
	require.NoError(t, ctx.Reset())
	record(ctx.List())
	require.NoError(t, ctx.Close())
	require.NoError(t, ctx.Execute())
	require.NoError(t, withTimeout(t, ctx.WaitForGPU))
}

func TestStateTrackerTransitionMatchesGPU(t *testing.T) {
	dev := newTestDevice(t)
	ctx := newTestContext(t, dev, device.QueueGraphics)
	tracker := NewStateTracker()
	res := newTestTexture(t, dev, metadata.ResourceStatePixelShaderResource)
	tracker.Register(res, metadata.ResourceStatePixelShaderResource)

	submit(t, ctx, func(list device.CommandList) {
		require.NoError(t, tracker.Transition(list, res, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget))
		require.NoError(t, tracker.Transition(list, res, metadata.ResourceStateRenderTarget, metadata.ResourceStateGenericRead))
	})

	state, ok := tracker.State(res)
	require.True(t, ok)
	assert.Equal(t, metadata.ResourceStateGenericRead, state)
	assert.Equal(t, state, dev.StateOf(res))
	assert.Len(t, barriers(dev.Trace()), 2)
	assertClean(t, dev)
}

func TestStateTrackerRejectsStaleBeforeState(t *testing.T) {
	dev := newTestDevice(t)
	ctx := newTestContext(t, dev, device.QueueGraphics)
	tracker := NewStateTracker()
	res := newTestTexture(t, dev, metadata.ResourceStateRenderTarget)
	tracker.Register(res, metadata.ResourceStateRenderTarget)

	submit(t, ctx, func(list device.CommandList) {
		err := tracker.Transition(list, res, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget)
		require.ErrorIs(t, err, ErrStateMismatch)

		var mismatch *StateMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, "Target", mismatch.Resource)
		assert.Equal(t, metadata.ResourceStatePixelShaderResource, mismatch.Expected)
		assert.Equal(t, metadata.ResourceStateRenderTarget, mismatch.Actual)
	})

	assert.Empty(t, barriers(dev.Trace()), "a refused transition must not record a barrier")
	state, _ := tracker.State(res)
	assert.Equal(t, metadata.ResourceStateRenderTarget, state)
	assertClean(t, dev)
}

func TestStateTrackerErrors(t *testing.T) {
	dev := newTestDevice(t)
	ctx := newTestContext(t, dev, device.QueueGraphics)
	tracker := NewStateTracker()
	res := newTestTexture(t, dev, metadata.ResourceStateDepthRead)

	submit(t, ctx, func(list device.CommandList) {
		err := tracker.Transition(list, res, metadata.ResourceStateDepthRead, metadata.ResourceStateDepthWrite)
		assert.ErrorIs(t, err, ErrUntrackedResource)
		assert.ErrorIs(t, tracker.Require(res, metadata.ResourceStateDepthRead), ErrUntrackedResource)

		tracker.Register(res, metadata.ResourceStateDepthRead)
		assert.Error(t, tracker.Transition(list, res, metadata.ResourceStateDepthRead, metadata.ResourceStateDepthRead))
		assert.NoError(t, tracker.Require(res, metadata.ResourceStateDepthRead))
		assert.ErrorIs(t, tracker.Require(res, metadata.ResourceStateDepthWrite), ErrStateMismatch)

		tracker.Unregister(res)
		_, ok := tracker.State(res)
		assert.False(t, ok)
	})
	assert.Empty(t, barriers(dev.Trace()))
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	dev := newTestDevice(t)
	ctx := newTestContext(t, dev, device.QueueGraphics)
	tracker := NewStateTracker()
	a := newTestTexture(t, dev, metadata.ResourceStatePixelShaderResource)
	b := newTestTexture(t, dev, metadata.ResourceStatePixelShaderResource)
	c := newTestTexture(t, dev, metadata.ResourceStatePixelShaderResource)
	for _, res := range []device.Resource{a, b, c} {
		tracker.Register(res, metadata.ResourceStatePixelShaderResource)
	}

	submit(t, ctx, func(list device.CommandList) {
		err := tracker.apply(list,
			transition{a, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget},
			transition{b, metadata.ResourceStateRenderTarget, metadata.ResourceStatePixelShaderResource},
			transition{c, metadata.ResourceStatePixelShaderResource, metadata.ResourceStateRenderTarget},
		)
		assert.ErrorIs(t, err, ErrStateMismatch)
	})

	recorded := barriers(dev.Trace())
	require.Len(t, recorded, 1)
	assert.Equal(t, a.ID(), recorded[0].Resource.ID())
	state, _ := tracker.State(c)
	assert.Equal(t, metadata.ResourceStatePixelShaderResource, state)
	assertClean(t, dev)
}
