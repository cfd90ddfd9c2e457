package renderer

import (
	"fmt"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
)

type CommandContextState uint8

const (
	CommandContextStateIdle CommandContextState = iota
	CommandContextStateRecording
	CommandContextStateClosed
	CommandContextStateSubmitted
)

func (s CommandContextState) String() string {
	return [...]string{"IDLE", "RECORDING", "CLOSED", "SUBMITTED"}[s]
}

/**
 * @brief Owns one queue, one command list and one fence.
 *
 * Idle -> Recording -> Closed -> Submitted -> (fence reached) -> Idle.
 * Misuse of the state machine is a programmer error and panics through
 * core.Assert; failures of the underlying API are returned as errors.
 */
type CommandContext struct {
	name  string
	queue device.CommandQueue
	list  device.CommandList
	fence device.Fence

	// fenceValue is the next value WaitForGPU or Signal will use.
	fenceValue  uint64
	submittedAt uint64
	state       CommandContextState
	ownsQueue   bool
}

func NewCommandContext(dev device.Device, kind device.QueueKind, name string) (*CommandContext, error) {
	queue, err := dev.CreateCommandQueue(kind)
	if err != nil {
		err = fmt.Errorf("%s: failed to create command queue: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}
	c, err := NewCommandContextOnQueue(dev, queue, name)
	if err != nil {
		queue.Release()
		return nil, err
	}
	c.ownsQueue = true
	return c, nil
}

// NewCommandContextOnQueue records into its own list and fence but submits
// to a queue owned by someone else. Work on a shared queue executes in
// submission order.
func NewCommandContextOnQueue(dev device.Device, queue device.CommandQueue, name string) (*CommandContext, error) {
	list, err := dev.CreateCommandList(queue.Kind())
	if err != nil {
		err = fmt.Errorf("%s: failed to create command list: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}
	// Lists are created recording; close so the context starts idle.
	if err := list.Close(); err != nil {
		list.Release()
		return nil, err
	}
	fence, err := dev.CreateFence(0)
	if err != nil {
		list.Release()
		err = fmt.Errorf("%s: failed to create fence: %w", name, err)
		core.LogError("%s", err)
		return nil, err
	}
	return &CommandContext{
		name:       name,
		queue:      queue,
		list:       list,
		fence:      fence,
		fenceValue: 1,
		state:      CommandContextStateIdle,
	}, nil
}

// Reset reopens the command list. A submitted list may only be reset once
// the fence shows its work has completed.
func (c *CommandContext) Reset() error {
	core.Assert(c.state == CommandContextStateIdle || c.state == CommandContextStateSubmitted,
		"%s: Reset in state %s", c.name, c.state)
	if c.state == CommandContextStateSubmitted {
		core.Assert(c.fence.CompletedValue() >= c.submittedAt,
			"%s: Reset while the previous submission is still executing", c.name)
	}
	if err := c.list.Reset(nil); err != nil {
		err = fmt.Errorf("%s: failed to reset command list: %w", c.name, err)
		core.LogError("%s", err)
		return err
	}
	c.state = CommandContextStateRecording
	return nil
}

func (c *CommandContext) Close() error {
	core.Assert(c.state == CommandContextStateRecording, "%s: Close in state %s", c.name, c.state)
	if err := c.list.Close(); err != nil {
		err = fmt.Errorf("%s: failed to close command list: %w", c.name, err)
		core.LogError("%s", err)
		return err
	}
	c.state = CommandContextStateClosed
	return nil
}

// Execute enqueues the closed list and returns without waiting.
func (c *CommandContext) Execute() error {
	core.Assert(c.state == CommandContextStateClosed, "%s: Execute in state %s", c.name, c.state)
	if err := c.queue.ExecuteCommandLists(c.list); err != nil {
		err = fmt.Errorf("%s: failed to execute command list: %w", c.name, err)
		core.LogError("%s", err)
		return err
	}
	c.submittedAt = c.fenceValue
	c.state = CommandContextStateSubmitted
	return nil
}

// Signal asks the queue to set the fence once current work completes and
// returns the value to wait for. It does not block.
func (c *CommandContext) Signal() (uint64, error) {
	value := c.fenceValue
	if err := c.queue.Signal(c.fence, value); err != nil {
		err = fmt.Errorf("%s: failed to signal fence: %w", c.name, err)
		core.LogError("%s", err)
		return 0, err
	}
	c.fenceValue++
	return value, nil
}

// WaitFor stalls this context's queue until other's fence reaches value.
func (c *CommandContext) WaitFor(other *CommandContext, value uint64) error {
	if err := c.queue.Wait(other.fence, value); err != nil {
		err = fmt.Errorf("%s: failed to wait on %s: %w", c.name, other.name, err)
		core.LogError("%s", err)
		return err
	}
	return nil
}

/**
 * @brief Signals the fence with the next value and blocks the calling thread,
 * without timeout, until the GPU reaches it.
 */
func (c *CommandContext) WaitForGPU() error {
	value, err := c.Signal()
	if err != nil {
		return err
	}
	if c.fence.CompletedValue() < value {
		if err := c.fence.Wait(value); err != nil {
			err = fmt.Errorf("%s: failed to wait for fence value %d: %w", c.name, value, err)
			core.LogError("%s", err)
			return err
		}
	}
	if c.state == CommandContextStateSubmitted {
		c.state = CommandContextStateIdle
	}
	return nil
}

// List returns the command list to record into.
func (c *CommandContext) List() device.CommandList {
	core.Assert(c.state == CommandContextStateRecording, "%s: recording in state %s", c.name, c.state)
	return c.list
}

func (c *CommandContext) Name() string               { return c.name }
func (c *CommandContext) Queue() device.CommandQueue { return c.queue }
func (c *CommandContext) State() CommandContextState { return c.state }
func (c *CommandContext) FenceValue() uint64         { return c.fenceValue }
func (c *CommandContext) CompletedValue() uint64     { return c.fence.CompletedValue() }

// Release drains the queue before destroying the context.
func (c *CommandContext) Release() {
	if err := c.WaitForGPU(); err != nil {
		core.LogWarn("%s: drain before release failed: %s", c.name, err)
	}
	c.list.Release()
	c.fence.Release()
	if c.ownsQueue {
		c.queue.Release()
	}
}
