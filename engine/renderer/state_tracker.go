package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/hawk/engine/core"
	"github.com/spaghettifunk/hawk/engine/renderer/device"
	"github.com/spaghettifunk/hawk/engine/renderer/metadata"
)

var (
	ErrStateMismatch     = errors.New("resource state mismatch")
	ErrUntrackedResource = errors.New("resource is not tracked")
)

type StateMismatchError struct {
	Resource string
	Expected metadata.ResourceState
	Actual   metadata.ResourceState
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("%s: expected state %s but it is %s", e.Resource, e.Expected, e.Actual)
}

func (e *StateMismatchError) Is(target error) bool { return target == ErrStateMismatch }

type trackedResource struct {
	name  string
	state metadata.ResourceState
}

/**
 * @brief Last-known state of every resource the renderer transitions.
 * Transition is the only way a tracked state changes, and it refuses any
 * barrier whose before state disagrees with the table.
 */
type StateTracker struct {
	states map[core.ResourceID]*trackedResource
}

func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[core.ResourceID]*trackedResource)}
}

func (t *StateTracker) Register(res device.Resource, state metadata.ResourceState) {
	t.states[res.ID()] = &trackedResource{name: res.Desc().Name, state: state}
}

func (t *StateTracker) Unregister(res device.Resource) {
	delete(t.states, res.ID())
}

func (t *StateTracker) State(res device.Resource) (metadata.ResourceState, bool) {
	tr, ok := t.states[res.ID()]
	if !ok {
		return 0, false
	}
	return tr.state, true
}

func (t *StateTracker) lookup(res device.Resource) (*trackedResource, error) {
	tr, ok := t.states[res.ID()]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUntrackedResource, res.Desc().Name)
		core.LogError("%s", err)
		return nil, err
	}
	return tr, nil
}

// Require checks that a pass finds res in state without changing it.
func (t *StateTracker) Require(res device.Resource, state metadata.ResourceState) error {
	tr, err := t.lookup(res)
	if err != nil {
		return err
	}
	if tr.state != state {
		err := &StateMismatchError{Resource: tr.name, Expected: state, Actual: tr.state}
		core.LogError("%s", err)
		return err
	}
	return nil
}

// Transition records a barrier on list moving res from -> to. Nothing is
// recorded when from does not match the tracked state.
func (t *StateTracker) Transition(list device.CommandList, res device.Resource, from, to metadata.ResourceState) error {
	tr, err := t.lookup(res)
	if err != nil {
		return err
	}
	if tr.state != from {
		err := &StateMismatchError{Resource: tr.name, Expected: from, Actual: tr.state}
		core.LogError("%s", err)
		return err
	}
	if from == to {
		err := fmt.Errorf("%s: transition from %s to itself", tr.name, from)
		core.LogError("%s", err)
		return err
	}
	list.ResourceBarrier(device.Barrier{Resource: res, Before: from, After: to})
	tr.state = to
	return nil
}

type transition struct {
	res      device.Resource
	from, to metadata.ResourceState
}

// apply performs transitions in order and stops at the first failure.
func (t *StateTracker) apply(list device.CommandList, transitions ...transition) error {
	for _, tr := range transitions {
		if err := t.Transition(list, tr.res, tr.from, tr.to); err != nil {
			return err
		}
	}
	return nil
}
