package order

import "fmt"

// orderState implements the state pattern for order lifecycle transitions.
// Each state answers which status a requested target leads to.
type orderState interface {
	Status() Status
	on(target Status) (Status, error)
}

func stateOf(s Status) orderState {
	switch s {
	case StatusCompleted:
		return completedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) on(target Status) (Status, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	return target, nil
}

type completedState struct{}

func (completedState) Status() Status { return StatusCompleted }

func (completedState) on(target Status) (Status, error) {
	return terminal(StatusCompleted, target)
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) on(target Status) (Status, error) {
	return terminal(StatusCancelled, target)
}

// terminal accepts only a repeat of the current status.
func terminal(current, target Status) (Status, error) {
	if !target.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if target == current {
		return current, nil
	}
	return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}

// CanTransition reports whether an order in from may be asked to move to to.
func CanTransition(from, to Status) bool {
	_, err := stateOf(from).on(to)
	return err == nil
}
