package service

import (
	apperrors "slotline/pkg/errors"
	"slotline/pkg/model"
)

// transitions is the booking lifecycle. Terminal states have no
// outgoing edges; anything not listed is rejected.
var transitions = map[string][]string{
	model.StatusHeld:      {model.StatusPending, model.StatusCanceled},
	model.StatusPending:   {model.StatusConfirmed, model.StatusCanceled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCanceled, model.StatusNoShow},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an INVALID_STATE_TRANSITION error naming both
// states when the edge is not part of the lifecycle.
func CheckTransition(from, to string) error {
	if !CanTransition(from, to) {
		return apperrors.InvalidTransition(from, to)
	}
	return nil
}
