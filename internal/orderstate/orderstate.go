// Package orderstate holds the internal order lifecycle: which status may follow
// which, the field updates a transition implies, and the actions offered to
// staff for each status. It owns no persistence; callers write the returned
// Change in a single update.
package orderstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/ovenly/api/internal/database"
)

type Status = database.InternalOrderStatus

var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError names the rejected pair.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// AllowedTargets returns the statuses reachable from s in one step.
func AllowedTargets(s Status) []Status {
	switch s {
	case database.InternalOrderStatusDraft:
		return []Status{database.InternalOrderStatusRequested, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusRequested:
		return []Status{database.InternalOrderStatusApproved, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusApproved:
		return []Status{database.InternalOrderStatusScheduled, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusScheduled:
		return []Status{database.InternalOrderStatusInProduction, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusInProduction:
		return []Status{database.InternalOrderStatusQualityCheck, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusQualityCheck:
		return []Status{database.InternalOrderStatusReady, database.InternalOrderStatusInProduction, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusReady:
		return []Status{database.InternalOrderStatusCompleted, database.InternalOrderStatusDelivered, database.InternalOrderStatusCancelled}
	case database.InternalOrderStatusCompleted:
		return []Status{database.InternalOrderStatusDelivered}
	case database.InternalOrderStatusDelivered, database.InternalOrderStatusCancelled:
		return nil
	}
	return nil
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTargets(from) {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s accepts no further transitions.
func IsTerminal(s Status) bool {
	return s == database.InternalOrderStatusDelivered || s == database.InternalOrderStatusCancelled
}

// Deletable reports whether an order in s may be physically deleted. Orders
// that reached the kitchen are kept for production history.
func Deletable(s Status) bool {
	switch s {
	case database.InternalOrderStatusDraft,
		database.InternalOrderStatusRequested,
		database.InternalOrderStatusApproved,
		database.InternalOrderStatusCancelled:
		return true
	}
	return false
}

// Change is the validated result of a transition.
type Change struct {
	From Status
	To   Status
	// CompletedAt is set when entering completed.
	CompletedAt *time.Time
	// RequiresSchedule is set for approved -> scheduled; the status write must
	// share a transaction with the production schedule insert.
	RequiresSchedule bool
}

// Transition validates moving from current to target at now.
func Transition(current, target Status, now time.Time) (Change, error) {
	if !target.Valid() || !CanTransition(current, target) {
		return Change{}, &InvalidTransitionError{From: current, To: target}
	}
	c := Change{From: current, To: target}
	switch target {
	case database.InternalOrderStatusCompleted:
		t := now
		c.CompletedAt = &t
	case database.InternalOrderStatusScheduled:
		c.RequiresSchedule = true
	}
	return c, nil
}
