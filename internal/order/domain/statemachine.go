package domain

import (
	"time"

	"github.com/dmehra2102/tenant-commerce/pkg/apperr"
)

type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

func Actions() []Action {
	return []Action{ActionConfirm, ActionShip, ActionComplete, ActionCancel}
}

// transitions is the complete set of legal moves. Cancellation is only
// possible before confirmation.
var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionShip: StatusShipped,
	},
	StatusShipped: {
		ActionComplete: StatusDelivered,
	},
}

// Transition returns the status reached by applying a to from.
func Transition(from Status, a Action) (Status, error) {
	if to, ok := transitions[from][a]; ok {
		return to, nil
	}
	return "", apperr.InvalidTransition("cannot %s an order in status %s", a, from)
}

// Apply moves the order through a.
func (o *Order) Apply(a Action, userID string, now time.Time) error {
	to, err := Transition(o.Status, a)
	if err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	o.UpdatedBy = userID
	return nil
}
