// Package orders owns pending-order persistence and the status state machine.
package orders

import (
	"errors"

	"github.com/learnhub/payrecon/pkg/enums"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid order status transition")

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusVerified,
		enums.OrderStatusCancelled,
		enums.OrderStatusExpired,
	},
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders move; terminal statuses are final.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
