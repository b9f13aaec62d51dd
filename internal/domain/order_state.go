package domain

import "errors"

type OrderState string

// remember to add new states to the validOrderStates map
const (
	OrderStateWaiting   OrderState = "waiting"
	OrderStateConfirmed OrderState = "confirmed"
	OrderStateRejected  OrderState = "rejected"
	OrderStateExpired   OrderState = "expired"
	OrderStateCancelled OrderState = "cancelled"
)

var validOrderStates = map[OrderState]struct{}{
	OrderStateWaiting:   {},
	OrderStateConfirmed: {},
	OrderStateRejected:  {},
	OrderStateExpired:   {},
	OrderStateCancelled: {},
}

// validStateChanges defines the order lifecycle: a waiting order can be
// resolved any way, a confirmed order can only be cancelled, and the
// terminal states accept nothing.
var validStateChanges = map[OrderState][]OrderState{
	OrderStateWaiting:   {OrderStateConfirmed, OrderStateRejected, OrderStateExpired, OrderStateCancelled},
	OrderStateConfirmed: {OrderStateCancelled},
}

func ToOrderState(s string) (OrderState, error) {
	state := OrderState(s)
	if _, ok := validOrderStates[state]; ok {
		return state, nil
	}

	return "", errors.New("invalid order state")
}

func (s OrderState) CanTransitionTo(target OrderState) bool {
	for _, allowed := range validStateChanges[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ValidateTransition returns a StateTransitionError when the change is
// illegal. A same-state change is valid here, the caller decides whether
// it is a no-op or a re-fire of side effects.
func ValidateTransition(orderNumber string, from, to OrderState) error {
	if from == to {
		return nil
	}
	if !from.CanTransitionTo(to) {
		return StateTransitionError{OrderNumber: orderNumber, From: from, To: to}
	}
	return nil
}
