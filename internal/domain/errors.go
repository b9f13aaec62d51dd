package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrCustomerGroupNotFound = errors.New("customer group not found")

	// ErrInvalidRange is returned when a reservation range has end <= begin.
	ErrInvalidRange = errors.New("begin must be before end")

	// ErrPricePeriodRequired is a catalog configuration error, caught at
	// product save time before any order can reference the bad config.
	ErrPricePeriodRequired  = errors.New(`price period is required when price type is "per_period"`)
	ErrInvalidTaxPercentage = errors.New("tax percentage is not one of the allowed values")
	ErrInvalidPrice         = errors.New("price must be positive")
	ErrMaxQuantityExceeded  = errors.New("quantity exceeds product max quantity")

	ErrTimeSlotOverlap = errors.New("overlapping time slot prices")

	// ErrUnknownPriceType indicates a programming error, the price type
	// enum is closed and validated at catalog-edit time.
	ErrUnknownPriceType = errors.New("unknown price type")
)

// StateTransitionError signals an illegal order state change.
type StateTransitionError struct {
	OrderNumber string
	From        OrderState
	To          OrderState
}

func (e StateTransitionError) Error() string {
	return fmt.Sprintf("cannot set order %s state to %q, it is in an invalid state %q",
		e.OrderNumber, e.To, e.From)
}
