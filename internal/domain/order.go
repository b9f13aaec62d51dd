package domain

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCash   PaymentMethod = "cash"
)

// Order is the commercial transaction of a single reservation. Orders are
// immutable by convention: every state change appends an OrderLogEntry
// instead of rewriting history, and CreatedAt is derived from the first
// entry rather than stored on the order itself.
type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	ReservationID uuid.UUID

	State         OrderState
	PaymentMethod PaymentMethod

	// CustomerGroupID is empty when the order was placed without a group.
	CustomerGroupID string

	IsRequestedOrder   bool
	ConfirmedByStaffAt *time.Time

	Currency currency.Unit

	Lines []OrderLine

	CreatedAt time.Time
}

type OrderLine struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID // product version row
	Quantity  int

	// CustomerGroupData is the frozen price snapshot taken at line
	// creation, nil for lines created without a group or override.
	CustomerGroupData *OrderCustomerGroupData
}

// OrderCustomerGroupData freezes the resolved customer-group price at
// order-line creation time. It is written once and never re-derived from
// the catalog, which is what keeps catalog edits non-retroactive.
type OrderCustomerGroupData struct {
	CustomerGroupName string
	Price             PricePair

	// PriceIsBasedOnProductCG distinguishes a real ProductCustomerGroup
	// override from a group that fell through to the default price.
	PriceIsBasedOnProductCG bool
}

type OrderLogEntry struct {
	ID          int64
	OrderID     uuid.UUID
	Timestamp   time.Time
	StateChange OrderState
	Message     string
}

func NewOrderNumber() string {
	return uuid.NewString()
}
