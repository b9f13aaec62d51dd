package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikolayk812/slotprice/internal/domain"
)

// StateChangeHook runs synchronously after a committed state transition.
type StateChangeHook func(orderID uuid.UUID, from, to domain.OrderState)

type OrderRepository interface {
	// Insert stores the order with its lines, resolves and freezes the
	// customer-group price snapshot per line, and appends the initial
	// log entry.
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)

	Get(ctx context.Context, orderID uuid.UUID) (domain.Order, error)

	SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// SetState performs a guarded transition under a non-blocking row
	// lock. A concurrent holder means someone else is already resolving
	// this transition: the call logs and returns nil.
	SetState(ctx context.Context, orderID uuid.UUID, newState domain.OrderState, message string) error

	// OnStateChange registers a hook fired after successful transitions.
	// Not safe to call concurrently with SetState.
	OnStateChange(hook StateChangeHook)

	SetConfirmedByStaff(ctx context.Context, orderID uuid.UUID, at time.Time) error

	// ExpireTooOld expires waiting online orders older than the waiting
	// duration and returns how many it expired. Cash payments never
	// expire.
	ExpireTooOld(ctx context.Context, waitingTime time.Duration) (int, error)

	// OrderPrice re-resolves the order total for the reservation range
	// using each line's frozen snapshot when present.
	OrderPrice(ctx context.Context, orderID uuid.UUID, begin, end time.Time, loc *time.Location) (domain.Money, error)

	GetLogEntries(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLogEntry, error)
}
