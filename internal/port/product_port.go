package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikolayk812/slotprice/internal/domain"
	"github.com/nikolayk812/slotprice/internal/pricing"
)

type ProductRepository interface {
	Create(ctx context.Context, product domain.Product) (domain.Product, error)

	// GetVersion fetches one product version by row id, archived or not.
	GetVersion(ctx context.Context, id uuid.UUID) (domain.Product, error)

	// Current returns the single non-archived version of a product.
	Current(ctx context.Context, productID string) (domain.Product, error)

	// Replace archives the given version and inserts a new one with the
	// merged field values, carrying resource associations, customer-group
	// overrides and live time slots over to the new version.
	Replace(ctx context.Context, id uuid.UUID, changes domain.ProductChanges) (domain.Product, error)

	// SoftDelete archives the version without replacement. Rows are never
	// removed, historical orders keep pointing at them.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	SetResources(ctx context.Context, id uuid.UUID, resourceIDs []string) error
	GetResources(ctx context.Context, id uuid.UUID) ([]string, error)

	AddTimeSlot(ctx context.Context, slot domain.TimeSlotPrice) (domain.TimeSlotPrice, error)
	GetTimeSlots(ctx context.Context, productVersionID uuid.UUID) ([]domain.TimeSlotPrice, error)

	AddCustomerGroupPrice(ctx context.Context, pcg domain.ProductCustomerGroup) (domain.ProductCustomerGroup, error)
	AddCustomerGroupTimeSlotPrice(ctx context.Context, price domain.CustomerGroupTimeSlotPrice) (domain.CustomerGroupTimeSlotPrice, error)

	// PricingContext assembles everything the resolver needs for one
	// product version and an optional customer group.
	PricingContext(ctx context.Context, productVersionID uuid.UUID, customerGroupID string, loc *time.Location) (pricing.Context, error)
}
