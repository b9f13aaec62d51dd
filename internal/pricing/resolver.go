// Package pricing resolves prices for reservation time ranges against the
// layered pricing model: product default price, per-customer-group
// override, per-time-slot override and per-slot-per-group override.
//
// Resolution is a pure function of the Context value, it never touches
// storage and has no shared mutable state. All intermediate math is kept
// unrounded; callers quantize with domain.RoundPrice at the boundary.
package pricing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/slotprice/internal/domain"
)

// CheckInterval is the walk granularity for per-period products with time
// slot pricing: every 5-minute chunk of the reservation is priced on its
// own and the chunks are summed.
const CheckInterval = 5 * time.Minute

// Slot pairs a time slot with its customer-group override prices.
type Slot struct {
	domain.TimeSlotPrice

	GroupPrices []domain.CustomerGroupTimeSlotPrice
}

// GroupPrice returns the slot price override for the given customer
// group, if one exists.
func (s Slot) GroupPrice(customerGroupID string) (domain.PricePair, bool) {
	if customerGroupID == "" {
		return domain.PricePair{}, false
	}

	for _, gp := range s.GroupPrices {
		if gp.CustomerGroupID == customerGroupID {
			return gp.Price, true
		}
	}

	return domain.PricePair{}, false
}

// Context carries everything one price resolution needs, assembled by the
// caller. Threading it explicitly keeps the resolver free of hidden
// state.
type Context struct {
	Product domain.Product

	// GroupPrice is the product-level override for CustomerGroupID, nil
	// when the group has none or no group was given.
	GroupPrice *domain.ProductCustomerGroup

	// Slots are the non-archived time slots of the product version.
	Slots []Slot

	CustomerGroupID string

	// HasStoredGroupPrice marks resolution against an order line that
	// already carries a frozen group price for a non-empty group. It
	// makes slot resolution treat the group as having bespoke pricing
	// even though no live ProductCustomerGroup row is attached.
	HasStoredGroupPrice bool

	// Location is the resource unit's zone; slots are clock-time windows
	// local to the unit. Nil falls back to UTC.
	Location *time.Location
}

// DefaultPair is the tier-1/tier-2 price: the product-customer-group
// override when present, the product's own price otherwise.
func (c Context) DefaultPair() domain.PricePair {
	if c.GroupPrice != nil {
		return c.GroupPrice.Price
	}
	return c.Product.Price
}

// groupHasBespokePricing reports that the customer group has its own
// product-level pricing, stored or live. Such a group deliberately does
// not participate in slot pricing that lacks a group-specific price.
func (c Context) groupHasBespokePricing() bool {
	return c.CustomerGroupID != "" && (c.GroupPrice != nil || c.HasStoredGroupPrice)
}

func (c Context) location() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// activeSlots returns the usable slots in deterministic order.
func (c Context) activeSlots() []Slot {
	slots := make([]Slot, 0, len(c.Slots))
	for _, s := range c.Slots {
		if !s.IsArchived {
			slots = append(slots, s)
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Begin != slots[j].Begin {
			return slots[i].Begin < slots[j].Begin
		}
		if slots[i].End != slots[j].End {
			return slots[i].End < slots[j].End
		}
		return slots[i].ID.String() < slots[j].ID.String()
	})

	return slots
}

// Price computes the unrounded per-unit price for the reservation range.
func (c Context) Price(begin, end time.Time) (decimal.Decimal, error) {
	if err := validateRange(begin, end); err != nil {
		return decimal.Zero, err
	}

	pair := c.DefaultPair()
	slots := c.activeSlots()

	loc := c.location()
	localBegin := begin.In(loc)
	localEnd := end.In(loc)

	switch c.Product.PriceType {
	case domain.PriceFixed:
		if len(slots) == 0 {
			return pair.IncludingTax, nil
		}
		chosen, _ := c.fixedSlotPair(localBegin, localEnd, slots)
		return chosen.IncludingTax, nil

	case domain.PricePerPeriod:
		period, err := c.pricePeriod()
		if err != nil {
			return decimal.Zero, err
		}

		if len(slots) == 0 {
			// Exact, not chunked: duration over period, unrounded.
			return pair.IncludingTax.Mul(durationRatio(end.Sub(begin), period)), nil
		}

		chunkRatio := durationRatio(CheckInterval, period)
		sum := decimal.Zero
		for t := localBegin; !t.Add(CheckInterval).After(localEnd); t = t.Add(CheckInterval) {
			chunkPair, _ := c.chunkPair(t, slots)
			sum = sum.Add(chunkPair.IncludingTax.Mul(chunkRatio))
		}
		return sum, nil

	default:
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrUnknownPriceType, c.Product.PriceType)
	}
}

// PretaxPrice is Price converted to the tax-excluded amount, unrounded.
func (c Context) PretaxPrice(begin, end time.Time) (decimal.Decimal, error) {
	price, err := c.Price(begin, end)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.ConvertAftertaxToPretax(price, c.Product.TaxPercentage), nil
}

func (c Context) pricePeriod() (time.Duration, error) {
	if c.Product.PricePeriod == nil || *c.Product.PricePeriod <= 0 {
		return 0, domain.ErrPricePeriodRequired
	}
	return *c.Product.PricePeriod, nil
}

// fixedSlotPair picks the price pair for a fixed-price product with time
// slots: only slots whose clock window fully contains the localized range
// are candidates, group-specific slot prices win, a group with bespoke
// product pricing but no slot price falls back to the default pair, and
// among plain candidates the narrowest window is the most specific. The
// chosen slot is returned alongside the pair, nil for the default tier.
func (c Context) fixedSlotPair(localBegin, localEnd time.Time, slots []Slot) (domain.PricePair, *Slot) {
	rangeBegin := domain.ClockTimeOf(localBegin)
	rangeEnd := domain.ClockTimeOf(localEnd)

	var candidates []Slot
	for _, s := range slots {
		if s.Contains(rangeBegin, rangeEnd) {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		return c.DefaultPair(), nil
	}

	if c.CustomerGroupID != "" {
		var withGroup []Slot
		for _, s := range candidates {
			if _, ok := s.GroupPrice(c.CustomerGroupID); ok {
				withGroup = append(withGroup, s)
			}
		}

		if len(withGroup) > 0 {
			chosen := narrowest(withGroup)
			pair, _ := chosen.GroupPrice(c.CustomerGroupID)
			return pair, &chosen
		}

		if c.groupHasBespokePricing() {
			return c.DefaultPair(), nil
		}
	}

	chosen := narrowest(candidates)
	return chosen.Price, &chosen
}

// chunkPair prices one 5-minute chunk starting at t. It returns the pair
// and the id of the claiming slot, uuid.Nil for the default tier. The
// slot slice is in deterministic order and per-period slots cannot
// overlap, so the first containing slot is the only one.
func (c Context) chunkPair(t time.Time, slots []Slot) (domain.PricePair, uuid.UUID) {
	chunkBegin := domain.ClockTimeOf(t)
	chunkEnd := chunkBegin.Add(CheckInterval)

	for _, s := range slots {
		if !s.Contains(chunkBegin, chunkEnd) {
			continue
		}

		if pair, ok := s.GroupPrice(c.CustomerGroupID); ok {
			return pair, s.ID
		}

		if c.groupHasBespokePricing() {
			// group has product-level pricing but none for this slot
			break
		}

		return s.Price, s.ID
	}

	return c.DefaultPair(), uuid.Nil
}

// narrowest picks the most specific candidate: smallest window first,
// earliest begin and lowest id as deterministic tie-breaks.
func narrowest(candidates []Slot) Slot {
	chosen := candidates[0]
	for _, s := range candidates[1:] {
		if s.Duration() < chosen.Duration() {
			chosen = s
			continue
		}
		if s.Duration() == chosen.Duration() {
			if s.Begin < chosen.Begin || (s.Begin == chosen.Begin && s.ID.String() < chosen.ID.String()) {
				chosen = s
			}
		}
	}
	return chosen
}

func durationRatio(d, period time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d)).Div(decimal.NewFromInt(int64(period)))
}

func validateRange(begin, end time.Time) error {
	if !begin.Before(end) {
		return fmt.Errorf("%w: begin %s, end %s", domain.ErrInvalidRange,
			begin.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}
