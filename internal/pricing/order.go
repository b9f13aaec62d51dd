package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/slotprice/internal/domain"
)

// LineContext adapts a resolution context to an order line. When the line
// carries a frozen customer-group snapshot, the snapshot pair replaces the
// catalog's default price and no live product-group override applies: the
// order must price against what was stored at creation time, not against
// whatever the catalog says today.
func LineContext(base Context, line domain.OrderLine) Context {
	snap := line.CustomerGroupData
	if snap == nil {
		return base
	}

	base.Product.Price = snap.Price
	base.GroupPrice = nil
	base.HasStoredGroupPrice = base.CustomerGroupID != ""

	return base
}

// LineUnitPrice is the unrounded per-unit price for the line.
func LineUnitPrice(base Context, line domain.OrderLine, begin, end time.Time) (decimal.Decimal, error) {
	return LineContext(base, line).Price(begin, end)
}

// LineTotal multiplies the unit price by the line quantity, unrounded.
func LineTotal(base Context, line domain.OrderLine, begin, end time.Time) (decimal.Decimal, error) {
	unit, err := LineUnitPrice(base, line, begin, end)
	if err != nil {
		return decimal.Zero, err
	}
	return unit.Mul(decimal.NewFromInt(int64(line.Quantity))), nil
}

// LineBreakdown is the detailed structure for one line, quantity carried
// as a display annotation.
func LineBreakdown(base Context, line domain.OrderLine, begin, end time.Time) (Breakdown, error) {
	return LineContext(base, line).Breakdown(begin, end, line.Quantity)
}

// OrderTotal sums unrounded line totals over the reservation range and
// quantizes once at the end; rounding per line would accumulate drift
// across multi-line orders. Contexts are keyed by order line id.
func OrderTotal(order domain.Order, contexts map[uuid.UUID]Context, begin, end time.Time) (domain.Money, error) {
	var m domain.Money

	total := decimal.Zero
	for _, line := range order.Lines {
		base, ok := contexts[line.ID]
		if !ok {
			return m, fmt.Errorf("no pricing context for order line %s", line.ID)
		}

		lineTotal, err := LineTotal(base, line, begin, end)
		if err != nil {
			return m, fmt.Errorf("LineTotal[%s]: %w", line.ID, err)
		}

		total = total.Add(lineTotal)
	}

	return domain.Money{
		Amount:   domain.RoundPrice(total),
		Currency: order.Currency,
	}, nil
}
