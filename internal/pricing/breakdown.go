package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/slotprice/internal/domain"
)

// Bucket is one pricing tier's contribution to a reservation: either a
// time slot or the default price. Totals are rounded for display, the
// grand total in Breakdown is computed from unrounded values.
type Bucket struct {
	Price        decimal.Decimal `json:"price"`
	Pretax       decimal.Decimal `json:"pretax"`
	Tax          decimal.Decimal `json:"tax"`
	TaxFreePrice decimal.Decimal `json:"taxfree_price"`

	// Count is the billed period count for per-period products, 1 for
	// fixed ones.
	Count decimal.Decimal `json:"count"`

	// Quantity is a display annotation carried when an order line holds
	// multiples of the product; it does not multiply Total.
	Quantity int `json:"quantity,omitempty"`

	Total        decimal.Decimal `json:"total"`
	TaxTotal     decimal.Decimal `json:"tax_total"`
	TaxFreeTotal decimal.Decimal `json:"taxfree_total"`

	// Begin/End identify the slot window for slot buckets.
	Begin *domain.ClockTime `json:"begin,omitempty"`
	End   *domain.ClockTime `json:"end,omitempty"`
}

// Breakdown is the detailed price structure for a reservation range. It
// is read-only output, JSON-marshallable for the notification layer
// (decimals render as strings).
type Breakdown struct {
	Price        decimal.Decimal `json:"price"`
	Pretax       decimal.Decimal `json:"pretax"`
	Tax          decimal.Decimal `json:"tax"`
	TaxFreePrice decimal.Decimal `json:"taxfree_price"`

	Buckets []Bucket `json:"buckets"`
}

type bucketAcc struct {
	slot   *Slot
	pair   domain.PricePair
	chunks int64
}

// Breakdown computes the per-tier price structure for the range. Bucket
// order follows first contribution within the walk.
func (c Context) Breakdown(begin, end time.Time, quantity int) (Breakdown, error) {
	var b Breakdown

	if err := validateRange(begin, end); err != nil {
		return b, err
	}

	pair := c.DefaultPair()
	slots := c.activeSlots()

	loc := c.location()
	localBegin := begin.In(loc)
	localEnd := end.In(loc)

	switch c.Product.PriceType {
	case domain.PriceFixed:
		chosen := pair
		var window *Slot
		if len(slots) > 0 {
			chosen, window = c.fixedSlotPair(localBegin, localEnd, slots)
		}
		return c.fixedBreakdown(chosen, window, quantity), nil

	case domain.PricePerPeriod:
		period, err := c.pricePeriod()
		if err != nil {
			return b, err
		}

		accs := map[uuid.UUID]*bucketAcc{}
		var claimOrder []uuid.UUID

		for t := localBegin; !t.Add(CheckInterval).After(localEnd); t = t.Add(CheckInterval) {
			chunkPair, slotID := c.chunkPair(t, slots)

			acc, ok := accs[slotID]
			if !ok {
				acc = &bucketAcc{pair: chunkPair}
				if slotID != uuid.Nil {
					for i := range slots {
						if slots[i].ID == slotID {
							acc.slot = &slots[i]
							break
						}
					}
				}
				accs[slotID] = acc
				claimOrder = append(claimOrder, slotID)
			}
			acc.chunks++
		}

		return c.perPeriodBreakdown(accs, claimOrder, period, quantity), nil

	default:
		return b, fmt.Errorf("%w: %q", domain.ErrUnknownPriceType, c.Product.PriceType)
	}
}

// fixedBreakdown builds the single bucket of a fixed-price resolution.
// Count stays 1 for fixed prices; the line quantity is carried as the
// Quantity annotation and never multiplies the totals.
func (c Context) fixedBreakdown(pair domain.PricePair, slot *Slot, quantity int) Breakdown {
	tax := c.Product.TaxPercentage
	pretax := domain.ConvertAftertaxToPretax(pair.IncludingTax, tax)

	bucket := Bucket{
		Price:        pair.IncludingTax,
		Pretax:       pretax,
		Tax:          pair.IncludingTax.Sub(pretax),
		TaxFreePrice: pair.TaxFree,
		Count:        decimal.NewFromInt(1),
		Total:        domain.RoundPrice(pair.IncludingTax),
		TaxTotal:     domain.RoundPrice(pair.IncludingTax.Sub(pretax)),
		TaxFreeTotal: domain.RoundPrice(pair.TaxFree),
	}
	if quantity > 1 {
		bucket.Quantity = quantity
	}
	if slot != nil {
		begin, end := slot.Begin, slot.End
		bucket.Begin, bucket.End = &begin, &end
	}

	price := domain.RoundPrice(pair.IncludingTax)
	roundedPretax := domain.RoundPrice(pretax)

	return Breakdown{
		Price:        price,
		Pretax:       roundedPretax,
		Tax:          price.Sub(roundedPretax),
		TaxFreePrice: domain.RoundPrice(pair.TaxFree),
		Buckets:      []Bucket{bucket},
	}
}

func (c Context) perPeriodBreakdown(accs map[uuid.UUID]*bucketAcc, claimOrder []uuid.UUID, period time.Duration, quantity int) Breakdown {
	tax := c.Product.TaxPercentage

	// chunks per billed period, e.g. 12 for an hourly price
	divider := durationRatio(period, CheckInterval)

	total := decimal.Zero
	taxFreeTotal := decimal.Zero
	buckets := make([]Bucket, 0, len(claimOrder))

	for _, key := range claimOrder {
		acc := accs[key]

		count := decimal.NewFromInt(acc.chunks).Div(divider)
		pretax := domain.ConvertAftertaxToPretax(acc.pair.IncludingTax, tax)

		bucketTotal := acc.pair.IncludingTax.Mul(count)
		bucketPretaxTotal := domain.ConvertAftertaxToPretax(bucketTotal, tax)
		bucketTaxFreeTotal := acc.pair.TaxFree.Mul(count)

		bucket := Bucket{
			Price:        acc.pair.IncludingTax,
			Pretax:       pretax,
			Tax:          acc.pair.IncludingTax.Sub(pretax),
			TaxFreePrice: acc.pair.TaxFree,
			Count:        count,
			Total:        domain.RoundPrice(bucketTotal),
			TaxTotal:     domain.RoundPrice(bucketTotal.Sub(bucketPretaxTotal)),
			TaxFreeTotal: domain.RoundPrice(bucketTaxFreeTotal),
		}
		if quantity > 1 {
			bucket.Quantity = quantity
		}
		if acc.slot != nil {
			begin, end := acc.slot.Begin, acc.slot.End
			bucket.Begin, bucket.End = &begin, &end
		}

		buckets = append(buckets, bucket)

		total = total.Add(bucketTotal)
		taxFreeTotal = taxFreeTotal.Add(bucketTaxFreeTotal)
	}

	// the grand total is rounded once, after summing unrounded buckets
	price := domain.RoundPrice(total)
	pretax := domain.RoundPrice(domain.ConvertAftertaxToPretax(total, tax))

	return Breakdown{
		Price:        price,
		Pretax:       pretax,
		Tax:          price.Sub(pretax),
		TaxFreePrice: domain.RoundPrice(taxFreeTotal),
		Buckets:      buckets,
	}
}
