package pricing_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/slotprice/internal/domain"
	"github.com/nikolayk812/slotprice/internal/pricing"
)

func TestLineContextSnapshot(t *testing.T) {
	base := pricing.Context{
		Product:         perPeriodProduct("50.00", "24.00", time.Hour),
		CustomerGroupID: "children",
		GroupPrice: &domain.ProductCustomerGroup{
			CustomerGroupID: "children",
			Price:           domain.NewPricePair("40.00", "0.00"),
		},
	}

	line := domain.OrderLine{
		ID:       uuid.New(),
		Quantity: 1,
		CustomerGroupData: &domain.OrderCustomerGroupData{
			CustomerGroupName:       "Children",
			Price:                   domain.NewPricePair("12.81", "0.00"),
			PriceIsBasedOnProductCG: true,
		},
	}

	adapted := pricing.LineContext(base, line)

	// the frozen pair replaces the catalog price and the live override
	assert.Equal(t, "12.81", adapted.Product.Price.IncludingTax.StringFixed(2))
	assert.Nil(t, adapted.GroupPrice)
	assert.True(t, adapted.HasStoredGroupPrice)
}

func TestLineContextWithoutSnapshot(t *testing.T) {
	base := pricing.Context{Product: perPeriodProduct("50.00", "24.00", time.Hour)}
	line := domain.OrderLine{ID: uuid.New(), Quantity: 1}

	adapted := pricing.LineContext(base, line)
	assert.Equal(t, base, adapted)
}

func TestLineUnitPriceUsesSnapshot(t *testing.T) {
	base := pricing.Context{
		Product:         perPeriodProduct("50.00", "24.00", time.Hour),
		CustomerGroupID: "children",
	}

	line := domain.OrderLine{
		ID:       uuid.New(),
		Quantity: 1,
		CustomerGroupData: &domain.OrderCustomerGroupData{
			Price: domain.NewPricePair("12.81", "0.00"),
		},
	}

	unit, err := pricing.LineUnitPrice(base, line, day(10, 0), day(11, 30))
	require.NoError(t, err)
	assertPrice(t, "19.22", unit)
}

func TestLineSnapshotSkipsPlainSlots(t *testing.T) {
	product := perPeriodProduct("50.00", "24.00", time.Hour)

	base := pricing.Context{
		Product:         product,
		Slots:           []pricing.Slot{slot(product, 10, 12, "20.00")},
		CustomerGroupID: "children",
	}

	line := domain.OrderLine{
		ID:       uuid.New(),
		Quantity: 1,
		CustomerGroupData: &domain.OrderCustomerGroupData{
			Price:                   domain.NewPricePair("12.81", "0.00"),
			PriceIsBasedOnProductCG: true,
		},
	}

	// the stored group price keeps the line out of plain slot pricing
	unit, err := pricing.LineUnitPrice(base, line, day(10, 0), day(11, 0))
	require.NoError(t, err)
	assertPrice(t, "12.81", unit)
}

func TestLineTotal(t *testing.T) {
	base := pricing.Context{Product: perPeriodProduct("12.81", "24.00", time.Hour)}
	line := domain.OrderLine{ID: uuid.New(), Quantity: 2}

	total, err := pricing.LineTotal(base, line, day(10, 0), day(11, 30))
	require.NoError(t, err)
	assertPrice(t, "38.43", total)
}

func TestOrderTotalRoundsOnce(t *testing.T) {
	base := pricing.Context{Product: perPeriodProduct("12.81", "24.00", time.Hour)}

	line1 := domain.OrderLine{ID: uuid.New(), Quantity: 1}
	line2 := domain.OrderLine{ID: uuid.New(), Quantity: 1}

	order := domain.Order{
		ID:       uuid.New(),
		Currency: currency.EUR,
		Lines:    []domain.OrderLine{line1, line2},
	}

	contexts := map[uuid.UUID]pricing.Context{
		line1.ID: base,
		line2.ID: base,
	}

	total, err := pricing.OrderTotal(order, contexts, day(10, 0), day(11, 30))
	require.NoError(t, err)

	// 19.215 per line; rounding per line would give 38.44
	assert.Equal(t, "38.43", total.Amount.StringFixed(2))
	assert.Equal(t, "EUR", total.Currency.String())
}

func TestOrderTotalMissingContext(t *testing.T) {
	line := domain.OrderLine{ID: uuid.New(), Quantity: 1}
	order := domain.Order{ID: uuid.New(), Currency: currency.EUR, Lines: []domain.OrderLine{line}}

	_, err := pricing.OrderTotal(order, map[uuid.UUID]pricing.Context{}, day(10, 0), day(11, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pricing context")
}

func TestLineBreakdownCarriesQuantity(t *testing.T) {
	base := pricing.Context{Product: fixedProduct("60.00", "14.00")}
	line := domain.OrderLine{ID: uuid.New(), Quantity: 2}

	b, err := pricing.LineBreakdown(base, line, day(10, 0), day(12, 0))
	require.NoError(t, err)

	require.Len(t, b.Buckets, 1)
	assert.Equal(t, 2, b.Buckets[0].Quantity)
}
