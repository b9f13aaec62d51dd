package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikolayk812/slotprice/internal/domain"
)

func validProduct() domain.Product {
	return domain.Product{
		Type:          domain.ProductTypeRent,
		Name:          "meeting room",
		Price:         domain.NewPricePair("12.81", "0.00"),
		TaxPercentage: domain.DefaultTaxPercentage,
		PriceType:     domain.PricePerPeriod,
		PricePeriod:   lo.ToPtr(time.Hour),
		MaxQuantity:   1,
	}
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.Product)
		wantErr error
	}{
		{
			name:   "valid per period product",
			mutate: func(p *domain.Product) {},
		},
		{
			name: "per period without period",
			mutate: func(p *domain.Product) {
				p.PricePeriod = nil
			},
			wantErr: domain.ErrPricePeriodRequired,
		},
		{
			name: "non-positive period",
			mutate: func(p *domain.Product) {
				p.PricePeriod = lo.ToPtr(time.Duration(0))
			},
			wantErr: domain.ErrPricePeriodRequired,
		},
		{
			name: "unknown price type",
			mutate: func(p *domain.Product) {
				p.PriceType = "hourly"
			},
			wantErr: domain.ErrUnknownPriceType,
		},
		{
			name: "zero price",
			mutate: func(p *domain.Product) {
				p.Price = domain.PricePair{}
			},
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name: "tax percentage not in allowed set",
			mutate: func(p *domain.Product) {
				p.TaxPercentage = decimal.RequireFromString("19.00")
			},
			wantErr: domain.ErrInvalidTaxPercentage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProduct()
			tt.mutate(&p)

			err := p.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProductValidateClearsPeriodForFixed(t *testing.T) {
	p := validProduct()
	p.PriceType = domain.PriceFixed

	require.NoError(t, p.Validate())
	assert.Nil(t, p.PricePeriod)
}

func TestProductPretaxPrice(t *testing.T) {
	p := validProduct()

	assert.Equal(t, "10.33", domain.RoundPrice(p.PretaxPrice()).StringFixed(2))
	assert.Equal(t, "2.48", domain.RoundPrice(p.TaxPrice()).StringFixed(2))
}

func TestProductChangesApply(t *testing.T) {
	p := validProduct()
	p.ProductID = "prod-1"

	merged := domain.ProductChanges{
		Name:  lo.ToPtr("renamed"),
		Price: lo.ToPtr(domain.NewPricePair("20.00", "0.00")),
	}.Apply(p)

	assert.Equal(t, "renamed", merged.Name)
	assert.True(t, merged.Price.IncludingTax.Equal(decimal.RequireFromString("20.00")))

	// untouched fields carry over, identity does not
	assert.Equal(t, "prod-1", merged.ProductID)
	assert.Equal(t, p.TaxPercentage, merged.TaxPercentage)
	assert.Equal(t, uuid.Nil, merged.ID)
	assert.Nil(t, merged.ArchivedAt)
}

func TestValidTaxPercentage(t *testing.T) {
	assert.True(t, domain.ValidTaxPercentage(decimal.RequireFromString("24")))
	assert.True(t, domain.ValidTaxPercentage(decimal.RequireFromString("25.5")))
	assert.False(t, domain.ValidTaxPercentage(decimal.RequireFromString("19")))
}
