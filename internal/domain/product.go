package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductTypeRent  ProductType = "rent"
	ProductTypeExtra ProductType = "extra"
)

type PriceType string

const (
	PriceFixed     PriceType = "fixed"
	PricePerPeriod PriceType = "per_period"
)

var TaxPercentages = []decimal.Decimal{
	decimal.RequireFromString("0.00"),
	decimal.RequireFromString("10.00"),
	decimal.RequireFromString("14.00"),
	decimal.RequireFromString("24.00"),
	decimal.RequireFromString("25.50"),
}

var DefaultTaxPercentage = decimal.RequireFromString("24.00")

func ValidTaxPercentage(tax decimal.Decimal) bool {
	for _, allowed := range TaxPercentages {
		if tax.Equal(allowed) {
			return true
		}
	}
	return false
}

// Product is one version of a bookable product. ProductID is shared by
// all versions, ID identifies a single version. ArchivedAt is nil for the
// current version; editing never mutates a version in place, it archives
// the row and inserts a new one.
type Product struct {
	ID        uuid.UUID
	ProductID string

	CreatedAt  time.Time
	ArchivedAt *time.Time

	Type ProductType
	SKU  string

	SapCode         string
	SapUnit         string
	SapFunctionArea string
	SapOfficeCode   string

	Name        string
	Description string

	Price         PricePair
	TaxPercentage decimal.Decimal
	PriceType     PriceType
	PricePeriod   *time.Duration

	MaxQuantity int
}

func (p Product) IsCurrent() bool {
	return p.ArchivedAt == nil
}

func (p *Product) Validate() error {
	switch p.PriceType {
	case PricePerPeriod:
		if p.PricePeriod == nil || *p.PricePeriod <= 0 {
			return ErrPricePeriodRequired
		}
	case PriceFixed:
		p.PricePeriod = nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPriceType, p.PriceType)
	}

	if !p.Price.IncludingTax.IsPositive() {
		return ErrInvalidPrice
	}

	if !ValidTaxPercentage(p.TaxPercentage) {
		return fmt.Errorf("%w: %s", ErrInvalidTaxPercentage, p.TaxPercentage)
	}

	if p.MaxQuantity < 1 {
		return fmt.Errorf("max quantity must be at least 1, got %d", p.MaxQuantity)
	}

	return nil
}

// PretaxPrice returns the unrounded tax-excluded price derived from the
// tax-included price.
func (p Product) PretaxPrice() decimal.Decimal {
	return ConvertAftertaxToPretax(p.Price.IncludingTax, p.TaxPercentage)
}

func (p Product) TaxPrice() decimal.Decimal {
	return p.Price.IncludingTax.Sub(p.PretaxPrice())
}

// ProductChanges is a partial update applied on Replace. Nil fields keep
// the current version's value.
type ProductChanges struct {
	Type            *ProductType
	SKU             *string
	SapCode         *string
	SapUnit         *string
	SapFunctionArea *string
	SapOfficeCode   *string
	Name            *string
	Description     *string
	Price           *PricePair
	TaxPercentage   *decimal.Decimal
	PriceType       *PriceType
	PricePeriod     *time.Duration
	MaxQuantity     *int
}

// Apply merges changes into a copy of the given version. The returned
// product has no identity yet, the repository assigns it on insert.
func (c ProductChanges) Apply(p Product) Product {
	if c.Type != nil {
		p.Type = *c.Type
	}
	if c.SKU != nil {
		p.SKU = *c.SKU
	}
	if c.SapCode != nil {
		p.SapCode = *c.SapCode
	}
	if c.SapUnit != nil {
		p.SapUnit = *c.SapUnit
	}
	if c.SapFunctionArea != nil {
		p.SapFunctionArea = *c.SapFunctionArea
	}
	if c.SapOfficeCode != nil {
		p.SapOfficeCode = *c.SapOfficeCode
	}
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.TaxPercentage != nil {
		p.TaxPercentage = *c.TaxPercentage
	}
	if c.PriceType != nil {
		p.PriceType = *c.PriceType
	}
	if c.PricePeriod != nil {
		p.PricePeriod = c.PricePeriod
	}
	if c.MaxQuantity != nil {
		p.MaxQuantity = *c.MaxQuantity
	}

	p.ID = uuid.Nil
	p.ArchivedAt = nil

	return p
}
