package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// PricePair carries the two configured representations of a price.
// Both are stored values, the tax-free side is not derived from the
// tax-included side.
type PricePair struct {
	IncludingTax decimal.Decimal `json:"price"`
	TaxFree      decimal.Decimal `json:"price_tax_free"`
}

func NewPricePair(includingTax, taxFree string) PricePair {
	return PricePair{
		IncludingTax: decimal.RequireFromString(includingTax),
		TaxFree:      decimal.RequireFromString(taxFree),
	}
}

func (p PricePair) IsZero() bool {
	return p.IncludingTax.IsZero() && p.TaxFree.IsZero()
}

// RoundPrice quantizes to two decimal places, rounding ties away from zero.
func RoundPrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(2)
}

// PriceAsSubUnits converts a price to minor units, e.g. euros to cents.
func PriceAsSubUnits(price decimal.Decimal) int64 {
	return RoundPrice(price).Mul(decimal.NewFromInt(100)).IntPart()
}

func ConvertPretaxToAftertax(pretax, taxPercentage decimal.Decimal) decimal.Decimal {
	return pretax.Mul(taxFactor(taxPercentage))
}

func ConvertAftertaxToPretax(aftertax, taxPercentage decimal.Decimal) decimal.Decimal {
	return aftertax.Div(taxFactor(taxPercentage))
}

func taxFactor(taxPercentage decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(taxPercentage.Div(decimal.NewFromInt(100)))
}
