package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PricedLine is one cart line with its authoritative unit price.
type PricedLine struct {
	PriceCents int64
	Quantity   int
}

// Pricer computes the amount a payment provider should charge for a cart:
// unit price plus the platform service fee, summed across quantities and
// lines, rounded to the smallest currency unit once at the end. The same
// computation runs at quote time and again at confirmation time; the client
// is never trusted with an amount.
type Pricer struct {
	feeRate decimal.Decimal
}

// NewPricer builds a pricer from a percentage string such as "2".
func NewPricer(feePercent string) (*Pricer, error) {
	pct, err := decimal.NewFromString(feePercent)
	if err != nil {
		return nil, fmt.Errorf("invalid service fee percent %q: %w", feePercent, err)
	}
	if pct.IsNegative() {
		return nil, fmt.Errorf("service fee percent must not be negative: %s", feePercent)
	}
	return &Pricer{feeRate: pct.Div(decimal.NewFromInt(100))}, nil
}

// TotalCents returns the chargeable amount for the cart in cents.
func (p *Pricer) TotalCents(lines []PricedLine) int64 {
	total := decimal.Zero
	for _, line := range lines {
		price := decimal.NewFromInt(line.PriceCents)
		unit := price.Add(price.Mul(p.feeRate))
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total.Round(0).IntPart()
}
