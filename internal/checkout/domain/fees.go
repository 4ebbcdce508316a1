package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeSchedule holds the provider's transaction fee rates.
type FeeSchedule struct {
	Percentage decimal.Decimal
	Fixed      decimal.Decimal
}

// DefaultFees is the PayPal standard rate: 2.9% + $0.30 per transaction.
var DefaultFees = FeeSchedule{
	Percentage: decimal.NewFromFloat(2.9),
	Fixed:      decimal.NewFromFloat(0.30),
}

// FeeBreakdown is the derived fee split for a captured gross amount.
// Values are rounded to two places at computation time and never re-derived.
type FeeBreakdown struct {
	OriginalAmount      float64 `json:"originalAmount"`
	PayPalPercentageFee float64 `json:"paypalPercentageFee"`
	PayPalFixedFee      float64 `json:"paypalFixedFee"`
	TotalFees           float64 `json:"totalFees"`
	PayoutAmount        float64 `json:"payoutAmount"`
}

// Calculate computes the fee breakdown for a decimal amount string.
// The total fee is rounded once, and the payout amount is derived from the
// rounded total so the two always sum back to the gross within a cent.
func (s FeeSchedule) Calculate(amount string) (FeeBreakdown, error) {
	gross, err := decimal.NewFromString(amount)
	if err != nil {
		return FeeBreakdown{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if gross.IsNegative() {
		return FeeBreakdown{}, fmt.Errorf("negative amount %q", amount)
	}

	pctFee := gross.Mul(s.Percentage).Div(decimal.NewFromInt(100))
	totalFee := pctFee.Add(s.Fixed).Round(2)
	payout := gross.Sub(totalFee).Round(2)

	return FeeBreakdown{
		OriginalAmount:      gross.Round(2).InexactFloat64(),
		PayPalPercentageFee: pctFee.Round(2).InexactFloat64(),
		PayPalFixedFee:      s.Fixed.Round(2).InexactFloat64(),
		TotalFees:           totalFee.InexactFloat64(),
		PayoutAmount:        payout.InexactFloat64(),
	}, nil
}

// ParseAmount validates that s is a positive two-place-roundable decimal and
// returns its canonical "0.00" form.
func ParseAmount(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return "", fmt.Errorf("amount must be positive, got %q", s)
	}
	return d.Round(2).StringFixed(2), nil
}
