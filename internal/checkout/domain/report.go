package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutReport aggregates settled payouts for the operator's records.
type PayoutReport struct {
	Period      time.Time   `json:"period"`
	Count       int         `json:"count"`
	TotalGross  float64     `json:"totalGross"`
	TotalFees   float64     `json:"totalFees"`
	TotalNet    float64     `json:"totalNet"`
	BankDetails BankAccount `json:"bankDetails"`
	Payouts     []Payout    `json:"payouts,omitempty"`
}

// BuildPayoutReport totals the given payouts with decimal arithmetic so the
// report never accumulates float drift.
func BuildPayoutReport(payouts []Payout, bank BankAccount) PayoutReport {
	report := PayoutReport{
		Period:      time.Now().UTC(),
		Count:       len(payouts),
		BankDetails: bank,
		Payouts:     payouts,
	}
	var gross, fees, net decimal.Decimal
	for _, p := range payouts {
		gross = gross.Add(decimal.NewFromFloat(p.Gross))
		fees = fees.Add(decimal.NewFromFloat(p.Fees))
		net = net.Add(decimal.NewFromFloat(p.Net))
	}
	report.TotalGross = gross.Round(2).InexactFloat64()
	report.TotalFees = fees.Round(2).InexactFloat64()
	report.TotalNet = net.Round(2).InexactFloat64()
	return report
}
