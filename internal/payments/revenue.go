package payments

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/lankaconnect/events-backend/internal/event"
)

// Card processor pricing: 2.9% + $0.30 per transaction.
const (
	processorFeeRate  = 0.029
	processorFeeFixed = 0.30
)

// salesTaxRates maps US state codes to their base sales tax rate. Events
// without a location, or in states not listed, are treated as untaxed.
var salesTaxRates = map[string]float64{
	"CA": 0.0725,
	"NY": 0.04,
	"NJ": 0.06625,
	"TX": 0.0625,
	"FL": 0.06,
	"WA": 0.065,
	"IL": 0.0625,
	"MA": 0.0625,
	"PA": 0.06,
	"GA": 0.04,
}

// RevenueCalculator splits a paid registration's gross price into tax,
// processor fee, platform commission and organizer payout.
type RevenueCalculator struct {
	commissionRate float64
}

func NewRevenueCalculator(commissionRate float64) *RevenueCalculator {
	return &RevenueCalculator{commissionRate: commissionRate}
}

// CalculateBreakdown computes the split. It fails when the price is too low
// to cover the fixed processor fee, leaving the caller to proceed degraded.
func (c *RevenueCalculator) CalculateBreakdown(ctx context.Context, price event.Money, location *event.EventLocation) (event.RevenueBreakdown, error) {
	if err := ctx.Err(); err != nil {
		return event.RevenueBreakdown{}, err
	}
	if price.Amount <= 0 {
		return event.RevenueBreakdown{}, errors.New("price must be positive to compute a breakdown")
	}

	taxRate := 0.0
	if location != nil {
		taxRate = salesTaxRates[strings.ToUpper(location.State)]
	}

	gross := price.Amount
	tax := round2(gross * taxRate)
	fee := round2(gross*processorFeeRate + processorFeeFixed)
	commission := round2(gross * c.commissionRate)
	payout := round2(gross - tax - fee - commission)

	if payout < 0 {
		return event.RevenueBreakdown{}, errors.New("price is too low to cover processing fees")
	}

	money := func(amount float64) event.Money {
		return event.Money{Amount: amount, Currency: price.Currency}
	}

	return event.RevenueBreakdown{
		SalesTax:           money(tax),
		ProcessorFee:       money(fee),
		PlatformCommission: money(commission),
		OrganizerPayout:    money(payout),
		SalesTaxRate:       taxRate,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
