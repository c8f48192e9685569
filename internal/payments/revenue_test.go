package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lankaconnect/events-backend/internal/event"
)

func TestCalculateBreakdownWithStateTax(t *testing.T) {
	calc := NewRevenueCalculator(0.05)
	price := event.Money{Amount: 100, Currency: "USD"}
	location := &event.EventLocation{VenueName: "Hall", City: "Edison", State: "NJ"}

	b, err := calc.CalculateBreakdown(context.Background(), price, location)
	require.NoError(t, err)

	assert.InDelta(t, 6.63, b.SalesTax.Amount, 0.001)     // 100 * 0.06625 rounded
	assert.InDelta(t, 3.20, b.ProcessorFee.Amount, 0.001) // 100 * 0.029 + 0.30
	assert.InDelta(t, 5.00, b.PlatformCommission.Amount, 0.001)
	assert.InDelta(t, 85.17, b.OrganizerPayout.Amount, 0.001)
	assert.InDelta(t, 0.06625, b.SalesTaxRate, 0.000001)
	assert.Equal(t, "USD", b.OrganizerPayout.Currency)
}

func TestCalculateBreakdownUnknownStateIsUntaxed(t *testing.T) {
	calc := NewRevenueCalculator(0.05)
	price := event.Money{Amount: 50, Currency: "USD"}

	b, err := calc.CalculateBreakdown(context.Background(), price, &event.EventLocation{State: "ZZ"})
	require.NoError(t, err)
	assert.Zero(t, b.SalesTax.Amount)
	assert.Zero(t, b.SalesTaxRate)
}

func TestCalculateBreakdownNilLocation(t *testing.T) {
	calc := NewRevenueCalculator(0.05)
	price := event.Money{Amount: 50, Currency: "USD"}

	b, err := calc.CalculateBreakdown(context.Background(), price, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.75, b.ProcessorFee.Amount, 0.001) // 50 * 0.029 + 0.30
	assert.InDelta(t, 2.50, b.PlatformCommission.Amount, 0.001)
	assert.InDelta(t, 45.75, b.OrganizerPayout.Amount, 0.001)
}

func TestCalculateBreakdownRejectsNonPositivePrice(t *testing.T) {
	calc := NewRevenueCalculator(0.05)

	_, err := calc.CalculateBreakdown(context.Background(), event.Money{Amount: 0, Currency: "USD"}, nil)
	assert.Error(t, err)
}

func TestCalculateBreakdownRejectsPriceBelowFees(t *testing.T) {
	calc := NewRevenueCalculator(0.05)

	// 0.10 gross cannot cover the $0.30 fixed processor fee.
	_, err := calc.CalculateBreakdown(context.Background(), event.Money{Amount: 0.10, Currency: "USD"}, nil)
	assert.Error(t, err)
}

func TestCalculateBreakdownRespectsContextCancellation(t *testing.T) {
	calc := NewRevenueCalculator(0.05)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := calc.CalculateBreakdown(ctx, event.Money{Amount: 100, Currency: "USD"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
