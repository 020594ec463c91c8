package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinimalUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   string
		err    error
	}{
		{"0.5", "500000000000000000", nil},
		{"10.25", "10250000000000000000", nil},
		{"1", "1000000000000000000", nil},
		{"0.000000000000000001", "1", nil},
		{"123456789.123456789123456789", "123456789123456789123456789", nil},
		{"0.0000000000000000001", "", ErrPrecisionLoss},
		{"0", "", ErrInvalidAmount},
		{"-3", "", ErrInvalidAmount},
		{"ten", "", ErrInvalidAmount},
		{"", "", ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToMinimalUnits(tt.amount)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinimalUnitsRoundTrip(t *testing.T) {
	for _, amount := range []string{
		"0.5",
		"10.25",
		"12.50",
		"0.000000000000000001",
		"999999999.999999999999999999",
		"42",
	} {
		units, err := ToMinimalUnits(amount)
		require.NoError(t, err, amount)

		back, err := FromMinimalUnits(units)
		require.NoError(t, err, amount)

		assert.True(t, decimal.RequireFromString(amount).Equal(decimal.RequireFromString(back)), "%s -> %s -> %s", amount, units, back)
	}
}

func TestNormalizeBalance(t *testing.T) {
	bal, err := NormalizeBalance("12500000", 6)
	require.NoError(t, err)
	assert.Equal(t, "12.5", bal.String())

	_, err = NormalizeBalance("1.5", 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCheckBalanceShortfall(t *testing.T) {
	shortfall, ok := CheckBalance(decimal.RequireFromString("10.00"), decimal.RequireFromString("12.50"))
	assert.False(t, ok)
	assert.Equal(t, "2.5", shortfall.String())

	shortfall, ok = CheckBalance(decimal.RequireFromString("12.50"), decimal.RequireFromString("12.50"))
	assert.True(t, ok)
	assert.True(t, shortfall.IsZero())
}
