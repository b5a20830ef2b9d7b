package tokentx

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
	}{
		{"smallest unit at 9 decimals", "0.000000001", 9, 1},
		{"fractional at 6 decimals", "1.5", 6, 1500000},
		{"whole at 0 decimals", "42", 0, 42},
		{"truncates below one unit", "1.9999999", 0, 1},
		{"truncates extra precision", "2.5000009", 6, 2500000},
		{"scientific notation", "1e3", 2, 100000},
		{"max uint64", "18446744073709551615", 0, 18446744073709551615},
		{"below one unit is zero", "0.0000001", 6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := ParseAmount(tt.amount)
			require.NoError(t, err)

			got, err := ToBaseUnits(amount, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToBaseUnits_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		amount   decimal.Decimal
		decimals uint8
	}{
		{"negative", decimal.RequireFromString("-1"), 6},
		{"overflow", decimal.RequireFromString("18446744073709551616"), 0},
		{"overflow after scaling", decimal.RequireFromString("18446744073709.551616"), 6},
		{"huge exponent", decimal.New(1, 100000000), 6},
		{"tiny exponent", decimal.New(1, -100000000), 6},
		{"max int32 exponent", decimal.New(1, math.MaxInt32), 6},
		{"min int32 exponent", decimal.New(1, math.MinInt32), 255},
		{"zero with huge exponent", decimal.New(0, 100000000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBaseUnits(tt.amount, tt.decimals)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAmount)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParseAmount_OutOfRange(t *testing.T) {
	inputs := []string{
		"1e100000000",
		"1e-100000000",
		"1e2147483647",
		"-1e100000000",
		"1e20",
		"0." + strings.Repeat("0", 300) + "1",
		strings.Repeat("9", 10000),
	}

	for _, s := range inputs {
		start := time.Now()
		_, err := ParseAmount(s)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.Less(t, len(err.Error()), 200, "error for %.20q should stay short", s)
		assert.Less(t, time.Since(start), time.Second)
	}
}

func TestParseAmount_Bounds(t *testing.T) {
	// The widest accepted values still convert.
	d, err := ParseAmount("1e19")
	require.NoError(t, err)
	units, err := ToBaseUnits(d, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(10000000000000000000), units)

	d, err = ParseAmount("1e-255")
	require.NoError(t, err)
	units, err = ToBaseUnits(d, 255)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), units)
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, s := range []string{"", "   ", "abc", "1.2.3", "NaN", "Infinity"} {
		_, err := ParseAmount(s)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", s)
	}
}

func TestRequirePositive(t *testing.T) {
	assert.NoError(t, requirePositive(decimal.RequireFromString("0.000001")))
	assert.ErrorIs(t, requirePositive(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, requirePositive(decimal.RequireFromString("-3")), ErrInvalidAmount)
	assert.ErrorIs(t, requirePositive(decimal.New(-1, 100000000)), ErrInvalidAmount)
}
