package tokentx

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxBaseUnits is the largest amount an SPL token instruction can carry.
var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

const (
	// maxIntegerDigits is the number of digits in MaxUint64.
	maxIntegerDigits = 20
	// maxFractionDigits bounds the scale of an amount: 255 mint decimals
	// plus the digits a uint64 can hold.
	maxFractionDigits = math.MaxUint8 + maxIntegerDigits
	// maxAmountLength bounds the text of an amount before it is parsed.
	maxAmountLength = 2 * maxFractionDigits
)

// ParseAmount parses a human-scale decimal amount such as "2.5" exactly.
// Scientific notation is accepted; NaN and infinities are not.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, invalidAmount("amount is required")
	}
	if len(s) > maxAmountLength {
		return decimal.Zero, invalidAmount("amount %q is too long", truncateInput(s))
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, invalidAmount("amount %q is not a finite decimal number", truncateInput(s))
	}
	if !inRange(d) {
		return decimal.Zero, invalidAmount("amount %q is out of range", truncateInput(s))
	}
	return d, nil
}

// ToBaseUnits converts amount into the integer base units of a mint with the
// given decimals: floor(amount * 10^decimals). The arithmetic is exact, so
// 0.000000001 at 9 decimals is 1 and 1.5 at 6 decimals is 1500000.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if !inRange(amount) {
		return 0, invalidAmount("amount is out of range")
	}
	if amount.IsNegative() {
		return 0, invalidAmount("amount %s is negative", amount.String())
	}

	scaled := amount.Shift(int32(decimals)).Truncate(0)
	if scaled.GreaterThan(maxBaseUnits) {
		return 0, invalidAmount("amount %s exceeds the maximum of %s base units", amount.String(), maxBaseUnits.String())
	}

	return scaled.BigInt().Uint64(), nil
}

// inRange reports whether the amount's scale leaves it small enough for exact
// arithmetic. Anything outside the window is either above MaxUint64 or has
// more fractional digits than any mint can represent.
func inRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxFractionDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= maxIntegerDigits
}

// truncateInput keeps error messages short for oversized input.
func truncateInput(s string) string {
	const limit = 64
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// requirePositive rejects zero and negative amounts. It never touches the ledger.
func requirePositive(amount decimal.Decimal) error {
	if !inRange(amount) {
		return invalidAmount("amount is out of range")
	}
	if !amount.IsPositive() {
		return invalidAmount("amount must be greater than zero, got %s", amount.String())
	}
	return nil
}
