// Package payment drives a cart total to an accepted token transfer and a
// pending backend order.
package payment

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenDecimals is the fixed-point precision of the payment token
const TokenDecimals = 18

// ToMinimalUnits converts a decimal token amount to an integral string in
// the token's minimal unit. Non-positive amounts and amounts with more
// fractional digits than the token supports are rejected.
func ToMinimalUnits(amount string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return DecimalToMinimalUnits(d)
}

// DecimalToMinimalUnits is ToMinimalUnits for a parsed amount
func DecimalToMinimalUnits(d decimal.Decimal) (string, error) {
	if !d.IsPositive() {
		return "", fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, d.String())
	}

	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return "", fmt.Errorf("%w: %s", ErrPrecisionLoss, d.String())
	}
	return scaled.BigInt().String(), nil
}

// FromMinimalUnits converts an integral minimal-unit string back to a
// decimal token amount
func FromMinimalUnits(units string) (string, error) {
	d, err := minimalToDecimal(units, TokenDecimals)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// NormalizeBalance converts a raw minimal-unit balance with the given
// number of decimals to a token amount
func NormalizeBalance(raw string, decimals int32) (decimal.Decimal, error) {
	if decimals < 0 {
		return decimal.Zero, fmt.Errorf("negative decimals %d", decimals)
	}
	return minimalToDecimal(raw, decimals)
}

func minimalToDecimal(units string, decimals int32) (decimal.Decimal, error) {
	bi, ok := new(big.Int).SetString(strings.TrimSpace(units), 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, units)
	}
	return decimal.NewFromBigInt(bi, -decimals), nil
}

// CheckBalance reports whether balance covers total and, when it does not,
// by how much it falls short
func CheckBalance(balance, total decimal.Decimal) (decimal.Decimal, bool) {
	if balance.GreaterThanOrEqual(total) {
		return decimal.Zero, true
	}
	return total.Sub(balance), false
}
