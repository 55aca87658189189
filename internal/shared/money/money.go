// Package money converte valores monetários em unidades base (inteiros de 256 bits)
// de e para texto.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Parse lê um inteiro decimal não negativo em unidades base (ex.: "1500000000000000000")
func Parse(s string) (uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uint256.Int{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	return *v, nil
}

// Format devolve o valor em unidades base, como string decimal
func Format(a uint256.Int) string { return a.Dec() }

// Display formata o valor com `decimals` casas (ex.: 18 => "2.85"), sem zeros à direita
func Display(a uint256.Int, decimals int32) string {
	return decimal.NewFromBigInt(a.ToBig(), -decimals).String()
}

// ParseDisplay é o inverso de Display: "2.85" com 18 casas => 2850000000000000000.
// Frações além de `decimals` casas são rejeitadas.
func ParseDisplay(s string, decimals int32) (uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return uint256.Int{}, fmt.Errorf("%w: negative", ErrInvalidAmount)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return uint256.Int{}, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return uint256.Int{}, fmt.Errorf("%w: overflows 256 bits", ErrInvalidAmount)
	}
	return *v, nil
}
