// Package money handles integer minor-unit amounts and their display.
package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidCurrency is returned for codes that are not ISO 4217
var ErrInvalidCurrency = errors.New("invalid currency code")

// NormalizeCurrency upper-cases and validates an ISO 4217 code
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

// Scale returns the number of minor-unit digits for a currency (2 for INR, 0 for JPY)
func Scale(code string) int {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// ToMajor converts minor units to a major-unit float for display only
func ToMajor(amount int64, code string) float64 {
	return float64(amount) / math.Pow10(Scale(code))
}

// FromMajor converts a major-unit value to minor units, rounding half away from zero
func FromMajor(value float64, code string) int64 {
	return int64(math.Round(value * math.Pow10(Scale(code))))
}

// Format renders amount with the currency symbol in the given locale
func Format(amount int64, code string, tag language.Tag) string {
	unit, err := currency.ParseISO(strings.ToUpper(code))
	if err != nil {
		return fmt.Sprintf("%d %s", amount, code)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(ToMajor(amount, code))))
}

// Locale parses a BCP 47 tag, falling back to English
func Locale(tag string) language.Tag {
	if tag == "" {
		return language.English
	}
	t, err := language.Parse(tag)
	if err != nil {
		return language.English
	}
	return t
}

// BasisPoints is one whole expressed in basis points
const BasisPoints = 10000

// MulDivRound returns amount*num/den rounded half-up, saturating at the int64 range.
// den must be positive.
func MulDivRound(amount, num, den int64) int64 {
	if den <= 0 {
		panic("money: non-positive denominator")
	}
	p := amount * num
	if (amount != 0 && p/amount != num) || p == math.MinInt64 || p > math.MaxInt64-den/2 || p < math.MinInt64+den/2 {
		return mulDivRoundBig(amount, num, den)
	}
	neg := p < 0
	if neg {
		p = -p
	}
	q := (p + den/2) / den
	if neg {
		return -q
	}
	return q
}

func mulDivRoundBig(amount, num, den int64) int64 {
	p := new(big.Int).Mul(big.NewInt(amount), big.NewInt(num))
	neg := p.Sign() < 0
	p.Abs(p)
	p.Add(p, big.NewInt(den/2))
	p.Quo(p, big.NewInt(den))
	if neg {
		p.Neg(p)
	}
	if !p.IsInt64() {
		if neg {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return p.Int64()
}

// ApplyBps returns amount * bps / BasisPoints, rounded half-up
func ApplyBps(amount, bps int64) int64 {
	return MulDivRound(amount, bps, BasisPoints)
}
