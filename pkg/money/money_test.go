package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency(" inr ")
	require.NoError(t, err)
	assert.Equal(t, "INR", code)

	_, err = NormalizeCurrency("XYZQ")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestScaleAndConversion(t *testing.T) {
	assert.Equal(t, 2, Scale("INR"))
	assert.Equal(t, 0, Scale("JPY"))

	assert.InDelta(t, 12.5, ToMajor(1250, "USD"), 0.0001)
	assert.Equal(t, int64(1250), FromMajor(12.5, "USD"))
	assert.Equal(t, int64(500), FromMajor(500, "JPY"))
}

func TestApplyBps(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		bps    int64
		want   int64
	}{
		{"18 percent", 10000, 1800, 1800},
		{"rounds half up", 1005, 500, 50},
		{"rounds half up at boundary", 1010, 500, 51},
		{"zero rate", 999, 0, 0},
		{"negative amount", -1010, 500, -51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyBps(tt.amount, tt.bps))
		})
	}
}

func TestMulDivRound(t *testing.T) {
	tests := []struct {
		name             string
		amount, num, den int64
		want             int64
	}{
		{"plain", 7, 3, 2, 11},
		{"product overflows but result fits", math.MaxInt64 / 2, 4, 4, math.MaxInt64 / 2},
		{"rounding near the top", math.MaxInt64, 1, 2, math.MaxInt64/2 + 1},
		{"negative product overflows", math.MinInt64 / 2, 3, 3, math.MinInt64 / 2},
		{"most negative value", math.MinInt64, 1, 1, math.MinInt64},
		{"saturates high", math.MaxInt64, 2, 1, math.MaxInt64},
		{"saturates low", math.MinInt64, 2, 1, math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MulDivRound(tt.amount, tt.num, tt.den))
		})
	}

	assert.Panics(t, func() { MulDivRound(1, 1, 0) })
}

func TestFormat(t *testing.T) {
	s := Format(1250, "USD", language.English)
	assert.Contains(t, s, "12.50")

	assert.Equal(t, "42 ???", Format(42, "???", language.English))
}

func TestLocale(t *testing.T) {
	assert.Equal(t, language.English, Locale(""))
	assert.Equal(t, language.English, Locale("not a tag!"))
	assert.Equal(t, "hi-IN", Locale("hi-IN").String())
}
