package domain

import (
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/eventdesk/pkg/money"
)

// MaxTaxRateBps caps a single component at 100%
const MaxTaxRateBps = money.BasisPoints

// TaxComponent is one levy inside a tax structure, e.g. CGST 9%
type TaxComponent struct {
	Name     string `json:"name" yaml:"name"`
	RateBps  int64  `json:"rate_bps" yaml:"rate_bps"`
	Compound bool   `json:"compound" yaml:"compound"`
}

// TaxStructure is a tenant-defined set of tax components
type TaxStructure struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Name       string         `json:"name"`
	Components []TaxComponent `json:"components"`
	Inclusive  bool           `json:"inclusive"`
	IsDefault  bool           `json:"is_default"`
	IsActive   bool           `json:"is_active"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TaxLine is the computed amount of one component
type TaxLine struct {
	Name    string `json:"name"`
	RateBps int64  `json:"rate_bps"`
	Amount  int64  `json:"amount"`
}

// TaxBreakdown is the result of applying a tax structure to an amount
type TaxBreakdown struct {
	Subtotal  int64     `json:"subtotal"`
	TaxTotal  int64     `json:"tax_total"`
	Total     int64     `json:"total"`
	Inclusive bool      `json:"inclusive"`
	Lines     []TaxLine `json:"lines"`
}

// NewTaxStructure validates and creates an active tax structure
func NewTaxStructure(tenantID, name string, components []TaxComponent, inclusive bool) (*TaxStructure, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	if err := ValidateTaxComponents(components); err != nil {
		return nil, err
	}

	now := time.Now()
	return &TaxStructure{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		Name:       name,
		Components: components,
		Inclusive:  inclusive,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ValidateTaxComponents checks names and rates
func ValidateTaxComponents(components []TaxComponent) error {
	for _, c := range components {
		if strings.TrimSpace(c.Name) == "" {
			return ErrMissingName
		}
		if c.RateBps < 0 || c.RateBps > MaxTaxRateBps {
			return ErrInvalidTaxRate
		}
	}
	return nil
}

// LegacyTaxStructure models the flat tenant rate used in legacy finance mode
func LegacyTaxStructure(rateBps int64) *TaxStructure {
	ts := &TaxStructure{Name: "Legacy flat rate", IsActive: true}
	if rateBps > 0 {
		ts.Components = []TaxComponent{{Name: "Tax", RateBps: rateBps}}
	}
	return ts
}

// Compute applies the structure to amount.
//
// Exclusive structures treat amount as the pre-tax subtotal and add each component on top;
// compound components are charged on the subtotal plus the taxes before them.
// Inclusive structures treat amount as the gross price and extract the tax from it.
// Each component rounds half-up to the minor unit.
func (t *TaxStructure) Compute(amount int64) TaxBreakdown {
	if t.Inclusive {
		return t.computeInclusive(amount)
	}
	lines, taxTotal := t.applyExclusive(amount)
	return TaxBreakdown{
		Subtotal: amount,
		TaxTotal: taxTotal,
		Total:    amount + taxTotal,
		Lines:    lines,
	}
}

func (t *TaxStructure) applyExclusive(subtotal int64) ([]TaxLine, int64) {
	lines := make([]TaxLine, 0, len(t.Components))
	var prior int64
	for _, c := range t.Components {
		base := subtotal
		if c.Compound {
			base += prior
		}
		amt := money.ApplyBps(base, c.RateBps)
		lines = append(lines, TaxLine{Name: c.Name, RateBps: c.RateBps, Amount: amt})
		prior += amt
	}
	return lines, prior
}

// computeInclusive divides the gross by the exact tax factor, then spreads any rounding
// residue onto the last component so that subtotal + taxes == gross.
func (t *TaxStructure) computeInclusive(gross int64) TaxBreakdown {
	net := new(big.Rat).Quo(new(big.Rat).SetInt64(gross), t.factor())
	subtotal := roundHalfUp(net)

	lines, taxTotal := t.applyExclusive(subtotal)
	if residue := gross - subtotal - taxTotal; residue != 0 && len(lines) > 0 {
		lines[len(lines)-1].Amount += residue
		taxTotal += residue
	}

	return TaxBreakdown{
		Subtotal:  subtotal,
		TaxTotal:  taxTotal,
		Total:     gross,
		Inclusive: true,
		Lines:     lines,
	}
}

// factor returns gross/net as an exact rational
func (t *TaxStructure) factor() *big.Rat {
	bps := big.NewRat(1, money.BasisPoints)
	prior := new(big.Rat)
	for _, c := range t.Components {
		base := big.NewRat(1, 1)
		if c.Compound {
			base.Add(base, prior)
		}
		rate := new(big.Rat).Mul(big.NewRat(c.RateBps, 1), bps)
		prior.Add(prior, rate.Mul(rate, base))
	}
	return prior.Add(prior, big.NewRat(1, 1))
}

func roundHalfUp(r *big.Rat) int64 {
	num := new(big.Int).Set(r.Num())
	den := r.Denom()
	neg := num.Sign() < 0
	num.Abs(num)

	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Mul(rem, big.NewInt(2)).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	if neg {
		q.Neg(q)
	}
	return q.Int64()
}

// EffectiveRateBps sums the structure's rates against the subtotal, counting compounding
func (t *TaxStructure) EffectiveRateBps() int64 {
	b := t.Compute(1_000_000)
	if t.Inclusive {
		return money.MulDivRound(b.TaxTotal, money.BasisPoints, b.Subtotal)
	}
	return money.MulDivRound(b.TaxTotal, money.BasisPoints, 1_000_000)
}
