// Package margins provides named margin types to keep the two scales used
// across the platform (0-1 fractions internally, 0-100 percentages at the API
// boundary) from being mixed up silently.
package margins

// Fraction is a margin-on-price expressed as a 0-1 fraction:
// (price - cost) / price.
type Fraction float64

// Percent is a margin-on-price expressed on a 0-100 scale.
type Percent float64

// Percent converts a fraction to the 0-100 scale.
func (f Fraction) Percent() Percent { return Percent(f * 100) }

// Fraction converts a percentage to the 0-1 scale.
func (p Percent) Fraction() Fraction { return Fraction(p / 100) }

// Clamp bounds f to [lo, hi].
func (f Fraction) Clamp(lo, hi Fraction) Fraction {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Clamp bounds p to [lo, hi].
func (p Percent) Clamp(lo, hi Percent) Percent {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}

// Price returns the selling price implied by a cost and a margin-on-price.
// A margin at or above 100% has no finite price; the cost is returned so
// callers never see Inf.
func Price(cost float64, m Fraction) float64 {
	if m >= 1 {
		return cost
	}
	return cost / (1 - float64(m))
}

// GrossProfit returns price minus cost for a cost and margin-on-price.
func GrossProfit(cost float64, m Fraction) float64 {
	return Price(cost, m) - cost
}

// FromGrossProfit returns the margin-on-price implied by a cost and a gross
// profit amount. Zero cost and zero profit yields a zero margin.
func FromGrossProfit(cost, gp float64) Fraction {
	price := cost + gp
	if price <= 0 {
		return 0
	}
	return Fraction(gp / price)
}
