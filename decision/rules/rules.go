// Package rules implements the rule-based margin scorer: roughly twenty
// additive adjustments over a segment base margin, optionally blended with
// neighbor evidence from closed deals. It is the deterministic fallback for
// every other recommendation path.
package rules

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"deal-margin/decision/deal"
	"deal-margin/decision/neighbor"
	"deal-margin/decision/winprob"
	"deal-margin/pkg/confidence"
	"deal-margin/pkg/margins"
)

// CeilingMargin is the hard upper bound on any recommendation.
const CeilingMargin = margins.Fraction(0.55)

// Driver is one heuristic's signed contribution to the recommendation, as a
// margin fraction.
type Driver struct {
	Name  string           `json:"name"`
	Value margins.Fraction `json:"value"`
}

// Result is a margin recommendation. It is never mutated after construction.
type Result struct {
	SuggestedMarginPct margins.Percent  `json:"suggested_margin_pct"`
	SuggestedPrice     decimal.Decimal  `json:"suggested_price"`
	WinProbability     float64          `json:"win_probability"` // 0-1
	Drivers            []Driver         `json:"drivers"`         // top 6 by |value|
	PolicyFloor        margins.Fraction `json:"policy_floor"`
	Confidence         float64          `json:"confidence"`
	Method             string           `json:"method"`
}

// PolicyFloor returns the minimum permitted margin for a deal's risk
// profile: 0.5% only for unregistered enterprise deals facing two or more
// competitors, 3% otherwise.
func PolicyFloor(d deal.DealContext) margins.Fraction {
	if d.Segment == deal.SegmentEnterprise && d.CompetitorCount >= 2 && d.Registration == deal.NotRegistered {
		return 0.005
	}
	return 0.03
}

// Alpha is the neighbor blend weight for a given neighbor count:
// 0.25 + count/40, clamped to [0.25, 0.6].
func Alpha(count int) float64 {
	return confidence.Clamp(0.25+float64(count)/40, 0.25, 0.6)
}

// Recommend produces the rule-based recommendation for a deal, blending in
// neighbor evidence when a summary is supplied.
func Recommend(input deal.DealContext, neighbors *neighbor.Summary) Result {
	d := deal.ApplyDefaults(input)
	floor := PolicyFloor(d)

	var drivers []Driver
	margin := margins.Fraction(0)
	add := func(name string, v margins.Fraction) {
		drivers = append(drivers, Driver{Name: name, Value: v})
		margin += v
	}

	// Base: an admin-configured OEM base margin takes precedence over the
	// segment table.
	if d.Vendor != nil && d.Vendor.BaseMarginPct != nil {
		add("OEM base margin", d.Vendor.BaseMarginPct.Fraction())
	} else {
		add("Segment base margin", segmentBase(d.Segment))
	}

	add("Deal registration", registrationAdj(d.Registration, d.Vendor))
	add("Competitor count", competitorAdj(d.CompetitorCount))
	add("Competitor aggression", aggressionAdj(d))
	add("Value-add level", valueAddAdj(d.ValueAdd))
	add("Customer relationship", relationshipAdj(d.Relationship))
	add("Price sensitivity", ratingAdj(3-d.PriceSensitivity, 0.005))
	add("Customer loyalty", ratingAdj(d.Loyalty-3, 0.004))
	add("Product category", categoryAdj(d.ProductCategory))
	add("Solution complexity", complexityAdj(d.Complexity))
	add("Strategic importance", strategicAdj(d.StrategicImportance))
	add("Buyer urgency", ratingAdj(d.Urgency-3, 0.004))
	add("New logo", boolAdj(d.NewLogo, -0.01))
	add("Differentiation", ratingAdj(d.Differentiation-3, 0.006))
	add("Tech sophistication", techSophisticationAdj(d.TechSophistication))
	add("Deal size", dealSizeAdj(d.OEMCost))
	add("Industry vertical", industryAdj(d.Industry))
	add("OEM vendor", vendorAdj(d.Vendor))
	add("Services attached", servicesAdj(d))
	add("Quarter-end timing", boolAdj(d.QuarterEnd, -0.01))
	add("Displacement deal", boolAdj(d.Displacement, -0.015))

	base := margin.Clamp(floor, CeilingMargin)
	final := base
	conf := confidence.Low
	method := "rules"

	if neighbors != nil && neighbors.Count > 0 {
		alpha := Alpha(neighbors.Count)
		blended := margins.Fraction(alpha*float64(neighbors.WeightedAvgMargin) + (1-alpha)*float64(base))
		drivers = append(drivers, Driver{
			Name:  "Similar deal history",
			Value: blended - base,
		})

		if neighbors.LostOnPrice > 0 {
			adj := margins.Fraction(-0.015 * float64(neighbors.LostOnPrice))
			drivers = append(drivers, Driver{Name: "Lost-on-price signal", Value: adj})
			blended += adj
		} else if neighbors.HighMarginWins > 0 {
			adj := margins.Fraction(0.01 * float64(neighbors.HighMarginWins))
			drivers = append(drivers, Driver{Name: "High-margin win signal", Value: adj})
			blended += adj
		}
		final = blended.Clamp(floor, CeilingMargin)
		conf = neighborConfidence(neighbors.Count, base, neighbors.WeightedAvgMargin)
		method = "rules+neighbors"
	}

	pct := final.Percent()
	return Result{
		SuggestedMarginPct: pct,
		SuggestedPrice:     decimal.NewFromFloat(margins.Price(d.OEMCost, final)).Round(2),
		WinProbability:     float64(winprob.Estimate(winprob.FromDeal(d, pct))) / 100,
		Drivers:            topDrivers(drivers, 6),
		PolicyFloor:        floor,
		Confidence:         conf,
		Method:             method,
	}
}

func aggressionAdj(d deal.DealContext) margins.Fraction {
	if len(d.Competitors) == 0 {
		return 0
	}
	return margins.Fraction((3 - d.AvgPriceAggression()) * 0.005)
}

func ratingAdj(delta int, step margins.Fraction) margins.Fraction {
	return margins.Fraction(delta) * step
}

func boolAdj(b bool, v margins.Fraction) margins.Fraction {
	if b {
		return v
	}
	return 0
}

func servicesAdj(d deal.DealContext) margins.Fraction {
	if !d.ServicesAttached {
		return 0
	}
	adj := margins.Fraction(0.015)
	// Services compound on hardware and complex solutions.
	if d.ProductCategory == deal.CategoryHardware ||
		d.Complexity == deal.ComplexityComplex || d.Complexity == deal.ComplexityVeryComplex {
		adj += 0.01
	}
	return adj
}

// neighborConfidence grows with neighbor count and shrinks with disagreement
// between the rule base and the neighbor average, clamped to [0.2, 0.8].
func neighborConfidence(count int, base, avg margins.Fraction) float64 {
	c := confidence.Low + math.Min(float64(count), 20)/100
	c -= math.Min(0.2, math.Abs(float64(base-avg))*2)
	return confidence.Clamp(c, confidence.Min, 0.8)
}

func topDrivers(drivers []Driver, n int) []Driver {
	sort.SliceStable(drivers, func(i, j int) bool {
		return math.Abs(float64(drivers[i].Value)) > math.Abs(float64(drivers[j].Value))
	})
	if len(drivers) > n {
		drivers = drivers[:n]
	}
	return drivers
}
