package rules

import (
	"deal-margin/decision/deal"
	"deal-margin/pkg/margins"
)

// Adjustment tables. Every enum is matched exhaustively with a documented
// default arm so a new category is a compile-visible change, not a silent
// fall-through.

func segmentBase(s deal.Segment) margins.Fraction {
	switch s {
	case deal.SegmentSMB:
		return 0.20
	case deal.SegmentMidMarket:
		return 0.17
	case deal.SegmentEnterprise:
		return 0.14
	default:
		// Unknown segments price like mid-market.
		return 0.17
	}
}

func registrationAdj(r deal.Registration, vendor *deal.VendorProfile) margins.Fraction {
	if vendor != nil && vendor.RegistrationUpliftPct != nil && r == deal.Registered {
		return vendor.RegistrationUpliftPct.Fraction()
	}
	switch r {
	case deal.Registered:
		return 0.06
	case deal.PartialReg:
		return 0.03
	case deal.NotRegistered:
		return 0
	default:
		return 0
	}
}

func competitorAdj(count int) margins.Fraction {
	switch {
	case count <= 0:
		return 0.025
	case count == 1:
		return 0
	case count == 2:
		return -0.02
	default:
		return -0.035
	}
}

func valueAddAdj(va deal.ValueAdd) margins.Fraction {
	switch va {
	case deal.ValueAddHigh:
		return 0.02
	case deal.ValueAddLow:
		return -0.015
	case deal.ValueAddMedium:
		return 0
	default:
		return 0
	}
}

func relationshipAdj(r deal.Relationship) margins.Fraction {
	switch r {
	case deal.RelationshipStrategic:
		return 0.02
	case deal.RelationshipEstablished:
		return 0.01
	case deal.RelationshipNew:
		return -0.01
	case deal.RelationshipDeveloping:
		return 0
	default:
		return 0
	}
}

func categoryAdj(c deal.ProductCategory) margins.Fraction {
	switch c {
	case deal.CategoryHardware:
		return -0.01
	case deal.CategorySoftware:
		return 0.02
	case deal.CategoryCloud:
		return 0.005
	case deal.CategoryServices:
		return 0.03
	case deal.CategoryHybrid:
		return 0.01
	case deal.CategoryOther:
		return 0
	default:
		return 0
	}
}

func complexityAdj(c deal.Complexity) margins.Fraction {
	switch c {
	case deal.ComplexitySimple:
		return -0.005
	case deal.ComplexityModerate:
		return 0
	case deal.ComplexityComplex:
		return 0.015
	case deal.ComplexityVeryComplex:
		return 0.025
	default:
		return 0
	}
}

func strategicAdj(t deal.Tier) margins.Fraction {
	switch t {
	case deal.TierHigh:
		// Invest in strategically important logos.
		return -0.015
	case deal.TierLow:
		return 0.005
	case deal.TierMedium:
		return 0
	default:
		return 0
	}
}

func techSophisticationAdj(t deal.Tier) margins.Fraction {
	switch t {
	case deal.TierHigh:
		// Sophisticated buyers benchmark pricing.
		return -0.01
	case deal.TierLow:
		return 0.01
	case deal.TierMedium:
		return 0
	default:
		return 0
	}
}

func dealSizeAdj(cost float64) margins.Fraction {
	switch {
	case cost < 10_000:
		// Small-deal premium: fixed cost of sale dominates.
		return 0.02
	case cost > 3_000_000:
		return -0.04
	case cost > 1_000_000:
		return -0.03
	case cost > 250_000:
		return -0.02
	default:
		return 0
	}
}

func industryAdj(i deal.Industry) margins.Fraction {
	switch i {
	case deal.IndustryHealthcare:
		return 0.01
	case deal.IndustryFinance:
		return 0.005
	case deal.IndustryGovernment:
		return -0.015
	case deal.IndustryEducation:
		return -0.01
	case deal.IndustryRetail:
		return -0.005
	case deal.IndustryTechnology:
		return 0.005
	case deal.IndustryManufacturing, deal.IndustryOther:
		return 0
	default:
		return 0
	}
}

func vendorAdj(v *deal.VendorProfile) margins.Fraction {
	if v == nil {
		return 0
	}
	switch v.Tier {
	case deal.VendorTierPremium:
		// Premium OEMs leave less room over list.
		return -0.01
	case deal.VendorTierValue:
		return 0.01
	case deal.VendorTierStandard:
		return 0
	default:
		return 0
	}
}
