package bom

import "deal-margin/pkg/margins"

// Category classifies a bill-of-materials line item.
type Category string

const (
	Hardware             Category = "hardware"
	Software             Category = "software"
	Cloud                Category = "cloud"
	ProfessionalServices Category = "professional_services"
	ManagedServices      Category = "managed_services"
	ComplexSolution      Category = "complex_solution"
)

// profile is the margin envelope for a category: the policy floor, the
// ceiling, the default target before context adjustment, and how much of a
// blended-margin correction the category can absorb relative to others.
type profile struct {
	FloorPct   margins.Percent
	CeilingPct margins.Percent
	TargetPct  margins.Percent
	Elasticity float64
}

// categoryProfile matches categories exhaustively; anything unrecognized
// gets the conservative hardware-like default.
func categoryProfile(c Category) profile {
	switch c {
	case Hardware:
		return profile{FloorPct: 5, CeilingPct: 25, TargetPct: 12, Elasticity: 1.0}
	case Software:
		return profile{FloorPct: 8, CeilingPct: 40, TargetPct: 25, Elasticity: 1.2}
	case Cloud:
		return profile{FloorPct: 6, CeilingPct: 30, TargetPct: 15, Elasticity: 1.0}
	case ProfessionalServices:
		return profile{FloorPct: 15, CeilingPct: 50, TargetPct: 30, Elasticity: 1.5}
	case ManagedServices:
		return profile{FloorPct: 12, CeilingPct: 45, TargetPct: 28, Elasticity: 1.3}
	case ComplexSolution:
		return profile{FloorPct: 10, CeilingPct: 40, TargetPct: 22, Elasticity: 1.2}
	default:
		// Unknown categories price like commodity hardware.
		return profile{FloorPct: 5, CeilingPct: 25, TargetPct: 12, Elasticity: 0.8}
	}
}
