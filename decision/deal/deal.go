// Package deal defines the deal domain model shared by the recommendation
// engines: the attributes of one sales opportunity and the closed deals that
// feed similarity scoring and model training.
package deal

import (
	"time"

	"deal-margin/pkg/margins"
)

// Segment is the customer segment a deal belongs to.
type Segment string

const (
	SegmentSMB        Segment = "smb"
	SegmentMidMarket  Segment = "midmarket"
	SegmentEnterprise Segment = "enterprise"
)

// ProductCategory is the dominant product mix of the deal.
type ProductCategory string

const (
	CategoryHardware ProductCategory = "hardware"
	CategorySoftware ProductCategory = "software"
	CategoryCloud    ProductCategory = "cloud"
	CategoryServices ProductCategory = "services"
	CategoryHybrid   ProductCategory = "hybrid"
	CategoryOther    ProductCategory = "other"
)

// Relationship is the strength of the customer relationship.
type Relationship string

const (
	RelationshipNew         Relationship = "new"
	RelationshipDeveloping  Relationship = "developing"
	RelationshipEstablished Relationship = "established"
	RelationshipStrategic   Relationship = "strategic"
)

// Registration is the deal-registration status with the OEM vendor.
type Registration string

const (
	Registered    Registration = "registered"
	PartialReg    Registration = "partial"
	NotRegistered Registration = "not_registered"
)

// ValueAdd is how much value the reseller layers on top of the OEM product.
type ValueAdd string

const (
	ValueAddLow    ValueAdd = "low"
	ValueAddMedium ValueAdd = "medium"
	ValueAddHigh   ValueAdd = "high"
)

// Complexity is the solution complexity of the deal.
type Complexity string

const (
	ComplexitySimple      Complexity = "simple"
	ComplexityModerate    Complexity = "moderate"
	ComplexityComplex     Complexity = "complex"
	ComplexityVeryComplex Complexity = "very_complex"
)

// Tier is a coarse low/medium/high rating used for tech sophistication and
// strategic importance.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Industry is the customer's industry vertical.
type Industry string

const (
	IndustryHealthcare    Industry = "healthcare"
	IndustryFinance       Industry = "finance"
	IndustryGovernment    Industry = "government"
	IndustryEducation     Industry = "education"
	IndustryManufacturing Industry = "manufacturing"
	IndustryRetail        Industry = "retail"
	IndustryTechnology    Industry = "technology"
	IndustryOther         Industry = "other"
)

// VendorTier classifies an OEM vendor's pricing posture.
type VendorTier string

const (
	VendorTierPremium  VendorTier = "premium"
	VendorTierStandard VendorTier = "standard"
	VendorTierValue    VendorTier = "value"
)

// Status is the closed outcome of a historical deal.
type Status string

const (
	StatusWon  Status = "won"
	StatusLost Status = "lost"
)

// CompetitorProfile describes one named competitor on a deal.
type CompetitorProfile struct {
	Name            string `json:"name"`
	PriceAggression int    `json:"price_aggression"` // 1-5, 5 = most aggressive
}

// VendorProfile carries admin-configured overrides for an OEM vendor.
// Pointer fields are overrides; nil means "use the built-in tables".
type VendorProfile struct {
	Name                  string           `json:"name"`
	Tier                  VendorTier       `json:"tier"`
	BaseMarginPct         *margins.Percent `json:"base_margin_pct,omitempty"`
	RegistrationUpliftPct *margins.Percent `json:"registration_uplift_pct,omitempty"`
	MarginIQRPct          *margins.Percent `json:"margin_iqr_pct,omitempty"`
}

// DealContext describes one sales opportunity. It is constructed per request
// and never persisted by the engines themselves.
type DealContext struct {
	OEMCost float64 `json:"oem_cost"`

	Industry            Industry        `json:"industry"`
	Segment             Segment         `json:"segment"`
	ProductCategory     ProductCategory `json:"product_category"`
	Relationship        Relationship    `json:"relationship"`
	Registration        Registration    `json:"registration"`
	CompetitorCount     int             `json:"competitor_count"`
	ValueAdd            ValueAdd        `json:"value_add"`
	Complexity          Complexity      `json:"complexity"`
	TechSophistication  Tier            `json:"tech_sophistication"`
	StrategicImportance Tier            `json:"strategic_importance"`

	// 1-5 ratings; zero means unset and defaults to 3.
	PriceSensitivity int `json:"price_sensitivity"`
	Loyalty          int `json:"loyalty"`
	Urgency          int `json:"urgency"`
	Differentiation  int `json:"differentiation"`

	NewLogo          bool `json:"new_logo"`
	ServicesAttached bool `json:"services_attached"`
	QuarterEnd       bool `json:"quarter_end"`
	Displacement     bool `json:"displacement"`

	// Optional enrichment.
	Competitors []CompetitorProfile `json:"competitors,omitempty"`
	Vendor      *VendorProfile      `json:"vendor,omitempty"`

	// Bill-of-materials shape, when one is attached to the opportunity.
	BOMLineCount int              `json:"bom_line_count,omitempty"`
	BOMAvgMargin margins.Fraction `json:"bom_avg_margin,omitempty"`
}

// HistoricalDeal is a closed deal: a DealContext plus its outcome. It is the
// source of truth for both neighbor scoring and model training, and is
// read-only to the engines.
type HistoricalDeal struct {
	DealContext

	AchievedMargin margins.Fraction `json:"achieved_margin"` // margin-on-price
	Status         Status           `json:"status"`
	LossReason     string           `json:"loss_reason,omitempty"`
	CloseDate      time.Time        `json:"close_date"`
}

// Won reports whether the deal closed as a win.
func (h HistoricalDeal) Won() bool { return h.Status == StatusWon }

// ApplyDefaults resolves every optional attribute in one place so the scoring
// engines never re-derive defaults at the use site. Unset enums fall to their
// neutral member and unset 1-5 ratings to 3.
func ApplyDefaults(d DealContext) DealContext {
	if d.Industry == "" {
		d.Industry = IndustryOther
	}
	if d.Segment == "" {
		d.Segment = SegmentMidMarket
	}
	if d.ProductCategory == "" {
		d.ProductCategory = CategoryOther
	}
	if d.Relationship == "" {
		d.Relationship = RelationshipDeveloping
	}
	if d.Registration == "" {
		d.Registration = NotRegistered
	}
	if d.ValueAdd == "" {
		d.ValueAdd = ValueAddMedium
	}
	if d.Complexity == "" {
		d.Complexity = ComplexityModerate
	}
	if d.TechSophistication == "" {
		d.TechSophistication = TierMedium
	}
	if d.StrategicImportance == "" {
		d.StrategicImportance = TierMedium
	}
	d.PriceSensitivity = defaultRating(d.PriceSensitivity)
	d.Loyalty = defaultRating(d.Loyalty)
	d.Urgency = defaultRating(d.Urgency)
	d.Differentiation = defaultRating(d.Differentiation)
	return d
}

func defaultRating(r int) int {
	if r < 1 {
		return 3
	}
	if r > 5 {
		return 5
	}
	return r
}

// AvgPriceAggression returns the mean price aggression of the named
// competitors, or the neutral 3 when none are profiled.
func (d DealContext) AvgPriceAggression() float64 {
	if len(d.Competitors) == 0 {
		return 3
	}
	var sum float64
	for _, c := range d.Competitors {
		sum += float64(c.PriceAggression)
	}
	return sum / float64(len(d.Competitors))
}
