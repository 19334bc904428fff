package inference

import (
	"fmt"
	"math"
	"sort"

	"deal-margin/decision/deal"
	"deal-margin/decision/feature"
	"deal-margin/decision/training"
	"deal-margin/pkg/margins"
)

// keyDrivers translates the model's heaviest features into plain-language
// sentences, signed by each feature's actual contribution (normalized value
// times weight) for this deal at the chosen margin.
func keyDrivers(d deal.DealContext, pkg *training.Package, marginPct margins.Percent, n int) []string {
	m := marginPct.Fraction()
	vec := feature.Vector(d, pkg.NormStats, feature.Overrides{ProposedMargin: &m})
	names := feature.Names()

	type contribution struct {
		name   string
		weight float64
		value  float64
	}
	contribs := make([]contribution, 0, len(vec))
	for i, w := range pkg.Model.Weights {
		if i >= len(names) {
			break
		}
		contribs = append(contribs, contribution{name: names[i], weight: w, value: vec[i] * w})
	}
	sort.SliceStable(contribs, func(i, j int) bool {
		return math.Abs(contribs[i].weight) > math.Abs(contribs[j].weight)
	})
	if len(contribs) > n {
		contribs = contribs[:n]
	}

	out := make([]string, 0, len(contribs))
	for _, c := range contribs {
		out = append(out, driverSentence(c.name, c.value))
	}
	return out
}

func driverSentence(name string, contribution float64) string {
	direction := "raises"
	if contribution < 0 {
		direction = "lowers"
	}
	subject := featureSubject(name)
	return fmt.Sprintf("%s %s the win odds for this deal (%+.3f)", subject, direction, contribution)
}

// featureSubject maps a feature name to reader-facing phrasing. The default
// arm covers features added later without breaking explanations.
func featureSubject(name string) string {
	switch name {
	case "log_oem_cost":
		return "The deal's cost basis"
	case "proposed_margin":
		return "The proposed margin"
	case "price_sensitivity":
		return "This customer's price sensitivity"
	case "loyalty":
		return "Customer loyalty"
	case "urgency":
		return "Buyer urgency"
	case "differentiation":
		return "Your differentiation"
	case "competitor_count":
		return "The number of competitors"
	case "bom_line_count":
		return "The size of the bill of materials"
	case "new_logo":
		return "Being a new-logo pursuit"
	case "services_attached":
		return "Attached services"
	case "quarter_end":
		return "Quarter-end timing"
	case "displacement":
		return "Displacing an incumbent"
	case "seg_smb":
		return "The SMB segment"
	case "seg_midmarket":
		return "The mid-market segment"
	case "cat_hardware":
		return "The hardware mix"
	case "cat_software":
		return "The software mix"
	case "cat_cloud":
		return "The cloud mix"
	case "cat_services":
		return "The services mix"
	case "cat_hybrid":
		return "The hybrid product mix"
	case "rel_new":
		return "A brand-new relationship"
	case "rel_developing":
		return "A developing relationship"
	case "rel_established":
		return "An established relationship"
	case "reg_registered":
		return "Full deal registration"
	case "reg_partial":
		return "Partial deal registration"
	case "va_low":
		return "Low value-add"
	case "va_medium":
		return "Moderate value-add"
	case "cx_simple":
		return "A simple solution"
	case "cx_moderate":
		return "A moderately complex solution"
	case "cx_complex":
		return "A complex solution"
	default:
		return "The " + name + " signal"
	}
}
