package main

import (
	"encoding/json"
	"fmt"
	"os"

	"deal-margin/decision/bom"
	"deal-margin/decision/recommend"
	"deal-margin/decision/scenario"
	"deal-margin/decision/training"
)

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// =============================================================================
// RECOMMEND FORMATTERS
// =============================================================================

func outputRecommendTable(rec *recommend.Recommendation, cmp *scenario.Comparison) error {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                 💼 MARGIN RECOMMENDATION                      ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Suggested Margin:      %-38s ║\n", fmt.Sprintf("%.1f%%", float64(rec.SuggestedMarginPct)))
	fmt.Printf("║  Suggested Price:       $%-37s ║\n", rec.SuggestedPrice.StringFixed(2))
	fmt.Printf("║  Win Probability:       %-38s ║\n", fmt.Sprintf("%.0f%%", rec.WinProbability*100))
	fmt.Printf("║  Confidence:            %-38s ║\n", fmt.Sprintf("%.0f%%", rec.Confidence*100))
	fmt.Printf("║  Method:                %-38s ║\n", rec.Method)
	if rec.ConservativeMarginPct > 0 {
		fmt.Printf("║  Conservative Margin:   %-38s ║\n", fmt.Sprintf("%.1f%%", float64(rec.ConservativeMarginPct)))
		fmt.Printf("║  Aggressive Margin:     %-38s ║\n", fmt.Sprintf("%.1f%%", float64(rec.AggressiveMarginPct)))
	}

	if len(rec.Drivers) > 0 {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Println("║  TOP DRIVERS                                                  ║")
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		for _, d := range rec.Drivers {
			fmt.Printf("║  %-42s  %+7.2fpp     ║\n", truncate(d.Name, 42), float64(d.Value)*100)
		}
	}
	if len(rec.KeyDrivers) > 0 {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Println("║  KEY DRIVERS                                                  ║")
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		for _, s := range rec.KeyDrivers {
			fmt.Printf("║  %-60s ║\n", truncate(s, 60))
		}
	}

	if cmp != nil {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Println("║  PLANNED vs RECOMMENDED                                       ║")
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Planned Margin:        %-38s ║\n", fmt.Sprintf("%.1f%%", float64(cmp.PlannedMarginPct)))
		fmt.Printf("║  Planned Gross Profit:  $%-37s ║\n", cmp.PlannedGrossProfit.StringFixed(2))
		fmt.Printf("║  Gross Profit Delta:    $%-37s ║\n", cmp.GrossProfitDelta.StringFixed(2))
		fmt.Printf("║  Win Prob Delta:        %-38s ║\n", fmt.Sprintf("%+.0fpp", cmp.WinProbDelta*100))
	}

	if rec.Narrative != "" {
		fmt.Println("╠══════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  %-60s ║\n", truncate(rec.Narrative, 60))
	}
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func outputRecommendMarkdown(rec *recommend.Recommendation, cmp *scenario.Comparison) error {
	fmt.Println("## 💼 DealMargin Recommendation")
	fmt.Println()
	fmt.Println("| Metric | Value |")
	fmt.Println("|--------|-------|")
	fmt.Printf("| **Suggested Margin** | %.1f%% |\n", float64(rec.SuggestedMarginPct))
	fmt.Printf("| **Suggested Price** | $%s |\n", rec.SuggestedPrice.StringFixed(2))
	fmt.Printf("| **Win Probability** | %.0f%% |\n", rec.WinProbability*100)
	fmt.Printf("| **Confidence** | %.0f%% |\n", rec.Confidence*100)
	fmt.Printf("| **Method** | %s |\n", rec.Method)

	if len(rec.Drivers) > 0 {
		fmt.Println()
		fmt.Println("### 📊 Drivers")
		fmt.Println()
		fmt.Println("| Driver | Contribution |")
		fmt.Println("|--------|--------------|")
		for _, d := range rec.Drivers {
			fmt.Printf("| %s | %+.2fpp |\n", d.Name, float64(d.Value)*100)
		}
	}
	for _, s := range rec.KeyDrivers {
		fmt.Printf("- %s\n", s)
	}

	if cmp != nil {
		fmt.Println()
		fmt.Println("### ⚖️ Planned vs Recommended")
		fmt.Println()
		fmt.Printf("- Planned margin %.1f%% → gross profit $%s\n",
			float64(cmp.PlannedMarginPct), cmp.PlannedGrossProfit.StringFixed(2))
		fmt.Printf("- Recommended margin %.1f%% → gross profit $%s (delta $%s)\n",
			float64(cmp.RecommendedMarginPct), cmp.RecommendedGrossProfit.StringFixed(2), cmp.GrossProfitDelta.StringFixed(2))
	}
	return nil
}

// =============================================================================
// BOM FORMATTERS
// =============================================================================

func outputBomTable(alloc *bom.Allocation) error {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                 📦 BOM MARGIN ALLOCATION                      ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	for _, line := range alloc.Lines {
		label := string(line.Category)
		if line.Description != "" {
			label = line.Description
		}
		fmt.Printf("║  %-30s %6.1f%%  $%-18s ║\n",
			truncate(label, 30), float64(line.RecommendedMarginPct), line.ExtendedPrice.StringFixed(2))
	}
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Total Cost:            $%-37s ║\n", alloc.Totals.TotalCost.StringFixed(2))
	fmt.Printf("║  Total Price:           $%-37s ║\n", alloc.Totals.TotalPrice.StringFixed(2))
	fmt.Printf("║  Gross Profit:          $%-37s ║\n", alloc.Totals.GrossProfit.StringFixed(2))
	fmt.Printf("║  Blended Margin:        %-38s ║\n", fmt.Sprintf("%.1f%%", float64(alloc.Totals.BlendedMarginPct)))
	target := "—"
	if alloc.Totals.TargetAchieved {
		target = "✅ achieved"
	} else if alloc.Totals.GapPct != 0 {
		target = fmt.Sprintf("❌ missed by %.1fpp", alloc.Totals.GapPct)
	}
	fmt.Printf("║  Target:                %-38s ║\n", target)
	fmt.Printf("║  Health Score:          %-38d ║\n", alloc.HealthScore)
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	for _, insight := range alloc.Insights {
		fmt.Printf("║  • %-58s ║\n", truncate(insight, 58))
	}
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	return nil
}

func outputBomMarkdown(alloc *bom.Allocation) error {
	fmt.Println("## 📦 BOM Margin Allocation")
	fmt.Println()
	fmt.Println("| Line | Margin | Ext. Cost | Ext. Price | Gross Profit |")
	fmt.Println("|------|--------|-----------|------------|--------------|")
	for _, line := range alloc.Lines {
		label := string(line.Category)
		if line.Description != "" {
			label = line.Description
		}
		fmt.Printf("| %s | %.1f%% | $%s | $%s | $%s |\n",
			label, float64(line.RecommendedMarginPct),
			line.ExtendedCost.StringFixed(2), line.ExtendedPrice.StringFixed(2), line.GrossProfit.StringFixed(2))
	}
	fmt.Println()
	fmt.Printf("**Blended margin:** %.1f%% · **Gross profit:** $%s · **Health:** %d/100\n",
		float64(alloc.Totals.BlendedMarginPct), alloc.Totals.GrossProfit.StringFixed(2), alloc.HealthScore)
	fmt.Println()
	for _, insight := range alloc.Insights {
		fmt.Printf("- %s\n", insight)
	}
	return nil
}

// =============================================================================
// TRAINING FORMATTER
// =============================================================================

func outputTrainTable(customerID string, result *training.Result) error {
	fmt.Println()
	if result.Shortfall != nil {
		s := result.Shortfall
		fmt.Printf("⚠️  Not enough closed deals to train %s\n", customerID)
		fmt.Printf("    Total: %d/%d   Won: %d/%d   Lost: %d/%d   (need %d more)\n",
			s.TotalDeals, s.RequiredTotal, s.WonDeals, s.RequiredWon, s.LostDeals, s.RequiredLost, s.MissingDeals)
		return nil
	}

	pkg := result.Package
	fmt.Printf("✅ Trained model %s for %s\n", pkg.Version, customerID)
	fmt.Printf("    Deals: %d real + %d synthetic\n", pkg.TrainingDeals, result.Synthetic)
	fmt.Printf("    AUC: %.3f   Log-loss: %.3f   Accuracy: %.1f%%\n",
		pkg.Metrics.AUC, pkg.Metrics.LogLoss, pkg.Metrics.Accuracy*100)
	if result.Promoted {
		fmt.Println("    🎓 Customer promoted to model-backed recommendations")
	} else {
		fmt.Printf("    Model below promotion bar (AUC ≥ %.2f); rule-based path stays active\n", training.PromotionAUC)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
