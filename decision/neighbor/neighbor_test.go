package neighbor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"deal-margin/decision/deal"
)

func sampleDeal() deal.DealContext {
	return deal.DealContext{
		OEMCost:         120_000,
		Industry:        deal.IndustryHealthcare,
		Segment:         deal.SegmentMidMarket,
		ProductCategory: deal.CategoryHardware,
		Relationship:    deal.RelationshipEstablished,
		Registration:    deal.Registered,
		CompetitorCount: 2,
		ValueAdd:        deal.ValueAddHigh,
		Complexity:      deal.ComplexityModerate,
	}
}

func TestTimeDecaySteps(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ago  time.Duration
		want float64
	}{
		{"six months", 182 * 24 * time.Hour, 1.0},
		{"eighteen months", 548 * 24 * time.Hour, 0.85},
		{"thirty months", 912 * 24 * time.Hour, 0.70},
		{"four years", 4 * 365 * 24 * time.Hour, 0.50},
		{"seven years", 7 * 365 * 24 * time.Hour, 0.30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, TimeDecay(now.Add(-tt.ago), now))
		})
	}
}

func TestTimeDecayZeroDateIsNeutral(t *testing.T) {
	require.Equal(t, 0.5, TimeDecay(time.Time{}, time.Now()))
}

func TestSimilarityIdenticalBeatsDissimilar(t *testing.T) {
	input := sampleDeal()

	twin := deal.HistoricalDeal{DealContext: input, Status: deal.StatusWon}
	stranger := deal.HistoricalDeal{
		DealContext: deal.DealContext{
			OEMCost:         3_000,
			Industry:        deal.IndustryRetail,
			Segment:         deal.SegmentSMB,
			ProductCategory: deal.CategoryCloud,
			Relationship:    deal.RelationshipNew,
			Registration:    deal.NotRegistered,
			CompetitorCount: 0,
		},
		Status: deal.StatusLost,
	}

	require.Greater(t, Similarity(input, twin), Similarity(input, stranger))
}

func TestSimilarityCompetitorOverlap(t *testing.T) {
	input := sampleDeal()
	input.Competitors = []deal.CompetitorProfile{{Name: "CDW"}, {Name: "SHI"}}

	full := deal.HistoricalDeal{DealContext: input, Status: deal.StatusWon}
	partial := full
	partial.Competitors = []deal.CompetitorProfile{{Name: "CDW"}, {Name: "Insight"}}
	none := full
	none.Competitors = []deal.CompetitorProfile{{Name: "Insight"}, {Name: "Connection"}}

	sFull := Similarity(input, full)
	sPartial := Similarity(input, partial)
	sNone := Similarity(input, none)
	require.Greater(t, sFull, sPartial)
	require.Greater(t, sPartial, sNone)
}

func TestSimilarityPartialCompetitiveCredit(t *testing.T) {
	input := sampleDeal()
	input.CompetitorCount = 3

	contested := deal.HistoricalDeal{DealContext: sampleDeal(), Status: deal.StatusWon}
	contested.CompetitorCount = 2 // different count, both ≥2
	uncontested := deal.HistoricalDeal{DealContext: sampleDeal(), Status: deal.StatusWon}
	uncontested.CompetitorCount = 0

	require.Greater(t, Similarity(input, contested), Similarity(input, uncontested))
}

func TestTopKSummary(t *testing.T) {
	input := sampleDeal()

	history := []deal.HistoricalDeal{
		{DealContext: input, AchievedMargin: 0.25, Status: deal.StatusWon},
		{DealContext: input, AchievedMargin: 0.22, Status: deal.StatusWon},
		{DealContext: input, AchievedMargin: 0.15, Status: deal.StatusLost, LossReason: "Lost on price"},
		{DealContext: input, AchievedMargin: 0.18, Status: deal.StatusLost, LossReason: "feature gap"},
	}

	summary := TopK(input, history, 10, Options{})
	require.Equal(t, 4, summary.Count)
	require.Equal(t, 1, summary.LostOnPrice)
	require.Equal(t, 2, summary.HighMarginWins)

	// Equal similarity: weighted average is the plain mean.
	require.InDelta(t, 0.20, float64(summary.WeightedAvgMargin), 1e-9)
}

func TestTopKKeepsOnlyKBest(t *testing.T) {
	input := sampleDeal()
	history := make([]deal.HistoricalDeal, 10)
	for i := range history {
		history[i] = deal.HistoricalDeal{DealContext: input, AchievedMargin: 0.1, Status: deal.StatusWon}
	}

	summary := TopK(input, history, 3, Options{})
	require.Equal(t, 3, summary.Count)
	require.Len(t, summary.Neighbors, 3)
}

func TestTopKRecencyDecayDownWeightsOldDeals(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	input := sampleDeal()

	recent := deal.HistoricalDeal{DealContext: input, AchievedMargin: 0.30, Status: deal.StatusWon, CloseDate: now.AddDate(0, -2, 0)}
	ancient := deal.HistoricalDeal{DealContext: input, AchievedMargin: 0.10, Status: deal.StatusWon, CloseDate: now.AddDate(-8, 0, 0)}

	summary := TopK(input, []deal.HistoricalDeal{recent, ancient}, 2, Options{Now: now})
	require.Equal(t, recent.AchievedMargin, summary.Neighbors[0].Deal.AchievedMargin)
	require.Greater(t, summary.Neighbors[0].Score, summary.Neighbors[1].Score)

	// Weighted average leans toward the recent margin: 1.0 vs 0.30 weight.
	require.Greater(t, float64(summary.WeightedAvgMargin), 0.20)
}

func TestTopKEmptyHistory(t *testing.T) {
	summary := TopK(sampleDeal(), nil, 10, Options{})
	require.Equal(t, 0, summary.Count)
	require.Equal(t, 0.0, float64(summary.WeightedAvgMargin))
}
