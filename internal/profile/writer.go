package profile

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/job-scout/internal/llm"
	"github.com/jonathan/job-scout/internal/prompts"
	"github.com/jonathan/job-scout/internal/types"
)

// Bounds for the prioritized subset the writer selects across list clusters
const (
	minSelectedItems = 15
	maxSelectedItems = 20
)

// WriterStage produces the final prose summary and selects a prioritized
// subset of items across list clusters, ordered by recency and declared
// relevance to any target-role keywords in the profile. It only reshapes and
// prioritizes existing clusters, so it cannot regress completeness.
type WriterStage struct{}

// Name returns the stage name
func (s *WriterStage) Name() string { return "writer" }

// Apply prioritizes list items and polishes the summary.
func (s *WriterStage) Apply(ctx context.Context, snapshot types.Profile, sc *StageContext) (*Delta, error) {
	delta := NewDelta()
	prioritizeItems(snapshot, delta, sc)

	summary, err := s.polishSummary(ctx, snapshot, sc)
	if err != nil {
		return delta, err
	}
	if summary != "" {
		cd := delta.Cluster(types.ClusterSummary)
		cd.Fields = map[string]string{"text": summary}
		conf := snapshot[types.ClusterSummary].Confidence
		if conf < settledThreshold {
			conf = settledThreshold
		}
		cd.Confidence = &conf
	}
	return delta, nil
}

// scoredItem pairs an item with its cluster and priority for global selection
type scoredItem struct {
	cluster   string
	item      types.Item
	recency   float64
	relevance float64
}

// prioritizeItems ranks items across all included list clusters and emits
// reorder deltas carrying the selected subset first, with relevance recorded
// on each selected item.
func prioritizeItems(snapshot types.Profile, delta *Delta, sc *StageContext) {
	now := sc.Now
	if now.IsZero() {
		now = time.Now()
	}

	var scored []scoredItem
	for name := range types.ListClusters {
		cluster, ok := snapshot[name]
		if !ok || !cluster.Include {
			continue
		}
		for _, item := range cluster.Items {
			scored = append(scored, scoredItem{
				cluster:   name,
				item:      item,
				recency:   recencyScore(item, now),
				relevance: keywordRelevance(item, sc.TargetKeywords),
			})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].recency != scored[j].recency {
			return scored[i].recency > scored[j].recency
		}
		return scored[i].relevance > scored[j].relevance
	})

	limit := maxSelectedItems
	if len(scored) < limit {
		limit = len(scored)
	}

	// Relevance spreads over the selection window, never thinner than the
	// minimum window, so a short list still ranks steeply.
	span := limit
	if span < minSelectedItems {
		span = minSelectedItems
	}

	for rank, si := range scored[:limit] {
		item := si.item
		item.Relevance = 1.0 - float64(rank)/float64(span)
		cd := delta.Cluster(si.cluster)
		cd.Reorder = true
		cd.Items = append(cd.Items, item)
	}
}

// recencyScore scores an item by its start date: 1.0 now, decaying linearly
// to 0.0 at ten years old. Undated items score a neutral 0.5.
func recencyScore(item types.Item, now time.Time) float64 {
	raw := item.EndDate
	if raw == "" {
		raw = item.StartDate
	}
	if raw == "" {
		return 0.5
	}
	date, err := time.Parse("2006-01", raw)
	if err != nil {
		return 0.5
	}

	const maxYears = 10.0
	years := now.Sub(date).Hours() / (24 * 365.25)
	if years < 0 {
		return 1.0
	}
	if years >= maxYears {
		return 0.0
	}
	return 1.0 - years/maxYears
}

// keywordRelevance counts target-role keyword hits in the item text,
// normalized by the number of keywords.
func keywordRelevance(item types.Item, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}
	text := strings.ToLower(item.Title + " " + item.Organization + " " + item.Description)
	matches := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}

// polishSummary asks the completion service for final prose. With nothing to
// summarize, or without a caller, it leaves the summary untouched.
func (s *WriterStage) polishSummary(ctx context.Context, snapshot types.Profile, sc *StageContext) (string, error) {
	material := summaryMaterial(snapshot)
	if material == "" || sc.Caller == nil {
		return "", nil
	}

	prompt := prompts.Format(prompts.MustGet("writing.json", "polish_summary"), map[string]string{
		"Material": material,
		"Keywords": strings.Join(sc.TargetKeywords, ", "),
	})
	return sc.Caller.GenerateContent(ctx, prompt, llm.TierAdvanced)
}

// summaryMaterial flattens the populated, included clusters into prompt text
func summaryMaterial(snapshot types.Profile) string {
	var sb strings.Builder
	for _, name := range types.ClusterNames {
		cluster, ok := snapshot[name]
		if !ok || !cluster.Include || cluster.Empty() {
			continue
		}
		sb.WriteString(name)
		sb.WriteString(":\n")
		for k, v := range cluster.Fields {
			sb.WriteString("  " + k + ": " + v + "\n")
		}
		for _, item := range cluster.Items {
			sb.WriteString("  - " + item.Title)
			if item.Organization != "" {
				sb.WriteString(" at " + item.Organization)
			}
			if item.Description != "" {
				sb.WriteString(": " + item.Description)
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}
