package prompt

import (
	"sort"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// CriticalScore is the score at which a fragment bypasses its category
// threshold.
const CriticalScore = 0.90

// IsCritical reports whether score marks a critical fragment.
func IsCritical(score float64) bool {
	return score >= CriticalScore
}

// CompositionResult is the outcome of one Compose call.
type CompositionResult struct {
	// Selected is sorted by descending score.
	Selected []ScoredItem

	TotalTokens   int
	Budget        int
	ExcludedCount int
	AverageScore  float64
}

// CategoryUsage is the share of a selection taken by one fragment category.
type CategoryUsage struct {
	Count  int `json:"count"`
	Tokens int `json:"tokens"`
}

// CompositionSummary flattens a CompositionResult for reports.
type CompositionSummary struct {
	SelectedCount     int                                 `json:"selected_count"`
	ExcludedCount     int                                 `json:"excluded_count"`
	TotalTokens       int                                 `json:"total_tokens"`
	Budget            int                                 `json:"budget"`
	BudgetUtilization float64                             `json:"budget_utilization"`
	AverageScore      float64                             `json:"average_score"`
	OverBudget        bool                                `json:"over_budget"`
	ByCategory        map[fragment.Category]CategoryUsage `json:"by_category"`
}

// BudgetUtilization is TotalTokens as a percentage of Budget, or 0 for a
// non-positive budget.
func (r *CompositionResult) BudgetUtilization() float64 {
	if r.Budget <= 0 {
		return 0
	}
	return float64(r.TotalTokens) / float64(r.Budget) * 100
}

// SelectedCount is the number of selected fragments.
func (r *CompositionResult) SelectedCount() int {
	return len(r.Selected)
}

// OverBudget reports whether the selection exceeds the budget.
func (r *CompositionResult) OverBudget() bool {
	return r.TotalTokens > r.Budget
}

// FragmentsByType returns the selected items of one category, in selection order.
func (r *CompositionResult) FragmentsByType(cat fragment.Category) []ScoredItem {
	var out []ScoredItem
	for _, it := range r.Selected {
		if it.Fragment.Category() == cat {
			out = append(out, it)
		}
	}
	return out
}

// Summary returns the result statistics with a per-category breakdown.
// Every category appears in ByCategory, with zeros when nothing was selected.
func (r *CompositionResult) Summary() CompositionSummary {
	by := make(map[fragment.Category]CategoryUsage, 3)
	for _, cat := range fragment.AllCategories() {
		by[cat] = CategoryUsage{}
	}
	for _, it := range r.Selected {
		u := by[it.Fragment.Category()]
		u.Count++
		u.Tokens += it.Fragment.EstimatedTokens()
		by[it.Fragment.Category()] = u
	}
	return CompositionSummary{
		SelectedCount:     r.SelectedCount(),
		ExcludedCount:     r.ExcludedCount,
		TotalTokens:       r.TotalTokens,
		Budget:            r.Budget,
		BudgetUtilization: r.BudgetUtilization(),
		AverageScore:      r.AverageScore,
		OverBudget:        r.OverBudget(),
		ByCategory:        by,
	}
}

// ContextComposer selects scored fragments under a token budget.
type ContextComposer struct {
	maxTokens int
}

// NewContextComposer creates a composer with the given token ceiling.
func NewContextComposer(maxTokens int) *ContextComposer {
	return &ContextComposer{maxTokens: maxTokens}
}

// MaxTokens returns the composer's ceiling.
func (c *ContextComposer) MaxTokens() int { return c.maxTokens }

// Compose picks fragments from items.
//
// The budget is maxTokens minus reservedTokens, floored at 0. Items are
// deduplicated by id keeping the highest score (the first seen on a tie).
// Critical items are always candidates; the others must reach their
// category's threshold when one is given. Candidates are visited by
// descending score, then first-seen order, and each one that still fits is
// taken. One that does not fit is excluded and the scan moves on, so the
// total never exceeds the budget.
func (c *ContextComposer) Compose(items []ScoredItem, reservedTokens int, thresholds map[fragment.Category]float64) *CompositionResult {
	timer := logging.StartTimer(logging.CategoryCompose, "Compose")
	defer timer.Stop()

	budget := c.maxTokens - reservedTokens
	if budget < 0 {
		budget = 0
	}

	unique := dedupe(items)

	candidates := make([]ScoredItem, 0, len(unique))
	for _, it := range unique {
		if IsCritical(it.Score) {
			candidates = append(candidates, it)
			continue
		}
		if floor, ok := thresholds[it.Fragment.Category()]; ok && it.Score < floor {
			logging.ComposeDebug("below %s threshold %.2f: %s (%.3f)",
				it.Fragment.Category(), floor, it.Fragment.ID(), it.Score)
			continue
		}
		candidates = append(candidates, it)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	result := &CompositionResult{Budget: budget}
	var scoreSum float64
	for _, it := range candidates {
		tokens := it.Fragment.EstimatedTokens()
		if result.TotalTokens+tokens > budget {
			if IsCritical(it.Score) {
				logging.ComposeDebug("critical fragment %s (%d tokens) does not fit, %d/%d used",
					it.Fragment.ID(), tokens, result.TotalTokens, budget)
			}
			continue
		}
		result.Selected = append(result.Selected, it)
		result.TotalTokens += tokens
		scoreSum += it.Score
	}

	result.ExcludedCount = len(unique) - len(result.Selected)
	if len(result.Selected) > 0 {
		result.AverageScore = scoreSum / float64(len(result.Selected))
	}

	logging.ComposeDebug("selected %d/%d fragments, %d/%d tokens",
		len(result.Selected), len(unique), result.TotalTokens, budget)
	return result
}

// dedupe keeps one item per fragment id: the highest-scoring one, at the
// position where the id was first seen.
func dedupe(items []ScoredItem) []ScoredItem {
	index := make(map[string]int, len(items))
	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		id := it.Fragment.ID()
		if i, ok := index[id]; ok {
			if it.Score > out[i].Score {
				out[i] = it
			}
			continue
		}
		index[id] = len(out)
		out = append(out, it)
	}
	return out
}
