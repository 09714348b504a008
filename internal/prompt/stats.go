package prompt

import "time"

// Stats accumulates optimizer activity across runs. A run is counted when
// a selection is recorded; indexing or scoring alone is not a run.
type Stats struct {
	runs              int
	fragmentsIndexed  int
	fragmentsScored   int
	fragmentsSelected int
	fragmentsExcluded int
	tokensUsed        int
	utilizationSum    float64
	elapsed           time.Duration
}

// StatsSummary is a snapshot of Stats. Averages are 0 when no run was recorded.
type StatsSummary struct {
	RunsCount                int           `json:"runs_count"`
	TotalFragmentsIndexed    int           `json:"total_fragments_indexed"`
	TotalFragmentsScored     int           `json:"total_fragments_scored"`
	TotalFragmentsSelected   int           `json:"total_fragments_selected"`
	TotalFragmentsExcluded   int           `json:"total_fragments_excluded"`
	TotalTokensUsed          int           `json:"total_tokens_used"`
	TotalOptimizationTime    time.Duration `json:"total_optimization_time"`
	AverageBudgetUtilization float64       `json:"average_budget_utilization"`
	AverageOptimizationTime  time.Duration `json:"average_optimization_time"`
	AverageFragmentsSelected float64       `json:"average_fragments_selected"`
}

// NewStats returns an empty accumulator.
func NewStats() *Stats {
	return &Stats{}
}

// RecordIndexed adds n indexed fragments.
func (s *Stats) RecordIndexed(n int) {
	s.fragmentsIndexed += n
}

// RecordScored adds n scored fragments.
func (s *Stats) RecordScored(n int) {
	s.fragmentsScored += n
}

// RecordSelected records the outcome of one composition and counts a run.
// utilization is a percentage of the budget.
func (s *Stats) RecordSelected(selected, excluded, tokens int, utilization float64) {
	s.runs++
	s.fragmentsSelected += selected
	s.fragmentsExcluded += excluded
	s.tokensUsed += tokens
	s.utilizationSum += utilization
}

// RecordTime adds the elapsed time of one run.
func (s *Stats) RecordTime(d time.Duration) {
	s.elapsed += d
}

// Runs returns the number of recorded runs.
func (s *Stats) Runs() int { return s.runs }

// Summary returns the totals and averages.
func (s *Stats) Summary() StatsSummary {
	sum := StatsSummary{
		RunsCount:              s.runs,
		TotalFragmentsIndexed:  s.fragmentsIndexed,
		TotalFragmentsScored:   s.fragmentsScored,
		TotalFragmentsSelected: s.fragmentsSelected,
		TotalFragmentsExcluded: s.fragmentsExcluded,
		TotalTokensUsed:        s.tokensUsed,
		TotalOptimizationTime:  s.elapsed,
	}
	if s.runs > 0 {
		n := float64(s.runs)
		sum.AverageBudgetUtilization = s.utilizationSum / n
		sum.AverageOptimizationTime = s.elapsed / time.Duration(s.runs)
		sum.AverageFragmentsSelected = float64(s.fragmentsSelected) / n
	}
	return sum
}

// Reset zeroes every counter.
func (s *Stats) Reset() {
	*s = Stats{}
}
