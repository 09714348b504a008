package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStats_EmptySummary(t *testing.T) {
	s := NewStats().Summary()
	assert.Equal(t, StatsSummary{}, s)
}

func TestStats_IndexingAloneIsNotARun(t *testing.T) {
	s := NewStats()
	s.RecordIndexed(10)
	s.RecordScored(10)
	s.RecordTime(time.Second)

	sum := s.Summary()
	assert.Equal(t, 0, sum.RunsCount)
	assert.Equal(t, 10, sum.TotalFragmentsIndexed)
	assert.Equal(t, 0.0, sum.AverageBudgetUtilization)
	assert.Equal(t, time.Duration(0), sum.AverageOptimizationTime)
	assert.Equal(t, 0.0, sum.AverageFragmentsSelected)
}

func TestStats_Averages(t *testing.T) {
	s := NewStats()
	s.RecordSelected(4, 6, 300, 30)
	s.RecordTime(10 * time.Millisecond)
	s.RecordSelected(2, 0, 100, 70)
	s.RecordTime(30 * time.Millisecond)

	sum := s.Summary()
	assert.Equal(t, 2, sum.RunsCount)
	assert.Equal(t, 6, sum.TotalFragmentsSelected)
	assert.Equal(t, 6, sum.TotalFragmentsExcluded)
	assert.Equal(t, 400, sum.TotalTokensUsed)
	assert.Equal(t, 40*time.Millisecond, sum.TotalOptimizationTime)
	assert.InDelta(t, 50.0, sum.AverageBudgetUtilization, 1e-9)
	assert.Equal(t, 20*time.Millisecond, sum.AverageOptimizationTime)
	assert.InDelta(t, 3.0, sum.AverageFragmentsSelected, 1e-9)

	s.Reset()
	assert.Equal(t, StatsSummary{}, s.Summary())
	assert.Equal(t, 0, s.Runs())
}
