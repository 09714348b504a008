package prompt

import (
	"slices"
	"sort"
	"strings"
	"unicode"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// Breakdown keys recorded on every ScoredItem.
const (
	FactorTaskType = "task_type"
	FactorTags     = "tags"
	FactorStep     = "step"
	FactorLocation = "location"
)

// Weights sets how much each factor contributes to a score.
type Weights struct {
	TaskType float64
	Tags     float64
	Step     float64
	Location float64
}

// DefaultWeights returns the standard factor weights.
func DefaultWeights() Weights {
	return Weights{
		TaskType: 0.25,
		Tags:     0.35,
		Step:     0.10,
		Location: 0.30,
	}
}

// ScoredItem is a fragment with its relevance score.
type ScoredItem struct {
	Fragment fragment.Scorable
	Score    float64

	// Breakdown holds each factor's value in [0,1], keyed by factor name.
	Breakdown map[string]float64
}

var taskTypeTags = map[TaskType][]string{
	TaskFeature:       {"implementation", "testing"},
	TaskBugfix:        {"testing", "error"},
	TaskRefactor:      {"refactor", "testing"},
	TaskTesting:       {"testing"},
	TaskDocumentation: {"documentation"},
	TaskPerformance:   {"performance", "testing"},
	TaskSecurity:      {"security", "testing"},
	TaskPlanning:      {"planning"},
	TaskReview:        {"review", "style"},
	TaskCIFix:         {"ci", "testing", "error"},
}

// stepKeywords maps step-name keywords to tags, in match order. A keyword
// matches any word of the step that starts with it, or only the exact word
// when wholeWord is set. Every tag here is also produced by the fragment
// keyword table.
var stepKeywords = []struct {
	keyword   string
	tag       string
	wholeWord bool
}{
	{keyword: "plan", tag: "planning"},
	{keyword: "implement", tag: "implementation"},
	{keyword: "build", tag: "implementation"},
	{keyword: "test", tag: "testing"},
	{keyword: "analy", tag: "analysis"},
	{keyword: "review", tag: "review"},
	{keyword: "fix", tag: "error"},
	{keyword: "repair", tag: "error"},
	{keyword: "ci", tag: "ci", wholeWord: true},
}

// TaskTypeToTags returns the tags implied by a task type.
// Unknown types map to an empty set.
func TaskTypeToTags(t TaskType) []string {
	tags := taskTypeTags[TaskType(strings.ToLower(string(t)))]
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// StepToTags returns the tags whose keyword starts a word of the step name,
// ignoring case. Unrecognized steps map to an empty set.
func StepToTags(step string) []string {
	step = strings.ToLower(step)
	words := strings.FieldsFunc(step, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := []string{}
	seen := make(map[string]bool)
	for _, k := range stepKeywords {
		if seen[k.tag] {
			continue
		}
		matched := slices.ContainsFunc(words, func(w string) bool {
			if k.wholeWord {
				return w == k.keyword
			}
			return strings.HasPrefix(w, k.keyword)
		})
		if matched {
			seen[k.tag] = true
			out = append(out, k.tag)
		}
	}
	return out
}

// RelevanceScorer scores fragments against a task.
type RelevanceScorer struct {
	weights Weights
}

// NewRelevanceScorer creates a scorer with the given weights.
func NewRelevanceScorer(weights Weights) *RelevanceScorer {
	return &RelevanceScorer{weights: weights}
}

// Weights returns the scorer's factor weights.
func (s *RelevanceScorer) Weights() Weights { return s.weights }

// ScoreFragment scores one fragment in [0,1].
//
// Each factor is the share of a reference tag set the fragment covers:
// the task type's tags, the context tags and the step's tags. Code fragments
// also get a location factor of 1 when their file is affected. The score is
// the weighted mean over the factors whose reference set is non-empty.
func (s *RelevanceScorer) ScoreFragment(f fragment.Scorable, tc *TaskContext) float64 {
	score, _ := s.score(f, tc)
	return score
}

// ScoreFragments scores every fragment and sorts them by descending score.
// Equal scores keep their input order.
func (s *RelevanceScorer) ScoreFragments(fragments []fragment.Scorable, tc *TaskContext) []ScoredItem {
	timer := logging.StartTimer(logging.CategoryScoring, "ScoreFragments")
	defer timer.Stop()

	items := make([]ScoredItem, 0, len(fragments))
	for _, f := range fragments {
		score, breakdown := s.score(f, tc)
		items = append(items, ScoredItem{Fragment: f, Score: score, Breakdown: breakdown})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	logging.ScoringDebug("scored %d fragments for %s task", len(items), tc.TaskType)
	return items
}

func (s *RelevanceScorer) score(f fragment.Scorable, tc *TaskContext) (float64, map[string]float64) {
	breakdown := make(map[string]float64, 4)
	var sum, weight float64

	apply := func(key string, w, value float64, applicable bool) {
		breakdown[key] = value
		if applicable && w > 0 {
			sum += w * value
			weight += w
		}
	}

	typeTags := TaskTypeToTags(tc.TaskType)
	apply(FactorTaskType, s.weights.TaskType, overlap(f, typeTags), len(typeTags) > 0)
	apply(FactorTags, s.weights.Tags, overlap(f, tc.Tags), len(tc.Tags) > 0)

	stepTags := StepToTags(tc.StepName)
	apply(FactorStep, s.weights.Step, overlap(f, stepTags), len(stepTags) > 0)

	if code, ok := f.(*fragment.Code); ok {
		apply(FactorLocation, s.weights.Location, locationMatch(code, tc.AffectedFiles), true)
	}

	if weight == 0 {
		return 0, breakdown
	}
	return clamp01(sum / weight), breakdown
}

// overlap is the fraction of ref carried by f.
func overlap(f fragment.Scorable, ref []string) float64 {
	if len(ref) == 0 {
		return 0
	}
	hits := 0
	for _, t := range ref {
		if f.HasTag(t) {
			hits++
		}
	}
	return float64(hits) / float64(len(ref))
}

func locationMatch(c *fragment.Code, affected []string) float64 {
	for _, p := range affected {
		if c.MatchesPath(p) {
			return 1
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
