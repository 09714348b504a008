package prompt

import (
	"time"

	"github.com/google/uuid"

	"agentctx/internal/config"
	"agentctx/internal/fragment"
	"agentctx/internal/index"
	"agentctx/internal/logging"
	"agentctx/internal/world"
)

// DefaultReservedTokens is the task-section reservation used when dynamic
// adjustment is off.
const DefaultReservedTokens = 256

const (
	// sectionOverheadTokens covers headings and dividers around the task section.
	sectionOverheadTokens = 16

	// metadataAllowanceTokens covers the metadata section.
	metadataAllowanceTokens = 96
)

// Source labels used for metrics and logs.
const (
	SourceStyleGuide = "style_guide"
	SourceTemplates  = "templates"
	SourceCode       = "source"
)

// MetricsObserver receives optimizer activity. metrics.Recorder implements it.
type MetricsObserver interface {
	ObserveIndexed(source string, n int)
	ObserveSourceError(source string)
	ObserveSelection(category string, selected, tokens int)
	ObserveRun(excluded int, utilization float64, elapsed time.Duration)
}

// OptimizeOptions are per-call overrides.
type OptimizeOptions struct {
	// MaxTokens overrides the configured budget when positive.
	MaxTokens int

	// IncludeMetadata appends the metadata section.
	IncludeMetadata bool
}

// OptimizeRequest describes one prompt to build.
type OptimizeRequest struct {
	TaskType      TaskType
	Description   string
	AffectedFiles []string
	StepName      string
	Tags          []string
	Options       OptimizeOptions
}

// Optimizer caches the project indexes and runs the scoring, composition
// and build pipeline. It is not safe for concurrent use.
type Optimizer struct {
	cfg       config.PromptOptimizationConfig
	workspace string

	styleGuide *index.StyleGuideIndexer
	templates  *index.TemplateIndexer
	fragmenter *world.Fragmenter

	scorer  *RelevanceScorer
	builder *PromptBuilder
	stats   *Stats
	metrics MetricsObserver
	now     func() time.Time

	styleGuidePath string
	templatesDir   string
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithWorkspace sets the project root that relative paths resolve against.
func WithWorkspace(dir string) Option {
	return func(o *Optimizer) { o.workspace = dir }
}

// WithMetrics reports activity to m.
func WithMetrics(m MetricsObserver) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// WithWeights replaces the default scoring weights.
func WithWeights(w Weights) Option {
	return func(o *Optimizer) { o.scorer = NewRelevanceScorer(w) }
}

// WithClock replaces the time source used for timing and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) { o.now = now }
}

// NewOptimizer creates an optimizer for cfg (defaults when nil).
func NewOptimizer(cfg *config.Config, opts ...Option) *Optimizer {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := &Optimizer{
		cfg:    cfg.PromptOptimization,
		scorer: NewRelevanceScorer(DefaultWeights()),
		stats:  NewStats(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.styleGuidePath = config.ResolvePath(o.workspace, cfg.StyleGuidePath)
	o.templatesDir = config.ResolvePath(o.workspace, cfg.TemplatesDir)
	o.styleGuide = index.NewStyleGuideIndexer(o.styleGuidePath)
	o.templates = index.NewTemplateIndexer(o.templatesDir)
	o.fragmenter = world.NewFragmenter(o.workspace)
	o.builder = NewPromptBuilder(o.workspace).WithClock(o.now)

	logging.OptimizerDebug("optimizer created: workspace=%s style_guide=%s templates=%s",
		o.workspace, o.styleGuidePath, o.templatesDir)
	return o
}

// Config returns the prompt optimization settings in use.
func (o *Optimizer) Config() config.PromptOptimizationConfig { return o.cfg }

// OptimizePrompt builds the prompt for one task. Unreadable sources are
// logged and contribute no fragments.
func (o *Optimizer) OptimizePrompt(req OptimizeRequest) *PromptOutput {
	start := o.now()
	timer := logging.StartTimer(logging.CategoryOptimizer, "OptimizePrompt")
	defer timer.Stop()

	tc := NewTaskContext(req.TaskType, req.Description, req.AffectedFiles, req.StepName, req.Tags)
	runID := uuid.NewString()

	if !o.cfg.Enabled {
		logging.OptimizerDebug("prompt optimization disabled, task section only")
		out := o.builder.Build(tc, nil, req.Options.IncludeMetadata)
		out.Metadata["run_id"] = runID
		out.Metadata["optimization_enabled"] = false
		return out
	}

	maxTokens := o.cfg.MaxTokens
	if req.Options.MaxTokens > 0 {
		maxTokens = req.Options.MaxTokens
	}

	candidates := o.collect(tc)
	o.stats.RecordIndexed(len(candidates))

	scored := o.scorer.ScoreFragments(candidates, tc)
	o.stats.RecordScored(len(scored))

	reserved := o.reservation(tc, req.Options.IncludeMetadata)
	result := NewContextComposer(maxTokens).Compose(scored, reserved, o.cfg.Thresholds())

	if o.cfg.LogSelectedFragments {
		for _, it := range result.Selected {
			logging.Optimizer("selected %s [%s] score=%.3f tokens=%d",
				it.Fragment.ID(), it.Fragment.Category(), it.Score, it.Fragment.EstimatedTokens())
		}
	}

	out := o.builder.Build(tc, result, req.Options.IncludeMetadata)
	out.Metadata["run_id"] = runID
	out.Metadata["optimization_enabled"] = true
	out.Metadata["max_tokens"] = maxTokens
	out.Metadata["reserved_tokens"] = reserved

	elapsed := o.now().Sub(start)
	o.stats.RecordSelected(result.SelectedCount(), result.ExcludedCount, result.TotalTokens, result.BudgetUtilization())
	o.stats.RecordTime(elapsed)
	o.observeRun(result, elapsed)

	logging.Optimizer("run %s: %d selected, %d excluded, %d/%d tokens in %v",
		runID, result.SelectedCount(), result.ExcludedCount, result.TotalTokens, result.Budget, elapsed)
	return out
}

// collect gathers every candidate fragment: the cached style guide and
// templates plus the code of the affected files only.
func (o *Optimizer) collect(tc *TaskContext) []fragment.Scorable {
	var out []fragment.Scorable

	if !o.styleGuide.Indexed() {
		sections, err := o.styleGuide.Index()
		o.observeIndex(SourceStyleGuide, len(sections), err)
	}
	for _, s := range o.styleGuide.Fragments() {
		out = append(out, s)
	}

	if !o.templates.Indexed() {
		templates, err := o.templates.Index()
		o.observeIndex(SourceTemplates, len(templates), err)
	}
	for _, t := range o.templates.Fragments() {
		out = append(out, t)
	}

	var codeCount int
	for _, path := range tc.AffectedFiles {
		codes, err := o.fragmenter.FragmentFile(path)
		if err != nil {
			logging.OptimizerWarn("skipping source %s: %v", path, err)
			if o.metrics != nil {
				o.metrics.ObserveSourceError(SourceCode)
			}
			continue
		}
		for _, c := range codes {
			out = append(out, c)
		}
		codeCount += len(codes)
	}
	if o.metrics != nil {
		o.metrics.ObserveIndexed(SourceCode, codeCount)
	}

	logging.OptimizerDebug("collected %d candidate fragments (%d code)", len(out), codeCount)
	return out
}

func (o *Optimizer) observeIndex(source string, n int, err error) {
	if err != nil {
		logging.OptimizerWarn("%s unavailable, continuing without it: %v", source, err)
		if o.metrics != nil {
			o.metrics.ObserveSourceError(source)
		}
		return
	}
	if o.metrics != nil {
		o.metrics.ObserveIndexed(source, n)
	}
}

// reservation is the part of the budget kept for the task section (and the
// metadata section when requested).
func (o *Optimizer) reservation(tc *TaskContext, includeMetadata bool) int {
	if !o.cfg.DynamicAdjustment {
		return DefaultReservedTokens
	}
	reserved := fragment.EstimateTokens(o.builder.RenderTaskSection(tc)) + sectionOverheadTokens
	if includeMetadata {
		reserved += metadataAllowanceTokens
	}
	return reserved
}

func (o *Optimizer) observeRun(result *CompositionResult, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	for cat, usage := range result.Summary().ByCategory {
		if usage.Count > 0 {
			o.metrics.ObserveSelection(string(cat), usage.Count, usage.Tokens)
		}
	}
	o.metrics.ObserveRun(result.ExcludedCount, result.BudgetUtilization(), elapsed)
}

// ClearCache drops both index caches and resets the statistics.
func (o *Optimizer) ClearCache() {
	o.styleGuide.Reset()
	o.templates.Reset()
	o.stats.Reset()
	logging.OptimizerDebug("optimizer cache cleared")
}

// Statistics returns the accumulated run statistics.
func (o *Optimizer) Statistics() StatsSummary {
	return o.stats.Summary()
}

// Stats returns the optimizer's statistics accumulator.
func (o *Optimizer) Stats() *Stats { return o.stats }

// StyleGuide returns the cached style guide indexer.
func (o *Optimizer) StyleGuide() *index.StyleGuideIndexer { return o.styleGuide }

// Templates returns the cached template indexer.
func (o *Optimizer) Templates() *index.TemplateIndexer { return o.templates }

// Fragmenter returns the source fragmenter.
func (o *Optimizer) Fragmenter() *world.Fragmenter { return o.fragmenter }
