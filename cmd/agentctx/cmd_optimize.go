package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentctx/internal/metrics"
	"agentctx/internal/prompt"
)

// optimizeFlags are shared by optimize and watch.
type optimizeFlags struct {
	taskType    string
	description string
	files       []string
	step        string
	tags        []string
	maxTokens   int
	metadata    bool
	out         string
	report      bool
	pretty      bool
	metricsOut  string
	stats       bool
}

var optFlags optimizeFlags

// optimizeCmd builds one prompt
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Build the optimized prompt for a task",
	Long: `Scores the style guide, templates and affected source files against the
task and writes the prompt that fits the token budget.

Example:
  agentctx optimize --type feature --description "Add password reset" \
    --files app/models/user.rb --step implement --metadata`,
	RunE: runOptimize,
}

func init() {
	bindOptimizeFlags(optimizeCmd, &optFlags)
	optimizeCmd.Flags().BoolVar(&optFlags.report, "report", false, "Print the selection report after the prompt")
	optimizeCmd.Flags().BoolVar(&optFlags.pretty, "pretty", false, "Render the report for the terminal")
	optimizeCmd.Flags().StringVar(&optFlags.metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile")
	optimizeCmd.Flags().BoolVar(&optFlags.stats, "stats", false, "Print optimizer statistics")
}

func bindOptimizeFlags(cmd *cobra.Command, f *optimizeFlags) {
	cmd.Flags().StringVarP(&f.taskType, "type", "t", string(prompt.TaskFeature),
		"Task type ("+joinTaskTypes()+")")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "Task description (required)")
	cmd.Flags().StringSliceVarP(&f.files, "files", "f", nil, "Affected files, relative to the workspace")
	cmd.Flags().StringVar(&f.step, "step", "", "Current workflow step")
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "Extra task tags")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "Token budget (default: config max_tokens)")
	cmd.Flags().BoolVar(&f.metadata, "metadata", false, "Append the metadata section")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the prompt to this file instead of stdout")
	_ = cmd.MarkFlagRequired("description")
}

func joinTaskTypes() string {
	names := make([]string, 0, len(prompt.AllTaskTypes()))
	for _, t := range prompt.AllTaskTypes() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func (f *optimizeFlags) request() prompt.OptimizeRequest {
	return prompt.OptimizeRequest{
		TaskType:      prompt.TaskType(f.taskType),
		Description:   f.description,
		AffectedFiles: f.files,
		StepName:      f.step,
		Tags:          f.tags,
		Options: prompt.OptimizeOptions{
			MaxTokens:       f.maxTokens,
			IncludeMetadata: f.metadata,
		},
	}
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ws := workspaceDir()
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	opt := prompt.NewOptimizer(appConfig(), prompt.WithWorkspace(ws), prompt.WithMetrics(rec))

	zapLogger().Debug("Optimizing prompt",
		zap.String("workspace", ws),
		zap.String("type", optFlags.taskType),
		zap.Strings("files", optFlags.files))

	out := opt.OptimizePrompt(optFlags.request())
	w := cmd.OutOrStdout()

	if err := emitPrompt(w, out, optFlags.out); err != nil {
		return err
	}

	if optFlags.report {
		report := out.SelectionReport()
		if optFlags.pretty {
			rendered, err := renderMarkdown(report)
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}
			report = rendered
		}
		fmt.Fprintln(w, report)
	}

	if optFlags.stats {
		printStats(w, opt.Statistics())
	}

	if optFlags.metricsOut != "" {
		if err := prometheus.WriteToTextfile(optFlags.metricsOut, reg); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		zapLogger().Info("Metrics written", zap.String("path", optFlags.metricsOut))
	}
	return nil
}

// emitPrompt writes the prompt to path, or to w when path is empty.
func emitPrompt(w io.Writer, out *prompt.PromptOutput, path string) error {
	if path == "" {
		fmt.Fprintln(w, out.Content)
		return nil
	}
	if err := out.WriteToFile(path); err != nil {
		return err
	}
	zapLogger().Info("Prompt written",
		zap.String("path", path),
		zap.Int("tokens", out.EstimatedTokens()),
		zap.Any("run_id", out.Metadata["run_id"]))
	return nil
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func printStats(w io.Writer, s prompt.StatsSummary) {
	fmt.Fprintln(w, titleStyle.Render("Optimizer statistics"))
	rows := []struct {
		label string
		value string
	}{
		{"Runs", fmt.Sprintf("%d", s.RunsCount)},
		{"Fragments indexed", fmt.Sprintf("%d", s.TotalFragmentsIndexed)},
		{"Fragments scored", fmt.Sprintf("%d", s.TotalFragmentsScored)},
		{"Fragments selected", fmt.Sprintf("%d", s.TotalFragmentsSelected)},
		{"Fragments excluded", fmt.Sprintf("%d", s.TotalFragmentsExcluded)},
		{"Tokens used", fmt.Sprintf("%d", s.TotalTokensUsed)},
		{"Average utilization", fmt.Sprintf("%.1f%%", s.AverageBudgetUtilization)},
		{"Average time", s.AverageOptimizationTime.String()},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(r.label+":"), r.value)
	}
}
