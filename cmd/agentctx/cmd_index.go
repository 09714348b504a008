package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"agentctx/internal/config"
	"agentctx/internal/fragment"
	"agentctx/internal/index"
	"agentctx/internal/world"
)

var (
	indexTags     []string
	indexCategory string
)

// indexCmd lists the indexed style guide and templates
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "List the style guide sections and templates the optimizer sees",
	Long: `Indexes the configured style guide and templates directory and lists every
fragment with its tags and estimated token count.

Examples:
  agentctx index
  agentctx index --tags security,testing
  agentctx index --category feature`,
	RunE: runIndex,
}

// fragmentCmd lists the code fragments of source files
var fragmentCmd = &cobra.Command{
	Use:   "fragment [file...]",
	Short: "Show the code fragments extracted from source files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFragment,
}

func init() {
	indexCmd.Flags().StringSliceVar(&indexTags, "tags", nil, "Only list fragments carrying one of these tags")
	indexCmd.Flags().StringVar(&indexCategory, "category", "", "Only list templates in this category")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ws := workspaceDir()
	c := appConfig()
	w := cmd.OutOrStdout()

	guide := index.NewStyleGuideIndexer(config.ResolvePath(ws, c.StyleGuidePath))
	if _, err := guide.Index(); err != nil {
		zapLogger().Warn("Style guide unavailable", zap.String("path", guide.Path()), zap.Error(err))
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("style guide unreadable: %v", err)))
	}
	sections := guide.FindFragments(index.SectionQuery{Tags: indexTags})

	templates := index.NewTemplateIndexer(config.ResolvePath(ws, c.TemplatesDir))
	if _, err := templates.Index(); err != nil {
		zapLogger().Warn("Templates unavailable", zap.String("dir", templates.Dir()), zap.Error(err))
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("templates unreadable: %v", err)))
	}
	tmpls := templates.FindTemplates(index.TemplateQuery{Category: indexCategory, Tags: indexTags})

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Style guide: %s (%d sections)", c.StyleGuidePath, len(sections))))
	for _, s := range sections {
		printFragmentLine(w, s.ID(), s.Heading, s)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Templates: %s (%d templates)", c.TemplatesDir, len(tmpls))))
	for _, t := range tmpls {
		printFragmentLine(w, t.ID(), t.Name, t)
	}
	return nil
}

func runFragment(cmd *cobra.Command, args []string) error {
	ws := workspaceDir()
	w := cmd.OutOrStdout()
	fr := world.NewFragmenter(ws)

	for i, path := range args {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if !world.Supported(path) {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s: unsupported file type (supported: %s)",
				path, strings.Join(world.SupportedExtensions(), " "))))
			continue
		}
		codes, err := fr.FragmentFile(path)
		if err != nil {
			return fmt.Errorf("failed to fragment %s: %w", path, err)
		}
		if codes == nil {
			fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s: not found", path)))
			continue
		}

		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s (%d fragments)", path, len(codes))))
		for _, c := range codes {
			label := fmt.Sprintf("%s %s (lines %d-%d)", c.Type, c.Name, c.LineStart, c.LineEnd)
			printFragmentLine(w, c.ID(), label, c)
		}
	}
	return nil
}

func printFragmentLine(w io.Writer, id, label string, f fragment.Scorable) {
	tags := "-"
	if len(f.Tags()) > 0 {
		tags = strings.Join(f.Tags(), ", ")
	}
	fmt.Fprintf(w, "  %s  %s  %s\n",
		idStyle.Render(id),
		label,
		mutedStyle.Render(fmt.Sprintf("[%s] ~%d tokens", tags, f.EstimatedTokens())))
}
