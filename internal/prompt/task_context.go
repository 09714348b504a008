// Package prompt selects and renders the context that accompanies an agent
// invocation.
//
// The pipeline is:
//  1. TaskContext describes the task and derives tags from its description
//  2. RelevanceScorer scores every fragment against the task
//  3. ContextComposer packs the best fragments under a token budget
//  4. PromptBuilder renders the selection into the final prompt
//
// Optimizer wires the stages together and caches the indexes between calls.
package prompt

import (
	"strings"

	"agentctx/internal/fragment"
)

// TaskType enumerates the kinds of work an agent can be asked to do.
type TaskType string

const (
	TaskFeature       TaskType = "feature"
	TaskBugfix        TaskType = "bugfix"
	TaskRefactor      TaskType = "refactor"
	TaskTesting       TaskType = "testing"
	TaskDocumentation TaskType = "documentation"
	TaskPerformance   TaskType = "performance"
	TaskSecurity      TaskType = "security"
	TaskPlanning      TaskType = "planning"
	TaskReview        TaskType = "review"
	TaskCIFix         TaskType = "ci_fix"
)

// AllTaskTypes returns every known task type.
func AllTaskTypes() []TaskType {
	return []TaskType{
		TaskFeature, TaskBugfix, TaskRefactor, TaskTesting, TaskDocumentation,
		TaskPerformance, TaskSecurity, TaskPlanning, TaskReview, TaskCIFix,
	}
}

// TaskContext describes the task that drives relevance scoring.
type TaskContext struct {
	TaskType    TaskType
	Description string

	// AffectedFiles are project-relative paths, in the order given.
	AffectedFiles []string

	StepName string

	// Tags are the explicit tags followed by those extracted from Description,
	// lowercased and deduplicated.
	Tags []string
}

// NewTaskContext builds a TaskContext, merging explicit tags with tags
// extracted from the description.
func NewTaskContext(taskType TaskType, description string, affectedFiles []string, stepName string, tags []string) *TaskContext {
	files := make([]string, len(affectedFiles))
	copy(files, affectedFiles)

	return &TaskContext{
		TaskType:      TaskType(strings.ToLower(strings.TrimSpace(string(taskType)))),
		Description:   description,
		AffectedFiles: files,
		StepName:      stepName,
		Tags:          mergeTags(tags, fragment.ExtractTags(description)),
	}
}

// HasTag reports whether the context carries tag, ignoring case.
func (tc *TaskContext) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range tc.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// mergeTags lowercases and dedupes the union of the lists, keeping first-seen order.
func mergeTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
