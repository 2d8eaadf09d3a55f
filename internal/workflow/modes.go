// Package workflow sequences agent activations into bounded mode pipelines.
package workflow

import (
	"errors"
	"fmt"
)

// Mode names one high-level workflow plan.
type Mode string

const (
	ModeDocumentation       Mode = "documentation"
	ModeFullDevelopment     Mode = "fullDevelopment"
	ModeContinueProject     Mode = "continueProject"
	ModeTaskOverview        Mode = "taskOverview"
	ModeDebug               Mode = "debugMode"
	ModeContinuousExecution Mode = "continuousExecution"
	ModeFeatureGapAnalysis  Mode = "featureGapAnalysis"
	ModeGitHubIntegration   Mode = "githubIntegration"
)

// ErrUnknownMode indicates a mode name with no declared plan.
var ErrUnknownMode = errors.New("unknown mode")

// Step is one planned activation: which agent acts, and on what task.
type Step struct {
	AgentID string `json:"agent_id"`
	TaskID  string `json:"task_id,omitempty"`
}

// Label renders the step for progress lists.
func (s Step) Label() string {
	if s.TaskID == "" {
		return s.AgentID
	}
	return s.AgentID + ":" + s.TaskID
}

// ProjectAnalysis is the project metadata a mode executes against.
type ProjectAnalysis struct {
	Name    string `json:"name"`
	Root    string `json:"root"`
	Summary string `json:"summary,omitempty"`

	// PendingTasks feeds continuousExecution, whose plan is agent-driven
	// rather than fixed: the mode drains this list until exhaustion or
	// cancellation.
	PendingTasks []Step `json:"pending_tasks,omitempty"`
}

// modePlans are the statically declared step lists per mode. Agent
// identifiers refer to sections of the deployment's agent file; a plan
// naming an unregistered agent fails at that step with the coordinator's
// UnknownAgent error.
var modePlans = map[Mode][]Step{
	ModeDocumentation: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "doc-writer", TaskID: "generate-docs"},
		{AgentID: "doc-writer", TaskID: "lint-docs"},
	},
	ModeFullDevelopment: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "task-planner", TaskID: "plan-milestones"},
		{AgentID: "dependency-auditor", TaskID: "audit-dependencies"},
		{AgentID: "developer", TaskID: "implement-features"},
		{AgentID: "deployment-engineer", TaskID: "prepare-release"},
	},
	ModeContinueProject: {
		{AgentID: "project-analyst", TaskID: "resume-analysis"},
		{AgentID: "task-planner", TaskID: "replan-remaining"},
		{AgentID: "developer", TaskID: "implement-features"},
	},
	ModeTaskOverview: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "task-planner", TaskID: "summarize-tasks"},
	},
	ModeDebug: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "debug-specialist", TaskID: "reproduce-issue"},
		{AgentID: "debug-specialist", TaskID: "isolate-fault"},
		{AgentID: "developer", TaskID: "apply-fix"},
	},
	ModeFeatureGapAnalysis: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "feature-analyst", TaskID: "map-feature-gaps"},
		{AgentID: "task-planner", TaskID: "plan-milestones"},
	},
	ModeGitHubIntegration: {
		{AgentID: "project-analyst", TaskID: "analyze-project"},
		{AgentID: "github-integrator", TaskID: "sync-issues"},
		{AgentID: "github-integrator", TaskID: "open-pull-requests"},
	},
}

// ParseMode validates a mode name.
func ParseMode(name string) (Mode, error) {
	m := Mode(name)
	if m == ModeContinuousExecution {
		return m, nil
	}
	if _, ok := modePlans[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	return m, nil
}

// Modes lists all declared mode names.
func Modes() []Mode {
	return []Mode{
		ModeDocumentation,
		ModeFullDevelopment,
		ModeContinueProject,
		ModeTaskOverview,
		ModeDebug,
		ModeContinuousExecution,
		ModeFeatureGapAnalysis,
		ModeGitHubIntegration,
	}
}

// PlanFor resolves the ordered step list for a mode. continuousExecution is
// the one agent-driven plan: it takes its steps from the analysis.
func PlanFor(mode Mode, analysis ProjectAnalysis) ([]Step, error) {
	if mode == ModeContinuousExecution {
		return append([]Step(nil), analysis.PendingTasks...), nil
	}
	plan, ok := modePlans[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return append([]Step(nil), plan...), nil
}
