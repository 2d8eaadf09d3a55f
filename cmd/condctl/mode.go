package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	modeProjectName    string
	modeProjectRoot    string
	modeProjectSummary string
	modeTasks          []string
)

// modeCmd groups workflow operations.
var modeCmd = &cobra.Command{
	Use:   "mode",
	Short: "Run mode workflows",
}

func init() {
	modeRunCmd.Flags().StringVar(&modeProjectName, "project", "", "project name (required)")
	modeRunCmd.Flags().StringVar(&modeProjectRoot, "root", "", "project root path")
	modeRunCmd.Flags().StringVar(&modeProjectSummary, "summary", "", "project summary")
	modeRunCmd.Flags().StringArrayVar(&modeTasks, "task", nil, "pending task as agent-id:task-id (continuousExecution only, repeatable)")
	_ = modeRunCmd.MarkFlagRequired("project")
	modeCmd.AddCommand(modeRunCmd)
}

// ModeResult matches internal/workflow Result.
type ModeResult struct {
	Mode           string   `json:"mode"`
	CompletedTasks []string `json:"completed_tasks"`
	RemainingTasks []string `json:"remaining_tasks"`
	Halted         bool     `json:"halted"`
}

var modeRunCmd = &cobra.Command{
	Use:   "run <mode>",
	Short: "Run a mode workflow to completion",
	Long: `Run one of the named mode workflows against a project.

Examples:
  # Generate documentation
  condctl mode run documentation --project myservice

  # Drain explicit tasks without pausing
  condctl mode run continuousExecution --project myservice \
    --task developer:implement-auth --task developer:wire-metrics`,
	Args: cobra.ExactArgs(1),
	RunE: runModeRun,
}

func runModeRun(cmd *cobra.Command, args []string) error {
	type step struct {
		AgentID string `json:"agent_id"`
		TaskID  string `json:"task_id"`
	}
	req := struct {
		Mode    string `json:"mode"`
		Project struct {
			Name         string `json:"name"`
			Root         string `json:"root,omitempty"`
			Summary      string `json:"summary,omitempty"`
			PendingTasks []step `json:"pending_tasks,omitempty"`
		} `json:"project"`
	}{Mode: args[0]}
	req.Project.Name = modeProjectName
	req.Project.Root = modeProjectRoot
	req.Project.Summary = modeProjectSummary

	for _, t := range modeTasks {
		agentID, taskID, found := strings.Cut(t, ":")
		if !found {
			return fmt.Errorf("invalid --task %q: expected agent-id:task-id", t)
		}
		req.Project.PendingTasks = append(req.Project.PendingTasks, step{AgentID: agentID, TaskID: taskID})
	}

	var result ModeResult
	if err := postJSON("/api/v1/mode/activate", req, &result); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(result)
	}

	fmt.Printf("Mode %s: %d tasks completed", result.Mode, len(result.CompletedTasks))
	if result.Halted {
		fmt.Printf(", halted with %d remaining", len(result.RemainingTasks))
	}
	fmt.Println()
	for _, t := range result.CompletedTasks {
		fmt.Printf("  done  %s\n", t)
	}
	for _, t := range result.RemainingTasks {
		fmt.Printf("  todo  %s\n", t)
	}
	return nil
}

// Progress matches internal/workflow Progress. EstimatedTimeRemaining is
// in seconds.
type Progress struct {
	Mode                   string   `json:"mode"`
	Phase                  string   `json:"phase"`
	Percentage             int      `json:"progress"`
	CurrentAgent           string   `json:"current_agent"`
	CompletedTasks         []string `json:"completed_tasks"`
	RemainingTasks         []string `json:"remaining_tasks"`
	EstimatedTimeRemaining float64  `json:"estimated_time_remaining"`
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the most recent workflow progress",
	RunE:  runProgress,
}

func runProgress(cmd *cobra.Command, args []string) error {
	var p Progress
	if err := getJSON("/api/v1/progress", &p); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(p)
	}

	if p.Mode == "" {
		fmt.Println("No workflow has run yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Mode:\t%s\n", p.Mode)
	fmt.Fprintf(w, "Phase:\t%s\n", p.Phase)
	fmt.Fprintf(w, "Progress:\t%d%%\n", p.Percentage)
	if p.CurrentAgent != "" {
		fmt.Fprintf(w, "Current agent:\t%s\n", p.CurrentAgent)
	}
	fmt.Fprintf(w, "Completed:\t%d\n", len(p.CompletedTasks))
	fmt.Fprintf(w, "Remaining:\t%d\n", len(p.RemainingTasks))
	if p.EstimatedTimeRemaining > 0 {
		eta := time.Duration(p.EstimatedTimeRemaining * float64(time.Second))
		fmt.Fprintf(w, "ETA:\t%s\n", eta.Round(time.Millisecond))
	}
	return w.Flush()
}
