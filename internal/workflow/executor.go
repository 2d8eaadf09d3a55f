package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/coordinator"
	"github.com/relayforge/conductord/internal/sharedctx"
)

// TaskRunner executes one agent task. Agents are opaque capability
// providers: the orchestrator starts, hands off, and tracks them, but does
// not implement their domain logic.
type TaskRunner interface {
	Run(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error
}

// NopRunner logs each task and succeeds. It stands in where no real agent
// runtime is wired, keeping the orchestration protocol exercisable.
type NopRunner struct {
	Logger *zap.Logger
}

// Run implements TaskRunner.
func (r NopRunner) Run(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("agent task dispatched",
		zap.String("agent", agentID),
		zap.String("task", taskID))
	return nil
}

// Progress is emitted after every step for external display.
type Progress struct {
	Mode           Mode     `json:"mode"`
	Phase          string   `json:"phase"` // running, halted, cancelled, complete
	Percentage     int      `json:"progress"`
	CurrentAgent   string   `json:"current_agent,omitempty"`
	CompletedTasks []string `json:"completed_tasks"`
	RemainingTasks []string `json:"remaining_tasks"`

	// EstimatedTimeRemaining is in seconds on the wire.
	EstimatedTimeRemaining float64 `json:"estimated_time_remaining,omitempty"`
}

// ProgressFunc receives progress events.
type ProgressFunc func(Progress)

// PauseFunc is invoked between steps of non-continuous modes, giving the
// host a hook for per-step interruption prompts. Returning an error halts
// the workflow before the next step. continuousExecution never pauses.
type PauseFunc func(ctx context.Context, p Progress) error

// Result is the final state of one Execute call.
type Result struct {
	Mode           Mode     `json:"mode"`
	CompletedTasks []string `json:"completed_tasks"`
	RemainingTasks []string `json:"remaining_tasks"`
	Halted         bool     `json:"halted"`
}

// Executor drives a mode's plan through the coordinator.
type Executor struct {
	coord       *coordinator.Coordinator
	store       *sharedctx.Store
	runner      TaskRunner
	logger      *zap.Logger
	metrics     *Metrics
	onProgress  ProgressFunc
	pause       PauseFunc
	stepTimeout time.Duration
}

// Options configures an Executor.
type Options struct {
	// Runner executes agent tasks; defaults to NopRunner.
	Runner TaskRunner

	// OnProgress receives a progress event after every step.
	OnProgress ProgressFunc

	// Pause, when set, runs between steps of non-continuous modes.
	Pause PauseFunc

	// StepTimeout bounds each task so a stalled agent cannot block the
	// workflow indefinitely. Zero disables the bound.
	StepTimeout time.Duration
}

// NewExecutor creates an executor over the coordinator and context store.
func NewExecutor(coord *coordinator.Coordinator, store *sharedctx.Store, logger *zap.Logger, opts Options) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := opts.Runner
	if runner == nil {
		runner = NopRunner{Logger: logger}
	}
	return &Executor{
		coord:       coord,
		store:       store,
		runner:      runner,
		logger:      logger,
		metrics:     NewMetrics(logger),
		onProgress:  opts.OnProgress,
		pause:       opts.Pause,
		stepTimeout: opts.StepTimeout,
	}
}

// Execute resolves the mode's plan and drives it step by step, activating
// the first agent and handing off between agents as the plan moves. The
// sequence halts on the first failed step with a *StepError and partial
// progress; cancellation is honored between steps, never mid-step.
func (e *Executor) Execute(ctx context.Context, mode Mode, analysis ProjectAnalysis) (*Result, error) {
	steps, err := PlanFor(mode, analysis)
	if err != nil {
		return nil, err
	}

	e.store.SetProjectInfo("name", sharedctx.StringValue(analysis.Name))
	if analysis.Summary != "" {
		e.store.SetProjectInfo("summary", sharedctx.StringValue(analysis.Summary))
	}
	e.store.SetKnowledge("mode", sharedctx.StringValue(string(mode)))

	result := &Result{
		Mode:           mode,
		CompletedTasks: []string{},
		RemainingTasks: stepLabels(steps),
	}

	continuous := mode == ModeContinuousExecution
	currentAgent := ""
	var durations []time.Duration

	for i, step := range steps {
		// Cancellation halts before starting the next queued step.
		select {
		case <-ctx.Done():
			result.Halted = true
			e.report(result, "cancelled", currentAgent, i, len(steps), durations)
			e.metrics.RecordRun(ctx, mode, "cancelled")
			return result, ctx.Err()
		default:
		}

		if e.pause != nil && !continuous && i > 0 {
			if err := e.pause(ctx, e.progress(result, "running", currentAgent, i, len(steps), durations)); err != nil {
				result.Halted = true
				e.report(result, "halted", currentAgent, i, len(steps), durations)
				e.metrics.RecordRun(ctx, mode, "failed")
				return result, &StepError{Mode: mode, AgentID: step.AgentID, TaskID: step.TaskID, Err: err}
			}
		}

		started := time.Now()
		err := e.runStep(ctx, currentAgent, step)
		elapsed := time.Since(started)

		if err != nil {
			result.Halted = true
			e.metrics.RecordStep(ctx, mode, step.AgentID, "failed", elapsed)
			e.metrics.RecordRun(ctx, mode, "failed")
			// The failed step's agent may never have activated; report the
			// agent actually holding active status.
			e.report(result, "halted", e.store.Snapshot().ActiveAgentID, i, len(steps), durations)
			return result, &StepError{Mode: mode, AgentID: step.AgentID, TaskID: step.TaskID, Err: err}
		}

		currentAgent = step.AgentID
		durations = append(durations, elapsed)
		result.CompletedTasks = append(result.CompletedTasks, step.Label())
		result.RemainingTasks = result.RemainingTasks[1:]
		e.metrics.RecordStep(ctx, mode, step.AgentID, "ok", elapsed)
		e.report(result, "running", currentAgent, i+1, len(steps), durations)
	}

	e.store.SetPhase(sharedctx.PhaseComplete, "")
	e.report(result, "complete", currentAgent, len(steps), len(steps), durations)
	e.metrics.RecordRun(ctx, mode, "completed")
	e.logger.Info("workflow complete",
		zap.String("mode", string(mode)),
		zap.Int("steps", len(steps)))
	return result, nil
}

// runStep activates or hands off as needed, then runs the step's task.
func (e *Executor) runStep(ctx context.Context, currentAgent string, step Step) error {
	switch {
	case currentAgent == "":
		if err := e.coord.Activate(ctx, step.AgentID, step.TaskID); err != nil {
			return err
		}
	case currentAgent != step.AgentID:
		if _, err := e.coord.Handoff(ctx, currentAgent, step.AgentID); err != nil {
			return err
		}
	}
	// Same agent, next task: no transition needed.

	taskCtx := ctx
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}

	if err := e.runner.Run(taskCtx, step.AgentID, step.TaskID, e.store.Snapshot()); err != nil {
		return fmt.Errorf("task %s: %w", step.TaskID, err)
	}
	return nil
}

// progress builds a progress event from the running result.
func (e *Executor) progress(result *Result, phase, currentAgent string, done, total int, durations []time.Duration) Progress {
	pct := 100
	if total > 0 {
		pct = done * 100 / total
	}
	return Progress{
		Mode:                   result.Mode,
		Phase:                  phase,
		Percentage:             pct,
		CurrentAgent:           currentAgent,
		CompletedTasks:         append([]string(nil), result.CompletedTasks...),
		RemainingTasks:         append([]string(nil), result.RemainingTasks...),
		EstimatedTimeRemaining: estimateRemaining(durations, total-done).Seconds(),
	}
}

// report emits a progress event if a callback is wired.
func (e *Executor) report(result *Result, phase, currentAgent string, done, total int, durations []time.Duration) {
	if e.onProgress == nil {
		return
	}
	e.onProgress(e.progress(result, phase, currentAgent, done, total, durations))
}

// estimateRemaining projects remaining time from the per-step moving average.
func estimateRemaining(durations []time.Duration, remaining int) time.Duration {
	if len(durations) == 0 || remaining <= 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations)) * time.Duration(remaining)
}

// stepLabels renders a plan as task labels.
func stepLabels(steps []Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Label()
	}
	return out
}
