package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/conductord/internal/coordinator"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/sharedctx"
)

const workflowAgents = `==== START: project-analyst ====
Title: Project Analyst
Name: Athena
HandoffTo: doc-writer, task-planner, debug-specialist, feature-analyst, github-integrator, dependency-auditor

==== START: doc-writer ====
Title: Documentation Writer
Name: Calliope
HandoffFrom: project-analyst

==== START: task-planner ====
Title: Task Planner
Name: Metis
HandoffFrom: project-analyst, feature-analyst
`

type scriptedRunner struct {
	failTask string
	ran      []string
}

func (r *scriptedRunner) Run(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error {
	r.ran = append(r.ran, agentID+":"+taskID)
	if taskID == r.failTask {
		return errors.New("scripted failure")
	}
	return nil
}

func newTestExecutor(t *testing.T, opts Options) (*Executor, *sharedctx.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.txt")
	require.NoError(t, os.WriteFile(path, []byte(workflowAgents), 0o600))

	reg := registry.New(nil)
	require.NoError(t, reg.Load(path))

	store := sharedctx.NewStore()
	coord := coordinator.New(reg, store, nil)
	return NewExecutor(coord, store, nil, opts), store
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		if _, err := ParseMode(string(m)); err != nil {
			t.Errorf("ParseMode(%q) failed: %v", m, err)
		}
	}
	if _, err := ParseMode("espresso"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(espresso) err = %v, want ErrUnknownMode", err)
	}
}

func TestExecute_DocumentationMode(t *testing.T) {
	runner := &scriptedRunner{}
	var events []Progress
	exec, store := newTestExecutor(t, Options{
		Runner:     runner,
		OnProgress: func(p Progress) { events = append(events, p) },
	})

	result, err := exec.Execute(context.Background(), ModeDocumentation, ProjectAnalysis{Name: "demo"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"project-analyst:analyze-project",
		"doc-writer:generate-docs",
		"doc-writer:lint-docs",
	}, result.CompletedTasks)
	assert.Empty(t, result.RemainingTasks)
	assert.False(t, result.Halted)

	// One event per step plus the completion event.
	require.Len(t, events, 4)
	assert.Equal(t, "complete", events[len(events)-1].Phase)
	assert.Equal(t, 100, events[len(events)-1].Percentage)

	snap := store.Snapshot()
	assert.Equal(t, sharedctx.PhaseComplete, snap.Phase)
	assert.Equal(t, "demo", snap.ProjectInfo["name"].Str)
	// The handoff left only the last agent active.
	assert.Equal(t, []string{"doc-writer"}, snap.ActiveAgents)
}

func TestExecute_StepFailureHaltsAndReportsPartialProgress(t *testing.T) {
	runner := &scriptedRunner{failTask: "generate-docs"}
	var last Progress
	exec, _ := newTestExecutor(t, Options{
		Runner:     runner,
		OnProgress: func(p Progress) { last = p },
	})

	result, err := exec.Execute(context.Background(), ModeDocumentation, ProjectAnalysis{Name: "demo"})

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "doc-writer", stepErr.AgentID)
	assert.Equal(t, "generate-docs", stepErr.TaskID)

	// Step 2 of 3 failed: one completed, two remaining, step 3 never ran.
	assert.Len(t, result.CompletedTasks, 1)
	assert.Len(t, result.RemainingTasks, 2)
	assert.True(t, result.Halted)
	assert.Equal(t, "halted", last.Phase)
	// doc-writer did activate before its task failed, so it holds active
	// status in the halted event.
	assert.Equal(t, "doc-writer", last.CurrentAgent)
	assert.NotContains(t, runner.ran, "doc-writer:lint-docs")
}

func TestProgressEncodesEstimateInSeconds(t *testing.T) {
	p := Progress{
		Mode:                   ModeDocumentation,
		Phase:                  "running",
		CompletedTasks:         []string{},
		RemainingTasks:         []string{},
		EstimatedTimeRemaining: (2500 * time.Millisecond).Seconds(),
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"estimated_time_remaining":2.5`)
}

func TestExecute_ProgressMonotonicity(t *testing.T) {
	var events []Progress
	exec, _ := newTestExecutor(t, Options{
		OnProgress: func(p Progress) { events = append(events, p) },
	})

	_, err := exec.Execute(context.Background(), ModeDocumentation, ProjectAnalysis{Name: "demo"})
	require.NoError(t, err)

	prev := -1
	for _, p := range events {
		if len(p.CompletedTasks) < prev {
			t.Fatalf("completedTasks shrank: %d -> %d", prev, len(p.CompletedTasks))
		}
		prev = len(p.CompletedTasks)
	}
}

func TestExecute_UnknownAgentInPlanFailsStep(t *testing.T) {
	// fullDevelopment names agents the test registry does not declare.
	var last Progress
	exec, store := newTestExecutor(t, Options{
		OnProgress: func(p Progress) { last = p },
	})

	result, err := exec.Execute(context.Background(), ModeFullDevelopment, ProjectAnalysis{Name: "demo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, coordinator.ErrUnknownAgent)
	assert.NotNil(t, result)

	// dependency-auditor is the first undeclared agent; the two earlier
	// steps completed and task-planner still holds active status.
	assert.Len(t, result.CompletedTasks, 2)
	assert.Equal(t, []string{"task-planner"}, store.Snapshot().ActiveAgents)

	// The halted event names the agent still active, not the one that
	// never activated.
	assert.Equal(t, "halted", last.Phase)
	assert.Equal(t, "task-planner", last.CurrentAgent)
}

func TestExecute_ContinuousExecutionDrainsPendingTasks(t *testing.T) {
	runner := &scriptedRunner{}
	exec, _ := newTestExecutor(t, Options{Runner: runner})

	analysis := ProjectAnalysis{
		Name: "demo",
		PendingTasks: []Step{
			{AgentID: "project-analyst", TaskID: "analyze-project"},
			{AgentID: "doc-writer", TaskID: "generate-docs"},
		},
	}
	result, err := exec.Execute(context.Background(), ModeContinuousExecution, analysis)
	require.NoError(t, err)
	assert.Len(t, result.CompletedTasks, 2)
	assert.Empty(t, result.RemainingTasks)
}

func TestExecute_ContinuousExecutionHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel once the first task has started; the second step must not run.
	runner := &scriptedRunner{}
	exec, _ := newTestExecutor(t, Options{
		Runner: runner,
		OnProgress: func(p Progress) {
			if len(p.CompletedTasks) == 1 {
				cancel()
			}
		},
	})

	analysis := ProjectAnalysis{
		Name: "demo",
		PendingTasks: []Step{
			{AgentID: "project-analyst", TaskID: "analyze-project"},
			{AgentID: "doc-writer", TaskID: "generate-docs"},
			{AgentID: "doc-writer", TaskID: "lint-docs"},
		},
	}
	result, err := exec.Execute(ctx, ModeContinuousExecution, analysis)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, result.CompletedTasks, 1)
	assert.Len(t, result.RemainingTasks, 2)
	assert.True(t, result.Halted)
}

func TestExecute_ContinuousExecutionSkipsPause(t *testing.T) {
	paused := 0
	runner := &scriptedRunner{}
	exec, _ := newTestExecutor(t, Options{
		Runner: runner,
		Pause: func(ctx context.Context, p Progress) error {
			paused++
			return nil
		},
	})

	analysis := ProjectAnalysis{
		Name: "demo",
		PendingTasks: []Step{
			{AgentID: "project-analyst", TaskID: "a"},
			{AgentID: "doc-writer", TaskID: "b"},
		},
	}
	_, err := exec.Execute(context.Background(), ModeContinuousExecution, analysis)
	require.NoError(t, err)
	assert.Zero(t, paused, "continuousExecution must not prompt between steps")

	// A bounded mode with the same pause hook does prompt.
	_, err = exec.Execute(context.Background(), ModeTaskOverview, ProjectAnalysis{Name: "demo"})
	require.NoError(t, err)
	assert.Equal(t, 1, paused)
}

func TestExecute_StepTimeoutBoundsTask(t *testing.T) {
	slow := CheckRunnerFunc(func(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	})
	exec, _ := newTestExecutor(t, Options{
		Runner:      slow,
		StepTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := exec.Execute(context.Background(), ModeTaskOverview, ProjectAnalysis{Name: "demo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// CheckRunnerFunc adapts a function to TaskRunner.
type CheckRunnerFunc func(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error

func (f CheckRunnerFunc) Run(ctx context.Context, agentID, taskID string, snap sharedctx.Snapshot) error {
	return f(ctx, agentID, taskID, snap)
}
