package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/conductord/internal/coordinator"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/workflow"
)

const orchestratorAgents = `==== START: project-analyst ====
Title: Project Analyst
Name: Athena
HandoffTo: doc-writer, task-planner

==== START: doc-writer ====
Title: Documentation Writer
Name: Calliope
HandoffFrom: project-analyst
HandoffTo: project-analyst

==== START: task-planner ====
Title: Task Planner
Name: Metis
HandoffFrom: project-analyst
`

func newTestOrchestrator(t *testing.T) (*Orchestrator, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.txt")
	require.NoError(t, os.WriteFile(path, []byte(orchestratorAgents), 0o600))

	o, err := New(path, nil, workflow.Options{})
	require.NoError(t, err)
	return o, path
}

func TestNew_MissingAgentFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.txt"), nil, workflow.Options{})
	require.Error(t, err)
}

func TestActivateMode_DocumentationEndToEnd(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	result, err := o.ActivateMode(context.Background(), "documentation", workflow.ProjectAnalysis{Name: "demo"})
	require.NoError(t, err)
	assert.Len(t, result.CompletedTasks, 3)

	p := o.ShowProgress()
	assert.Equal(t, "complete", p.Phase)
	assert.Equal(t, 100, p.Percentage)
}

func TestActivateMode_UnknownMode(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.ActivateMode(context.Background(), "espresso", workflow.ProjectAnalysis{})
	assert.ErrorIs(t, err, workflow.ErrUnknownMode)
}

func TestSelectAgents(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.SelectAgents(ctx, []string{"project-analyst", "doc-writer"}))
	snap := o.Store().Snapshot()
	assert.Equal(t, []string{"project-analyst", "doc-writer"}, snap.KnowledgeBase["selected_agents"].List)

	err := o.SelectAgents(ctx, []string{"project-analyst", "nobody"})
	assert.ErrorIs(t, err, registry.ErrUnknownAgent)
}

func TestPerformHandoff(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.Coordinator().Activate(ctx, "project-analyst", ""))

	record, err := o.PerformHandoff(ctx, "project-analyst", "doc-writer")
	require.NoError(t, err)
	assert.True(t, record.PreconditionOK)

	_, err = o.PerformHandoff(ctx, "doc-writer", "task-planner")
	assert.ErrorIs(t, err, coordinator.ErrIllegalHandoff)
}

func TestRefreshAnalysis(t *testing.T) {
	o, path := newTestOrchestrator(t)
	ctx := context.Background()

	require.NoError(t, o.RefreshAnalysis(ctx))
	assert.Contains(t, o.Store().Snapshot().DependencyStatus["agent_registry"], "3 agents")

	// Malformed rewrite: refresh fails, prior set retained.
	require.NoError(t, os.WriteFile(path, []byte("garbage\n"), 0o600))
	require.Error(t, o.RefreshAnalysis(ctx))
	assert.Equal(t, 3, o.Registry().Len())
}

func TestShowProgress_ZeroBeforeAnyRun(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	p := o.ShowProgress()
	assert.Empty(t, p.Mode)
	assert.Zero(t, p.Percentage)
}
