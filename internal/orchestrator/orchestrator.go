// Package orchestrator wires the shared context store, agent registry,
// coordinator, and workflow executor into one owner, and exposes the named
// operations the command surfaces (CLI, HTTP) bind to.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/coordinator"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/sharedctx"
	"github.com/relayforge/conductord/internal/workflow"
)

// Orchestrator owns one orchestration session's components.
type Orchestrator struct {
	store    *sharedctx.Store
	registry *registry.Registry
	coord    *coordinator.Coordinator
	executor *workflow.Executor
	logger   *zap.Logger

	mu   sync.Mutex
	last workflow.Progress
}

// New builds an orchestrator: store, registry (loaded from the agent file),
// coordinator, and executor, each injected rather than reached through
// globals.
func New(agentFile string, logger *zap.Logger, execOpts workflow.Options) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := sharedctx.NewStore()
	store.Subscribe(sharedctx.LogObserver(logger.Named("context")))

	reg := registry.New(logger.Named("registry"))
	if err := reg.Load(agentFile); err != nil {
		return nil, fmt.Errorf("loading agent registry: %w", err)
	}

	coord := coordinator.New(reg, store, logger.Named("coordinator"))

	o := &Orchestrator{
		store:    store,
		registry: reg,
		coord:    coord,
		logger:   logger,
	}

	// Every progress event is retained for ShowProgress before reaching the
	// caller's own callback.
	callerProgress := execOpts.OnProgress
	execOpts.OnProgress = func(p workflow.Progress) {
		o.mu.Lock()
		o.last = p
		o.mu.Unlock()
		if callerProgress != nil {
			callerProgress(p)
		}
	}
	o.executor = workflow.NewExecutor(coord, store, logger.Named("workflow"), execOpts)

	return o, nil
}

// Store exposes the shared context store for observers (NATS notifier,
// status sinks).
func (o *Orchestrator) Store() *sharedctx.Store { return o.store }

// Registry exposes the agent registry (read surface and watcher wiring).
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Coordinator exposes the activation/handoff protocol for check
// registration.
func (o *Orchestrator) Coordinator() *coordinator.Coordinator { return o.coord }

// ActivateMode resolves and runs the named mode against the project
// analysis. Returns the final result; on step failure the result carries
// partial progress alongside the error.
func (o *Orchestrator) ActivateMode(ctx context.Context, modeName string, analysis workflow.ProjectAnalysis) (*workflow.Result, error) {
	mode, err := workflow.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	o.logger.Info("mode activated",
		zap.String("mode", modeName),
		zap.String("project", analysis.Name))
	return o.executor.Execute(ctx, mode, analysis)
}

// SelectAgents validates the ids against the registry and records the
// selection in the shared context for subsequent mode runs.
func (o *Orchestrator) SelectAgents(ctx context.Context, agentIDs []string) error {
	for _, id := range agentIDs {
		if _, err := o.registry.Get(id); err != nil {
			return fmt.Errorf("select agents: %w", err)
		}
	}
	o.store.SetKnowledge("selected_agents", sharedctx.ListValue(agentIDs...))
	o.logger.Info("agents selected", zap.Strings("agents", agentIDs))
	return nil
}

// PerformHandoff transfers active status along a declared edge.
func (o *Orchestrator) PerformHandoff(ctx context.Context, fromAgent, toAgent string) (*coordinator.HandoffRecord, error) {
	return o.coord.Handoff(ctx, fromAgent, toAgent)
}

// RefreshAnalysis re-reads the agent file into the registry and stamps the
// refresh into the shared context. A failed refresh retains the prior
// registry set and reports the error.
func (o *Orchestrator) RefreshAnalysis(ctx context.Context) error {
	if err := o.registry.Refresh(); err != nil {
		return err
	}
	o.store.SetDependencyStatus("agent_registry", fmt.Sprintf("refreshed (%d agents)", o.registry.Len()))
	return nil
}

// ShowProgress returns the most recent workflow progress event, or a zero
// Progress when no workflow has run.
func (o *Orchestrator) ShowProgress() workflow.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}
