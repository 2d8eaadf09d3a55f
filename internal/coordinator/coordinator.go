// Package coordinator gates which agent may act and validates transitions
// between agents.
//
// From the coordinator's perspective an agent moves through
//
//	Inactive -> PendingActivation -> Active -> PendingHandoff -> Inactive
//
// with a terminal Rejected state reachable from either pending state when
// validation fails. Activation and handoff are the only paths that touch the
// shared context's active-agent membership, and both order every validation
// before any mutation: a failed operation leaves the context exactly as it
// found it. The one documented exception is post-handoff validation, whose
// failure is recorded and surfaced without rolling back the completed swap.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/agentfile"
	"github.com/relayforge/conductord/internal/registry"
	"github.com/relayforge/conductord/internal/sharedctx"
)

// State is an agent's activation state as tracked by the coordinator.
type State string

const (
	StateInactive          State = "inactive"
	StatePendingActivation State = "pending_activation"
	StateActive            State = "active"
	StatePendingHandoff    State = "pending_handoff"
	StateRejected          State = "rejected"
)

// ContinuitySnapshot is the context subset carried across a handoff:
// a copy, so the receiving agent cannot retroactively alter what the
// sending agent saw.
type ContinuitySnapshot struct {
	Decisions         []sharedctx.Decision         `json:"decisions"`
	KnowledgeBase     map[string]sharedctx.Value   `json:"knowledge_base"`
	ValidationResults []sharedctx.ValidationResult `json:"validation_results"`
}

// HandoffRecord describes one transfer attempt. It exists for the duration
// of the handoff and is returned to the caller for inspection; the
// coordinator keeps no reference once both validations have run.
type HandoffRecord struct {
	ID                 string             `json:"id"`
	FromAgent          string             `json:"from_agent"`
	ToAgent            string             `json:"to_agent"`
	Timestamp          time.Time          `json:"timestamp"`
	PreconditionOK     bool               `json:"precondition_ok"`
	PostconditionOK    bool               `json:"postcondition_ok"`
	ContextSnapshot    ContinuitySnapshot `json:"context_snapshot"`
	ValidationFailures []string           `json:"validation_failures,omitempty"`
}

// Coordinator enforces the activation and handoff protocol.
type Coordinator struct {
	registry *registry.Registry
	store    *sharedctx.Store
	logger   *zap.Logger
	metrics  *Metrics

	// mu serializes mutating operations: at most one Activate/Handoff is in
	// flight at a time.
	mu     sync.Mutex
	states map[string]State

	checks map[Stage][]Check
	named  map[string]Check
}

// New creates a coordinator over the given registry and context store.
func New(reg *registry.Registry, store *sharedctx.Store, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		registry: reg,
		store:    store,
		logger:   logger,
		metrics:  NewMetrics(logger),
		states:   make(map[string]State),
		checks:   make(map[Stage][]Check),
		named:    make(map[string]Check),
	}
}

// RegisterCheck adds a check that runs for every agent at the given stage.
func (co *Coordinator) RegisterCheck(stage Stage, check Check) {
	co.mu.Lock()
	co.checks[stage] = append(co.checks[stage], check)
	co.mu.Unlock()
}

// RegisterNamedCheck binds an implementation to a validation name declared
// in agent descriptors. Declared validations without a bound implementation
// run as execute-and-log.
func (co *Coordinator) RegisterNamedCheck(check Check) {
	co.mu.Lock()
	co.named[check.Name()] = check
	co.mu.Unlock()
}

// StateOf returns the coordinator's view of an agent's activation state.
func (co *Coordinator) StateOf(agentID string) State {
	co.mu.Lock()
	defer co.mu.Unlock()
	if s, ok := co.states[agentID]; ok {
		return s
	}
	return StateInactive
}

// Activate makes the agent active, enforcing handoff prerequisites and
// pre-activation validation first. taskID, when set, is recorded with the
// phase change for progress display. A failed activation mutates nothing.
func (co *Coordinator) Activate(ctx context.Context, agentID, taskID string) error {
	co.mu.Lock()
	defer co.mu.Unlock()

	desc, err := co.registry.Get(agentID)
	if err != nil {
		co.metrics.RecordActivation(ctx, agentID, "unknown_agent")
		return fmt.Errorf("activate %s: %w", agentID, ErrUnknownAgent)
	}

	prior := co.states[agentID]
	co.states[agentID] = StatePendingActivation
	snap := co.store.Snapshot()

	// Ordering guarantee: an agent that declares predecessors cannot become
	// active in isolation. First insertion-order match wins; no
	// priority-based arbitration.
	if len(desc.HandoffFrom) > 0 && firstActivePredecessor(desc, snap.ActiveAgents) == "" {
		co.states[agentID] = failedActivationState(prior)
		co.metrics.RecordActivation(ctx, agentID, "missing_prerequisite")
		return fmt.Errorf("activate %s: %w: requires one of %v active",
			agentID, ErrMissingHandoffPrerequisite, desc.HandoffFrom)
	}

	results, err := co.runChecks(ctx, StagePreActivation, desc, snap)
	if err != nil {
		co.states[agentID] = failedActivationState(prior)
		co.metrics.RecordActivation(ctx, agentID, "validation_failed")
		return fmt.Errorf("activate %s: %w", agentID, err)
	}

	// Validation is complete; mutate.
	for _, r := range results {
		co.store.AppendValidationResult(r)
	}
	co.store.SetActiveAgents(appendUnique(snap.ActiveAgents, agentID))
	co.store.SetPhase(sharedctx.PhaseActive, agentID)
	co.states[agentID] = StateActive

	co.metrics.RecordActivation(ctx, agentID, "ok")
	co.logger.Info("agent activated",
		zap.String("agent", agentID),
		zap.String("task", taskID))
	return nil
}

// Handoff transfers active status from one agent to another along a
// declared edge. Pre-handoff validation failure blocks the transfer with no
// mutation. Post-handoff validation failure does not roll back the swap: it
// is recorded against the shared context, stamped on the returned record,
// and surfaced as ErrValidationFailed.
func (co *Coordinator) Handoff(ctx context.Context, fromAgent, toAgent string) (*HandoffRecord, error) {
	co.mu.Lock()
	defer co.mu.Unlock()

	from, err := co.registry.Get(fromAgent)
	if err != nil {
		co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "unknown_agent")
		return nil, fmt.Errorf("handoff %s -> %s: %w: %s", fromAgent, toAgent, ErrUnknownAgent, fromAgent)
	}
	to, err := co.registry.Get(toAgent)
	if err != nil {
		co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "unknown_agent")
		return nil, fmt.Errorf("handoff %s -> %s: %w: %s", fromAgent, toAgent, ErrUnknownAgent, toAgent)
	}

	if !from.MayHandoffTo(toAgent) {
		co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "illegal_handoff")
		return nil, fmt.Errorf("handoff %s -> %s: %w: edge not declared in HandoffTo %v",
			fromAgent, toAgent, ErrIllegalHandoff, from.HandoffTo)
	}

	co.states[fromAgent] = StatePendingHandoff
	snap := co.store.Snapshot()

	record := &HandoffRecord{
		ID:        uuid.New().String(),
		FromAgent: fromAgent,
		ToAgent:   toAgent,
		Timestamp: time.Now().UTC(),
	}

	preResults, err := co.runChecks(ctx, StagePreHandoff, from, snap)
	if err != nil {
		co.states[fromAgent] = StateRejected
		record.ValidationFailures = failedCheckNames(preResults)
		co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "validation_failed")
		return record, fmt.Errorf("handoff %s -> %s: %w", fromAgent, toAgent, err)
	}
	record.PreconditionOK = true

	// Continuity context travels as a copy; the snapshot is already
	// detached from the store.
	record.ContextSnapshot = ContinuitySnapshot{
		Decisions:         snap.Decisions,
		KnowledgeBase:     snap.KnowledgeBase,
		ValidationResults: snap.ValidationResults,
	}

	// Atomic swap of active membership.
	for _, r := range preResults {
		co.store.AppendValidationResult(r)
	}
	co.store.SetActiveAgents(replaceAgent(snap.ActiveAgents, fromAgent, toAgent))
	co.store.SetPhase(sharedctx.PhaseActive, toAgent)
	co.states[fromAgent] = StateInactive
	co.states[toAgent] = StateActive

	postSnap := co.store.Snapshot()
	postResults, err := co.runChecks(ctx, StagePostHandoff, to, postSnap)
	for _, r := range postResults {
		co.store.AppendValidationResult(r)
	}
	if err != nil {
		record.ValidationFailures = failedCheckNames(postResults)
		co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "post_validation_failed")
		co.logger.Warn("post-handoff validation failed, swap stands",
			zap.String("from", fromAgent),
			zap.String("to", toAgent),
			zap.Strings("failed_checks", record.ValidationFailures))
		return record, fmt.Errorf("handoff %s -> %s (completed): %w", fromAgent, toAgent, err)
	}
	record.PostconditionOK = true

	co.metrics.RecordHandoff(ctx, fromAgent, toAgent, "ok")
	co.logger.Info("handoff complete",
		zap.String("from", fromAgent),
		zap.String("to", toAgent),
		zap.String("handoff_id", record.ID))
	return record, nil
}

// RequestHandoff enqueues a handoff for later processing and returns the
// queue entry id. The edge is validated eagerly so callers learn about
// illegal requests immediately.
func (co *Coordinator) RequestHandoff(fromAgent, toAgent string) (string, error) {
	from, err := co.registry.Get(fromAgent)
	if err != nil {
		return "", fmt.Errorf("request handoff %s -> %s: %w: %s", fromAgent, toAgent, ErrUnknownAgent, fromAgent)
	}
	if _, err := co.registry.Get(toAgent); err != nil {
		return "", fmt.Errorf("request handoff %s -> %s: %w: %s", fromAgent, toAgent, ErrUnknownAgent, toAgent)
	}
	if !from.MayHandoffTo(toAgent) {
		return "", fmt.Errorf("request handoff %s -> %s: %w", fromAgent, toAgent, ErrIllegalHandoff)
	}
	return co.store.PushHandoff(fromAgent, toAgent), nil
}

// ProcessHandoffQueue drains pending handoffs FIFO, stopping at the first
// failure. It returns the records of all attempted handoffs.
func (co *Coordinator) ProcessHandoffQueue(ctx context.Context) ([]*HandoffRecord, error) {
	var records []*HandoffRecord
	for {
		pending, ok := co.store.PopHandoff()
		if !ok {
			return records, nil
		}
		record, err := co.Handoff(ctx, pending.FromAgent, pending.ToAgent)
		if record != nil {
			records = append(records, record)
		}
		if err != nil {
			return records, err
		}
	}
}

// failedActivationState is the state a failed activation leaves behind.
// An agent that was already active keeps its status: the failed attempt
// never touched the active membership.
func failedActivationState(prior State) State {
	if prior == StateActive {
		return StateActive
	}
	return StateRejected
}

// firstActivePredecessor returns the first member of activeAgents (in
// insertion order) that appears in the agent's declared HandoffFrom set.
func firstActivePredecessor(desc *agentfile.Descriptor, activeAgents []string) string {
	declared := make(map[string]bool, len(desc.HandoffFrom))
	for _, id := range desc.HandoffFrom {
		declared[id] = true
	}
	for _, id := range activeAgents {
		if declared[id] {
			return id
		}
	}
	return ""
}

// appendUnique appends id unless already present.
func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// replaceAgent removes fromAgent and appends toAgent.
func replaceAgent(ids []string, fromAgent, toAgent string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != fromAgent {
			out = append(out, id)
		}
	}
	return appendUnique(out, toAgent)
}

// failedCheckNames lists the names of failed results.
func failedCheckNames(results []sharedctx.ValidationResult) []string {
	var out []string
	for _, r := range results {
		if !r.Passed {
			out = append(out, r.Check)
		}
	}
	return out
}
