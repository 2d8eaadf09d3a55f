// Package sharedctx holds the orchestrator's shared mutable context.
//
// The store is the single record of orchestration state visible to every
// component. It is owned by the orchestrator instance and injected into
// collaborators; there is no package-level singleton. All mutation funnels
// through one locked update path that attributes the change to a key and
// notifies subscribed observers; reads return deep-copied snapshots so no
// caller ever holds a live reference into orchestrator state.
package sharedctx

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase enumerates the orchestrator's lifecycle phases. The agent an
// active phase refers to lives in Snapshot.ActiveAgentID, not in the label.
type Phase string

const (
	PhaseInitialization Phase = "initialization"
	PhaseActive         Phase = "active"
	PhaseHandoff        Phase = "handoff"
	PhaseComplete       Phase = "complete"
)

// Key attributes a mutation to the context field it touched.
type Key string

const (
	KeyProjectInfo       Key = "project_info"
	KeyPhase             Key = "phase"
	KeyActiveAgents      Key = "active_agents"
	KeyHandoffQueue      Key = "handoff_queue"
	KeyValidationResults Key = "validation_results"
	KeyDependencyStatus  Key = "dependency_status"
	KeyResearchCache     Key = "research_cache"
	KeyDecisions         Key = "decisions"
	KeyKnowledgeBase     Key = "knowledge_base"
)

// Decision is one append-only decision log record.
type Decision struct {
	ID         string    `json:"id"`
	Agent      string    `json:"agent"`
	Summary    string    `json:"summary"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ValidationResult records one named check outcome.
type ValidationResult struct {
	Check      string    `json:"check"`
	Stage      string    `json:"stage"`
	Agent      string    `json:"agent"`
	Passed     bool      `json:"passed"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PendingHandoff is one queued handoff request awaiting processing.
type PendingHandoff struct {
	ID          string    `json:"id"`
	FromAgent   string    `json:"from_agent"`
	ToAgent     string    `json:"to_agent"`
	RequestedAt time.Time `json:"requested_at"`
}

// Snapshot is a deep copy of the context at one point in time.
// Mutating a snapshot never affects the store.
type Snapshot struct {
	ProjectInfo       map[string]Value   `json:"project_info"`
	Phase             Phase              `json:"phase"`
	ActiveAgentID     string             `json:"active_agent_id,omitempty"`
	ActiveAgents      []string           `json:"active_agents"`
	HandoffQueue      []PendingHandoff   `json:"handoff_queue"`
	ValidationResults []ValidationResult `json:"validation_results"`
	DependencyStatus  map[string]string  `json:"dependency_status"`
	ResearchCache     map[string]Value   `json:"research_cache"`
	Decisions         []Decision         `json:"decisions"`
	KnowledgeBase     map[string]Value   `json:"knowledge_base"`
}

// Observer receives change notifications. The key names the mutated field
// and the snapshot is the post-mutation state. Observers are a hook point
// for external sinks (status display, logging, persistence); the store does
// not depend on them succeeding.
type Observer func(key Key, snap Snapshot)

// Store is the shared context store. Safe for concurrent use; at most one
// mutation is in flight at a time.
type Store struct {
	mu        sync.RWMutex
	state     Snapshot
	observers []Observer
}

// NewStore creates a store with empty initial state.
func NewStore() *Store {
	return &Store{
		state: Snapshot{
			ProjectInfo:      make(map[string]Value),
			Phase:            PhaseInitialization,
			DependencyStatus: make(map[string]string),
			ResearchCache:    make(map[string]Value),
			KnowledgeBase:    make(map[string]Value),
		},
	}
}

// Subscribe registers an observer for all future mutations.
//
// Observers run synchronously on the mutating goroutine, which may hold a
// component's lock (the coordinator records validation results while its
// operation lock is held). An observer must not call back into the
// component whose mutation it is observing; forward the event to another
// goroutine instead.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// update is the single mutation entry point. It applies the mutation under
// the write lock, then notifies observers with a post-mutation snapshot.
// Notification happens outside the lock so a slow observer cannot stall
// readers, and always succeeds from the caller's perspective.
func (s *Store) update(key Key, mutate func(*Snapshot)) {
	s.mu.Lock()
	mutate(&s.state)
	snap := s.state.clone()
	observers := s.observers
	s.mu.Unlock()

	for _, obs := range observers {
		obs(key, snap)
	}
}

// SetProjectInfo overwrites one project-info entry.
func (s *Store) SetProjectInfo(field string, v Value) {
	s.update(KeyProjectInfo, func(st *Snapshot) {
		st.ProjectInfo[field] = v.Clone()
	})
}

// SetPhase records the lifecycle phase and, for active phases, which agent
// the phase refers to.
func (s *Store) SetPhase(phase Phase, agentID string) {
	s.update(KeyPhase, func(st *Snapshot) {
		st.Phase = phase
		st.ActiveAgentID = agentID
	})
}

// SetActiveAgents atomically replaces the active-agent membership.
func (s *Store) SetActiveAgents(ids []string) {
	s.update(KeyActiveAgents, func(st *Snapshot) {
		st.ActiveAgents = append([]string(nil), ids...)
	})
}

// PushHandoff appends a pending handoff request and returns its id.
func (s *Store) PushHandoff(fromAgent, toAgent string) string {
	id := uuid.New().String()
	s.update(KeyHandoffQueue, func(st *Snapshot) {
		st.HandoffQueue = append(st.HandoffQueue, PendingHandoff{
			ID:          id,
			FromAgent:   fromAgent,
			ToAgent:     toAgent,
			RequestedAt: time.Now().UTC(),
		})
	})
	return id
}

// PopHandoff removes and returns the oldest pending handoff, if any.
func (s *Store) PopHandoff() (PendingHandoff, bool) {
	var (
		out PendingHandoff
		ok  bool
	)
	s.update(KeyHandoffQueue, func(st *Snapshot) {
		if len(st.HandoffQueue) == 0 {
			return
		}
		out = st.HandoffQueue[0]
		st.HandoffQueue = append([]PendingHandoff(nil), st.HandoffQueue[1:]...)
		ok = true
	})
	return out, ok
}

// AppendValidationResult records a check outcome.
func (s *Store) AppendValidationResult(r ValidationResult) {
	if r.RecordedAt.IsZero() {
		r.RecordedAt = time.Now().UTC()
	}
	s.update(KeyValidationResults, func(st *Snapshot) {
		st.ValidationResults = append(st.ValidationResults, r)
	})
}

// SetDependencyStatus overwrites one dependency status entry.
func (s *Store) SetDependencyStatus(name, status string) {
	s.update(KeyDependencyStatus, func(st *Snapshot) {
		st.DependencyStatus[name] = status
	})
}

// SetResearchCache overwrites one research-cache entry.
func (s *Store) SetResearchCache(field string, v Value) {
	s.update(KeyResearchCache, func(st *Snapshot) {
		st.ResearchCache[field] = v.Clone()
	})
}

// AppendDecision appends to the decision log and returns the record id.
func (s *Store) AppendDecision(agent, summary string) string {
	id := uuid.New().String()
	s.update(KeyDecisions, func(st *Snapshot) {
		st.Decisions = append(st.Decisions, Decision{
			ID:         id,
			Agent:      agent,
			Summary:    summary,
			RecordedAt: time.Now().UTC(),
		})
	})
	return id
}

// SetKnowledge overwrites one knowledge-base entry.
func (s *Store) SetKnowledge(field string, v Value) {
	s.update(KeyKnowledgeBase, func(st *Snapshot) {
		st.KnowledgeBase[field] = v.Clone()
	})
}

// clone deep-copies a snapshot.
func (s Snapshot) clone() Snapshot {
	out := s
	out.ProjectInfo = cloneValueMap(s.ProjectInfo)
	out.ActiveAgents = append([]string(nil), s.ActiveAgents...)
	out.HandoffQueue = append([]PendingHandoff(nil), s.HandoffQueue...)
	out.ValidationResults = append([]ValidationResult(nil), s.ValidationResults...)
	out.Decisions = append([]Decision(nil), s.Decisions...)
	out.ResearchCache = cloneValueMap(s.ResearchCache)
	out.KnowledgeBase = cloneValueMap(s.KnowledgeBase)
	if s.DependencyStatus != nil {
		out.DependencyStatus = make(map[string]string, len(s.DependencyStatus))
		for k, v := range s.DependencyStatus {
			out.DependencyStatus[k] = v
		}
	}
	return out
}
