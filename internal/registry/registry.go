// Package registry holds the loaded agent descriptors.
//
// The registry is read-only between Load/Refresh calls. Refresh is atomic:
// either a newly parsed descriptor set fully replaces the previous one, or
// the previous set is retained untouched. Concurrent readers observe the old
// or the new complete set, never a mix.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/agentfile"
)

// Errors for registry operations.
var (
	// ErrUnknownAgent indicates the requested identifier is not registered.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrNoAgents indicates a load/refresh source yielded no well-formed
	// agent sections. Refresh treats this as malformed input and keeps the
	// prior set.
	ErrNoAgents = errors.New("no well-formed agent sections in source")
)

// Registry is the agent-configuration registry.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*agentfile.Descriptor
	order  []string
	source string
	logger *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		byID:   make(map[string]*agentfile.Descriptor),
		logger: logger,
	}
}

// Load parses the agent file at path and installs the result, remembering
// the path for later Refresh calls. Unlike Refresh, Load fails on an empty
// result so a misconfigured deployment is caught at startup.
func (r *Registry) Load(path string) error {
	agents, err := agentfile.ParseFile(path)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		return fmt.Errorf("%w: %s", ErrNoAgents, path)
	}

	r.install(path, agents)
	r.logger.Info("agent registry loaded",
		zap.String("source", path),
		zap.Int("agents", len(agents)))
	return nil
}

// Refresh re-parses the remembered source and atomically replaces the
// descriptor set. On any failure the prior set is retained unchanged.
func (r *Registry) Refresh() error {
	r.mu.RLock()
	source := r.source
	r.mu.RUnlock()

	if source == "" {
		return errors.New("registry has no source: call Load first")
	}

	agents, err := agentfile.ParseFile(source)
	if err != nil {
		r.logger.Warn("registry refresh failed, keeping prior set", zap.Error(err))
		return err
	}
	if len(agents) == 0 {
		err := fmt.Errorf("%w: %s", ErrNoAgents, source)
		r.logger.Warn("registry refresh failed, keeping prior set", zap.Error(err))
		return err
	}

	r.install(source, agents)
	r.logger.Info("agent registry refreshed",
		zap.String("source", source),
		zap.Int("agents", len(agents)))
	return nil
}

// install swaps in a fully parsed descriptor set.
func (r *Registry) install(source string, agents []*agentfile.Descriptor) {
	byID := make(map[string]*agentfile.Descriptor, len(agents))
	order := make([]string, 0, len(agents))
	for _, a := range agents {
		if _, dup := byID[a.ID]; dup {
			// Last declaration wins; the first slot keeps declaration order.
			byID[a.ID] = a
			continue
		}
		byID[a.ID] = a
		order = append(order, a.ID)
	}

	r.mu.Lock()
	r.source = source
	r.byID = byID
	r.order = order
	r.mu.Unlock()
}

// Get returns a copy of the descriptor for the given agent id.
func (r *Registry) Get(agentID string) (*agentfile.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return d.Clone(), nil
}

// List returns copies of all descriptors in insertion order.
func (r *Registry) List() []*agentfile.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*agentfile.Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
