package coordinator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relayforge/conductord/internal/agentfile"
	"github.com/relayforge/conductord/internal/sharedctx"
)

// Stage identifies when a check runs relative to the state change.
type Stage string

const (
	StagePreActivation Stage = "pre_activation"
	StagePreHandoff    Stage = "pre_handoff"
	StagePostHandoff   Stage = "post_handoff"
)

// Check is one named validation run around activation or handoff.
// Checks observe a snapshot; they never mutate orchestrator state.
type Check interface {
	// Name returns the check identifier.
	Name() string

	// Check validates the condition for the given agent against the
	// pre-mutation (pre-stages) or post-mutation (post-stages) snapshot.
	Check(ctx context.Context, stage Stage, agent *agentfile.Descriptor, snap sharedctx.Snapshot) error
}

// declaredCheck satisfies the validations an agent names in its descriptor.
// The minimal contract is execute-and-log; a deployment registers richer
// checks by name to give these teeth.
type declaredCheck struct {
	name   string
	logger *zap.Logger
}

func (c *declaredCheck) Name() string { return c.name }

func (c *declaredCheck) Check(ctx context.Context, stage Stage, agent *agentfile.Descriptor, snap sharedctx.Snapshot) error {
	c.logger.Info("validation check",
		zap.String("check", c.name),
		zap.String("stage", string(stage)),
		zap.String("agent", agent.ID))
	return nil
}

// CheckFunc adapts a function to the Check interface.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context, stage Stage, agent *agentfile.Descriptor, snap sharedctx.Snapshot) error
}

func (c CheckFunc) Name() string { return c.CheckName }

func (c CheckFunc) Check(ctx context.Context, stage Stage, agent *agentfile.Descriptor, snap sharedctx.Snapshot) error {
	return c.Fn(ctx, stage, agent, snap)
}

// runChecks runs the coordinator's registered checks for a stage, followed
// by the agent's declared validations. The first failure stops the run.
// Results are returned, not recorded: the caller decides whether they reach
// the shared context, so a failed pre-check can leave the context untouched.
func (co *Coordinator) runChecks(ctx context.Context, stage Stage, agent *agentfile.Descriptor, snap sharedctx.Snapshot) ([]sharedctx.ValidationResult, error) {
	checks := append([]Check(nil), co.checks[stage]...)
	for _, name := range agent.Validations {
		if custom, ok := co.named[name]; ok {
			checks = append(checks, custom)
			continue
		}
		checks = append(checks, &declaredCheck{name: name, logger: co.logger})
	}

	var results []sharedctx.ValidationResult
	for _, check := range checks {
		err := check.Check(ctx, stage, agent, snap)
		result := sharedctx.ValidationResult{
			Check:  check.Name(),
			Stage:  string(stage),
			Agent:  agent.ID,
			Passed: err == nil,
		}
		if err != nil {
			result.Detail = err.Error()
			results = append(results, result)
			return results, fmt.Errorf("%w: check %s on %s: %v", ErrValidationFailed, check.Name(), agent.ID, err)
		}
		results = append(results, result)
	}
	return results, nil
}
