// Package agentfile parses the delimited agent-definition text format into
// agent descriptors.
//
// An agent file is a sequence of sections, each opened by a start marker:
//
//	==== START: dependency-auditor ====
//	Title: Dependency Auditor
//	Name: Argus
//	Description: Audits third-party dependencies for drift and risk.
//	Persona: personas/dependency-auditor.md
//	Tasks: audit-dependencies, report-vulnerabilities
//	Coordination: sequential
//	HandoffFrom: project-analyst
//	HandoffTo: deployment-engineer
//	Validations: dependency-manifest-present
//	Priority: 2
//
// Sections whose name identifies orchestrator configuration rather than an
// agent (see isConfigSection) are skipped. Unrecognized lines inside an agent
// section are ignored so persona documents can carry prose alongside fields.
package agentfile

// Descriptor is the identity and coordination contract for one agent.
type Descriptor struct {
	// ID is the section name the agent was declared under. It is the key
	// used everywhere else in the orchestrator.
	ID string

	Title       string
	Name        string
	Description string

	// Persona is an opaque reference to the agent's behavioral document.
	Persona string

	// Tasks lists task identifiers the agent can perform, in declared order.
	Tasks []string

	// Coordination is a free-text coordination policy label.
	Coordination string

	// HandoffFrom and HandoffTo are the declared directed handoff edges.
	// An empty HandoffFrom means the agent may activate without a
	// predecessor; an empty HandoffTo means any transfer target is legal.
	HandoffFrom []string
	HandoffTo   []string

	// Validations names checks that must pass around activation/handoff.
	Validations []string

	// Priority orders agents when a mode derives its plan from the registry.
	// Lower is more urgent.
	Priority int
}

// Valid reports whether the descriptor carries the mandatory fields.
// Sections failing this are dropped at parse time.
func (d *Descriptor) Valid() bool {
	return d.Title != "" && d.Name != ""
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	out := *d
	out.Tasks = append([]string(nil), d.Tasks...)
	out.HandoffFrom = append([]string(nil), d.HandoffFrom...)
	out.HandoffTo = append([]string(nil), d.HandoffTo...)
	out.Validations = append([]string(nil), d.Validations...)
	return &out
}

// MayHandoffTo reports whether a transfer from d to the given agent is a
// declared edge. An agent with no declared HandoffTo may transfer anywhere.
func (d *Descriptor) MayHandoffTo(agentID string) bool {
	if len(d.HandoffTo) == 0 {
		return true
	}
	for _, id := range d.HandoffTo {
		if id == agentID {
			return true
		}
	}
	return false
}
