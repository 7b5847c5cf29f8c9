// Package agent defines the capability contract every Troupe worker must
// implement, together with the value types exchanged over it. Concrete
// implementations are chosen at registry construction time; the
// orchestration core never discovers capabilities dynamically.
package agent

import (
	"context"
	"time"
)

// Scope declares the intended audience of a team message. The registry
// resolves it to a concrete recipient set at dispatch time.
type Scope string

const (
	// ScopeDirect targets a single named teammate.
	ScopeDirect Scope = "direct"

	// ScopeGroup targets every other active agent.
	ScopeGroup Scope = "group"

	// ScopeAuto targets the named teammate when one is given, otherwise
	// behaves as ScopeGroup.
	ScopeAuto Scope = "auto"
)

// TeamMessage is an inter-agent message. To may identify the target by
// agent ID or display name; it is ignored for ScopeGroup.
type TeamMessage struct {
	From      string
	Content   string
	Scope     Scope
	To        string
	Timestamp time.Time
}

// RoleProfile describes an agent's preferred responsibilities.
// ReviewPriority is a pointer so that an unset priority stays distinct from
// an explicit zero: unset defaults to 1 for review-preferring agents and 0
// otherwise.
type RoleProfile struct {
	Primary         string
	Secondary       string
	ReviewPreferred bool
	ReviewPriority  *int
}

// Availability reports whether an agent can participate in a session.
type Availability struct {
	Available bool
	Issues    []string
	Notes     []string
}

// PlanContribution pairs an agent with the plan text it produced, in
// registration order.
type PlanContribution struct {
	AgentID   string
	AgentName string
	Plan      string
}

// Agent is the closed capability contract for one worker backend.
// Initialize may fail, which excludes the agent from the active set;
// every other capability failure is isolated per call by the registry.
// ReceiveTeamMessage and Shutdown are best-effort.
type Agent interface {
	// ID returns the agent's unique, stable identifier.
	ID() string

	// Name returns the agent's display name.
	Name() string

	// Profile returns the agent's role profile.
	Profile() RoleProfile

	// CheckAvailability reports whether the agent can take part in a
	// session, with any blocking issues or informational notes.
	CheckAvailability(ctx context.Context) (Availability, error)

	// Initialize prepares the agent for a task. An error excludes the
	// agent from the session's active set.
	Initialize(ctx context.Context, task string) error

	// GeneratePlan produces the agent's proposed plan for the task.
	GeneratePlan(ctx context.Context, task string) (string, error)

	// NegotiateResponsibilities produces the agent's claimed allocation
	// given the coordinator summary and every agent's plan.
	NegotiateResponsibilities(ctx context.Context, summary string, plans []PlanContribution) (string, error)

	// ExecuteTasks performs the agent's assignment and returns a
	// transcript. The context carries no deadline unless the caller set
	// one; long-running work must not be truncated by default.
	ExecuteTasks(ctx context.Context, assignment string, allAssignments map[string]string) (string, error)

	// ReceiveTeamMessage delivers a message from a teammate. Best-effort.
	ReceiveTeamMessage(ctx context.Context, msg TeamMessage) error

	// Shutdown releases any resources held by the agent. Best-effort.
	Shutdown(ctx context.Context) error
}

// EffectiveReviewPriority computes the review-owner tie-break score for a
// profile: preferred agents score (priority or 1) + 10, others score
// (priority or 0).
func (p RoleProfile) EffectiveReviewPriority() int {
	if p.ReviewPreferred {
		prio := 1
		if p.ReviewPriority != nil {
			prio = *p.ReviewPriority
		}
		return prio + 10
	}
	if p.ReviewPriority != nil {
		return *p.ReviewPriority
	}
	return 0
}
