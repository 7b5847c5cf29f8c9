// Package orchestrator owns the session aggregate and drives either the
// collaborative phase pipeline (plan, synthesize, negotiate, assign,
// execute) or a variant run, publishing progress on the event bus.
package orchestrator

import (
	"time"

	"github.com/troupe-dev/troupe/internal/orchestrator/variant"
	"github.com/troupe-dev/troupe/internal/registry"
	"github.com/troupe-dev/troupe/internal/roles"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StatePlanning    State = "planning"
	StateNegotiating State = "negotiating"
	StateAssigned    State = "assigned"
	StateExecuting   State = "executing"
	StateComplete    State = "complete"
	StateError       State = "error"
)

// Mode selects which phase pipeline a session runs.
type Mode string

const (
	// ModeCollaborative runs the shared plan/negotiate/execute pipeline.
	ModeCollaborative Mode = "collaborative"

	// ModeVariant has every agent build an independent solution in an
	// isolated workspace, followed by a selection step.
	ModeVariant Mode = "variant"
)

// ValidMode reports whether a mode string names a known pipeline.
func ValidMode(m Mode) bool {
	return m == ModeCollaborative || m == ModeVariant
}

// PlanArtifacts holds every intermediate text a collaborative turn
// produced, keyed by agent ID where per-agent.
type PlanArtifacts struct {
	InitialPlans map[string]string
	Summary      string
	Allocations  map[string]string
	Transcripts  map[string]string
}

// Session is the aggregate for one orchestrated task. It is mutated only
// by the coordinator's state machine; one planning and execution cycle per
// logical turn.
type Session struct {
	ID         string
	UserPrompt string
	CreatedAt  time.Time

	Mode  Mode
	State State

	Agents        []roles.Entry
	ReviewAgentID string
	InitFailures  []registry.InitFailure

	Plan        *PlanArtifacts
	Assignments map[string]string
	Variant     *variant.Outcome
}

// ReviewAgentName returns the review owner's display name, or the ID when
// the name is unknown.
func (s *Session) ReviewAgentName() string {
	for _, e := range s.Agents {
		if e.IsReviewAgent {
			return e.Name
		}
	}
	return s.ReviewAgentID
}

// resetTurn clears the artifacts of the previous turn so the session can
// run another planning and execution cycle.
func (s *Session) resetTurn(prompt string) {
	s.UserPrompt = prompt
	s.State = StateIdle
	s.Plan = nil
	s.Assignments = nil
	s.Variant = nil
}
