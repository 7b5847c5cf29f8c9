package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/troupe-dev/troupe/internal/agent"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/registry"
	"github.com/troupe-dev/troupe/internal/roles"
)

// runCollaborative drives one full collaborative turn. A single agent's
// failure at any fan-out degrades to its fallback text; the turn itself
// never fails once the session has active agents.
func (c *Coordinator) runCollaborative(ctx context.Context, s *Session) error {
	artifacts := &PlanArtifacts{
		InitialPlans: make(map[string]string),
		Allocations:  make(map[string]string),
		Transcripts:  make(map[string]string),
	}
	c.mu.Lock()
	s.Plan = artifacts
	c.mu.Unlock()

	// Phase 1: every agent proposes a plan.
	c.setState(s, StatePlanning)
	planBatch := c.reg.FanOut(ctx, "planning", func(ctx context.Context, ag agent.Agent) (string, error) {
		return ag.GeneratePlan(ctx, s.UserPrompt)
	})
	contributions := make([]agent.PlanContribution, 0, len(planBatch))
	for _, res := range planBatch {
		artifacts.InitialPlans[res.AgentID] = res.Text
		contributions = append(contributions, agent.PlanContribution{
			AgentID:   res.AgentID,
			AgentName: res.AgentName,
			Plan:      res.Text,
		})
		c.publish(event.NewPlanningEvent(s.ID, event.StageInitialPlan, res.AgentID, res.AgentName, res.Text))
	}

	// Phase 2: synthesize. Pure and local, no agent calls.
	artifacts.Summary = synthesizeSummary(s.UserPrompt, planBatch, s.Agents)
	c.publish(event.NewPlanningEvent(s.ID, event.StageCoordinatorSummary, "", "", artifacts.Summary))

	// Phase 3: every agent claims its share of the work.
	c.setState(s, StateNegotiating)
	allocBatch := c.reg.FanOut(ctx, "negotiation", func(ctx context.Context, ag agent.Agent) (string, error) {
		return ag.NegotiateResponsibilities(ctx, artifacts.Summary, contributions)
	})
	for _, res := range allocBatch {
		artifacts.Allocations[res.AgentID] = res.Text
		c.publish(event.NewPlanningEvent(s.ID, event.StageAllocation, res.AgentID, res.AgentName, res.Text))
	}

	// Phase 4: merge into the final division of work.
	c.setState(s, StateAssigned)
	assignments := mergeAssignments(s, allocBatch)
	c.mu.Lock()
	s.Assignments = assignments
	c.mu.Unlock()
	c.publish(event.NewPlanningEvent(s.ID, event.StageFinalDivision, "", "", formatAssignments(s.Agents, assignments)))

	// Phase 5: execute. No deadline unless one was configured; long
	// code-generation runs must not be truncated by default.
	c.setState(s, StateExecuting)
	execCtx := ctx
	if c.execTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, c.execTimeout)
		defer cancel()
	}
	execBatch := c.reg.FanOut(execCtx, "execution", func(ctx context.Context, ag agent.Agent) (string, error) {
		return ag.ExecuteTasks(ctx, assignments[ag.ID()], assignments)
	})
	for _, res := range execBatch {
		artifacts.Transcripts[res.AgentID] = res.Text
		c.publish(event.NewPlanningEvent(s.ID, event.StageExecutionTranscript, res.AgentID, res.AgentName, res.Text))
	}

	c.setState(s, StateComplete)
	c.logger.Info("collaborative turn complete", "session", s.ID, "agents", len(planBatch))
	return nil
}

// synthesizeSummary concatenates every agent's plan and appends the role
// table. Deterministic for a given batch.
func synthesizeSummary(prompt string, plans []registry.Result, entries []roles.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\n", prompt)

	b.WriteString("Proposed plans:\n")
	for _, res := range plans {
		fmt.Fprintf(&b, "\n## %s\n%s\n", res.AgentName, res.Text)
	}

	b.WriteString("\nTeam roles:\n")
	for _, e := range entries {
		role := e.Primary
		if role == "" {
			role = "generalist"
		}
		if e.Secondary != "" {
			role += ", " + e.Secondary
		}
		marker := ""
		if e.IsReviewAgent {
			marker = " (review owner)"
		}
		fmt.Fprintf(&b, "- %s: %s%s\n", e.Name, role, marker)
	}
	return b.String()
}

// mergeAssignments turns the negotiated allocations into the final
// per-agent assignment map. An empty or failed allocation is replaced by a
// default synthesized from the agent's role profile, and every assignment
// gets review-owner instructions appended.
func mergeAssignments(s *Session, allocs []registry.Result) map[string]string {
	byID := make(map[string]registry.Result, len(allocs))
	for _, res := range allocs {
		byID[res.AgentID] = res
	}

	reviewer := s.ReviewAgentName()
	assignments := make(map[string]string, len(s.Agents))
	for _, e := range s.Agents {
		text := ""
		if res, ok := byID[e.ID]; ok && res.Err == nil {
			text = strings.TrimSpace(res.Text)
		}
		if text == "" {
			text = defaultAssignment(e)
		}

		if e.IsReviewAgent {
			text += "\n\nYou are the review owner: review every teammate's work before the task is considered done."
		} else {
			text += fmt.Sprintf("\n\nNotify %s, the review owner, when your work is done.", reviewer)
		}
		assignments[e.ID] = text
	}
	return assignments
}

// defaultAssignment synthesizes an assignment from a role profile when an
// agent produced no usable allocation.
func defaultAssignment(e roles.Entry) string {
	switch {
	case e.Primary != "" && e.Secondary != "":
		return fmt.Sprintf("Take ownership of the %s work for this task, covering %s where needed.", e.Primary, e.Secondary)
	case e.Primary != "":
		return fmt.Sprintf("Take ownership of the %s work for this task.", e.Primary)
	default:
		return "Contribute to the task wherever your capabilities apply."
	}
}

// formatAssignments renders the assignment map in role-table order for the
// final-division event.
func formatAssignments(entries []roles.Entry, assignments map[string]string) string {
	var b strings.Builder
	b.WriteString("Final division of work:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n## %s\n%s\n", e.Name, assignments[e.ID])
	}
	return b.String()
}
