package variant

import (
	"context"
	"fmt"
	"strings"

	"github.com/troupe-dev/troupe/internal/agent"
	"github.com/troupe-dev/troupe/internal/errors"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/internal/registry"
)

// Orchestrator drives variant runs for a session: independent planning,
// isolated execution, and the selection of a winning variant.
type Orchestrator struct {
	bus    *event.Bus
	reg    *registry.Registry
	logger *logging.Logger

	parent string
	manual bool

	slot selectionSlot
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkspaceParent sets the directory under which variant workspaces
// are created. Defaults to the current directory.
func WithWorkspaceParent(dir string) Option {
	return func(o *Orchestrator) {
		o.parent = dir
	}
}

// WithManualSelection suspends each run on a selection request instead of
// applying the auto policy.
func WithManualSelection(manual bool) Option {
	return func(o *Orchestrator) {
		o.manual = manual
	}
}

// New creates a variant Orchestrator over an initialized registry.
func New(bus *event.Bus, reg *registry.Registry, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	o := &Orchestrator{
		bus:    bus,
		reg:    reg,
		logger: logger,
		parent: ".",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ManualSelection reports whether runs suspend for a manual selection.
func (o *Orchestrator) ManualSelection() bool {
	return o.manual
}

// SetManualSelection switches the selection policy for future runs. It
// never touches an already-suspended selection; use ForceAutoResolve for
// that.
func (o *Orchestrator) SetManualSelection(manual bool) {
	o.manual = manual
}

// Pending returns the outstanding selection request, or nil when no run is
// suspended.
func (o *Orchestrator) Pending() *PendingSelection {
	return o.slot.current()
}

// SubmitSelection resolves the pending manual selection from a raw value:
// a 1-based option number, an agent ID, a display name in any case, or
// "auto" to delegate back to the auto policy. A mismatched request ID or
// unmatched value returns an error and leaves the suspension intact.
func (o *Orchestrator) SubmitSelection(requestID, raw string) (SubmissionResult, error) {
	res, err := o.slot.submit(requestID, raw)
	if err != nil {
		o.logger.Warn("selection submission rejected",
			"request_id", requestID, "value", raw, "error", err)
		return SubmissionResult{}, err
	}
	return res, nil
}

// ForceAutoResolve resolves any suspended selection via the auto policy.
// Called when the session leaves variant mode so a forgotten manual
// request cannot strand the run. Returns true if a selection was resolved.
func (o *Orchestrator) ForceAutoResolve() bool {
	resolved := o.slot.forceAuto()
	if resolved {
		o.logger.Info("pending variant selection force-resolved")
	}
	return resolved
}

// Run performs a full variant pass: every active agent plans privately,
// builds its own complete solution in an isolated workspace directory, and
// the selection step picks the winner. Returns ErrNoAgentsAvailable if the
// registry has no active agents.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	active := o.reg.Active()
	if len(active) == 0 {
		return nil, errors.NewSessionError("variant run requires at least one active agent", errors.ErrNoAgentsAvailable).
			WithSessionID(req.SessionID)
	}

	o.publishStatus(req.SessionID, "", "variant", fmt.Sprintf("starting variant run with %d agents", len(active)))

	plans := o.planPrivately(ctx, req, active)

	ws := PlanWorkspace(o.parent, req.Prompt, sessionSuffix(req.SessionID), active)
	if err := ws.Materialize(); err != nil {
		return nil, errors.NewSessionError("creating variant workspace", err).
			WithSessionID(req.SessionID).
			WithPhase("variant")
	}
	o.logger.Info("variant workspace created", "root", ws.Root, "agents", len(active))

	// Workspace activity feeds the bus while builds run. Observational
	// only; a watcher failure never blocks the run.
	if w, err := NewWatcher(o.bus, o.logger, req.SessionID); err != nil {
		o.logger.Warn("workspace watcher unavailable", "error", err)
	} else {
		names := make(map[string]string, len(active))
		for _, ag := range active {
			names[ag.ID()] = ag.Name()
		}
		if err := w.WatchWorkspace(ws, names); err != nil {
			o.logger.Warn("workspace watch failed", "error", err)
			w.Stop()
		} else {
			w.Start()
			defer w.Stop()
		}
	}

	results := o.execute(ctx, req, active, ws, plans)
	o.publishResults(req, results)

	sel, err := o.selectWinner(ctx, req, results)
	if err != nil {
		return nil, err
	}

	o.publish(event.NewPlanningEvent(req.SessionID, event.StageVariantSelected,
		sel.AgentID, sel.AgentName,
		fmt.Sprintf("selected variant in %s (%s): %s", sel.ProjectDir, sel.Mode, sel.Rationale)))

	return &Outcome{
		WorkspaceRoot: ws.Root,
		Results:       results,
		Selection:     sel,
	}, nil
}

// planPrivately fans the planning step out without sharing plans between
// agents. Each plan is attached to that agent's variant only.
func (o *Orchestrator) planPrivately(ctx context.Context, req Request, active []agent.Agent) map[string]string {
	batch := o.reg.FanOut(ctx, "variant planning", func(ctx context.Context, ag agent.Agent) (string, error) {
		return ag.GeneratePlan(ctx, req.Prompt)
	})

	plans := make(map[string]string, len(batch))
	for _, res := range batch {
		plans[res.AgentID] = res.Text
		o.publish(event.NewPlanningEvent(req.SessionID, event.StageInitialPlan,
			res.AgentID, res.AgentName, res.Text))
	}
	return plans
}

// execute fans the build step out with every agent confined to its own
// workspace directory. Results come back in registration order.
func (o *Orchestrator) execute(ctx context.Context, req Request, active []agent.Agent, ws *Workspace, plans map[string]string) []Result {
	assignments := make(map[string]string, len(active))
	for _, ag := range active {
		assignments[ag.ID()] = variantAssignment(req.Prompt, ws.Dir(ag.ID()))
	}

	batch := o.reg.FanOut(ctx, "variant execution", func(ctx context.Context, ag agent.Agent) (string, error) {
		o.publishStatus(req.SessionID, ag.ID(), "executing", fmt.Sprintf("building variant in %s", ws.Folders[ag.ID()]))
		return ag.ExecuteTasks(ctx, assignments[ag.ID()], assignments)
	})

	results := make([]Result, len(batch))
	for i, res := range batch {
		results[i] = Result{
			AgentID:    res.AgentID,
			AgentName:  res.AgentName,
			ProjectDir: ws.Dir(res.AgentID),
			FolderName: ws.Folders[res.AgentID],
			Transcript: res.Text,
			Plan:       plans[res.AgentID],
			Order:      i,
		}
	}
	return results
}

// selectWinner applies the configured selection policy. Manual mode
// suspends the run on a PendingSelection until an external submission,
// a forced resolution, or context cancellation.
func (o *Orchestrator) selectWinner(ctx context.Context, req Request, results []Result) (Selection, error) {
	if !o.manual {
		return autoSelect(results, req.ReviewAgentID, SelectionAuto), nil
	}

	pending := newPendingSelection(results, req.ReviewAgentID)
	if err := o.slot.park(pending); err != nil {
		return Selection{}, err
	}

	// The planning channel sees the suspension before anyone can answer
	// the request, so it goes out first.
	o.publish(event.NewPlanningEvent(req.SessionID, event.StageSelectionRequest, "", "",
		selectionPrompt(results)))
	o.publish(event.NewRequestEvent(req.SessionID, pending.RequestID, "variant-selection",
		selectionPrompt(results), pending.Options))
	o.publishStatus(req.SessionID, "", "awaiting-selection",
		fmt.Sprintf("variant run suspended on selection request %s", pending.RequestID))

	select {
	case sel := <-pending.done:
		return sel, nil
	case <-ctx.Done():
		o.slot.clear(pending)
		return Selection{}, errors.NewSessionError("variant run canceled while awaiting selection", ctx.Err()).
			WithSessionID(req.SessionID).
			WithPhase("variant-selection")
	}
}

func (o *Orchestrator) publish(e event.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func (o *Orchestrator) publishStatus(sessionID, agentID, state, message string) {
	o.publish(event.NewStatusEvent(sessionID, agentID, state, message))
}

func (o *Orchestrator) publishResults(req Request, results []Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "%d variants completed:\n", len(results))
	for _, res := range results {
		fmt.Fprintf(&b, "  %d. %s in %s\n", res.Order+1, res.AgentName, res.FolderName)
	}
	o.publish(event.NewPlanningEvent(req.SessionID, event.StageVariantResults, "", "", b.String()))
}

// variantAssignment phrases the isolated build instruction for one agent.
func variantAssignment(prompt, projectDir string) string {
	return fmt.Sprintf(
		"Build a complete, standalone solution to the following task inside %s. "+
			"Do not read from or write to any other variant directory.\n\nTask: %s",
		projectDir, prompt)
}

// selectionPrompt phrases the manual selection request.
func selectionPrompt(results []Result) string {
	var b strings.Builder
	b.WriteString("All variants are complete. Reply with an option number, an agent ID or name, or \"auto\":\n")
	for _, res := range results {
		fmt.Fprintf(&b, "  %d. %s (%s)\n", res.Order+1, res.AgentName, res.FolderName)
	}
	return b.String()
}

// sessionSuffix derives a short workspace suffix from a session ID.
func sessionSuffix(sessionID string) string {
	s := strings.ReplaceAll(sessionID, "-", "")
	if len(s) > 8 {
		s = s[:8]
	}
	if s == "" {
		return "session"
	}
	return s
}
