package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/troupe-dev/troupe/internal/agent"
	"github.com/troupe-dev/troupe/internal/errors"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/logging"
)

// Result is one fan-out entry. Every active agent contributes exactly one
// Result per batch. When Err is non-nil, Text carries the synthetic
// fallback string instead of a capability result.
type Result struct {
	AgentID   string
	AgentName string
	Text      string
	Err       error
}

// InitFailure records an agent excluded during initialization.
type InitFailure struct {
	AgentID string
	Err     error
}

// Call invokes one capability on one agent. FanOut runs it once per active
// agent.
type Call func(ctx context.Context, ag agent.Agent) (string, error)

// Registry holds the worker set. Agents are fixed at construction; the
// active subset is established by InitializeActive and only shrinks if a
// later initialization round excludes more agents.
type Registry struct {
	bus    *event.Bus
	logger *logging.Logger

	mu     sync.RWMutex
	agents []agent.Agent // registration order, never mutated
	active []agent.Agent // registration order subset
}

// New creates a Registry over the given agents. Registration order is
// preserved and determines fan-in aggregation order.
func New(bus *event.Bus, logger *logging.Logger, agents ...agent.Agent) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		bus:    bus,
		logger: logger,
		agents: agents,
	}
}

// Agents returns all registered agents in registration order.
func (r *Registry) Agents() []agent.Agent {
	out := make([]agent.Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Active returns the currently active agents in registration order.
func (r *Registry) Active() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Agent, len(r.active))
	copy(out, r.active)
	return out
}

// ActiveCount returns the number of active agents.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// InitializeActive attempts to initialize every registered agent for the
// task concurrently. An agent whose Initialize returns an error is excluded
// from the active set and recorded in the failures list. The call succeeds
// with partial failures; it returns an error only when zero agents succeed.
func (r *Registry) InitializeActive(ctx context.Context, task string) ([]agent.Agent, []InitFailure, error) {
	if len(r.agents) == 0 {
		return nil, nil, errors.NewSessionError("no agents registered", errors.ErrNoAgentsAvailable)
	}

	initErrs := make([]error, len(r.agents))
	var wg sync.WaitGroup
	for i, ag := range r.agents {
		i, ag := i, ag
		wg.Add(1)
		go func() {
			defer wg.Done()
			initErrs[i] = ag.Initialize(ctx, task)
		}()
	}
	wg.Wait()

	var active []agent.Agent
	var failures []InitFailure
	for i, ag := range r.agents {
		if err := initErrs[i]; err != nil {
			r.logger.Warn("agent excluded from session", "agent_id", ag.ID(), "error", err)
			failures = append(failures, InitFailure{AgentID: ag.ID(), Err: err})
			continue
		}
		active = append(active, ag)
	}

	if len(active) == 0 {
		return nil, failures, errors.NewSessionError(
			fmt.Sprintf("all %d agents failed to initialize", len(r.agents)),
			errors.ErrNoAgentsAvailable)
	}

	r.mu.Lock()
	r.active = active
	r.mu.Unlock()

	out := make([]agent.Agent, len(active))
	copy(out, active)
	return out, failures, nil
}

// FanOut invokes call on every active agent concurrently and aggregates the
// results in registration order, independent of completion order. An agent
// whose call fails contributes a fallback Result ("<action> failed: ...")
// instead of aborting the batch, so the returned slice always has exactly
// one entry per active agent.
func (r *Registry) FanOut(ctx context.Context, action string, call Call) []Result {
	active := r.Active()
	results := make([]Result, len(active))

	var wg sync.WaitGroup
	for i, ag := range active {
		i, ag := i, ag
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := call(ctx, ag)
			if err != nil {
				r.logger.Warn("capability call failed",
					"agent_id", ag.ID(), "action", action, "error", err)
				results[i] = Result{
					AgentID:   ag.ID(),
					AgentName: ag.Name(),
					Text:      fmt.Sprintf("%s failed: %v", action, err),
					Err:       err,
				}
				return
			}
			results[i] = Result{
				AgentID:   ag.ID(),
				AgentName: ag.Name(),
				Text:      text,
			}
		}()
	}
	wg.Wait()

	return results
}

// Broadcast delivers a message to every active agent except the sender.
// Delivery is best-effort: per-agent errors are logged and swallowed.
func (r *Registry) Broadcast(ctx context.Context, sessionID string, msg agent.TeamMessage, excludeID string) {
	var recipients []agent.Agent
	for _, ag := range r.Active() {
		if ag.ID() == excludeID {
			continue
		}
		recipients = append(recipients, ag)
	}
	r.deliver(ctx, sessionID, msg, recipients, string(agent.ScopeGroup))
}

// Shutdown asks every active agent to shut down. Best-effort; errors are
// logged and swallowed.
func (r *Registry) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	for _, ag := range r.Active() {
		ag := ag
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ag.Shutdown(ctx); err != nil {
				r.logger.Warn("agent shutdown failed", "agent_id", ag.ID(), "error", err)
			}
		}()
	}
	wg.Wait()
}
