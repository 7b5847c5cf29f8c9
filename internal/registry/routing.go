package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/troupe-dev/troupe/internal/agent"
	"github.com/troupe-dev/troupe/internal/event"
)

// ResolveRecipients maps a message's declared scope to the concrete set of
// recipient agents, drawn from the active set excluding the sender:
//
//   - zero other agents: no recipients, the message is dropped;
//   - exactly one other agent: that agent, regardless of scope or target;
//   - otherwise, group scope targets all others; direct scope (or auto with
//     a named target) resolves the target by ID or case-insensitive display
//     name, falling back to all others with a logged warning when the
//     target cannot be resolved. Auto without a target behaves as group.
func (r *Registry) ResolveRecipients(msg agent.TeamMessage) []agent.Agent {
	var others []agent.Agent
	for _, ag := range r.Active() {
		if ag.ID() == msg.From {
			continue
		}
		others = append(others, ag)
	}

	switch len(others) {
	case 0:
		return nil
	case 1:
		// Only one possible recipient; scope and target are irrelevant.
		return others
	}

	if msg.Scope == agent.ScopeGroup || (msg.Scope == agent.ScopeAuto && msg.To == "") {
		return others
	}

	for _, ag := range others {
		if ag.ID() == msg.To || strings.EqualFold(ag.Name(), msg.To) {
			return []agent.Agent{ag}
		}
	}

	// Unresolvable target degrades to a broadcast, never an error.
	r.logger.Warn("team message target not resolved, broadcasting",
		"from", msg.From, "to", msg.To, "scope", msg.Scope)
	return others
}

// Dispatch resolves a message's recipients and delivers it to each one
// concurrently. Per-recipient delivery failures are logged and swallowed.
// One team-message event is published describing the resolved recipient
// set; a message with no possible recipient is dropped silently.
func (r *Registry) Dispatch(ctx context.Context, sessionID string, msg agent.TeamMessage) []agent.Agent {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	recipients := r.ResolveRecipients(msg)
	if len(recipients) == 0 {
		r.logger.Debug("team message dropped, no recipients", "from", msg.From)
		return nil
	}

	r.deliver(ctx, sessionID, msg, recipients, string(msg.Scope))
	return recipients
}

// deliver sends msg to each recipient concurrently and publishes one
// team-message event for the batch.
func (r *Registry) deliver(ctx context.Context, sessionID string, msg agent.TeamMessage, recipients []agent.Agent, scope string) {
	if len(recipients) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, ag := range recipients {
		ag := ag
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ag.ReceiveTeamMessage(ctx, msg); err != nil {
				r.logger.Warn("team message delivery failed",
					"from", msg.From, "to", ag.ID(), "error", err)
			}
		}()
	}
	wg.Wait()

	if r.bus != nil {
		ids := make([]string, len(recipients))
		for i, ag := range recipients {
			ids[i] = ag.ID()
		}
		r.bus.Publish(event.NewTeamMessageEvent(
			sessionID, msg.From, r.nameOf(msg.From), ids, scope, msg.Content))
	}
}

// nameOf returns the display name for an agent ID, or the ID itself when
// the sender is not a registered agent.
func (r *Registry) nameOf(id string) string {
	for _, ag := range r.agents {
		if ag.ID() == id {
			return ag.Name()
		}
	}
	return id
}
