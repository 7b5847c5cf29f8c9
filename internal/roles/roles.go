// Package roles derives the per-session role table and the single review
// owner from a set of active agents. Assignment is a pure function of the
// agents' role profiles and their registration order.
package roles

import (
	"math"

	"github.com/troupe-dev/troupe/internal/agent"
)

// Entry is one agent's role row for a session.
type Entry struct {
	ID              string
	Name            string
	Primary         string
	Secondary       string
	ReviewPreferred bool
	ReviewPriority  int // effective tie-break score
	IsReviewAgent   bool
}

// Assign computes the role table for the active agents and designates
// exactly one review owner when the set is non-empty.
//
// Each agent scores EffectiveReviewPriority(); agents are visited in
// registration order and the review owner is displaced only by a strictly
// higher score, so ties always go to the earliest-registered agent. The
// first agent's score always beats the negative-infinity seed, which means
// a non-empty set always yields a review owner.
func Assign(active []agent.Agent) ([]Entry, string) {
	entries := make([]Entry, 0, len(active))

	best := math.Inf(-1)
	reviewAgentID := ""
	for _, ag := range active {
		prio := ag.Profile().EffectiveReviewPriority()
		if float64(prio) > best {
			best = float64(prio)
			reviewAgentID = ag.ID()
		}
	}

	for _, ag := range active {
		profile := ag.Profile()
		entries = append(entries, Entry{
			ID:              ag.ID(),
			Name:            ag.Name(),
			Primary:         profile.Primary,
			Secondary:       profile.Secondary,
			ReviewPreferred: profile.ReviewPreferred,
			ReviewPriority:  profile.EffectiveReviewPriority(),
			IsReviewAgent:   ag.ID() == reviewAgentID,
		})
	}

	return entries, reviewAgentID
}

// ReviewEntry returns the review owner's entry, or false when the table has
// none (only possible for an empty table).
func ReviewEntry(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.IsReviewAgent {
			return e, true
		}
	}
	return Entry{}, false
}
