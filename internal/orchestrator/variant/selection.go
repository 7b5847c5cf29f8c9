package variant

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/troupe-dev/troupe/internal/errors"
	"github.com/troupe-dev/troupe/internal/event"
)

// autoValue is the submission value that delegates a manual selection to
// the auto policy.
const autoValue = "auto"

// PendingSelection is the suspended state of an outstanding manual
// selection. It exists only while the selection is unresolved and is
// destroyed the instant it resolves. Resolution happens exactly once; the
// resolved flag guards against double-resolution.
type PendingSelection struct {
	RequestID string
	Options   []event.RequestChoice

	results       []Result
	reviewAgentID string
	done          chan Selection
	resolved      bool
}

// newPendingSelection creates a suspended selection over the given results.
func newPendingSelection(results []Result, reviewAgentID string) *PendingSelection {
	return &PendingSelection{
		RequestID:     uuid.NewString(),
		Options:       choicesFor(results),
		results:       results,
		reviewAgentID: reviewAgentID,
		done:          make(chan Selection, 1),
	}
}

// resolve completes the pending selection. Returns false if it was already
// resolved.
func (p *PendingSelection) resolve(sel Selection) bool {
	if p.resolved {
		return false
	}
	p.resolved = true
	p.done <- sel
	return true
}

// autoSelect picks a winner without suspension: the review owner's result
// when present, otherwise the first result in execution order.
func autoSelect(results []Result, reviewAgentID string, mode SelectionMode) Selection {
	for _, res := range results {
		if res.AgentID == reviewAgentID {
			return Selection{
				AgentID:    res.AgentID,
				AgentName:  res.AgentName,
				Mode:       mode,
				ProjectDir: res.ProjectDir,
				Rationale:  fmt.Sprintf("review owner %s's variant preferred", res.AgentName),
			}
		}
	}
	first := results[0]
	return Selection{
		AgentID:    first.AgentID,
		AgentName:  first.AgentName,
		Mode:       mode,
		ProjectDir: first.ProjectDir,
		Rationale:  fmt.Sprintf("first completed variant (%s) selected; review owner produced no result", first.AgentName),
	}
}

// matchChoice resolves a raw submission value against the results:
// a 1-based option index, an agent ID, or a display name (case-insensitive).
func matchChoice(results []Result, raw string) (Result, bool) {
	value := strings.TrimSpace(raw)
	if idx, err := strconv.Atoi(value); err == nil {
		if idx >= 1 && idx <= len(results) {
			return results[idx-1], true
		}
		return Result{}, false
	}
	for _, res := range results {
		if res.AgentID == value || strings.EqualFold(res.AgentName, value) {
			return res, true
		}
	}
	return Result{}, false
}

// selectionSlot is the single mutable pending-selection slot shared between
// the variant run and external submitters. At most one pending selection
// exists per session.
type selectionSlot struct {
	mu      sync.Mutex
	pending *PendingSelection
}

// park installs a new pending selection. It fails if one is already
// outstanding; overwriting a live suspension is not supported.
func (s *selectionSlot) park(p *PendingSelection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		return errors.NewSelectionError("a manual selection is already outstanding", errors.ErrSelectionPending).
			WithRequestID(s.pending.RequestID)
	}
	s.pending = p
	return nil
}

// submit resolves the pending selection from a raw value. A mismatched
// request ID or unmatched value is rejected with an error and leaves the
// suspension unchanged; there is no limit on resubmission attempts.
func (s *selectionSlot) submit(requestID, raw string) (SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	if p == nil || p.RequestID != requestID {
		return SubmissionResult{}, errors.NewSelectionError("submission does not match the pending request", errors.ErrSelectionNotFound).
			WithRequestID(requestID)
	}

	var sel Selection
	if strings.EqualFold(strings.TrimSpace(raw), autoValue) {
		sel = autoSelect(p.results, p.reviewAgentID, SelectionAuto)
	} else {
		res, ok := matchChoice(p.results, raw)
		if !ok {
			return SubmissionResult{}, errors.NewSelectionError("value matches no option", errors.ErrChoiceNotMatched).
				WithRequestID(requestID).
				WithValue(raw)
		}
		sel = Selection{
			AgentID:    res.AgentID,
			AgentName:  res.AgentName,
			Mode:       SelectionManual,
			ProjectDir: res.ProjectDir,
			Rationale:  fmt.Sprintf("selected by submission %q", strings.TrimSpace(raw)),
		}
	}

	p.resolve(sel)
	s.pending = nil
	return SubmissionResult{
		Mode:    sel.Mode,
		AgentID: sel.AgentID,
		Message: fmt.Sprintf("variant by %s selected", sel.AgentName),
	}, nil
}

// forceAuto resolves any pending selection via the auto policy. Used as a
// safety valve when the session mode is toggled away from variant while a
// manual selection is suspended. Returns true if a selection was resolved.
func (s *selectionSlot) forceAuto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	if p == nil {
		return false
	}
	p.resolve(autoSelect(p.results, p.reviewAgentID, SelectionForcedAuto))
	s.pending = nil
	return true
}

// current returns the outstanding pending selection, or nil.
func (s *selectionSlot) current() *PendingSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// clear drops the pending selection without resolving it. Used when the
// suspended run itself is abandoned (context cancellation).
func (s *selectionSlot) clear(p *PendingSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == p {
		s.pending = nil
	}
}
