// Package variant implements the variant branch mode: every agent solves
// the task independently inside an isolated workspace directory, and a
// selection step (automatic or manually suspended) picks the winning
// result. No collaborative execution follows a variant run; each variant
// is already a complete, independently built solution.
package variant

import (
	"github.com/troupe-dev/troupe/internal/event"
)

// Result is one agent's completed variant build, created during the
// execution fan-out and immutable afterward.
type Result struct {
	AgentID    string
	AgentName  string
	ProjectDir string
	FolderName string
	Transcript string
	Plan       string
	Order      int // execution order, 0-based
}

// SelectionMode records how a winning variant was chosen.
type SelectionMode string

const (
	// SelectionAuto is the synchronous policy choice.
	SelectionAuto SelectionMode = "auto"

	// SelectionManual is an explicit human submission.
	SelectionManual SelectionMode = "manual"

	// SelectionForcedAuto is the safety valve: a pending manual selection
	// auto-resolved by an external mode toggle.
	SelectionForcedAuto SelectionMode = "forced-auto"
)

// Selection is the final choice of a winning variant.
type Selection struct {
	AgentID    string
	AgentName  string
	Mode       SelectionMode
	ProjectDir string
	Rationale  string
}

// Outcome is the full product of a variant run, stored on the session.
type Outcome struct {
	WorkspaceRoot string
	Results       []Result
	Selection     Selection
}

// Request carries the per-session inputs for a variant run.
type Request struct {
	SessionID     string
	Prompt        string
	ReviewAgentID string
}

// SubmissionResult reports the outcome of a successful selection
// submission back to the caller.
type SubmissionResult struct {
	Mode    SelectionMode
	AgentID string
	Message string
}

// choicesFor derives the numbered option list for a selection request.
func choicesFor(results []Result) []event.RequestChoice {
	choices := make([]event.RequestChoice, len(results))
	for i, res := range results {
		choices[i] = event.RequestChoice{
			Index:      i + 1,
			AgentID:    res.AgentID,
			AgentName:  res.AgentName,
			ProjectDir: res.ProjectDir,
		}
	}
	return choices
}
