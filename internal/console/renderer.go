// Package console renders session events for a terminal: a line renderer
// for plain output and a bubbletea live feed that also submits manual
// variant selections.
package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/util"
)

// summaryWidth caps how much of a multi-line content blob one feed line
// shows.
const summaryWidth = 96

// Renderer subscribes to the bus and writes one styled line per event.
type Renderer struct {
	mu  sync.Mutex
	w   io.Writer
	sub string
	bus *event.Bus
}

// NewRenderer creates a renderer writing to w. Call Attach to start.
func NewRenderer(w io.Writer, bus *event.Bus) *Renderer {
	return &Renderer{w: w, bus: bus}
}

// Attach subscribes the renderer to every event class.
func (r *Renderer) Attach() {
	r.sub = r.bus.SubscribeAll(func(e event.Event) {
		line := RenderLine(e)
		if line == "" {
			return
		}
		r.mu.Lock()
		fmt.Fprintln(r.w, line)
		r.mu.Unlock()
	})
}

// Detach unsubscribes the renderer.
func (r *Renderer) Detach() {
	if r.sub != "" {
		r.bus.Unsubscribe(r.sub)
		r.sub = ""
	}
}

// RenderLine formats one event as a single styled line. Unknown event
// types render empty.
func RenderLine(e event.Event) string {
	switch ev := e.(type) {
	case event.StatusEvent:
		return renderStatus(ev)
	case event.PlanningEvent:
		return renderPlanning(ev)
	case event.ErrorEvent:
		return renderError(ev)
	case event.TeamMessageEvent:
		return renderTeamMessage(ev)
	case event.RequestEvent:
		return renderRequest(ev)
	default:
		return ""
	}
}

func renderStatus(ev event.StatusEvent) string {
	who := "session"
	if ev.AgentID != "" {
		who = ev.AgentID
	}
	line := fmt.Sprintf("%s %s %s",
		labelStyle.Render("[status]"),
		agentStyle.Render(who),
		stateStyle.Render(ev.State))
	if ev.Message != "" {
		line += " " + mutedStyle.Render(util.Summarize(ev.Message, summaryWidth))
	}
	return line
}

func renderPlanning(ev event.PlanningEvent) string {
	who := ev.AgentName
	if who == "" {
		who = "coordinator"
	}
	return fmt.Sprintf("%s %s %s %s",
		labelStyle.Render("[plan]"),
		mutedStyle.Render(string(ev.Stage)),
		agentStyle.Render(who),
		contentStyle.Render(util.Summarize(ev.Content, summaryWidth)))
}

func renderError(ev event.ErrorEvent) string {
	who := "session"
	if ev.AgentID != "" {
		who = ev.AgentID
	}
	return fmt.Sprintf("%s %s %s: %s",
		errorStyle.Render("[error]"),
		agentStyle.Render(who),
		ev.Action,
		errorStyle.Render(util.TruncateString(ev.Err, summaryWidth)))
}

func renderTeamMessage(ev event.TeamMessageEvent) string {
	return fmt.Sprintf("%s %s -> %v (%s): %s",
		labelStyle.Render("[team]"),
		agentStyle.Render(ev.FromName),
		ev.Recipients,
		ev.Scope,
		contentStyle.Render(util.Summarize(ev.Content, summaryWidth)))
}

func renderRequest(ev event.RequestEvent) string {
	line := fmt.Sprintf("%s %s %s",
		promptStyle.Render("[input needed]"),
		mutedStyle.Render(ev.RequestID),
		warnStyle.Render(util.FirstLine(ev.Prompt)))
	for _, c := range ev.Choices {
		line += fmt.Sprintf("\n  %d. %s (%s)", c.Index, agentStyle.Render(c.AgentName), mutedStyle.Render(c.ProjectDir))
	}
	return line
}
