package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/troupe-dev/troupe/internal/event"
)

// submitFunc resolves a suspended variant selection; it returns a
// confirmation message or a rejection error that keeps the request open.
type submitFunc func(requestID, raw string) (string, error)

// eventMsg wraps a bus event forwarded into the bubbletea program.
type eventMsg struct {
	e event.Event
}

// FeedModel is the live session feed: a scrollback viewport over rendered
// event lines, plus a text input that activates when a selection request
// arrives.
type FeedModel struct {
	viewport viewport.Model
	input    textinput.Model

	lines          []string
	pendingRequest string
	statusMsg      string
	submit         submitFunc

	ready    bool
	quitting bool
	width    int
	height   int
}

// NewFeed creates the feed model. submit is called when the user answers a
// selection request; it may be nil for a display-only feed.
func NewFeed(submit func(requestID, raw string) (string, error)) FeedModel {
	ti := textinput.New()
	ti.Placeholder = "option number, agent name, or \"auto\""
	ti.CharLimit = 80
	ti.Width = 48

	return FeedModel{
		input:  ti,
		submit: submit,
	}
}

// Init implements tea.Model.
func (m FeedModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m FeedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		footer := 3
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-footer)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - footer
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case eventMsg:
		return m.handleEvent(msg.e), nil

	case tea.KeyMsg:
		return m.handleKeypress(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m FeedModel) handleEvent(e event.Event) FeedModel {
	if line := RenderLine(e); line != "" {
		m.lines = append(m.lines, line)
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
	}
	if req, ok := e.(event.RequestEvent); ok {
		m.pendingRequest = req.RequestID
		m.statusMsg = ""
		m.input.SetValue("")
		m.input.Focus()
	}
	return m
}

func (m FeedModel) handleKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingRequest != "" && m.input.Focused() {
		switch msg.String() {
		case "enter":
			return m.submitSelection(), nil
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m FeedModel) submitSelection() FeedModel {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" || m.submit == nil {
		return m
	}

	message, err := m.submit(m.pendingRequest, raw)
	if err != nil {
		// Rejections keep the request pending; let the user retry.
		m.statusMsg = errorStyle.Render(err.Error())
		m.input.SetValue("")
		return m
	}

	m.statusMsg = stateStyle.Render(message)
	m.pendingRequest = ""
	m.input.Blur()
	m.input.SetValue("")
	return m
}

// View implements tea.Model.
func (m FeedModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "starting feed..."
	}

	var footer string
	if m.pendingRequest != "" {
		footer = promptStyle.Render("select a variant> ") + m.input.View()
	} else {
		footer = mutedStyle.Render("q to quit")
	}
	if m.statusMsg != "" {
		footer += "\n" + m.statusMsg
	}
	return fmt.Sprintf("%s\n%s", m.viewport.View(), footer)
}

// RunFeed starts the live feed over a bus. It blocks until the user quits.
func RunFeed(bus *event.Bus, submit func(requestID, raw string) (string, error)) error {
	p := tea.NewProgram(NewFeed(submit), tea.WithAltScreen())

	sub := bus.SubscribeAll(func(e event.Event) {
		p.Send(eventMsg{e: e})
	})
	defer bus.Unsubscribe(sub)

	_, err := p.Run()
	return err
}
