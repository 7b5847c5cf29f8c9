package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns the class identifier for this event.
	// One of: "session.status", "session.planning", "session.error",
	// "team.message", "session.request".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event class identifiers. Subscribers register against these.
const (
	TypeStatus      = "session.status"
	TypePlanning    = "session.planning"
	TypeError       = "session.error"
	TypeTeamMessage = "team.message"
	TypeRequest     = "session.request"
)

// Stage identifies which step of a session produced a planning event.
type Stage string

const (
	StageInitialPlan         Stage = "initial-plan"
	StageCoordinatorSummary  Stage = "coordinator-summary"
	StageAllocation          Stage = "allocation"
	StageFinalDivision       Stage = "final-division"
	StageExecutionTranscript Stage = "execution-transcript"
	StageVariantResults      Stage = "variant-results"
	StageSelectionRequest    Stage = "variant-selection-request"
	StageVariantSelected     Stage = "variant-selected"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// StatusEvent reports a lifecycle or progress update for the session or a
// single agent. AgentID is empty for session-level updates.
type StatusEvent struct {
	baseEvent
	SessionID string
	AgentID   string
	State     string // session state or short activity label
	Message   string
}

// NewStatusEvent creates a StatusEvent.
func NewStatusEvent(sessionID, agentID, state, message string) StatusEvent {
	return StatusEvent{
		baseEvent: newBaseEvent(TypeStatus),
		SessionID: sessionID,
		AgentID:   agentID,
		State:     state,
		Message:   message,
	}
}

// PlanningEvent carries one agent contribution (or a coordinator synthesis)
// for a named session stage. Events are immutable after emission.
type PlanningEvent struct {
	baseEvent
	SessionID string
	Stage     Stage
	AgentID   string // empty for coordinator-produced stages
	AgentName string
	Content   string
}

// NewPlanningEvent creates a PlanningEvent.
func NewPlanningEvent(sessionID string, stage Stage, agentID, agentName, content string) PlanningEvent {
	return PlanningEvent{
		baseEvent: newBaseEvent(TypePlanning),
		SessionID: sessionID,
		Stage:     stage,
		AgentID:   agentID,
		AgentName: agentName,
		Content:   content,
	}
}

// ErrorEvent reports a recovered failure. Worker-level failures surface here
// as informational records; they never abort the session.
type ErrorEvent struct {
	baseEvent
	SessionID string
	AgentID   string
	Action    string // what was being attempted
	Err       string
}

// NewErrorEvent creates an ErrorEvent.
func NewErrorEvent(sessionID, agentID, action, errMsg string) ErrorEvent {
	return ErrorEvent{
		baseEvent: newBaseEvent(TypeError),
		SessionID: sessionID,
		AgentID:   agentID,
		Action:    action,
		Err:       errMsg,
	}
}

// TeamMessageEvent records an inter-agent message after scope resolution.
// Recipients holds the concrete resolved recipient IDs, not the requested
// scope.
type TeamMessageEvent struct {
	baseEvent
	SessionID  string
	From       string
	FromName   string
	Recipients []string
	Scope      string
	Content    string
}

// NewTeamMessageEvent creates a TeamMessageEvent.
func NewTeamMessageEvent(sessionID, from, fromName string, recipients []string, scope, content string) TeamMessageEvent {
	return TeamMessageEvent{
		baseEvent:  newBaseEvent(TypeTeamMessage),
		SessionID:  sessionID,
		From:       from,
		FromName:   fromName,
		Recipients: recipients,
		Scope:      scope,
		Content:    content,
	}
}

// RequestChoice is one selectable option attached to a RequestEvent.
type RequestChoice struct {
	Index      int // 1-based
	AgentID    string
	AgentName  string
	ProjectDir string
}

// RequestEvent asks an external collaborator (human or policy) for a
// decision. Currently the only request kind is a variant selection.
type RequestEvent struct {
	baseEvent
	SessionID string
	RequestID string
	Kind      string // e.g. "variant-selection"
	Prompt    string
	Choices   []RequestChoice
}

// NewRequestEvent creates a RequestEvent.
func NewRequestEvent(sessionID, requestID, kind, prompt string, choices []RequestChoice) RequestEvent {
	return RequestEvent{
		baseEvent: newBaseEvent(TypeRequest),
		SessionID: sessionID,
		RequestID: requestID,
		Kind:      kind,
		Prompt:    prompt,
		Choices:   choices,
	}
}
