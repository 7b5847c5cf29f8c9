package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/troupe-dev/troupe/internal/errors"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/logging"
	"github.com/troupe-dev/troupe/internal/orchestrator/variant"
	"github.com/troupe-dev/troupe/internal/registry"
	"github.com/troupe-dev/troupe/internal/roles"
)

// Coordinator drives sessions over a registry of agents. One coordinator
// owns at most one session at a time.
type Coordinator struct {
	bus      *event.Bus
	reg      *registry.Registry
	logger   *logging.Logger
	variants *variant.Orchestrator

	// execTimeout bounds each execution fan-out. Zero means no deadline;
	// long-running code generation must not be truncated by default.
	execTimeout time.Duration

	mu      sync.Mutex
	session *Session
}

// Option configures a Coordinator.
type Option func(*coordinatorConfig)

type coordinatorConfig struct {
	execTimeout     time.Duration
	workspaceRoot   string
	mode            Mode
	manualSelection bool
}

// WithExecutionTimeout bounds each execution fan-out. Zero (the default)
// means no deadline.
func WithExecutionTimeout(d time.Duration) Option {
	return func(c *coordinatorConfig) {
		c.execTimeout = d
	}
}

// WithWorkspaceRoot sets the parent directory for variant workspaces.
func WithWorkspaceRoot(dir string) Option {
	return func(c *coordinatorConfig) {
		c.workspaceRoot = dir
	}
}

// WithMode sets the initial session mode.
func WithMode(m Mode) Option {
	return func(c *coordinatorConfig) {
		c.mode = m
	}
}

// WithManualSelection makes variant runs suspend on a selection request
// instead of applying the auto policy.
func WithManualSelection(manual bool) Option {
	return func(c *coordinatorConfig) {
		c.manualSelection = manual
	}
}

// New creates a Coordinator over the given registry.
func New(bus *event.Bus, reg *registry.Registry, logger *logging.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	cfg := coordinatorConfig{
		workspaceRoot: ".",
		mode:          ModeCollaborative,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Coordinator{
		bus:    bus,
		reg:    reg,
		logger: logger,
		variants: variant.New(bus, reg, logger,
			variant.WithWorkspaceParent(cfg.workspaceRoot),
			variant.WithManualSelection(cfg.manualSelection)),
		execTimeout: cfg.execTimeout,
		session: &Session{
			Mode:  cfg.mode,
			State: StateIdle,
		},
	}
}

// Session returns the current session aggregate.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// StartSession initializes the agents for a task and builds the session
// aggregate: agents that fail to initialize are excluded and recorded, the
// role table and review owner are derived from the survivors. It fails
// only when every agent fails to initialize.
func (c *Coordinator) StartSession(ctx context.Context, prompt string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s.State != StateIdle && s.State != StateComplete {
		return nil, errors.NewSessionError("a session is already in progress", errors.ErrSessionActive).
			WithSessionID(s.ID)
	}

	id := uuid.NewString()
	c.publish(event.NewStatusEvent(id, "", "initializing", "initializing agents"))

	active, failures, err := c.reg.InitializeActive(ctx, prompt)
	if err != nil {
		c.publish(event.NewErrorEvent(id, "", "initialize", err.Error()))
		return nil, err
	}
	for _, f := range failures {
		c.logger.Warn("agent excluded from session", "agent", f.AgentID, "error", f.Err)
		c.publish(event.NewStatusEvent(id, f.AgentID, "excluded", f.Err.Error()))
	}

	entries, reviewID := roles.Assign(active)

	c.session = &Session{
		ID:            id,
		UserPrompt:    prompt,
		CreatedAt:     time.Now(),
		Mode:          s.Mode,
		State:         StateIdle,
		Agents:        entries,
		ReviewAgentID: reviewID,
		InitFailures:  failures,
	}

	c.publish(event.NewStatusEvent(id, "", "ready",
		c.session.ReviewAgentName()+" owns review for this session"))
	c.logger.Info("session started",
		"session", id, "agents", len(entries), "excluded", len(failures), "review_owner", reviewID)
	return c.session, nil
}

// Run executes the phase pipeline of the current session's mode: the
// collaborative plan/negotiate/execute sequence, or a variant run.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	mode := s.Mode
	c.mu.Unlock()

	if s.ID == "" {
		return errors.NewSessionError("session has not been started", errors.ErrInvalidInput)
	}

	var err error
	switch mode {
	case ModeVariant:
		err = c.runVariant(ctx, s)
	default:
		err = c.runCollaborative(ctx, s)
	}
	if err != nil {
		c.setState(s, StateError)
		c.publish(event.NewErrorEvent(s.ID, "", "run", err.Error()))
		return err
	}
	return nil
}

// RunTurn resets the session for a follow-up prompt and runs the pipeline
// again with the roles and active set established at session start.
func (c *Coordinator) RunTurn(ctx context.Context, prompt string) error {
	c.mu.Lock()
	s := c.session
	if s.ID == "" {
		c.mu.Unlock()
		return errors.NewSessionError("session has not been started", errors.ErrInvalidInput)
	}
	if s.State != StateComplete && s.State != StateIdle && s.State != StateError {
		c.mu.Unlock()
		return errors.NewSessionError("a turn is already in progress", errors.ErrSessionActive).
			WithSessionID(s.ID)
	}
	s.resetTurn(prompt)
	c.mu.Unlock()

	return c.Run(ctx)
}

// Mode returns the current session mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Mode
}

// SetMode switches the session mode for the next turn. Leaving variant
// mode force-resolves any suspended selection via the auto policy so a
// forgotten manual request cannot strand a run.
func (c *Coordinator) SetMode(m Mode) error {
	if !ValidMode(m) {
		return errors.NewValidationError("mode must be collaborative or variant").
			WithField("mode").
			WithValue(string(m))
	}

	c.mu.Lock()
	prev := c.session.Mode
	c.session.Mode = m
	c.mu.Unlock()

	if prev == ModeVariant && m != ModeVariant {
		c.variants.ForceAutoResolve()
	}
	return nil
}

// SetManualSelection switches the variant selection policy for future
// runs. Turning manual selection off force-resolves any suspended
// selection via the auto policy, same as leaving variant mode.
func (c *Coordinator) SetManualSelection(manual bool) {
	c.variants.SetManualSelection(manual)
	if !manual {
		c.variants.ForceAutoResolve()
	}
}

// ManualSelection reports whether variant runs suspend for a manual
// selection.
func (c *Coordinator) ManualSelection() bool {
	return c.variants.ManualSelection()
}

// SubmitSelection forwards a manual variant-selection submission to the
// suspended run.
func (c *Coordinator) SubmitSelection(requestID, raw string) (variant.SubmissionResult, error) {
	return c.variants.SubmitSelection(requestID, raw)
}

// PendingSelection returns the outstanding variant selection request, or
// nil when no run is suspended.
func (c *Coordinator) PendingSelection() *variant.PendingSelection {
	return c.variants.Pending()
}

// Shutdown releases the agents. Best-effort.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.reg.Shutdown(ctx)
}

func (c *Coordinator) runVariant(ctx context.Context, s *Session) error {
	c.setState(s, StatePlanning)

	out, err := c.variants.Run(ctx, variant.Request{
		SessionID:     s.ID,
		Prompt:        s.UserPrompt,
		ReviewAgentID: s.ReviewAgentID,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	s.Variant = out
	c.mu.Unlock()
	c.setState(s, StateComplete)
	return nil
}

func (c *Coordinator) setState(s *Session, state State) {
	c.mu.Lock()
	s.State = state
	c.mu.Unlock()
	c.publish(event.NewStatusEvent(s.ID, "", string(state), ""))
}

func (c *Coordinator) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
