package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/troupe-dev/troupe/internal/agent"
	"github.com/troupe-dev/troupe/internal/errors"
	"github.com/troupe-dev/troupe/internal/event"
	"github.com/troupe-dev/troupe/internal/registry"
)

func newTestCoordinator(t *testing.T, opts []Option, fakes ...*fakeAgent) (*Coordinator, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	agents := make([]agent.Agent, len(fakes))
	for i, f := range fakes {
		agents[i] = f
	}
	reg := registry.New(bus, nil, agents...)
	opts = append([]Option{WithWorkspaceRoot(t.TempDir())}, opts...)
	return New(bus, reg, nil, opts...), bus
}

func collectPlanning(bus *event.Bus) func() []event.PlanningEvent {
	var mu sync.Mutex
	var events []event.PlanningEvent
	bus.Subscribe(event.TypePlanning, func(e event.Event) {
		if pe, ok := e.(event.PlanningEvent); ok {
			mu.Lock()
			events = append(events, pe)
			mu.Unlock()
		}
	})
	return func() []event.PlanningEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]event.PlanningEvent(nil), events...)
	}
}

func TestStartSession_AssignsRoles(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w2 := newFakeAgent("w2", "Beta")
	w2.profile = agent.RoleProfile{Primary: "backend", ReviewPreferred: true}
	c, _ := newTestCoordinator(t, nil, w1, w2)

	s, err := c.StartSession(context.Background(), "build a parser")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if s.ID == "" {
		t.Error("session has no ID")
	}
	if s.ReviewAgentID != "w2" {
		t.Errorf("ReviewAgentID = %q, want w2 (review preferred)", s.ReviewAgentID)
	}
	if len(s.Agents) != 2 {
		t.Fatalf("len(Agents) = %d, want 2", len(s.Agents))
	}
	if s.State != StateIdle {
		t.Errorf("State = %q, want idle", s.State)
	}
}

func TestStartSession_PartialInitFailure(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.initErr = errors.New("backend unreachable")
	w2 := newFakeAgent("w2", "Beta")
	c, _ := newTestCoordinator(t, nil, w1, w2)

	s, err := c.StartSession(context.Background(), "task")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if len(s.Agents) != 1 || s.Agents[0].ID != "w2" {
		t.Errorf("Agents = %+v, want only w2", s.Agents)
	}
	if len(s.InitFailures) != 1 || s.InitFailures[0].AgentID != "w1" {
		t.Errorf("InitFailures = %+v, want w1", s.InitFailures)
	}
}

func TestStartSession_AllInitFail(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.initErr = errors.New("down")
	w2 := newFakeAgent("w2", "Beta")
	w2.initErr = errors.New("down")
	c, _ := newTestCoordinator(t, nil, w1, w2)

	if _, err := c.StartSession(context.Background(), "task"); !errors.Is(err, errors.ErrNoAgentsAvailable) {
		t.Fatalf("StartSession() error = %v, want ErrNoAgentsAvailable", err)
	}
}

func TestRun_CollaborativeTurn(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.profile = agent.RoleProfile{Primary: "frontend"}
	w2 := newFakeAgent("w2", "Beta")
	w2.profile = agent.RoleProfile{Primary: "backend", ReviewPreferred: true}
	c, bus := newTestCoordinator(t, nil, w1, w2)
	planning := collectPlanning(bus)

	if _, err := c.StartSession(context.Background(), "build a parser"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := c.Session()
	if s.State != StateComplete {
		t.Errorf("State = %q, want complete", s.State)
	}
	if len(s.Plan.InitialPlans) != 2 || len(s.Plan.Allocations) != 2 || len(s.Plan.Transcripts) != 2 {
		t.Errorf("artifacts incomplete: %+v", s.Plan)
	}
	if !strings.Contains(s.Plan.Summary, "plan by Alpha") || !strings.Contains(s.Plan.Summary, "review owner") {
		t.Errorf("Summary missing plans or role table:\n%s", s.Plan.Summary)
	}

	stages := make(map[event.Stage]int)
	for _, pe := range planning() {
		stages[pe.Stage]++
	}
	want := map[event.Stage]int{
		event.StageInitialPlan:         2,
		event.StageCoordinatorSummary:  1,
		event.StageAllocation:          2,
		event.StageFinalDivision:       1,
		event.StageExecutionTranscript: 2,
	}
	for stage, n := range want {
		if stages[stage] != n {
			t.Errorf("stage %s emitted %d times, want %d", stage, stages[stage], n)
		}
	}
}

func TestRun_ReviewInstructionsAppended(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w2 := newFakeAgent("w2", "Beta")
	w2.profile = agent.RoleProfile{ReviewPreferred: true}
	c, _ := newTestCoordinator(t, nil, w1, w2)

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := c.Session()
	if !strings.Contains(s.Assignments["w2"], "You are the review owner") {
		t.Errorf("review owner's assignment missing instructions:\n%s", s.Assignments["w2"])
	}
	if !strings.Contains(s.Assignments["w1"], "Notify Beta") {
		t.Errorf("teammate's assignment missing reviewer reference:\n%s", s.Assignments["w1"])
	}
}

func TestRun_FailedAllocationGetsRoleDefault(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.profile = agent.RoleProfile{Primary: "frontend"}
	w1.negotiateFn = func(ctx context.Context, summary string, plans []agent.PlanContribution) (string, error) {
		return "", errors.New("negotiation crashed")
	}
	w2 := newFakeAgent("w2", "Beta")
	c, _ := newTestCoordinator(t, nil, w1, w2)

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := c.Session()
	if s.State != StateComplete {
		t.Errorf("State = %q, want complete (worker failure is not fatal)", s.State)
	}
	if !strings.Contains(s.Assignments["w1"], "frontend") {
		t.Errorf("failed allocation not replaced by role default:\n%s", s.Assignments["w1"])
	}
}

func TestRun_ExecutionFailureDegradesToFallback(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.executeFn = func(ctx context.Context, assignment string, all map[string]string) (string, error) {
		return "", errors.New("compile error")
	}
	w2 := newFakeAgent("w2", "Beta")
	c, _ := newTestCoordinator(t, nil, w1, w2)

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := c.Session()
	if s.State != StateComplete {
		t.Errorf("State = %q, want complete", s.State)
	}
	if got := s.Plan.Transcripts["w1"]; !strings.Contains(got, "failed") {
		t.Errorf("Transcripts[w1] = %q, want fallback text", got)
	}
}

func TestRunTurn_ReusesSession(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	c, _ := newTestCoordinator(t, nil, w1)

	if _, err := c.StartSession(context.Background(), "first task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	firstID := c.Session().ID

	if err := c.RunTurn(context.Background(), "second task"); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	s := c.Session()
	if s.ID != firstID {
		t.Errorf("session ID changed across turns: %q -> %q", firstID, s.ID)
	}
	if s.UserPrompt != "second task" {
		t.Errorf("UserPrompt = %q, want second task", s.UserPrompt)
	}
	if s.State != StateComplete {
		t.Errorf("State = %q, want complete", s.State)
	}
}

func TestRun_WithoutStartSession(t *testing.T) {
	c, _ := newTestCoordinator(t, nil, newFakeAgent("w1", "Alpha"))
	if err := c.Run(context.Background()); !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("Run() error = %v, want ErrInvalidInput", err)
	}
}

func TestSetMode_Validation(t *testing.T) {
	c, _ := newTestCoordinator(t, nil, newFakeAgent("w1", "Alpha"))
	if err := c.SetMode("bogus"); err == nil {
		t.Fatal("SetMode(bogus) = nil, want error")
	}
	if err := c.SetMode(ModeVariant); err != nil {
		t.Fatalf("SetMode(variant) error = %v", err)
	}
	if got := c.Mode(); got != ModeVariant {
		t.Errorf("Mode() = %q, want variant", got)
	}
}

func TestRun_VariantMode(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w2 := newFakeAgent("w2", "Beta")
	w2.profile = agent.RoleProfile{ReviewPreferred: true}
	c, _ := newTestCoordinator(t, []Option{WithMode(ModeVariant)}, w1, w2)

	if _, err := c.StartSession(context.Background(), "build a parser"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	s := c.Session()
	if s.State != StateComplete {
		t.Errorf("State = %q, want complete", s.State)
	}
	if s.Variant == nil {
		t.Fatal("session has no variant outcome")
	}
	if s.Variant.Selection.AgentID != "w2" {
		t.Errorf("selected %q, want review owner w2", s.Variant.Selection.AgentID)
	}
	if s.Assignments != nil || s.Plan != nil {
		t.Error("variant turn must not produce collaborative artifacts")
	}
}

func TestSetMode_ForceResolvesPendingSelection(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w2 := newFakeAgent("w2", "Beta")
	c, bus := newTestCoordinator(t, []Option{
		WithMode(ModeVariant),
		WithManualSelection(true),
	}, w1, w2)

	reqCh := make(chan event.RequestEvent, 1)
	bus.Subscribe(event.TypeRequest, func(e event.Event) {
		if re, ok := e.(event.RequestEvent); ok {
			select {
			case reqCh <- re:
			default:
			}
		}
	})

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Run(context.Background()); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	select {
	case <-reqCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for selection request")
	}

	if err := c.SetMode(ModeCollaborative); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	wg.Wait()

	s := c.Session()
	if s.Variant == nil {
		t.Fatal("variant outcome missing after forced resolution")
	}
	if s.Variant.Selection.Mode != "forced-auto" {
		t.Errorf("Selection.Mode = %q, want forced-auto", s.Variant.Selection.Mode)
	}
}

func TestSetManualSelection_SwitchesPolicyAndForceResolves(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w2 := newFakeAgent("w2", "Beta")
	c, bus := newTestCoordinator(t, []Option{
		WithMode(ModeVariant),
		WithManualSelection(true),
	}, w1, w2)

	reqCh := make(chan event.RequestEvent, 1)
	bus.Subscribe(event.TypeRequest, func(e event.Event) {
		if re, ok := e.(event.RequestEvent); ok {
			select {
			case reqCh <- re:
			default:
			}
		}
	})

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Run(context.Background()); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	select {
	case <-reqCh:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for selection request")
	}

	// Turning manual selection off resolves the suspended run and makes
	// the next turn select automatically.
	c.SetManualSelection(false)
	wg.Wait()

	if c.ManualSelection() {
		t.Error("ManualSelection() = true after SetManualSelection(false)")
	}
	s := c.Session()
	if s.Variant == nil {
		t.Fatal("variant outcome missing after forced resolution")
	}
	if s.Variant.Selection.Mode != "forced-auto" {
		t.Errorf("Selection.Mode = %q, want forced-auto", s.Variant.Selection.Mode)
	}

	if err := c.RunTurn(context.Background(), "task again"); err != nil {
		t.Fatalf("RunTurn() error = %v", err)
	}
	s = c.Session()
	if s.Variant == nil || s.Variant.Selection.Mode != "auto" {
		t.Errorf("second turn selection = %+v, want auto", s.Variant)
	}
	if c.PendingSelection() != nil {
		t.Error("second turn left a pending selection")
	}
}

func TestWithExecutionTimeout_CancelsLongExecution(t *testing.T) {
	w1 := newFakeAgent("w1", "Alpha")
	w1.executeFn = func(ctx context.Context, assignment string, all map[string]string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Second):
			return "never", nil
		}
	}
	c, _ := newTestCoordinator(t, []Option{WithExecutionTimeout(50 * time.Millisecond)}, w1)

	if _, err := c.StartSession(context.Background(), "task"); err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}
	start := time.Now()
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("execution was not bounded by the timeout (took %s)", elapsed)
	}
	if got := c.Session().Plan.Transcripts["w1"]; !strings.Contains(got, "failed") {
		t.Errorf("Transcripts[w1] = %q, want fallback text after timeout", got)
	}
}
