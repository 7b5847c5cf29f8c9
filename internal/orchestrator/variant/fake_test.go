package variant

import (
	"context"

	"github.com/troupe-dev/troupe/internal/agent"
)

// fakeAgent implements agent.Agent with per-capability hooks for tests.
type fakeAgent struct {
	id      string
	name    string
	profile agent.RoleProfile

	planFn    func(ctx context.Context, task string) (string, error)
	executeFn func(ctx context.Context, assignment string, all map[string]string) (string, error)
}

func newFakeAgent(id, name string) *fakeAgent {
	return &fakeAgent{id: id, name: name}
}

func (f *fakeAgent) ID() string                 { return f.id }
func (f *fakeAgent) Name() string               { return f.name }
func (f *fakeAgent) Profile() agent.RoleProfile { return f.profile }

func (f *fakeAgent) CheckAvailability(ctx context.Context) (agent.Availability, error) {
	return agent.Availability{Available: true}, nil
}

func (f *fakeAgent) Initialize(ctx context.Context, task string) error { return nil }

func (f *fakeAgent) GeneratePlan(ctx context.Context, task string) (string, error) {
	if f.planFn != nil {
		return f.planFn(ctx, task)
	}
	return "plan by " + f.name, nil
}

func (f *fakeAgent) NegotiateResponsibilities(ctx context.Context, summary string, plans []agent.PlanContribution) (string, error) {
	return "allocation by " + f.name, nil
}

func (f *fakeAgent) ExecuteTasks(ctx context.Context, assignment string, all map[string]string) (string, error) {
	if f.executeFn != nil {
		return f.executeFn(ctx, assignment, all)
	}
	return "transcript by " + f.name, nil
}

func (f *fakeAgent) ReceiveTeamMessage(ctx context.Context, msg agent.TeamMessage) error {
	return nil
}

func (f *fakeAgent) Shutdown(ctx context.Context) error { return nil }
