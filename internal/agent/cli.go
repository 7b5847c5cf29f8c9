package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// CLIAgent adapts an external command-line backend to the Agent contract.
// Each capability call runs the configured command once with the operation
// name as its first argument; the prompt is written to stdin and stdout is
// returned as the capability result.
//
// Prompt construction beyond this framing, authentication, and credential
// discovery are the backend's own concern.
type CLIAgent struct {
	id      string
	name    string
	profile RoleProfile
	command string
	args    []string
	workDir string
}

// CLIOption configures a CLIAgent.
type CLIOption func(*CLIAgent)

// WithArgs sets base arguments passed before the operation name.
func WithArgs(args ...string) CLIOption {
	return func(a *CLIAgent) { a.args = args }
}

// WithWorkDir sets the working directory for backend invocations.
func WithWorkDir(dir string) CLIOption {
	return func(a *CLIAgent) { a.workDir = dir }
}

// NewCLIAgent creates a CLIAgent for the given backend command.
func NewCLIAgent(id, name, command string, profile RoleProfile, opts ...CLIOption) *CLIAgent {
	a := &CLIAgent{
		id:      id,
		name:    name,
		profile: profile,
		command: command,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *CLIAgent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *CLIAgent) Name() string { return a.name }

// Profile returns the agent's role profile.
func (a *CLIAgent) Profile() RoleProfile { return a.profile }

// CheckAvailability verifies the backend command is on PATH.
func (a *CLIAgent) CheckAvailability(ctx context.Context) (Availability, error) {
	if _, err := exec.LookPath(a.command); err != nil {
		return Availability{
			Available: false,
			Issues:    []string{fmt.Sprintf("command %q not found in PATH", a.command)},
		}, nil
	}
	return Availability{Available: true}, nil
}

// Initialize primes the backend with the task. A non-zero exit excludes
// this agent from the active set.
func (a *CLIAgent) Initialize(ctx context.Context, task string) error {
	_, err := a.run(ctx, "init", task)
	return err
}

// GeneratePlan asks the backend for a plan proposal.
func (a *CLIAgent) GeneratePlan(ctx context.Context, task string) (string, error) {
	return a.run(ctx, "plan", task)
}

// NegotiateResponsibilities asks the backend to claim responsibilities
// given the coordinator summary and every teammate's plan.
func (a *CLIAgent) NegotiateResponsibilities(ctx context.Context, summary string, plans []PlanContribution) (string, error) {
	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\n## Teammate plans\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "\n### %s (%s)\n%s\n", p.AgentName, p.AgentID, p.Plan)
	}
	return a.run(ctx, "negotiate", b.String())
}

// ExecuteTasks runs the backend against its assignment. The caller controls
// any deadline through ctx; none is applied here.
func (a *CLIAgent) ExecuteTasks(ctx context.Context, assignment string, allAssignments map[string]string) (string, error) {
	var b strings.Builder
	b.WriteString(assignment)
	if len(allAssignments) > 0 {
		b.WriteString("\n\n## Team assignments\n")
		ids := make([]string, 0, len(allAssignments))
		for id := range allAssignments {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "\n### %s\n%s\n", id, allAssignments[id])
		}
	}
	return a.run(ctx, "execute", b.String())
}

// ReceiveTeamMessage forwards a teammate's message to the backend.
func (a *CLIAgent) ReceiveTeamMessage(ctx context.Context, msg TeamMessage) error {
	payload := fmt.Sprintf("From: %s\nAt: %s\n\n%s",
		msg.From, msg.Timestamp.Format(time.RFC3339), msg.Content)
	_, err := a.run(ctx, "message", payload)
	return err
}

// Shutdown signals the backend that the session is over.
func (a *CLIAgent) Shutdown(ctx context.Context) error {
	_, err := a.run(ctx, "shutdown", "")
	return err
}

// run executes one backend invocation for an operation with the given
// prompt on stdin, returning trimmed stdout.
func (a *CLIAgent) run(ctx context.Context, op, prompt string) (string, error) {
	args := make([]string, 0, len(a.args)+1)
	args = append(args, a.args...)
	args = append(args, op)

	cmd := exec.CommandContext(ctx, a.command, args...)
	if a.workDir != "" {
		cmd.Dir = a.workDir
	}
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("%s %s: %w: %s", a.command, op, err, detail)
		}
		return "", fmt.Errorf("%s %s: %w", a.command, op, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
