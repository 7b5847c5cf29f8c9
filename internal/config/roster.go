package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/troupe-dev/troupe/internal/agent"
)

// RosterFile is the on-disk agent roster.
type RosterFile struct {
	// Version is the roster file format version (currently "1")
	Version string `yaml:"version,omitempty"`
	// Agents lists the worker backends, in registration order
	Agents []RosterEntry `yaml:"agents"`
}

// RosterEntry describes one worker backend.
type RosterEntry struct {
	// ID is the agent's unique identifier (defaults to a slug of the name)
	ID string `yaml:"id,omitempty"`
	// Name is the agent's display name
	Name string `yaml:"name"`
	// Command is the CLI backend executable
	Command string `yaml:"command"`
	// Args are fixed arguments passed before the operation verb
	Args []string `yaml:"args,omitempty"`
	// WorkDir is the agent's default working directory (optional)
	WorkDir string `yaml:"work_dir,omitempty"`
	// Role is the agent's role profile
	Role RosterRole `yaml:"role,omitempty"`
}

// RosterRole mirrors agent.RoleProfile in YAML form. ReviewPriority is a
// pointer so an absent key stays distinct from an explicit zero.
type RosterRole struct {
	Primary         string `yaml:"primary,omitempty"`
	Secondary       string `yaml:"secondary,omitempty"`
	ReviewPreferred bool   `yaml:"review_preferred,omitempty"`
	ReviewPriority  *int   `yaml:"review_priority,omitempty"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*RosterFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// ParseRoster parses roster YAML and validates it.
func ParseRoster(data []byte) (*RosterFile, error) {
	var roster RosterFile
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}

	if len(roster.Agents) == 0 {
		return nil, fmt.Errorf("roster defines no agents")
	}

	seen := make(map[string]bool, len(roster.Agents))
	for i := range roster.Agents {
		e := &roster.Agents[i]
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("roster agent %d has no name", i+1)
		}
		if strings.TrimSpace(e.Command) == "" {
			return nil, fmt.Errorf("roster agent %q has no command", e.Name)
		}
		if e.ID == "" {
			e.ID = idFromName(e.Name)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate agent id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return &roster, nil
}

// Build constructs the worker set from the roster, preserving roster order
// as registration order.
func (r *RosterFile) Build() []agent.Agent {
	agents := make([]agent.Agent, 0, len(r.Agents))
	for _, e := range r.Agents {
		profile := agent.RoleProfile{
			Primary:         e.Role.Primary,
			Secondary:       e.Role.Secondary,
			ReviewPreferred: e.Role.ReviewPreferred,
			ReviewPriority:  e.Role.ReviewPriority,
		}
		opts := []agent.CLIOption{}
		if len(e.Args) > 0 {
			opts = append(opts, agent.WithArgs(e.Args...))
		}
		if e.WorkDir != "" {
			opts = append(opts, agent.WithWorkDir(e.WorkDir))
		}
		agents = append(agents, agent.NewCLIAgent(e.ID, e.Name, e.Command, profile, opts...))
	}
	return agents
}

// idFromName derives a stable id from a display name: lower-cased with
// runs of non-alphanumerics collapsed to single hyphens.
func idFromName(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.Trim(b.String(), "-")
}
