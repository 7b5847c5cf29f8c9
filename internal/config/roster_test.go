package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleRoster = `
version: "1"
agents:
  - name: Alpha
    command: alpha-cli
    args: ["--json"]
    role:
      primary: frontend
  - id: w2
    name: Beta
    command: beta-cli
    role:
      primary: backend
      review_preferred: true
      review_priority: 5
`

func TestParseRoster(t *testing.T) {
	roster, err := ParseRoster([]byte(sampleRoster))
	if err != nil {
		t.Fatalf("ParseRoster() error = %v", err)
	}
	if len(roster.Agents) != 2 {
		t.Fatalf("len(Agents) = %d, want 2", len(roster.Agents))
	}
	if roster.Agents[0].ID != "alpha" {
		t.Errorf("derived ID = %q, want alpha", roster.Agents[0].ID)
	}
	if roster.Agents[1].ID != "w2" {
		t.Errorf("explicit ID = %q, want w2", roster.Agents[1].ID)
	}
	if p := roster.Agents[1].Role.ReviewPriority; p == nil || *p != 5 {
		t.Errorf("ReviewPriority = %v, want pointer to 5", p)
	}
	if roster.Agents[0].Role.ReviewPriority != nil {
		t.Error("absent review_priority should stay nil, not zero")
	}
}

func TestParseRoster_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no agents", "agents: []", "no agents"},
		{"missing name", "agents:\n  - command: x", "no name"},
		{"missing command", "agents:\n  - name: A", "no command"},
		{"duplicate ids", "agents:\n  - {name: A, command: x, id: dup}\n  - {name: B, command: y, id: dup}", "duplicate"},
		{"bad yaml", "agents: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoster([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("ParseRoster() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "troupe.yaml")
	if err := os.WriteFile(path, []byte(sampleRoster), 0644); err != nil {
		t.Fatal(err)
	}
	roster, err := LoadRoster(path)
	if err != nil {
		t.Fatalf("LoadRoster() error = %v", err)
	}
	agents := roster.Build()
	if len(agents) != 2 {
		t.Fatalf("Build() produced %d agents, want 2", len(agents))
	}
	if agents[0].Name() != "Alpha" || agents[1].ID() != "w2" {
		t.Errorf("Build() order or identity wrong: %s, %s", agents[0].Name(), agents[1].ID())
	}
	if !agents[1].Profile().ReviewPreferred {
		t.Error("Beta's profile lost review_preferred")
	}
}

func TestLoadRoster_Missing(t *testing.T) {
	if _, err := LoadRoster(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadRoster() = nil error for a missing file")
	}
}

func TestIDFromName(t *testing.T) {
	tests := []struct{ name, want string }{
		{"Alpha", "alpha"},
		{"Code Reviewer #2", "code-reviewer-2"},
		{"  spaced  out  ", "spaced-out"},
	}
	for _, tt := range tests {
		if got := idFromName(tt.name); got != tt.want {
			t.Errorf("idFromName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
