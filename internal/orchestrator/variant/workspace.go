package variant

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/troupe-dev/troupe/internal/agent"
)

const (
	// slugWordLimit caps how many leading words of the task feed the slug.
	slugWordLimit = 4

	// slugMaxLen caps the slug length in bytes.
	slugMaxLen = 48

	// slugFallback is used when the task yields no usable characters.
	slugFallback = "project"
)

// Slug derives a deterministic directory slug from a task prompt: the text
// is lower-cased, runs of non-alphanumeric characters collapse to single
// hyphens, only the first four words are kept, and the result is capped at
// 48 characters. An empty result falls back to "project".
func Slug(task string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(task) {
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

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return slugFallback
	}

	words := strings.Split(slug, "-")
	if len(words) > slugWordLimit {
		words = words[:slugWordLimit]
	}
	slug = strings.Join(words, "-")

	if len(slug) > slugMaxLen {
		slug = strings.Trim(slug[:slugMaxLen], "-")
	}
	if slug == "" {
		return slugFallback
	}
	return slug
}

// Workspace is one session's variant workspace: a shared root for
// enumeration and one disjoint subdirectory per agent. Directory
// assignment is disjoint by construction, so no locking is needed.
type Workspace struct {
	Root    string
	Folders map[string]string // agent ID -> folder name under Root
}

// Dir returns the absolute project directory for an agent.
func (w *Workspace) Dir(agentID string) string {
	return filepath.Join(w.Root, w.Folders[agentID])
}

// PlanWorkspace computes the workspace layout for a session without
// touching the filesystem. Folder names are pairwise distinct: an agent
// whose name slugs to an already-taken folder gets an ordinal suffix.
func PlanWorkspace(parent, task, sessionSuffix string, agents []agent.Agent) *Workspace {
	slug := Slug(task)
	ws := &Workspace{
		Root:    filepath.Join(parent, fmt.Sprintf("variant-%s-%s", slug, sessionSuffix)),
		Folders: make(map[string]string, len(agents)),
	}

	taken := make(map[string]bool, len(agents))
	for _, ag := range agents {
		folder := fmt.Sprintf("%s-%s", Slug(ag.Name()), slug)
		candidate := folder
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s-%d", folder, n)
		}
		taken[candidate] = true
		ws.Folders[ag.ID()] = candidate
	}
	return ws
}

// Materialize creates the workspace root and every agent directory.
func (w *Workspace) Materialize() error {
	for agentID := range w.Folders {
		if err := os.MkdirAll(w.Dir(agentID), 0755); err != nil {
			return fmt.Errorf("creating variant directory for %s: %w", agentID, err)
		}
	}
	return nil
}
