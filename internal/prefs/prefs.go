// Package prefs remembers how the reviewer left the TUI: colour theme and the
// queue tab to open on. The file lives at ~/.config/newsdesk/prefs.toml and is
// never required; anything unreadable yields the defaults.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/newsdesk/internal/content"
)

// Prefs is the persisted UI state.
type Prefs struct {
	Theme string `toml:"theme"`
	Queue string `toml:"queue"`
}

const (
	defaultPrefsPath = "~/.config/newsdesk/prefs.toml"
	defaultTheme     = "Dracula"
	defaultQueue     = string(content.StatusPending)
)

func DefaultPath() string {
	return defaultPrefsPath
}

// Load never fails: a missing, unreadable or corrupt file gives the defaults,
// and unknown queue names fall back to pending.
func Load(path string) (Prefs, error) {
	p := defaults()

	resolved, err := resolvePath(path)
	if err != nil {
		return p, nil
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return p, nil
	}
	if err := toml.Unmarshal(raw, &p); err != nil {
		return defaults(), nil
	}
	return p.normalized(), nil
}

// Save replaces the file through a temporary sibling so a crash mid-write
// leaves the previous prefs intact.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	encoded, err := toml.Marshal(p.normalized())
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	if err := os.Rename(tmp.Name(), resolved); err != nil {
		return fmt.Errorf("replace prefs: %w", err)
	}
	return nil
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme, Queue: defaultQueue}
}

func (p Prefs) normalized() Prefs {
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	queue := content.Status(strings.ToLower(strings.TrimSpace(p.Queue)))
	if !queue.Valid() {
		queue = content.StatusPending
	}
	p.Queue = string(queue)
	return p
}

func resolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = defaultPrefsPath
	}
	if rest, ok := strings.CutPrefix(trimmed, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, rest)
	}
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	return filepath.Abs(trimmed)
}
