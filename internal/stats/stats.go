// Package stats keeps a handful of anonymous usage counters in a small JSON
// file. No identifiers, no timestamps per event, nothing leaves the host.
package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Counters are the tracked totals.
type Counters struct {
	InstallsStarted   int `json:"installs_started"`
	InstallsCompleted int `json:"installs_completed"`
	UpdatesStarted    int `json:"updates_started"`
	UpdatesCompleted  int `json:"updates_completed"`
	ConfigsGenerated  int `json:"configs_generated"`
}

// Tracker serializes counter updates and persists them after each bump.
type Tracker struct {
	mu   sync.Mutex
	path string
	c    Counters
}

// NewTracker loads existing counters from path, starting from zero when the
// file is missing or unreadable.
func NewTracker(path string) *Tracker {
	t := &Tracker{path: path}
	if data, err := os.ReadFile(path); err == nil {
		json.Unmarshal(data, &t.c)
	}
	return t
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.c
}

func (t *Tracker) bump(fn func(*Counters)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.c)
	return t.save()
}

func (t *Tracker) save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0750); err != nil {
		return fmt.Errorf("creating stats directory: %w", err)
	}
	data, err := json.MarshalIndent(t.c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0640)
}

func (t *Tracker) InstallStarted() error {
	return t.bump(func(c *Counters) { c.InstallsStarted++ })
}

func (t *Tracker) InstallCompleted() error {
	return t.bump(func(c *Counters) { c.InstallsCompleted++ })
}

func (t *Tracker) UpdateStarted() error {
	return t.bump(func(c *Counters) { c.UpdatesStarted++ })
}

func (t *Tracker) UpdateCompleted() error {
	return t.bump(func(c *Counters) { c.UpdatesCompleted++ })
}

func (t *Tracker) ConfigGenerated() error {
	return t.bump(func(c *Counters) { c.ConfigsGenerated++ })
}
