package wizard

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExportVersion is the export envelope format version.
const ExportVersion = "1.0"

const passwordNote = "Password was not exported for security. You'll need to set it again."

// Export is the downloadable settings envelope.
type Export struct {
	Version    string `json:"version"`
	ExportedAt string `json:"exported_at"`
	Settings   State  `json:"settings"`
	Note       string `json:"_note,omitempty"`
}

// NewExport wraps a state for download. The web password is never exported.
func NewExport(st State, now time.Time) Export {
	e := Export{
		Version:    ExportVersion,
		ExportedAt: now.UTC().Format(time.RFC3339),
		Settings:   st,
	}
	if e.Settings.WebPassword != "" {
		e.Settings.WebPassword = ""
		e.Note = passwordNote
	}
	return e
}

// Import parses a previously exported envelope and returns the validated
// state. Field order in the JSON is irrelevant; unknown settings keys are
// ignored for forward compatibility within the 1.x format.
func Import(data []byte) (State, error) {
	var envelope struct {
		Version  string          `json:"version"`
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return State{}, fmt.Errorf("invalid import file: %w", err)
	}
	if envelope.Version == "" || envelope.Settings == nil {
		return State{}, fmt.Errorf("invalid import file format: missing version or settings")
	}
	if !strings.HasPrefix(envelope.Version, "1.") {
		return State{}, fmt.Errorf("unsupported export version %q: this wizard supports version 1.x", envelope.Version)
	}

	st := Defaults()
	if err := json.Unmarshal(envelope.Settings, &st); err != nil {
		return State{}, fmt.Errorf("invalid settings: %w", err)
	}
	if st.Blocklists == nil {
		st.Blocklists = []string{}
	}
	if err := st.Validate(); err != nil {
		return State{}, fmt.Errorf("invalid settings: %w", err)
	}
	return st, nil
}
