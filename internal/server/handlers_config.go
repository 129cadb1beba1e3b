package server

import (
	"net/http"

	"github.com/pihole-wizard/pihole-wizard/internal/compose"
	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

// handleConfigPreview renders the deployment files for the current wizard
// state without touching disk.
func (s *Server) handleConfigPreview(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}
	if err := st.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"files":    compose.Render(st),
		"commands": compose.Commands(st),
	})
}

// handleConfigGenerate writes the rendered files to the output directory.
func (s *Server) handleConfigGenerate(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}
	if err := st.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	written, err := compose.WriteAll(st, s.cfg.Paths.OutputDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.tracker.ConfigGenerated()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"output_dir": s.cfg.Paths.OutputDir,
		"written":    written,
	})
}

func (s *Server) handleConfigFiles(w http.ResponseWriter, r *http.Request) {
	files, err := compose.ListWritten(s.cfg.Paths.OutputDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list generated files")
		return
	}
	if files == nil {
		files = []compose.WrittenFile{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"output_dir": s.cfg.Paths.OutputDir,
		"files":      files,
	})
}
