package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	var st wizard.State
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if st.Blocklists == nil {
		st.Blocklists = []string{}
	}
	if err := st.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.wizard.Put(wizard.DefaultSession, st); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save wizard state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	var updates map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	current, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}
	merged, err := current.Merge(updates)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.wizard.Put(wizard.DefaultSession, merged); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save wizard state")
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Reset(wizard.DefaultSession); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset wizard state")
		return
	}
	writeJSON(w, http.StatusOK, wizard.Defaults())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}
	export := wizard.NewExport(st, time.Now())

	if r.URL.Query().Get("download") == "1" {
		filename := fmt.Sprintf("pihole-wizard-%s.json", time.Now().Format("2006-01-02"))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	writeJSON(w, http.StatusOK, export)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	st, err := wizard.Import(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.wizard.Put(wizard.DefaultSession, st); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save imported state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
