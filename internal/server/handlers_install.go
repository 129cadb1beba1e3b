package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pihole-wizard/pihole-wizard/internal/engine"
	"github.com/pihole-wizard/pihole-wizard/internal/wizard"
)

func (s *Server) handleInstallStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.Get(wizard.DefaultSession)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load wizard state")
		return
	}

	run, err := s.engine.StartInstall(st)
	if errors.Is(err, engine.ErrRunActive) {
		writeError(w, http.StatusConflict, "an installation is already in progress")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.tracker.InstallStarted()
	s.watchCompletion(engine.KindInstall, run.ID)

	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleInstallStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Status(engine.KindInstall)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleInstallLogs returns persisted log lines after the given id, for
// polling clients. ?run= defaults to the current run.
func (s *Server) handleInstallLogs(w http.ResponseWriter, r *http.Request) {
	s.handleRunLogs(w, r, engine.KindInstall)
}

func (s *Server) handleRunLogs(w http.ResponseWriter, r *http.Request, kind string) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		run, err := s.engine.Status(kind)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if run.ID == "" {
			writeJSON(w, http.StatusOK, map[string]interface{}{"logs": []engine.LogLine{}})
			return
		}
		runID = run.ID
	}
	after, _ := strconv.Atoi(r.URL.Query().Get("after"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	logs, err := s.engine.LogsSince(runID, after, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}
	if logs == nil {
		logs = []engine.LogLine{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run": runID, "logs": logs})
}

func (s *Server) handleInstallCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Cancel(engine.KindInstall); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Check())
}

func (s *Server) handleUpdateStart(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.StartUpdate()
	if errors.Is(err, engine.ErrRunActive) {
		writeError(w, http.StatusConflict, "an update is already in progress")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.tracker.UpdateStarted()
	s.watchCompletion(engine.KindUpdate, run.ID)

	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Status(engine.KindUpdate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleUpdateCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Cancel(engine.KindUpdate); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// watchCompletion bumps the completion counter when the run it was started
// for succeeds.
func (s *Server) watchCompletion(kind, runID string) {
	sub, err := s.engine.Subscribe(kind)
	if err != nil {
		return
	}

	bump := func() {
		switch kind {
		case engine.KindInstall:
			s.tracker.InstallCompleted()
		case engine.KindUpdate:
			s.tracker.UpdateCompleted()
		}
	}

	// The run may already be terminal before the subscription existed (the
	// already-installed fast path finishes almost immediately), in which case
	// its events will never arrive. Check once before waiting.
	if run, err := s.engine.Status(kind); err == nil && run.ID == runID && run.Status != engine.StatusRunning {
		sub.Close()
		if run.Status == engine.StatusSuccess {
			bump()
		}
		return
	}

	go func() {
		defer sub.Close()
		for ev := range sub.C {
			if ev.Type != "complete" && ev.Type != "error" {
				continue
			}
			run, err := s.engine.Status(kind)
			if err != nil || run.ID != runID {
				return
			}
			if ev.Type == "complete" {
				bump()
			}
			return
		}
	}()
}
