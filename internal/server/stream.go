package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pihole-wizard/pihole-wizard/internal/engine"
)

func (s *Server) handleInstallStream(w http.ResponseWriter, r *http.Request) {
	s.streamRun(w, r, engine.KindInstall)
}

func (s *Server) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	s.streamRun(w, r, engine.KindUpdate)
}

// streamRun upgrades to a WebSocket, sends a status snapshot so late joiners
// resync, then relays live events until the client goes away. A terminal
// event closes the stream.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, kind string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOriginPatterns(r),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()

	// Subscribe before reading the snapshot so no event falls in between.
	sub, err := s.engine.Subscribe(kind)
	if err != nil {
		conn.Close(websocket.StatusInternalError, err.Error())
		return
	}
	defer sub.Close()

	run, err := s.engine.Status(kind)
	if err != nil {
		conn.Close(websocket.StatusInternalError, err.Error())
		return
	}
	snap := snapshotEvent(run)
	if err := s.writeEvent(ctx, conn, snap); err != nil {
		return
	}
	// A late joiner to a finished run gets the terminal snapshot and the same
	// close the live path performs.
	if snap.Type == "complete" || snap.Type == "error" {
		conn.Close(websocket.StatusNormalClosure, "run finished")
		return
	}

	// Reader: surfaces client disconnects, discards any client messages.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readDone:
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := s.writeEvent(ctx, conn, ev); err != nil {
				return
			}
			if ev.Type == "complete" || ev.Type == "error" {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *websocket.Conn, ev engine.Event) error {
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(wctx, conn, ev)
}

// snapshotEvent folds a run record into the event shape clients already
// parse.
func snapshotEvent(run engine.Run) engine.Event {
	ev := engine.Event{
		Type:     "status",
		Step:     run.CurrentStep,
		Progress: run.Progress,
		Status:   run.Status,
	}
	switch run.Status {
	case engine.StatusSuccess:
		ev.Type = "complete"
	case engine.StatusFailed:
		ev.Type = "error"
		ev.Message = run.Error
	}
	return ev
}
