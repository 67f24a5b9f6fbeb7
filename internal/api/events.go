package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/designscan/internal/jobs"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Close reasons sent in the final WebSocket frame.
const (
	CloseReasonFinished = "job finished"
	CloseReasonDeleted  = "job removed"
)

// handleJobEvents streams job snapshots as {kind, job} messages.
// The server closes the socket after the terminal snapshot.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := s.jobs.Subscribe(ctx, id)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			s.errorResponse(w, http.StatusNotFound, "job not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		s.logger.Warn("websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("job_id", id)
	logger.Debug("event stream opened", "remote", r.RemoteAddr)

	// Clear the HTTP server read timeout. The stream lives as long as the job.
	_ = conn.SetReadDeadline(time.Time{})

	// The read loop only notices client disconnects and control frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	sent := 0
	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				// Closed without a terminal snapshot: the job was deleted.
				s.closeStream(conn, websocket.CloseGoingAway, CloseReasonDeleted)
				logger.Debug("event stream closed", "reason", CloseReasonDeleted, "sent", sent)
				return
			}
			if err := s.writeSnapshot(conn, snap); err != nil {
				logger.Debug("event stream write failed", "error", err)
				return
			}
			sent++
			if snap.Kind == jobs.SnapshotTerminal {
				s.closeStream(conn, websocket.CloseNormalClosure, CloseReasonFinished)
				logger.Debug("event stream closed", "reason", CloseReasonFinished, "sent", sent)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			logger.Debug("event stream client gone", "sent", sent)
			return
		}
	}
}

func (s *Server) writeSnapshot(conn *websocket.Conn, snap jobs.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(snap)
}

func (s *Server) closeStream(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
