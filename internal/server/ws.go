package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/maauso/mixdown-api/internal/mix"
	"github.com/maauso/mixdown-api/internal/segment"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsSendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is handled by the CORS middleware; the socket
	// carries no credentials.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand is a typed client command dispatched to the segment list or the
// pipeline.
type wsCommand struct {
	Type       string             `json:"type"`
	Segment    *segment.Segment   `json:"segment,omitempty"`
	Segments   []segment.Segment  `json:"segments,omitempty"`
	Index      int                `json:"index"`
	OldIndex   int                `json:"old_index"`
	NewIndex   int                `json:"new_index"`
	Edge       string             `json:"edge,omitempty"`
	Ms         int64              `json:"ms"`
	DurationMs int64              `json:"duration_ms"`
	Format     string             `json:"format,omitempty"`
	PushToS3   bool               `json:"push_to_s3"`
}

// wsEvent is a server push to the client.
type wsEvent struct {
	Type     string            `json:"type"`
	Segments []segment.Segment `json:"segments,omitempty"`
	Message  string            `json:"message,omitempty"`
	Progress *int              `json:"progress,omitempty"`
	Artifact string            `json:"artifact,omitempty"`
	URL      string            `json:"url,omitempty"`
	Error    string            `json:"error,omitempty"`
	Index    *int              `json:"index,omitempty"`
	JobID    string            `json:"job_id,omitempty"`
}

// wsSession is one client connection: it owns a segment list mutated by
// commands and receives live progress from merge and preview jobs it starts.
// Jobs run on a detached context: a disconnect never aborts cleanup, which is
// job-scoped, not observer-scoped.
type wsSession struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	send   chan []byte
	closed bool
	list   *segment.List
	jobCtx context.Context
	h      *Handlers
	logger *slog.Logger
}

// WebSocket handles GET /ws: upgrades the connection and runs the session.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("error", err.Error()),
		)
		return
	}

	sessionID := uuid.NewString()[:8]
	s := &wsSession{
		id:     sessionID,
		conn:   conn,
		send:   make(chan []byte, wsSendBuffer),
		list:   segment.NewList(),
		jobCtx: context.WithoutCancel(r.Context()),
		h:      h,
		logger: h.logger.With(slog.String("session", sessionID)),
	}
	s.logger.Info("client connected")

	go s.writeLoop()
	s.readLoop()
}

func (s *wsSession) readLoop() {
	defer func() {
		s.close()
		_ = s.conn.Close()
		s.logger.Info("client disconnected")
	}()

	s.conn.SetReadLimit(1 << 20)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var cmd wsCommand
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", slog.String("error", err.Error()))
			}
			return
		}
		s.dispatch(cmd)
	}
}

func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// push marshals and queues an event. A full or closed session drops the
// event rather than block a running job.
func (s *wsSession) push(ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal event", slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("dropping event, send buffer full",
			slog.String("type", ev.Type),
		)
	}
}

func (s *wsSession) pushSegments() {
	s.push(wsEvent{Type: "segments", Segments: s.list.Snapshot()})
}

func (s *wsSession) pushError(err error) {
	s.push(wsEvent{Type: "error", Error: err.Error()})
}

// dispatch executes one typed command. List commands run inline on the read
// loop; merge and preview jobs run in their own goroutines.
func (s *wsSession) dispatch(cmd wsCommand) {
	switch cmd.Type {
	case "append":
		if cmd.Segment == nil {
			s.push(wsEvent{Type: "error", Error: "append requires a segment"})
			return
		}
		s.list.Append(*cmd.Segment)
		s.pushSegments()
	case "insert-silence":
		if _, err := s.list.InsertSilence(cmd.DurationMs); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "move-up":
		if err := s.list.MoveUp(cmd.Index); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "move-down":
		if err := s.list.MoveDown(cmd.Index); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "move-to":
		if err := s.list.MoveTo(cmd.OldIndex, cmd.NewIndex); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "delete":
		if err := s.list.Delete(cmd.Index); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "set-trim":
		if err := s.list.SetTrim(cmd.Index, segment.TrimEdge(cmd.Edge), cmd.Ms); err != nil {
			s.pushError(err)
			return
		}
		s.pushSegments()
	case "clear":
		s.list.Clear()
		s.pushSegments()
	case "preview":
		if cmd.Segment == nil {
			s.push(wsEvent{Type: "preview-error", Error: "preview requires a segment"})
			return
		}
		go s.runPreview(*cmd.Segment, cmd.Index)
	case "merge":
		go s.runMerge(cmd)
	default:
		s.push(wsEvent{Type: "error", Error: "unknown command: " + cmd.Type})
	}
}

// runMerge creates a job from the command (or from a snapshot of the session
// list when the payload carries no segments) and streams its progress.
func (s *wsSession) runMerge(cmd wsCommand) {
	segments := cmd.Segments
	if len(segments) == 0 {
		segments = s.list.Snapshot()
	}

	s.push(wsEvent{Type: "status-update", Message: "starting merge..."})

	j, err := s.h.service.CreateJob(s.jobCtx, segments, segment.Format(cmd.Format), cmd.PushToS3)
	if err != nil {
		s.push(wsEvent{Type: "merge-failed", Error: err.Error()})
		return
	}
	s.push(wsEvent{Type: "status-update", Message: "merge started", JobID: j.ID})

	if _, err := s.h.service.ProcessExistingJob(s.jobCtx, j.ID, &mergeReporter{session: s}); err != nil {
		s.logger.Warn("merge failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
}

// runPreview materializes one segment and pushes its retrieval locator.
// index is echoed for caller correlation only.
func (s *wsSession) runPreview(seg segment.Segment, index int) {
	rep := &previewReporter{session: s, index: index}
	if _, err := s.h.orch.Preview(s.jobCtx, seg, s.id, rep); err != nil {
		s.logger.Warn("preview failed", slog.String("error", err.Error()))
	}
}

// mergeReporter adapts merge pipeline events to websocket pushes.
type mergeReporter struct {
	mix.NopReporter
	session *wsSession
}

func (r *mergeReporter) Status(message string) {
	r.session.push(wsEvent{Type: "status-update", Message: message})
}

func (r *mergeReporter) Progress(percent int) {
	p := percent
	r.session.push(wsEvent{Type: "merge-progress", Progress: &p})
}

func (r *mergeReporter) Completed(artifact string) {
	r.session.push(wsEvent{Type: "merge-completed", Artifact: artifact, URL: "/download/" + artifact})
}

func (r *mergeReporter) Failed(cause error) {
	r.session.push(wsEvent{Type: "merge-failed", Error: cause.Error()})
}

// previewReporter adapts preview pipeline events to websocket pushes.
type previewReporter struct {
	mix.NopReporter
	session *wsSession
	index   int
}

func (r *previewReporter) Status(message string) {
	r.session.push(wsEvent{Type: "status-update", Message: message})
}

func (r *previewReporter) Completed(artifact string) {
	i := r.index
	r.session.push(wsEvent{Type: "preview-ready", Artifact: artifact, URL: "/preview/" + artifact, Index: &i})
}

func (r *previewReporter) Failed(cause error) {
	i := r.index
	r.session.push(wsEvent{Type: "preview-error", Error: cause.Error(), Index: &i})
}
