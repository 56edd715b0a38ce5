package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mixdown-api/internal/segment"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads events until one of the wanted type arrives. Unrelated
// events (status updates, progress) are skipped.
func readUntil(t *testing.T, conn *websocket.Conn, wantType string) wsEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %q event", wantType)
		if ev.Type == wantType {
			return ev
		}
		if ev.Type == "error" || ev.Type == "merge-failed" || ev.Type == "preview-error" {
			t.Fatalf("got %q while waiting for %q: %s", ev.Type, wantType, ev.Error)
		}
	}
}

func TestWebSocket_ListCommands(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	seg := segment.Segment{Kind: segment.KindFile, SourceRef: "/uploads/a.mp3", StartMs: 0, EndMs: 2000, DurationMs: 2000}
	require.NoError(t, conn.WriteJSON(wsCommand{Type: "append", Segment: &seg}))
	ev := readUntil(t, conn, "segments")
	require.Len(t, ev.Segments, 1)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "insert-silence", DurationMs: 500}))
	ev = readUntil(t, conn, "segments")
	require.Len(t, ev.Segments, 2)
	assert.Equal(t, segment.KindSilence, ev.Segments[1].Kind)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "move-up", Index: 1}))
	ev = readUntil(t, conn, "segments")
	assert.Equal(t, segment.KindSilence, ev.Segments[0].Kind)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "set-trim", Index: 1, Edge: "start", Ms: 500}))
	ev = readUntil(t, conn, "segments")
	assert.Equal(t, int64(500), ev.Segments[1].StartMs)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "delete", Index: 0}))
	ev = readUntil(t, conn, "segments")
	require.Len(t, ev.Segments, 1)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "clear"}))
	ev = readUntil(t, conn, "segments")
	assert.Empty(t, ev.Segments)
}

func TestWebSocket_InvalidCommand(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "explode"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, ev.Error, "explode")
}

func TestWebSocket_OutOfRangeIndex(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "delete", Index: 0}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
}

func TestWebSocket_Merge(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	segments := []segment.Segment{
		{Kind: segment.KindFile, SourceRef: "/uploads/a.mp3", StartMs: 0, EndMs: 1000, DurationMs: 1000},
		segment.NewSilence(500),
	}
	require.NoError(t, conn.WriteJSON(wsCommand{Type: "merge", Segments: segments, Format: "mp3"}))

	ev := readUntil(t, conn, "merge-completed")
	assert.NotEmpty(t, ev.Artifact)
	assert.Equal(t, "/download/"+ev.Artifact, ev.URL)
}

func TestWebSocket_MergeUsesSessionListWhenEmpty(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	seg := segment.Segment{Kind: segment.KindFile, SourceRef: "/uploads/a.mp3", StartMs: 0, EndMs: 1000, DurationMs: 1000}
	require.NoError(t, conn.WriteJSON(wsCommand{Type: "append", Segment: &seg}))
	readUntil(t, conn, "segments")

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "merge", Format: "wav"}))
	ev := readUntil(t, conn, "merge-completed")
	assert.NotEmpty(t, ev.Artifact)
}

func TestWebSocket_MergeEmptySessionFails(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	require.NoError(t, conn.WriteJSON(wsCommand{Type: "merge", Format: "mp3"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == "merge-failed" {
			assert.NotEmpty(t, ev.Error)
			return
		}
		require.NotEqual(t, "merge-completed", ev.Type, "empty merge must not complete")
	}
}

func TestSession_PushAfterCloseIsDropped(t *testing.T) {
	env := setupTestEnv(t)
	s := &wsSession{
		id:     "test",
		send:   make(chan []byte, 1),
		list:   segment.NewList(),
		h:      env.handlers,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	s.close()
	// A job goroutine may outlive the connection; its pushes are dropped,
	// never a send on a closed channel.
	s.push(wsEvent{Type: "merge-progress"})
	s.close()
}

func TestSession_ConcurrentPushAndClose(t *testing.T) {
	env := setupTestEnv(t)
	s := &wsSession{
		id:     "test",
		send:   make(chan []byte, 1),
		list:   segment.NewList(),
		h:      env.handlers,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			s.push(wsEvent{Type: "status-update"})
		}
	}()
	s.close()
	<-done
}

func TestWebSocket_Preview(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	seg := segment.NewSilence(300)
	require.NoError(t, conn.WriteJSON(wsCommand{Type: "preview", Segment: &seg, Index: 2}))

	ev := readUntil(t, conn, "preview-ready")
	assert.True(t, strings.HasPrefix(ev.Artifact, "preview_"))
	assert.Equal(t, "/preview/"+ev.Artifact, ev.URL)
	require.NotNil(t, ev.Index)
	assert.Equal(t, 2, *ev.Index)
}

func TestWebSocket_PreviewInvalidSegment(t *testing.T) {
	env := setupTestEnv(t)
	conn := dialWS(t, env)

	seg := segment.Segment{Kind: segment.KindFile, SourceRef: "/uploads/a.mp3", StartMs: 5000, EndMs: 2000, DurationMs: 10000}
	require.NoError(t, conn.WriteJSON(wsCommand{Type: "preview", Segment: &seg, Index: 0}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev wsEvent
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Type == "preview-error" {
			assert.NotEmpty(t, ev.Error)
			return
		}
	}
}
