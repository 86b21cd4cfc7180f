package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

type flushRecorder struct{ *httptest.ResponseRecorder }

func (flushRecorder) Flush() {}

func parseFrames(t *testing.T, body string) []boardResponse {
	t.Helper()
	var frames []boardResponse
	for _, chunk := range strings.Split(body, "\n\n") {
		if chunk == "" {
			continue
		}
		if !strings.HasPrefix(chunk, sseDataPrefix) {
			t.Fatalf("frame missing data prefix: %q", chunk)
		}
		var resp boardResponse
		if err := sonic.Unmarshal([]byte(strings.TrimPrefix(chunk, sseDataPrefix)), &resp); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		frames = append(frames, resp)
	}
	return frames
}

func TestStreamBoardSendsViewThenUpdates(t *testing.T) {
	backend := newFakeBackend()
	e := newTestServer(t, backend)

	// Prime the engine so the stream's first frame is a loaded board.
	doJSON(e, http.MethodGet, "/api/projects/p1/board", "")

	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1/stream", nil)
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	rec := flushRecorder{httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		e.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	doJSON(e, http.MethodPut, "/api/projects/p1/wip-limits/InProgress", `{"limit":1}`)
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on disconnect")
	}

	if got := rec.Header().Get(echo.HeaderContentType); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Fatalf("unexpected buffering header %q", got)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) < 2 {
		t.Fatalf("expected at least 2 frames got %d", len(frames))
	}
	first := frames[0]
	if len(first.Columns) != 3 || first.Version == 0 {
		t.Fatalf("unexpected first frame %+v", first)
	}
	last := frames[len(frames)-1]
	wip := last.Columns[1].Wip
	if wip.Limit == nil || *wip.Limit != 1 || wip.State != "at_limit" {
		t.Fatalf("expected updated wip in last frame, got %+v", wip)
	}
	if last.Version <= first.Version {
		t.Fatalf("expected version to advance: first %d last %d", first.Version, last.Version)
	}
}

func TestStreamBoardStopsWhenClientDisconnects(t *testing.T) {
	e := newTestServer(t, newFakeBackend())

	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1/stream", nil)
	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)
	rec := flushRecorder{httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		e.ServeHTTP(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on disconnect")
	}

	if frames := parseFrames(t, rec.Body.String()); len(frames) == 0 {
		t.Fatal("expected the current view to be sent immediately")
	}
}
