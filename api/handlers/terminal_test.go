package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/shared-terminal/backend/internal/journal"
	"github.com/shared-terminal/backend/internal/model"
	"github.com/shared-terminal/backend/internal/session"
	"github.com/shared-terminal/backend/internal/term"
)

// fakeProc blocks on reads until killed; enough to drive the facade
// through the HTTP surface.
type fakeProc struct {
	done chan struct{}
	once sync.Once
}

func newFakeProc() *fakeProc {
	return &fakeProc{done: make(chan struct{})}
}

func (p *fakeProc) Read(b []byte) (int, error) {
	<-p.done
	return 0, io.EOF
}

func (p *fakeProc) WriteSync(data []byte) error { return nil }

func (p *fakeProc) Resize(rows, cols uint16) error { return nil }

func (p *fakeProc) SignalWinch() error { return nil }

func (p *fakeProc) Wait() (int, error) { <-p.done; return 0, nil }

func (p *fakeProc) PID() int { return 101 }

func (p *fakeProc) SlavePath() string { return "/dev/pts/1" }

func (p *fakeProc) Kill() error {
	p.once.Do(func() { close(p.done) })
	return nil
}

func newTestRouter(t *testing.T, starter session.StartFunc) (*gin.Engine, *session.Session, *journal.Journal) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if starter == nil {
		starter = func(opts term.StartOptions) (session.Process, error) {
			return newFakeProc(), nil
		}
	}

	jrnl, err := journal.OpenInMemory()
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { jrnl.Close() })

	sess := session.New(session.Config{
		Command: "/bin/bash",
		Starter: starter,
	}, nil, nil, jrnl)
	t.Cleanup(func() { sess.Shutdown() })

	router := gin.New()
	handler := NewTerminalHandler(sess, jrnl, nil)
	handler.RegisterRoutes(router.Group("/api"))
	return router, sess, jrnl
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse error body %q: %v", w.Body.String(), err)
	}
	return resp.Error.Code
}

func TestStatusUnstarted(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := doRequest(router, http.MethodGet, "/api/terminal", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}

	var status model.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if status.IsStarted || status.IsCompleted {
		t.Errorf("unstarted status = %+v", status)
	}
	if status.PID != nil || status.ExitCode != nil {
		t.Errorf("pid/exitCode present before start: %+v", status)
	}
	if status.Rows != 24 || status.Cols != 80 {
		t.Errorf("default size = %dx%d, want 24x80", status.Rows, status.Cols)
	}
}

func TestStartThenConflict(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := doRequest(router, http.MethodPost, "/api/terminal/start", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("start code = %d, want 201: %s", w.Code, w.Body.String())
	}

	var status model.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if !status.IsStarted || status.PID == nil {
		t.Errorf("started status = %+v", status)
	}

	w = doRequest(router, http.MethodPost, "/api/terminal/start", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second start code = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "ALREADY_STARTED" {
		t.Errorf("error code = %s, want ALREADY_STARTED", code)
	}
}

func TestStartFailure(t *testing.T) {
	router, _, _ := newTestRouter(t, func(opts term.StartOptions) (session.Process, error) {
		return nil, errors.New("pty allocation failed")
	})

	w := doRequest(router, http.MethodPost, "/api/terminal/start", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("start code = %d, want 500", w.Code)
	}
	if code := errorCode(t, w); code != "START_FAILED" {
		t.Errorf("error code = %s, want START_FAILED", code)
	}
}

func TestResize(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)

	w := doRequest(router, http.MethodPost, "/api/terminal/resize", `{"rows":50,"cols":120}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("resize before start code = %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "NOT_RUNNING" {
		t.Errorf("error code = %s, want NOT_RUNNING", code)
	}

	doRequest(router, http.MethodPost, "/api/terminal/start", "")

	w = doRequest(router, http.MethodPost, "/api/terminal/resize", `{"rows":50,"cols":120}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("resize code = %d, want 204: %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/terminal", "")
	var status model.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if status.Rows != 50 || status.Cols != 120 {
		t.Errorf("size after resize = %dx%d, want 50x120", status.Rows, status.Cols)
	}

	w = doRequest(router, http.MethodPost, "/api/terminal/resize", `{"rows":0,"cols":120}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero rows code = %d, want 400", w.Code)
	}
	w = doRequest(router, http.MethodPost, "/api/terminal/resize", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body code = %d, want 400", w.Code)
	}
}

func TestShutdownIdempotent(t *testing.T) {
	router, sess, _ := newTestRouter(t, nil)
	doRequest(router, http.MethodPost, "/api/terminal/start", "")

	w := doRequest(router, http.MethodPost, "/api/terminal/shutdown", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("shutdown code = %d, want 204", w.Code)
	}
	if !sess.Status().IsStarted {
		t.Error("isStarted flipped by shutdown")
	}

	w = doRequest(router, http.MethodPost, "/api/terminal/shutdown", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("second shutdown code = %d, want 204", w.Code)
	}
}

func TestEvents(t *testing.T) {
	router, _, _ := newTestRouter(t, nil)
	doRequest(router, http.MethodPost, "/api/terminal/start", "")

	w := doRequest(router, http.MethodGet, "/api/terminal/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("events code = %d, want 200", w.Code)
	}

	var resp struct {
		Events []*journal.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse events: %v", err)
	}
	if len(resp.Events) == 0 {
		t.Fatal("no events recorded after start")
	}
	if resp.Events[0].Kind != journal.KindStarted {
		t.Errorf("latest event kind = %s, want %s", resp.Events[0].Kind, journal.KindStarted)
	}

	w = doRequest(router, http.MethodGet, "/api/terminal/events?limit=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit code = %d, want 400", w.Code)
	}
}
