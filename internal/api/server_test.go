package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seantiz/athenamock/internal/engine"
	"github.com/seantiz/athenamock/internal/model"
	"github.com/seantiz/athenamock/internal/state"
	"github.com/seantiz/athenamock/internal/store"
)

// manualTicker hands out ticks on demand. Every advancer in a test server
// shares it, so each tick releases exactly one waiting advancer.
type manualTicker struct {
	c chan time.Time
}

func (m *manualTicker) C() <-chan time.Time { return m.c }
func (m *manualTicker) Stop()               {}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.c <- time.Now():
	case <-time.After(5 * time.Second):
		t.Fatal("no advancer waiting for a tick")
	}
}

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	states  *state.Map
	journal *store.SQLiteStore
	engine  *engine.Engine
	ticker  *manualTicker
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	journal, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	tk := &manualTicker{c: make(chan time.Time)}
	states := state.New()
	eng := engine.NewEngine(states, journal, time.Hour, logger,
		engine.WithTicker(func(time.Duration) engine.Ticker { return tk }))
	t.Cleanup(eng.Close)

	srv := NewServer(":0", states, eng, journal, logger)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, states: states, journal: journal, engine: eng, ticker: tk}
}

// call posts body to the dispatcher with the given target. An empty target
// omits the header.
func (e *testEnv) call(t *testing.T, target string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/", &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", amzJSONContentType)
	if target != "" {
		req.Header.Set(targetHeader, target)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) startExecution(t *testing.T) string {
	t.Helper()
	resp := e.call(t, targetPrefix+"StartQueryExecution", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StartQueryExecution status = %d, want 200", resp.StatusCode)
	}
	var out startQueryExecutionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	return out.QueryExecutionID
}

// seed publishes QUEUED records directly, oldest first.
func (e *testEnv) seed(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := e.states.Write(id, model.StateQueued); err != nil {
			t.Fatalf("Write %s: %v", id, err)
		}
		e.states.Publish()
	}
}

// waitForState polls the published view until id reaches the expected state.
func waitForState(t *testing.T, r state.Reader, id string, expected model.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := r.Get(id); ok && s == expected {
			return
		}
		time.Sleep(time.Millisecond)
	}
	got, ok := r.Get(id)
	t.Fatalf("execution %s did not reach %q (got %q, found=%v)", id, expected, got, ok)
}

func decodeEnvelope(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func TestAmzRequestIDHeader(t *testing.T) {
	env := newTestServer(t)

	first := env.call(t, targetPrefix+"GetQueryResults", nil)
	second := env.call(t, targetPrefix+"GetQueryResults", nil)

	a, b := first.Header.Get(requestIDHeader), second.Header.Get(requestIDHeader)
	if len(a) != 36 || len(b) != 36 {
		t.Fatalf("%s = %q, %q, want UUIDs", requestIDHeader, a, b)
	}
	if a == b {
		t.Errorf("request ids should differ, both %q", a)
	}
}

func TestPanicRecovery(t *testing.T) {
	env := newTestServer(t)
	env.srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSPreflightAllowsTargetHeader(t *testing.T) {
	env := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, env.ts.URL+"/", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "x-amz-target,content-type")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
	if v := resp.Header.Get("Access-Control-Allow-Headers"); v == "" {
		t.Error("Access-Control-Allow-Headers should list the requested headers")
	}
}
