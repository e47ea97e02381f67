package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/braid-ai/braid/internal/engine"
	"github.com/braid-ai/braid/internal/memory"
	"github.com/braid-ai/braid/internal/provider"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// fakeEngine returns a scripted Turn result.
type fakeEngine struct {
	result engine.Result
	err    error

	lastParticipant string
	lastText        string
}

func (f *fakeEngine) Turn(_ context.Context, participantID, text string) (engine.Result, error) {
	f.lastParticipant = participantID
	f.lastText = text
	return f.result, f.err
}

// fakeLedger is a static UsageLedger test double.
type fakeLedger struct {
	balance  float64
	locked   bool
	unlocked []string
}

func (f *fakeLedger) Balance(context.Context, string) (float64, error) { return f.balance, nil }
func (f *fakeLedger) Locked(context.Context, string) (bool, error)    { return f.locked, nil }
func (f *fakeLedger) Unlock(_ context.Context, id string) error {
	f.unlocked = append(f.unlocked, id)
	return nil
}

func newTestRouter(t *testing.T, eng TurnEngine, opts ...GatewayOption) (http.Handler, *memory.InMemoryStore) {
	t.Helper()
	store := memory.NewInMemoryStore()
	g := New(Config{}, eng, store, testLogger(), opts...)
	return g.buildRouter(), store
}

func TestTurnEndpoint(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{result: engine.Result{
		Reply:         "hello back",
		Usage:         provider.Usage{InputTokens: 20, OutputTokens: 8},
		ContextTokens: 120,
	}}
	router, _ := newTestRouter(t, eng)

	body := `{"participant_id": "alice", "text": "hello"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/turn", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp TurnResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Reply != "hello back" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if resp.InputTokens != 20 || resp.OutputTokens != 8 || resp.ContextTokens != 120 {
		t.Errorf("token counters = %+v", resp)
	}
	if resp.RequestID == "" {
		t.Error("missing request_id")
	}
	if eng.lastParticipant != "alice" || eng.lastText != "hello" {
		t.Errorf("engine received %q / %q", eng.lastParticipant, eng.lastText)
	}
}

func TestTurnEndpointValidation(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &fakeEngine{})

	cases := []string{
		`not json`,
		`{"participant_id": "", "text": "hi"}`,
		`{"participant_id": "alice", "text": ""}`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/turn", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestTurnEndpointErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{engine.ErrParticipantLocked, http.StatusPaymentRequired},
		{engine.ErrRetriesExhausted, http.StatusServiceUnavailable},
		{provider.ErrOverloaded, http.StatusServiceUnavailable},
		{provider.ErrAuth, http.StatusBadGateway},
		{provider.ErrBadRequest, http.StatusBadRequest},
		{errors.New("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		router, _ := newTestRouter(t, &fakeEngine{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/v1/turn",
			strings.NewReader(`{"participant_id": "alice", "text": "hi"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestSummaryEndpoint(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t, &fakeEngine{})
	if err := store.Put(context.Background(), "alice", "her summary"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/participants/alice/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Summary != "her summary" {
		t.Errorf("summary = %q", resp.Summary)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/participants/bob/summary", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing summary status = %d, want 404", rec.Code)
	}
}

func TestUsageEndpoints(t *testing.T) {
	t.Parallel()

	ledger := &fakeLedger{balance: 1.25, locked: true}
	router, _ := newTestRouter(t, &fakeEngine{}, WithLedger(ledger))

	req := httptest.NewRequest(http.MethodGet, "/v1/participants/alice/usage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("usage status = %d", rec.Code)
	}
	var resp UsageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Balance != 1.25 || !resp.Locked {
		t.Errorf("usage = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/participants/alice/unlock", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unlock status = %d", rec.Code)
	}
	if len(ledger.unlocked) != 1 || ledger.unlocked[0] != "alice" {
		t.Errorf("unlocked = %v", ledger.unlocked)
	}
}

func TestUsageEndpointsAbsentWithoutLedger(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/v1/participants/alice/usage", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no ledger is wired", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router, _ := newTestRouter(t, &fakeEngine{}, WithMetricsHandler(metricsHandler))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# metrics") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
