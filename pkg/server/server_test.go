package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oarkflow/json"

	"github.com/oarkflow/sprite"
	"github.com/oarkflow/sprite/pkg/cache"
	"github.com/oarkflow/sprite/pkg/config"
	"github.com/oarkflow/sprite/pkg/history"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	pc, err := cache.New(32)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(pc.Close)
	return NewServer(Config{
		Version: "test",
		Runtime: sprite.RuntimeConfig{MaxCallDepth: 50},
		Globals: map[string]any{"base": 100},
	}, WithProgramCache(pc), WithHistory(history.NewMemory()))
}

func do(t *testing.T, s *Server, method, path, body string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]any
	if code := do(t, s, http.MethodGet, "/api/health", "", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Fatalf("unexpected health body %#v", body)
	}
}

func TestRunSuccessIsRecorded(t *testing.T) {
	s := newTestServer(t)
	var run RunResponse
	code := do(t, s, http.MethodPost, "/api/run", `{"source": "func fib(n)\n  if n < 2 return n end\n  return fib(n - 1) + fib(n - 2)\nend\nOut(\"fib\", fib(10))\nfib(10) + base + extra", "globals": {"extra": 5}}`, &run)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%+v)", code, run)
	}
	if run.Result != "160" || run.Type != "integer" || run.Output != "fib 55\n" || run.Status != "succeeded" {
		t.Fatalf("unexpected run response %+v", run)
	}
	if run.ID == "" {
		t.Fatalf("expected run id")
	}

	var rec history.Record
	if code := do(t, s, http.MethodGet, "/api/runs/"+run.ID, "", &rec); code != http.StatusOK {
		t.Fatalf("expected 200 for stored run, got %d", code)
	}
	if rec.Result != "160" || rec.Status != history.StatusSucceeded {
		t.Fatalf("unexpected stored record %+v", rec)
	}
}

func TestRunFailureReportsStructuredError(t *testing.T) {
	s := newTestServer(t)
	var run RunResponse
	code := do(t, s, http.MethodPost, "/api/run", `{"source": "Out(1)\n1 / 0"}`, &run)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if run.Code != string(sprite.ErrCodeArithmetic) || run.Output != "1\n" || run.Status != "failed" {
		t.Fatalf("unexpected failure response %+v", run)
	}

	code = do(t, s, http.MethodPost, "/api/run", `{"source": "func f(n) f(n + 1)\nf(0)"}`, &run)
	if code != http.StatusUnprocessableEntity || run.Code != string(sprite.ErrCodeCallDepth) {
		t.Fatalf("expected call depth failure, got %d %+v", code, run)
	}

	var runs []history.Record
	do(t, s, http.MethodGet, "/api/runs?limit=1", "", &runs)
	if len(runs) != 1 || runs[0].Code != string(sprite.ErrCodeCallDepth) {
		t.Fatalf("expected newest failure first, got %+v", runs)
	}
}

func TestRunRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)
	var errResp ErrorResponse
	if code := do(t, s, http.MethodPost, "/api/run", `{"source": "   "}`, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty source, got %d", code)
	}
	if code := do(t, s, http.MethodPost, "/api/run", `not json`, &errResp); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", code)
	}
	if code := do(t, s, http.MethodGet, "/api/runs/unknown", "", &errResp); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestParseEndpoint(t *testing.T) {
	s := newTestServer(t)
	var parsed ParseResponse
	if code := do(t, s, http.MethodPost, "/api/parse", `{"source": "x = 1 + 2 * 3\nOut(x)"}`, &parsed); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if parsed.Statements != 2 || parsed.AST[0] != "(x = (1 + (2 * 3)))" {
		t.Fatalf("unexpected parse response %+v", parsed)
	}

	var errResp ErrorResponse
	if code := do(t, s, http.MethodPost, "/api/parse", `{"source": "func f(a, a) a"}`, &errResp); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if errResp.Code != string(sprite.ErrCodeSyntax) || errResp.Line != 1 {
		t.Fatalf("unexpected parse error %+v", errResp)
	}
}

func TestTokensEndpoint(t *testing.T) {
	s := newTestServer(t)
	var tokens []TokenResponse
	if code := do(t, s, http.MethodPost, "/api/tokens", `{"source": "x = 2.5"}`, &tokens); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(tokens) != 4 || tokens[0].Kind != "Identifier" || tokens[2].Kind != "Float" || tokens[2].Value != 2.5 {
		t.Fatalf("unexpected tokens %+v", tokens)
	}

	var errResp ErrorResponse
	if code := do(t, s, http.MethodPost, "/api/tokens", `{"source": "x = $"}`, &errResp); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if errResp.Code != string(sprite.ErrCodeLex) || errResp.Column != 5 {
		t.Fatalf("unexpected lex error %+v", errResp)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg, err := config.LoadFromString(`{"runtime": {"max_call_depth": 3}, "globals": {"seed": 7}}`, "json")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	s, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("new from config: %v", err)
	}
	var run RunResponse
	if code := do(t, s, http.MethodPost, "/api/run", `{"source": "seed * 6"}`, &run); code != http.StatusOK || run.Result != "42" {
		t.Fatalf("expected 42, got %d %+v", code, run)
	}
	code := do(t, s, http.MethodPost, "/api/run", `{"source": "func f(n) f(n + 1)\nf(0)"}`, &run)
	if code != http.StatusUnprocessableEntity || run.Code != string(sprite.ErrCodeCallDepth) {
		t.Fatalf("expected configured depth limit, got %d %+v", code, run)
	}
}
