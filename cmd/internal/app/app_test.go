package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tggate/cmd/internal/gate"
	v1 "tggate/shared/contracts/gateway/v1"
)

type fakeClient struct {
	mu   sync.Mutex
	sent []string
}

func (c *fakeClient) Connect(context.Context) error              { return nil }
func (c *fakeClient) IsAuthorized(context.Context) (bool, error) { return true, nil }
func (c *fakeClient) SignInWithPairing(context.Context, gate.PairingHandlers) error {
	return nil
}
func (c *fakeClient) ExportSession(context.Context) (string, error) { return "cred", nil }
func (c *fakeClient) Close() error                                  { return nil }

func (c *fakeClient) Send(_ context.Context, dest gate.Destination, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, dest.String()+":"+text)
	return nil
}

func (c *fakeClient) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func newTestApp(t *testing.T) (*App, *fakeClient) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "session.txt")
	if err := os.WriteFile(path, []byte("stored\n"), 0o600); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	cfg := DefaultConfig()
	cfg.APIID, cfg.APIHash = 1, "h"
	cfg.SessionFile = path

	client := &fakeClient{}
	factory := func(cred string) (gate.Client, error) {
		if cred != "stored" {
			t.Errorf("factory got credential %q", cred)
		}
		return client, nil
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log, factory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)
	return a, client
}

func TestRoutes_ReadinessFollowsSession(t *testing.T) {
	t.Parallel()

	a, client := newTestApp(t)
	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz before acquisition: %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/send", "application/json", strings.NewReader(`{"chat": 123, "message": "hi"}`))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var out v1.SendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode send response: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || out.Status != v1.StatusOK {
		t.Fatalf("send: status=%d body=%+v", resp.StatusCode, out)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatalf("missing %s header", requestIDHeader)
	}
	if sent := client.messages(); len(sent) != 1 || sent[0] != "123:hi" {
		t.Fatalf("sent=%v", sent)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz after acquisition: %d", resp.StatusCode)
	}
}

func TestRoutes_PairingSnapshotAndMetrics(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	h := a.routes()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pairing", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/pairing status=%d", rr.Code)
	}
	var p v1.PairingStatePayload
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode pairing: %v", err)
	}
	if p.State != "unauthenticated" {
		t.Fatalf("state=%q", p.State)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pairing", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /pairing status=%d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("/healthz: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "tggate_http_requests_total") {
		t.Fatalf("metrics output lacks request counter")
	}
}

func TestLogin_PersistsAndCloses(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	if err := a.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := a.gate.Acquire(context.Background()); err == nil {
		t.Fatalf("gate should be closed after login")
	}
}
