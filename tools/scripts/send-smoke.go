// Package main provides a CI-friendly smoke test for a running tggate.
//
// It validates:
//   - /healthz
//   - /send input validation (400 before any acquisition)
//   - /pairing/ws handshake + subprotocol selection and the initial state
//   - a real delivery through /send, printing pairing codes while it waits
//   - /readyz once the session is authenticated
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	v1 "tggate/shared/contracts/gateway/v1"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 20 // 1MiB

type sendResult struct {
	status int
	body   []byte
	err    error
}

func main() {
	var (
		baseURL     = flag.String("url", "http://127.0.0.1:3000", "tggate base URL")
		origin      = flag.String("origin", "http://localhost", "Origin header for the pairing websocket")
		chat        = flag.String("chat", "me", "Destination chat (username, phone or numeric id)")
		text        = flag.String("text", "tggate smoke "+time.Now().UTC().Format(time.RFC3339), "Message text to send")
		timeout     = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		pairTimeout = flag.Duration("pair-timeout", 3*time.Minute, "How long to wait for an operator scan")
		verbose     = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	ctx := context.Background()
	httpc := &http.Client{Timeout: *pairTimeout + *timeout}

	mustHealthy(ctx, httpc, base, *timeout)
	logf(*verbose, "healthz ok")

	mustRejectInvalid(ctx, httpc, base, *timeout)
	logf(*verbose, "validation ok")

	conn := mustDialPairing(ctx, base, *origin, *timeout)
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	first := mustReadState(ctx, conn, *timeout)
	logf(*verbose, "pairing state: %s", first.State)

	done := make(chan sendResult, 1)
	go func() {
		done <- postSend(ctx, httpc, base, *chat, *text)
	}()

	states := make(chan v1.PairingStatePayload, 8)
	go func() {
		defer close(states)
		for {
			p, err := readState(ctx, conn, *pairTimeout)
			if err != nil {
				return
			}
			states <- p
		}
	}()

	deadline := time.After(*pairTimeout + *timeout)
	for {
		select {
		case p, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			switch {
			case p.ChallengeURL != "" && p.State == "awaiting-scan":
				fmt.Printf("scan to pair (renewal %d): %s\n", p.Renewals, p.ChallengeURL)
			case p.State == "failed":
				fatalf("pairing failed: %s", p.Error)
			default:
				logf(*verbose, "pairing state: %s", p.State)
			}
		case res := <-done:
			mustSent(res)
			logf(*verbose, "send ok")
			mustReady(ctx, httpc, base, *timeout)
			fmt.Println("OK")
			return
		case <-deadline:
			fatalf("timed out waiting for /send")
		}
	}
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

func endpoint(base *url.URL, path string) string {
	u := *base
	u.Path += path
	return u.String()
}

func wsEndpoint(base *url.URL, path string) string {
	u := *base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += path
	return u.String()
}

func mustHealthy(parent context.Context, c *http.Client, base *url.URL, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(base, "/healthz"), nil)
	resp, err := c.Do(req)
	if err != nil {
		fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fatalf("healthz status: %d", resp.StatusCode)
	}
}

func mustRejectInvalid(parent context.Context, c *http.Client, base *url.URL, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(base, "/send"), strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		fatalf("send (invalid): %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		fatalf("send (invalid): status=%d want=400", resp.StatusCode)
	}
	var e v1.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReadBytes)).Decode(&e); err != nil {
		fatalf("send (invalid): decode: %v", err)
	}
	if e.Error == "" {
		fatalf("send (invalid): missing error field")
	}
}

func mustDialPairing(parent context.Context, base *url.URL, origin string, stepTimeout time.Duration) *websocket.Conn {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	h := http.Header{}
	if origin != "" {
		h.Set("Origin", origin)
	}

	conn, resp, err := websocket.Dial(ctx, wsEndpoint(base, "/pairing/ws"), &websocket.DialOptions{
		Subprotocols: []string{v1.Subprotocol},
		HTTPHeader:   h,
	})
	if err != nil {
		if resp != nil {
			fatalf("dial pairing: %v (http status=%d)", err, resp.StatusCode)
		}
		fatalf("dial pairing: %v", err)
	}
	conn.SetReadLimit(maxReadBytes)

	if got := conn.Subprotocol(); got != v1.Subprotocol {
		fatalf("subprotocol mismatch: got=%q want=%q", got, v1.Subprotocol)
	}
	return conn
}

func mustReadState(parent context.Context, conn *websocket.Conn, stepTimeout time.Duration) v1.PairingStatePayload {
	p, err := readState(parent, conn, stepTimeout)
	if err != nil {
		fatalf("read pairing state: %v", err)
	}
	return p
}

func readState(parent context.Context, conn *websocket.Conn, timeout time.Duration) (v1.PairingStatePayload, error) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		return v1.PairingStatePayload{}, err
	}

	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.PairingStatePayload{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return v1.PairingStatePayload{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != v1.TypePairingState {
		return v1.PairingStatePayload{}, fmt.Errorf("unexpected envelope type %q", env.Type)
	}

	var p v1.PairingStatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return v1.PairingStatePayload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

func postSend(ctx context.Context, c *http.Client, base *url.URL, chat, text string) sendResult {
	body, err := json.Marshal(map[string]string{"chat": chat, "message": text})
	if err != nil {
		return sendResult{err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(base, "/send"), bytes.NewReader(body))
	if err != nil {
		return sendResult{err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return sendResult{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxReadBytes))
	return sendResult{status: resp.StatusCode, body: b, err: err}
}

func mustSent(res sendResult) {
	if res.err != nil {
		fatalf("send: %v", res.err)
	}
	if res.status != http.StatusOK {
		fatalf("send: status=%d body=%s", res.status, strings.TrimSpace(string(res.body)))
	}
	var ok v1.SendResponse
	if err := json.Unmarshal(res.body, &ok); err != nil {
		fatalf("send: decode: %v", err)
	}
	if ok.Status != v1.StatusOK {
		fatalf("send: status field=%q", ok.Status)
	}
}

func mustReady(parent context.Context, c *http.Client, base *url.URL, stepTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(parent, stepTimeout)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(base, "/readyz"), nil)
	resp, err := c.Do(req)
	if err != nil {
		fatalf("readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fatalf("readyz status after send: %d", resp.StatusCode)
	}
}

func logf(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
