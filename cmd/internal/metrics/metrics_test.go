package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.Acquisition(ResultPaired)
	m.Acquisition(ResultCached)
	m.Acquisition(ResultCached)
	m.Handshake(ResultSuccess)
	m.Challenge()
	m.Send(ResultError)
	m.SetAuthenticated(true)
	m.HTTPRequest(http.MethodPost, "/send", http.StatusOK, 12*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.acquisitions.WithLabelValues(ResultCached)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.handshakes.WithLabelValues(ResultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.authenticated))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	require.True(t, strings.Contains(body, "tggate_messages_sent_total"), "missing send counter")
	require.True(t, strings.Contains(body, `tggate_http_requests_total{code="200",method="POST",path="/send"} 1`), body)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.Acquisition(ResultError)
	m.Handshake(ResultError)
	m.Challenge()
	m.Send(ResultSuccess)
	m.SetAuthenticated(false)
	m.HTTPRequest(http.MethodGet, "/", 200, time.Second)
	require.Nil(t, m.Registry())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
