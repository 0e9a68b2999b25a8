package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePublish(t *testing.T) {
	m := New(func() int { return 0 }, func() int { return 0 })

	m.ObservePublish(true, 3)
	m.ObservePublish(false, 1)
	m.ObservePublish(false, 0)

	if got := testutil.ToFloat64(m.published.WithLabelValues("broadcast")); got != 1 {
		t.Errorf("broadcast publishes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.published.WithLabelValues("targeted")); got != 2 {
		t.Errorf("targeted publishes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.delivered); got != 4 {
		t.Errorf("enqueued = %v, want 4", got)
	}
}

func TestConnectionCounters(t *testing.T) {
	m := New(func() int { return 0 }, func() int { return 0 })
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.connections.WithLabelValues("opened")); got != 2 {
		t.Errorf("opened = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.connections.WithLabelValues("closed")); got != 1 {
		t.Errorf("closed = %v, want 1", got)
	}
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New(func() int { return 2 }, func() int { return 5 })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{"pushrelay_clients_connected 2", "pushrelay_clients_registered 5"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
