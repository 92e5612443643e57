// internal/common/http/client.go
package http

import (
	"net/http"
	"time"

	"loan-checker/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewClient returns an http.Client for outbound model calls. Requests are
// counted and their time to response headers observed per status code.
func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithTransport(timeout, http.DefaultTransport)
}

func NewClientWithTransport(timeout time.Duration, base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := promhttp.InstrumentRoundTripperCounter(metrics.ModelRequests,
		promhttp.InstrumentRoundTripperDuration(metrics.ModelResponseLatency, base),
	)
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}
