package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-checker/internal/common/metrics"
)

func TestNewClient_CountsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok := metrics.ModelRequests.WithLabelValues("200", "post")
	failed := metrics.ModelRequests.WithLabelValues("503", "post")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	client := NewClient(5 * time.Second)
	for _, path := range []string{"/ok", "/ok", "/fail"} {
		resp, err := client.Post(srv.URL+path, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestNewClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClientWithTransport(50*time.Millisecond, nil)
	_, err := client.Get(srv.URL)
	assert.Error(t, err)
}
