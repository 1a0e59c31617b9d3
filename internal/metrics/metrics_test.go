package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestNewPushRecorder(t *testing.T) {
	_, err := NewPushRecorder("", "job")
	assert.Error(t, err)

	r, err := NewPushRecorder("http://gateway:9091", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultJob, r.job)
}

func TestPushRecorder_Records(t *testing.T) {
	r, err := NewPushRecorder("http://gateway:9091", "nightly")
	require.NoError(t, err)

	r.ObserveStep("load", StatusSuccess, 2*time.Second)
	r.ObserveStep("load", StatusSuccess, time.Second)
	r.ObserveStep("notify", StatusFailure, time.Second)
	r.AddRowsLoaded(120)
	r.AddRowsLoaded(-5)

	assert.Equal(t, 2.0, counterValue(t, r.stepTotal.WithLabelValues("load", StatusSuccess)))
	assert.Equal(t, 1.0, counterValue(t, r.stepTotal.WithLabelValues("notify", StatusFailure)))
	assert.Equal(t, 120.0, counterValue(t, r.rowsLoaded))
}

func TestPushRecorder_Flush(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		data, _ := io.ReadAll(req.Body)
		mu.Lock()
		method, path, body = req.Method, req.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, err := NewPushRecorder(srv.URL, "nightly")
	require.NoError(t, err)
	r.ObserveStep("connect", StatusSuccess, 10*time.Millisecond)

	require.NoError(t, r.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/nightly", path)
	assert.True(t, strings.Contains(body, "pipekit_step_total"), "pushed body should carry the step counter")
}

func TestPushRecorder_FlushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewPushRecorder(srv.URL, "nightly")
	require.NoError(t, err)

	assert.Error(t, r.Flush(context.Background()))
}

func TestNullRecorder(t *testing.T) {
	var r Recorder = NullRecorder{}
	r.ObserveStep("load", StatusSuccess, time.Second)
	r.AddRowsLoaded(1)
	assert.NoError(t, r.Flush(context.Background()))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusFailure, StatusOf(errors.New("x")))
}
