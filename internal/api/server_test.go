package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/pipeline"
	memorystorage "github.com/JakeFAU/gfw-catalog-pipeline/internal/storage/memory"
)

func TestServer_Fetch_Succeeds(t *testing.T) {
	t.Parallel()

	fetch := &fakeRunner{out: pipeline.Outcome{
		RunID:   "run-1",
		Status:  http.StatusOK,
		Message: "Dataset data saved to gs://data-list-111/gfw_datasets_list.json",
	}}
	server := NewServer(fetch, &fakeRunner{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", strings.NewReader(`{"ignored":true}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Dataset data saved to gs://data-list-111/gfw_datasets_list.json", rec.Body.String())
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "run-1", rec.Header().Get("X-Run-ID"))
	require.EqualValues(t, 1, fetch.calls.Load())
}

func TestServer_Fetch_Failure(t *testing.T) {
	t.Parallel()

	fetch := &fakeRunner{out: pipeline.Outcome{
		Status:  http.StatusInternalServerError,
		Message: "Error fetching data: unexpected status 503",
		Err:     errors.New("boom"),
	}}
	server := NewServer(fetch, &fakeRunner{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fetch", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "Error")
}

func TestServer_Load_AcceptsAnyMethod(t *testing.T) {
	t.Parallel()

	load := &fakeRunner{out: pipeline.Outcome{Status: http.StatusOK, Message: "Loaded 2 datasets into datasets (0 skipped)"}}
	server := NewServer(&fakeRunner{}, load, Options{}, zap.NewNop())

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(method, "/v1/load?x=1", nil))
		require.Equal(t, http.StatusOK, rec.Code, method)
		require.Equal(t, "Loaded 2 datasets into datasets (0 skipped)", rec.Body.String())
	}
	require.EqualValues(t, 3, load.calls.Load())
}

func TestServer_StageNotConfigured(t *testing.T) {
	t.Parallel()

	server := NewServer(nil, nil, Options{}, nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/load", nil))
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestServer_FetchEndToEnd(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewArtifactStore()
	fetcher, err := pipeline.NewFetcher(
		staticSource(`{"data":[{"dataset":"Tree Cover Loss","metadata":{"geographic_coverage":"Global"}}]}`),
		store,
		nil,
		pipeline.FetcherConfig{
			CatalogURL: "https://data-api.example.org/datasets",
			Artifact:   catalog.ArtifactLocation{Bucket: "data-list-111", Object: "gfw_datasets_list.json"},
		},
		zap.NewNop(),
	)
	require.NoError(t, err)
	server := NewServer(fetcher, nil, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Dataset data saved to memory://gfw_datasets_list.json", rec.Body.String())

	data, err := store.GetObject(context.Background(), "gfw_datasets_list.json")
	require.NoError(t, err)
	require.JSONEq(t, `[{"dataset_name":"Tree Cover Loss","geographic_coverage":"Global"}]`, string(data))
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeRunner{}, &fakeRunner{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadyzReportsFailingCheck(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeRunner{}, &fakeRunner{}, Options{
		Ready: func(context.Context) error { return errors.New("bucket unreachable") },
	}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeRunner{out: pipeline.Outcome{Status: http.StatusOK}}, &fakeRunner{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/fetch", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/v1/fetch"`)
}

func TestServer_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	server := NewServer(panicRunner{}, &fakeRunner{}, Options{}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "An unexpected error occurred")
}

func TestServer_RequestTimeout(t *testing.T) {
	t.Parallel()

	server := NewServer(slowRunner{delay: time.Second}, &fakeRunner{}, Options{RequestTimeout: 20 * time.Millisecond}, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/fetch", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "request timed out")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	NewServer(nil, nil, Options{}, nil).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(rec, req)

	require.Equal(t, "abc-123", seen)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeRunner struct {
	out   pipeline.Outcome
	calls atomic.Int32
}

func (f *fakeRunner) Run(context.Context) pipeline.Outcome {
	f.calls.Add(1)
	out := f.out
	if out.Status == 0 {
		out.Status = http.StatusOK
	}
	return out
}

type panicRunner struct{}

func (panicRunner) Run(context.Context) pipeline.Outcome {
	panic("nil artifact store")
}

type slowRunner struct {
	delay time.Duration
}

func (s slowRunner) Run(ctx context.Context) pipeline.Outcome {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return pipeline.Outcome{Status: http.StatusOK, Message: "late"}
}

type staticSource string

func (s staticSource) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	return catalog.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(s)}, nil
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}
