package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
)

// stubSource returns a canned catalog body or error.
type stubSource struct {
	mu     sync.Mutex
	body   string
	status int
	err    error
	calls  int
}

func (s *stubSource) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return catalog.FetchResponse{}, s.err
	}
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return catalog.FetchResponse{URL: req.URL, StatusCode: status, Body: []byte(s.body)}, nil
}

func (s *stubSource) set(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body = body
	s.err = nil
}

// tableStore mimics a table with a unique dataset_name: writes are staged per
// transaction and only become visible on commit.
type tableStore struct {
	mu     sync.Mutex
	rows   map[string]string
	failOn string
	opened int
	closed int
}

func newTableStore() *tableStore {
	return &tableStore{rows: make(map[string]string)}
}

func (s *tableStore) WithinTx(ctx context.Context, fn func(context.Context, catalog.DatasetWriter) error) error {
	s.mu.Lock()
	s.opened++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.closed++
		s.mu.Unlock()
	}()

	tx := &stagedTx{store: s, staged: make(map[string]string)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, coverage := range tx.staged {
		s.rows[name] = coverage
	}
	return nil
}

func (s *tableStore) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out
}

type stagedTx struct {
	store  *tableStore
	staged map[string]string
}

func (t *stagedTx) UpsertDataset(_ context.Context, rec catalog.Record) error {
	if t.store.failOn != "" && rec.DatasetName == t.store.failOn {
		return catalog.DatabaseError("upsert dataset", errors.New("constraint violation"))
	}
	t.staged[rec.DatasetName] = rec.GeographicCoverage
	return nil
}

// mockArtifactStore is a testify mock of catalog.ArtifactStore.
type mockArtifactStore struct {
	mock.Mock
}

func (m *mockArtifactStore) PutObject(ctx context.Context, path, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *mockArtifactStore) GetObject(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// mockDatasetStore is a testify mock of catalog.DatasetStore.
type mockDatasetStore struct {
	mock.Mock
}

func (m *mockDatasetStore) WithinTx(ctx context.Context, fn func(context.Context, catalog.DatasetWriter) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}
