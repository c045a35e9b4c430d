package catalog

import "context"

// Source downloads the raw catalog document.
type Source interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ArtifactStore reads and writes whole objects and returns a URI for writes.
type ArtifactStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
	GetObject(ctx context.Context, path string) ([]byte, error)
}

// DatasetWriter upserts one record inside an open transaction.
type DatasetWriter interface {
	UpsertDataset(ctx context.Context, record Record) error
}

// DatasetStore runs fn inside a single connection and transaction. The transaction
// is committed when fn returns nil and rolled back otherwise; the connection is
// always released before WithinTx returns.
type DatasetStore interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w DatasetWriter) error) error
}

// Publisher pushes artifact notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
