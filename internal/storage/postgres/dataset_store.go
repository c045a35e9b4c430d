// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultTable is the table datasets are upserted into when none is configured.
const DefaultTable = "datasets"

// Config holds the connection parameters for a single loader connection.
type Config struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	Table          string
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// Conn is the subset of *pgx.Conn the store needs.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Connector opens one connection owned by a single WithinTx call.
type Connector func(ctx context.Context) (Conn, error)

// DatasetStore upserts catalog records into Postgres. It holds no connection
// between calls; every WithinTx opens and releases its own.
type DatasetStore struct {
	connect Connector
	table   string
	upsert  string
	logger  *zap.Logger
}

// NewDatasetStore creates a store that dials Postgres with cfg on each WithinTx.
// Missing connection parameters are reported when a transaction is requested,
// not here, so a service without a database can still serve the fetch stage.
func NewDatasetStore(cfg Config) (*DatasetStore, error) {
	connect := func(ctx context.Context) (Conn, error) {
		connCfg, err := cfg.connConfig()
		if err != nil {
			return nil, err
		}
		conn, err := pgx.ConnectConfig(ctx, connCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return conn, nil
	}
	return NewDatasetStoreWithConnector(connect, cfg.Table, cfg.Logger)
}

// NewDatasetStoreWithConnector constructs a store from an existing connector (primarily for testing).
func NewDatasetStoreWithConnector(connect Connector, table string, logger *zap.Logger) (*DatasetStore, error) {
	if connect == nil {
		return nil, fmt.Errorf("connector is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetStore{
		connect: connect,
		table:   table,
		upsert:  upsertQuery(table),
		logger:  logger,
	}, nil
}

// Table returns the target table name.
func (s *DatasetStore) Table() string {
	return s.table
}

// WithinTx opens a connection, begins a transaction and runs fn. The
// transaction commits only when fn returns nil; the connection is closed on
// every path, including a panic in fn.
func (s *DatasetStore) WithinTx(
	ctx context.Context,
	fn func(ctx context.Context, w catalog.DatasetWriter) error,
) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return catalog.DatabaseError("connect", err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			s.logger.Warn("Failed to close postgres connection", zap.Error(cerr))
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return catalog.DatabaseError("begin transaction", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
	}()

	if err := fn(ctx, &txWriter{tx: tx, query: s.upsert}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return catalog.DatabaseError("commit", err)
	}
	committed = true
	return nil
}

type txWriter struct {
	tx    pgx.Tx
	query string
}

// UpsertDataset inserts the record or, on a dataset_name conflict, replaces its coverage.
func (w *txWriter) UpsertDataset(ctx context.Context, record catalog.Record) error {
	if _, err := w.tx.Exec(ctx, w.query, record.DatasetName, record.GeographicCoverage); err != nil {
		return catalog.DatabaseError(fmt.Sprintf("upsert dataset %q", record.DatasetName), err)
	}
	return nil
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`
INSERT INTO %s (dataset_name, geographic_coverage)
VALUES ($1, $2)
ON CONFLICT (dataset_name) DO UPDATE
SET geographic_coverage = EXCLUDED.geographic_coverage`, table)
}

func (c Config) connConfig() (*pgx.ConnConfig, error) {
	if c.Host == "" || c.User == "" || c.Database == "" {
		return nil, catalog.ErrDatabaseNotConfigured
	}
	connCfg, err := pgx.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return connCfg, nil
}

// DSN renders the parameters as a keyword/value connection string. Host may be
// a Cloud SQL unix socket directory.
func (c Config) DSN() string {
	parts := []string{
		"host=" + quoteDSNValue(c.Host),
		"user=" + quoteDSNValue(c.User),
		"password=" + quoteDSNValue(c.Password),
		"dbname=" + quoteDSNValue(c.Database),
	}
	if c.Port > 0 {
		parts = append(parts, "port="+strconv.Itoa(c.Port))
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteDSNValue(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " ")
}

func quoteDSNValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
