// Package store persists the transcript registry in DuckDB or SQLite.
// All statements are portable between the two engines.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

// Supported database drivers.
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite3"
)

// DefaultBatchSize is the number of rows per multi-row INSERT.
const DefaultBatchSize = 10000

// Store manages a registry database connection.
type Store struct {
	db        *sql.DB
	driver    string
	path      string
	batchSize int
	logger    *zap.Logger
}

// Open opens or creates a registry database at the given path.
// Use an empty string for an in-memory database.
func Open(driver, path string) (*Store, error) {
	dsn := path
	switch driver {
	case DriverDuckDB:
	case DriverSQLite:
		if path == "" {
			dsn = ":memory:"
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q (want %s or %s)", driver, DriverDuckDB, DriverSQLite)
	}

	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// Every pooled connection to :memory: would be a separate database.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver, path: path, batchSize: DefaultBatchSize, logger: zap.NewNop()}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database driver name.
func (s *Store) Driver() string {
	return s.driver
}

// SetBatchSize sets the number of rows per INSERT statement.
func (s *Store) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

// SetLogger sets the logger for flush progress.
func (s *Store) SetLogger(l *zap.Logger) {
	s.logger = l
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS counters (
		category VARCHAR NOT NULL,
		counter_value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS genome_builds (
		name VARCHAR PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS genes (
		gene_id BIGINT PRIMARY KEY,
		chromosome VARCHAR NOT NULL,
		strand VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transcripts (
		transcript_id BIGINT PRIMARY KEY,
		gene_id BIGINT NOT NULL,
		path VARCHAR NOT NULL,
		start_vertex BIGINT NOT NULL,
		end_vertex BIGINT NOT NULL,
		n_exons INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		edge_id BIGINT PRIMARY KEY,
		v1 BIGINT NOT NULL,
		v2 BIGINT NOT NULL,
		edge_type VARCHAR NOT NULL,
		strand VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vertices (
		vertex_id BIGINT PRIMARY KEY,
		gene_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS locations (
		location_id BIGINT NOT NULL,
		genome_build VARCHAR NOT NULL,
		chromosome VARCHAR NOT NULL,
		pos BIGINT NOT NULL,
		strand VARCHAR NOT NULL,
		PRIMARY KEY (location_id, genome_build)
	)`,
	`CREATE TABLE IF NOT EXISTS observed (
		obs_id BIGINT PRIMARY KEY,
		gene_id BIGINT NOT NULL,
		transcript_id BIGINT NOT NULL,
		read_name VARCHAR NOT NULL,
		dataset BIGINT NOT NULL,
		start_vertex BIGINT NOT NULL,
		end_vertex BIGINT NOT NULL,
		diff_5 BIGINT NOT NULL,
		diff_3 BIGINT NOT NULL,
		read_length BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS datasets (
		dataset_id BIGINT PRIMARY KEY,
		dataset_name VARCHAR NOT NULL UNIQUE,
		sample VARCHAR,
		platform VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS abundance (
		transcript_id BIGINT NOT NULL,
		dataset BIGINT NOT NULL,
		total BIGINT NOT NULL,
		PRIMARY KEY (transcript_id, dataset)
	)`,
	annotationTable("gene_annotations"),
	annotationTable("transcript_annotations"),
	annotationTable("exon_annotations"),
}

func annotationTable(name string) string {
	return `CREATE TABLE IF NOT EXISTS ` + name + ` (
		id BIGINT NOT NULL,
		annot_name VARCHAR NOT NULL,
		source VARCHAR,
		attribute VARCHAR NOT NULL,
		attr_value VARCHAR
	)`
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Builds returns the genome builds registered in the database.
func (s *Store) Builds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM genome_builds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query genome builds: %w", err)
	}
	defer rows.Close()

	var builds []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan genome build: %w", err)
		}
		builds = append(builds, name)
	}
	return builds, rows.Err()
}

// HasBuild reports whether a genome build is registered.
func (s *Store) HasBuild(ctx context.Context, build string) (bool, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM genome_builds WHERE name = ?`, build).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query genome build: %w", err)
	}
	return n > 0, nil
}
