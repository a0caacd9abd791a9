package refdata

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/kybradar/kybradar/helper"
)

// PostgresStore keeps reference documents in a Postgres table, one row per
// named document. It implements DocumentStore for deployments where the
// reference data is managed centrally rather than shipped as files.
type PostgresStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPostgresStore connects to databaseURL and ensures the documents table
// exists.
func NewPostgresStore(databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, helper.NewError("open reference database", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, helper.NewError("ping reference database", err)
	}

	store := &PostgresStore{db: db, log: logger}
	if err := store.createTable(ctx); err != nil {
		return nil, helper.NewError("create reference documents table", err)
	}

	logger.Info("Initialized Postgres reference store")
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kyb_reference_documents (
			name TEXT PRIMARY KEY,
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Load returns the named document body.
func (s *PostgresStore) Load(name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(
		`SELECT body FROM kyb_reference_documents WHERE name = $1`, name,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError(fmt.Sprintf("select document %s", name), err)
	}
	return body, nil
}

// Upsert stores or replaces a named document.
func (s *PostgresStore) Upsert(name string, body []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kyb_reference_documents (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		name, body)
	if err != nil {
		return helper.NewError(fmt.Sprintf("upsert document %s", name), err)
	}
	return nil
}

// SeedFromEmbedded copies the embedded default documents into the table for
// any name not already present.
func (s *PostgresStore) SeedFromEmbedded() error {
	names := []string{DocCRM, DocParties, DocTransactions, DocCompanies, DocNews, DocRules}
	files := NewFileStore("")
	for _, name := range names {
		if _, err := s.Load(name); err == nil {
			continue
		}
		body, err := files.Load(name)
		if err != nil {
			return err
		}
		if err := s.Upsert(name, body); err != nil {
			return err
		}
		s.log.Info("Seeded reference document", slog.String("name", name))
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
