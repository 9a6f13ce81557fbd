// Package pgtest gives tests a PostgreSQL schema of their own.
//
// Tests using it are skipped unless BOOKIMPORT_TEST_DB_URL holds a postgres:// URL, e.g.
//
//	BOOKIMPORT_TEST_DB_URL=postgres://localhost/bookdata_test?sslmode=disable go test ./...
package pgtest

import (
	"context"
	"database/sql"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const EnvDBURL = "BOOKIMPORT_TEST_DB_URL"

// DSN creates an empty schema and returns a URL whose connections use it as search_path.
// The schema is dropped when the test ends.
func DSN(t *testing.T) string {
	t.Helper()

	base := lookupEnv()
	if base == "" {
		t.Skipf("%s not set", EnvDBURL)
	}

	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		t.Fatalf("%s must be a postgres:// URL, got %q", EnvDBURL, base)
	}

	schema := "bookimport_test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	db := open(t, base)
	defer db.Close()

	_, err = db.ExecContext(context.Background(), "CREATE SCHEMA "+pq.QuoteIdentifier(schema))
	if err != nil {
		t.Fatalf("unable to create schema %s: %v", schema, err)
	}

	t.Cleanup(func() {
		db := open(t, base)
		defer db.Close()

		_, err := db.ExecContext(context.Background(), "DROP SCHEMA "+pq.QuoteIdentifier(schema)+" CASCADE")
		if err != nil {
			t.Errorf("unable to drop schema %s: %v", schema, err)
		}
	})

	// lib/pq sends unknown parameters as run-time settings.
	query := u.Query()
	query.Set("search_path", schema)
	u.RawQuery = query.Encode()

	return u.String()
}

func open(t *testing.T, dsn string) *sql.DB {
	t.Helper()

	connector, err := pq.NewConnector(dsn)
	if err != nil {
		t.Fatalf("invalid %s: %v", EnvDBURL, err)
	}

	return sql.OpenDB(connector)
}

func lookupEnv() string {
	return os.Getenv(EnvDBURL)
}
