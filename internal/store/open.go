package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// Open returns the store matching the dsn scheme:
//
//	postgres://... or postgresql://...  import_status table in PostgreSQL
//	file:<path>                        local bbolt file
//	mem:                               in-memory, lost on exit
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgresStore(ctx, dsn)
	case strings.HasPrefix(dsn, "file:"):
		path := strings.TrimPrefix(dsn, "file:")
		if path == "" {
			return nil, errors.Wrap(ErrUnsupportedDSN, "file: dsn needs a path")
		}

		return OpenBoltStore(path)
	case dsn == "mem:":
		return NewMemoryStore(), nil
	default:
		return nil, errors.Wrap(ErrUnsupportedDSN, dsn)
	}
}
