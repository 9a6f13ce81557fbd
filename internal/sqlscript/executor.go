package sqlscript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrChunkFailed = errors.New("sql chunk failed")

// ChunkError reports the chunk that stopped a staged run.
type ChunkError struct {
	Err    error
	Script string
	Label  string
	Index  int
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: chunk %d (%s) failed: %v", e.Script, e.Index, e.Label, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

func (e *ChunkError) Is(target error) bool {
	return target == ErrChunkFailed //nolint:errorlint // sentinel comparison
}

// Conn executes the SQL of one chunk, in its own transaction when inTx is set.
type Conn interface {
	Exec(ctx context.Context, query string, inTx bool) error
}

// Result summarises a staged run.
type Result struct {
	Executed  int
	Tolerated int
}

type Executor struct {
	conn   Conn
	logger logrus.FieldLogger
}

func NewExecutor(conn Conn, logger logrus.FieldLogger) *Executor {
	return &Executor{conn: conn, logger: logger}
}

// Run executes every chunk in order. A chunk failing with a condition it allows is logged and
// the run goes on; any other failure stops the run, earlier chunks staying applied.
func (e *Executor) Run(ctx context.Context, script *Script) (Result, error) {
	var res Result

	for idx, chunk := range script.Chunks {
		log := e.logger.WithFields(logrus.Fields{"script": script.Name, "chunk": chunk.Label})
		log.Infof("running chunk %d/%d: %s", idx+1, len(script.Chunks), chunk.Label)

		start := time.Now()

		err := e.conn.Exec(ctx, chunk.SQL, chunk.Transaction)
		if err != nil {
			if cond, ok := allowed(err, chunk.Allowed); ok {
				log.WithError(err).Warnf("chunk %s failed with allowed condition %s", chunk.Label, cond)

				res.Tolerated++

				continue
			}

			return res, &ChunkError{Err: err, Script: script.Name, Label: chunk.Label, Index: idx}
		}

		res.Executed++

		log.Infof("chunk %s finished in %s", chunk.Label, time.Since(start).Round(time.Millisecond))
	}

	return res, nil
}

func allowed(err error, conditions []string) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", false
	}

	for _, cond := range conditions {
		if cond == pqErr.Code.Name() || cond == string(pqErr.Code) {
			return cond, true
		}
	}

	return "", false
}

// DBConn runs chunks through a database/sql connection pool backed by lib/pq.
type DBConn struct {
	db *sql.DB
}

func OpenDB(dsn string) (*DBConn, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres dsn")
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	return &DBConn{db: db}, nil
}

func (c *DBConn) Exec(ctx context.Context, query string, inTx bool) error {
	if !inTx {
		_, err := c.db.ExecContext(ctx, query)

		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}

	_, err = tx.ExecContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()

		return err
	}

	return errors.Wrap(tx.Commit(), "unable to commit")
}

func (c *DBConn) Close() error {
	return c.db.Close()
}

var _ Conn = (*DBConn)(nil)
