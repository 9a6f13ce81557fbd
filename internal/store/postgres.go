package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const createStatusTable = `CREATE TABLE IF NOT EXISTS import_status (
	step VARCHAR PRIMARY KEY,
	run_id VARCHAR,
	started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
	finished_at TIMESTAMP WITH TIME ZONE
)`

// PostgresStore keeps step records in the import_status table of the target database,
// next to the data the steps load.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid postgres dsn")
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, createStatusTable)
	if err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "unable to create import_status table")
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Record, error) {
	rec := Record{Name: name}

	var (
		runID    sql.NullString
		finished pq.NullTime
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, finished_at FROM import_status WHERE step = $1`, name,
	).Scan(&runID, &rec.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errors.Wrap(ErrRecordNotFound, name)
	}

	if err != nil {
		return Record{}, errors.Wrapf(err, "querying %s", name)
	}

	rec.RunID = runID.String
	if finished.Valid {
		ts := finished.Time
		rec.FinishedAt = &ts
	}

	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	if rec.Name == "" {
		return ErrEmptyStepName
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO import_status (step, run_id, started_at, finished_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (step) DO UPDATE
		SET run_id = EXCLUDED.run_id, started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at`,
		rec.Name, sql.NullString{String: rec.RunID, Valid: rec.RunID != ""}, rec.StartedAt, rec.FinishedAt)

	return errors.Wrapf(err, "upserting %s", rec.Name)
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM import_status WHERE step = $1`, name)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", name)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "deleting %s", name)
	}

	if n == 0 {
		return errors.Wrap(ErrRecordNotFound, name)
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, run_id, started_at, finished_at FROM import_status ORDER BY step`)
	if err != nil {
		return nil, errors.Wrap(err, "querying import_status")
	}
	defer rows.Close()

	var res []Record

	for rows.Next() {
		var (
			rec      Record
			runID    sql.NullString
			finished pq.NullTime
		)

		err := rows.Scan(&rec.Name, &runID, &rec.StartedAt, &finished)
		if err != nil {
			return nil, errors.Wrap(err, "scanning import_status")
		}

		rec.RunID = runID.String
		if finished.Valid {
			ts := finished.Time
			rec.FinishedAt = &ts
		}

		res = append(res, rec)
	}

	return res, errors.Wrap(rows.Err(), "iterating import_status")
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
