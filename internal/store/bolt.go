package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var stepsBucket = []byte("steps")

// BoltStore keeps step records in a local bbolt file.
type BoltStore struct {
	db   *bolt.DB
	path string
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}

	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(stepsBucket)

		return errors.Wrapf(err, "creating bucket: %s", stepsBucket)
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

func (s *BoltStore) Get(_ context.Context, name string) (Record, error) {
	var rec Record

	err := s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(stepsBucket).Get([]byte(name))
		if val == nil {
			return errors.Wrap(ErrRecordNotFound, name)
		}

		return errors.Wrapf(json.Unmarshal(val, &rec), "decoding record %s", name)
	})

	return rec, err
}

func (s *BoltStore) Put(_ context.Context, rec Record) error {
	if rec.Name == "" {
		return ErrEmptyStepName
	}

	val, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encoding record %s", rec.Name)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(stepsBucket).Put([]byte(rec.Name), val)
	})
}

func (s *BoltStore) Delete(_ context.Context, name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(stepsBucket)
		if bkt.Get([]byte(name)) == nil {
			return errors.Wrap(ErrRecordNotFound, name)
		}

		return bkt.Delete([]byte(name))
	})
}

func (s *BoltStore) List(_ context.Context) ([]Record, error) {
	var res []Record

	err := s.db.View(func(tx *bolt.Tx) error {
		// bolt iterates keys in byte order, which is the order List promises.
		return tx.Bucket(stepsBucket).ForEach(func(key, val []byte) error {
			var rec Record
			if err := json.Unmarshal(val, &rec); err != nil {
				return errors.Wrapf(err, "decoding record %s", key)
			}
			res = append(res, rec)

			return nil
		})
	})

	return res, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

var _ Store = (*BoltStore)(nil)
