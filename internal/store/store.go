package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Record is the persisted state of a named import step.
type Record struct {
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Name       string     `json:"name"`
	RunID      string     `json:"run_id,omitempty"`
}

// Completed reports whether the step finished successfully.
func (r Record) Completed() bool {
	return r.FinishedAt != nil
}

// Store persists step records. Implementations assume a single writer at a time.
type Store interface {
	// Get returns ErrRecordNotFound when the step has never been started.
	Get(ctx context.Context, name string) (Record, error)
	// Put creates or replaces the record of a step.
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, name string) error
	// List returns every record sorted by name.
	List(ctx context.Context) ([]Record, error)
	Close() error
}

type MemoryStore struct {
	records map[string]Record
	lock    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
	}
}

func (s *MemoryStore) Get(_ context.Context, name string) (Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	rec, ok := s.records[name]
	if !ok {
		return Record{}, errors.Wrap(ErrRecordNotFound, name)
	}

	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	if rec.Name == "" {
		return ErrEmptyStepName
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.records[rec.Name] = rec

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, name string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.records[name]; !ok {
		return errors.Wrap(ErrRecordNotFound, name)
	}

	delete(s.records, name)

	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		res = append(res, rec)
	}

	sortRecords(res)

	return res, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func sortRecords(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Name < recs[j].Name
	})
}

var _ Store = (*MemoryStore)(nil)
