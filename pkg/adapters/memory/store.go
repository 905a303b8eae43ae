package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/domain"
)

// Medium is the shared state behind one or more Stores: the record mapping and the lock set.
// Safe for concurrent use. Operations on distinct identifiers do not contend.
type Medium struct {
	records sync.Map // string -> *domain.Record, never mutated once stored
	locks   sync.Map // string -> struct{}
}

// NewMedium creates an empty medium.
func NewMedium() *Medium {
	return &Medium{}
}

// Len returns the number of stored records.
func (m *Medium) Len() int {
	n := 0
	m.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Store implements ports.StorageProvider over a Medium.
// Every Store created on the same Medium observes the same records and locks.
type Store struct {
	medium *Medium
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp writes and compute sweep cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store on medium. A nil medium gets a private one.
func NewStore(medium *Medium, opts ...Option) *Store {
	if medium == nil {
		medium = NewMedium()
	}
	s := &Store{
		medium: medium,
		now:    time.Now,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Medium returns the shared medium backing the store.
func (s *Store) Medium() *Medium {
	return s.medium
}

// Save stores a private copy of payload stamped with the current time.
// The stored payload is the one of the last save to land.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	if err := domain.ValidateID(id); err != nil {
		return err
	}
	data := append([]byte(nil), payload...)

	// WrittenAt never moves backwards for an id, whatever order concurrent saves read the clock in.
	for {
		prev, loaded := s.medium.records.Load(id)
		rec := &domain.Record{ID: id, Payload: data, WrittenAt: s.now()}
		if !loaded {
			if _, raced := s.medium.records.LoadOrStore(id, rec); !raced {
				return nil
			}
			continue
		}
		if last := prev.(*domain.Record).WrittenAt; last.After(rec.WrittenAt) {
			rec.WrittenAt = last
		}
		if s.medium.records.CompareAndSwap(id, prev, rec) {
			return nil
		}
	}
}

// Get returns a copy of the stored payload.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	v, ok := s.medium.records.Load(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	rec := v.(*domain.Record)
	return append([]byte(nil), rec.Payload...), nil
}

// SessionExists reports whether a record is stored for id.
func (s *Store) SessionExists(ctx context.Context, id string) bool {
	_, ok := s.medium.records.Load(id)
	return ok
}

// Lock adds id to the lock set if absent.
func (s *Store) Lock(ctx context.Context, id string) bool {
	_, loaded := s.medium.locks.LoadOrStore(id, struct{}{})
	if loaded {
		s.logger.Debug("Session already locked", "session_id", id)
	}
	return !loaded
}

// Unlock removes id from the lock set.
func (s *Store) Unlock(ctx context.Context, id string) {
	s.medium.locks.Delete(id)
}

// Destroy removes the record for id. The lock set is left untouched.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if _, ok := s.medium.records.LoadAndDelete(id); !ok {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ClearOld removes records written at or before now-maxAge.
func (s *Store) ClearOld(ctx context.Context, maxAge time.Duration) error {
	_, err := s.Sweep(ctx, maxAge)
	return err
}

// Sweep is ClearOld returning the number of records removed.
// A record re-saved while the sweep runs is compared by identity and survives.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := domain.Cutoff(s.now(), maxAge)

	removed := 0
	s.medium.records.Range(func(key, value any) bool {
		if !value.(*domain.Record).Stale(cutoff) {
			return true
		}
		if s.medium.records.CompareAndDelete(key, value) {
			removed++
		}
		return true
	})

	if removed > 0 {
		s.logger.Debug("Swept stale sessions", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
