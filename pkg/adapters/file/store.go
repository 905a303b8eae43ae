package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/sessionvault/internal/logging"
	"github.com/aretw0/sessionvault/pkg/domain"
	"github.com/google/uuid"
)

const (
	sessionExt    = ".session"
	lockExt       = ".lock"
	sweepLockName = ".sweep.lock"

	sweepLockPoll = 10 * time.Millisecond

	// Identifiers longer than this are stored under a digest of the identifier.
	maxPlainKeyLen = 100
)

// envelope is the on-disk representation of a session record.
type envelope struct {
	ID        string    `json:"id"`
	Payload   []byte    `json:"payload"`
	WrittenAt time.Time `json:"written_at"`
}

// Store implements ports.StorageProvider using the local filesystem.
// Each session is a JSON file in BasePath; each lock is a marker file next to it.
// Stores sharing a BasePath, in this or other processes, share records and locks.
type Store struct {
	BasePath string

	instanceID string
	now        func() time.Time
	logger     *slog.Logger

	// sweepHook runs at fixed points of a sweep; tests use it to interleave saves.
	sweepHook func(stage string)
}

const (
	hookChecked = "checked"
	hookClaimed = "claimed"
)

func (s *Store) hook(stage string) {
	if s.sweepHook != nil {
		s.sweepHook(stage)
	}
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

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".sessionvault/sessions".
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".sessionvault", "sessions")
	}
	s := &Store{
		BasePath:   basePath,
		instanceID: uuid.NewString(),
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstanceID identifies this handle in the lock markers it creates.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// key maps an identifier to a filesystem-safe name. Hex keeps names valid on
// case-insensitive filesystems.
func key(id string) string {
	if len(id) > maxPlainKeyLen {
		sum := sha256.Sum256([]byte(id))
		return "~" + hex.EncodeToString(sum[:])
	}
	return hex.EncodeToString([]byte(id))
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.BasePath, key(id)+sessionExt)
}

func (s *Store) lockPath(id string) string {
	return filepath.Join(s.BasePath, key(id)+lockExt)
}

// Save persists the session atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, id string, payload []byte) error {
	if err := domain.ValidateID(id); err != nil {
		return err
	}

	data, err := json.Marshal(envelope{ID: id, Payload: payload, WrittenAt: s.now()})
	if err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to marshal session: %w", err))
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to ensure session directory: %w", err))
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, ".tmp-*")
	if err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := tmpFile.Sync(); err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to fsync temp file: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to close temp file: %w", err))
	}

	if err := os.Rename(tmpPath, s.sessionPath(id)); err != nil {
		return domain.NewStorageError(domain.OpWrite, id, fmt.Errorf("failed to rename temp file: %w", err))
	}
	return nil
}

// Get retrieves the session payload.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	env, err := s.read(s.sessionPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, domain.NewStorageError(domain.OpRead, id, err)
	}
	if env.ID != id {
		return nil, domain.NewStorageError(domain.OpRead, id, fmt.Errorf("session file belongs to %q", env.ID))
	}
	return env.Payload, nil
}

func (s *Store) read(path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	return &env, nil
}

// SessionExists reports whether the session file is present.
func (s *Store) SessionExists(ctx context.Context, id string) bool {
	_, err := os.Stat(s.sessionPath(id))
	if err == nil {
		return true
	}
	if !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to stat session file", "session_id", id, "err", err)
	}
	return false
}

// Destroy removes the session file. The lock marker, if any, is kept.
func (s *Store) Destroy(ctx context.Context, id string) error {
	err := os.Remove(s.sessionPath(id))
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return domain.ErrSessionNotFound
	}
	return domain.NewStorageError(domain.OpDelete, id, fmt.Errorf("failed to delete session file: %w", err))
}

// ClearOld removes sessions written at or before now-maxAge.
func (s *Store) ClearOld(ctx context.Context, maxAge time.Duration) error {
	_, err := s.Sweep(ctx, maxAge)
	return err
}

// Sweep is ClearOld returning the number of sessions removed.
// Only one sweep per directory runs at a time across processes. A sweep that finds
// another one in progress waits for it until ctx is done.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := domain.Cutoff(s.now(), maxAge)

	if _, err := os.Stat(s.BasePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.NewStorageError(domain.OpDelete, "", fmt.Errorf("failed to stat session directory: %w", err))
	}

	guard, err := s.waitSweepLock(ctx)
	if err != nil {
		return 0, domain.NewStorageError(domain.OpDelete, "", err)
	}
	defer func() {
		if err := releaseSweepLock(guard); err != nil {
			s.logger.Warn("Failed to release sweep lock", "err", err)
		}
	}()

	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		return 0, domain.NewStorageError(domain.OpDelete, "", fmt.Errorf("failed to list sessions: %w", err))
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}

		ok, err := s.collect(name, cutoff)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}

	if len(errs) > 0 {
		return removed, domain.NewStorageError(domain.OpDelete, "", errors.Join(errs...))
	}
	if removed > 0 {
		s.logger.Debug("Swept stale sessions", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// waitSweepLock polls the directory's sweep lock until it is acquired or ctx is done.
func (s *Store) waitSweepLock(ctx context.Context) (*os.File, error) {
	path := filepath.Join(s.BasePath, sweepLockName)
	guard, err := acquireSweepLock(path)
	if !errors.Is(err, errWouldBlock) {
		return guard, err
	}

	s.logger.Debug("Sweep already running, waiting", "dir", s.BasePath)
	ticker := time.NewTicker(sweepLockPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", errWouldBlock, ctx.Err())
		case <-ticker.C:
			guard, err = acquireSweepLock(path)
			if !errors.Is(err, errWouldBlock) {
				return guard, err
			}
		}
	}
}

// writtenAt reads the write time of a session file. Files that cannot be decoded
// fall back to their modification time so they still age out.
func (s *Store) writtenAt(path string) (time.Time, error) {
	env, err := s.read(path)
	if err == nil {
		return env.WrittenAt, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, err
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		return time.Time{}, statErr
	}
	s.logger.Warn("Unreadable session file, using modification time", "file", filepath.Base(path), "err", err)
	return info.ModTime(), nil
}

// collect removes the session file name if it is still stale.
//
// The file is first renamed to a private name and checked again there, so a save
// that replaced it after the first check is never deleted. A fresh file is linked
// back unless a newer save already took its place.
func (s *Store) collect(name string, cutoff time.Time) (bool, error) {
	path := filepath.Join(s.BasePath, name)

	at, err := s.writtenAt(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect %s: %w", name, err)
	}
	if at.After(cutoff) {
		return false, nil
	}
	s.hook(hookChecked)

	private := filepath.Join(s.BasePath, ".sweep-"+uuid.NewString())
	if err := os.Rename(path, private); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim %s: %w", name, err)
	}
	s.hook(hookClaimed)

	at, err = s.writtenAt(private)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", name, err)
	}
	if !at.After(cutoff) {
		if err := os.Remove(private); err != nil {
			return false, fmt.Errorf("failed to delete %s: %w", name, err)
		}
		return true, nil
	}

	// A fresh save slipped in between the two checks.
	if err := os.Link(private, path); err != nil && !errors.Is(err, os.ErrExist) {
		return false, fmt.Errorf("failed to restore %s: %w", name, err)
	}
	if err := os.Remove(private); err != nil {
		s.logger.Warn("Failed to remove sweep claim", "file", filepath.Base(private), "err", err)
	}
	return false, nil
}
