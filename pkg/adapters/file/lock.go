package file

import (
	"context"
	"errors"
	"os"
)

// Lock creates the lock marker for id with O_EXCL, which succeeds for exactly one
// caller across every process sharing the directory.
func (s *Store) Lock(ctx context.Context, id string) bool {
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		s.logger.Warn("Failed to ensure session directory", "session_id", id, "err", err)
		return false
	}

	f, err := os.OpenFile(s.lockPath(id), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			s.logger.Warn("Failed to create lock marker", "session_id", id, "err", err)
		}
		return false
	}
	// The holder id is informational only; any handle may unlock.
	if _, err := f.WriteString(s.instanceID); err != nil {
		s.logger.Debug("Failed to write lock holder", "session_id", id, "err", err)
	}
	if err := f.Close(); err != nil {
		s.logger.Debug("Failed to close lock marker", "session_id", id, "err", err)
	}
	return true
}

// Unlock removes the lock marker for id if present.
func (s *Store) Unlock(ctx context.Context, id string) {
	err := os.Remove(s.lockPath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove lock marker", "session_id", id, "err", err)
	}
}

// LockHolder returns the instance id recorded in the lock marker for id.
func (s *Store) LockHolder(id string) (string, bool) {
	data, err := os.ReadFile(s.lockPath(id))
	if err != nil {
		return "", false
	}
	return string(data), true
}
