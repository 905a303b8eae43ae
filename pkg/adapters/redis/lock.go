package redis

import "context"

// Lock sets the lock key for id with SET NX. Exactly one concurrent caller wins.
// Redis errors are logged and reported as "not acquired".
func (s *Store) Lock(ctx context.Context, id string) bool {
	ok, err := s.client.SetNX(ctx, s.lockKey(id), s.instanceID, s.lockTTL).Result()
	if err != nil {
		s.logger.Warn("Failed to acquire session lock", "session_id", id, "err", err)
		return false
	}
	return ok
}

// Unlock deletes the lock key for id. Any handle may unlock.
func (s *Store) Unlock(ctx context.Context, id string) {
	if err := s.client.Del(ctx, s.lockKey(id)).Err(); err != nil {
		s.logger.Warn("Failed to release session lock (will expire via TTL if set)",
			"session_id", id,
			"err", err,
		)
	}
}

// LockHolder returns the instance id stored in the lock key for id.
func (s *Store) LockHolder(ctx context.Context, id string) (string, bool) {
	v, err := s.client.Get(ctx, s.lockKey(id)).Result()
	if err != nil {
		return "", false
	}
	return v, true
}
