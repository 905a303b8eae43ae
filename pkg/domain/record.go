package domain

import "time"

// Record is a stored session payload and the moment it was last written.
type Record struct {
	ID        string
	Payload   []byte
	WrittenAt time.Time
}

// Stale reports whether the record was written at or before cutoff.
func (r Record) Stale(cutoff time.Time) bool {
	return !r.WrittenAt.After(cutoff)
}

// Cutoff returns the sweep boundary for maxAge relative to now.
// Negative ages are treated as zero.
func Cutoff(now time.Time, maxAge time.Duration) time.Time {
	if maxAge < 0 {
		maxAge = 0
	}
	return now.Add(-maxAge)
}

// ValidateID rejects identifiers that cannot name a session.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidIdentifier
	}
	return nil
}
