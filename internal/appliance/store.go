package appliance

import "sync/atomic"

// Store holds the current status snapshot. The session receive path is the
// only writer; readers get whole snapshots and never observe partial updates.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// Publish installs snap unless it carries the same fingerprint as the current
// snapshot. It reports whether the snapshot changed.
func (s *Store) Publish(snap *Snapshot) bool {
	prev := s.current.Load()
	if prev != nil && prev.Fingerprint == snap.Fingerprint {
		return false
	}
	s.current.Store(snap)
	return true
}

// Current returns the latest snapshot, or nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Clear drops the current snapshot.
func (s *Store) Clear() {
	s.current.Store(nil)
}
