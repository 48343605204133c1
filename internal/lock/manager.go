// Package lock provides short-lived advisory range locks over session
// documents. Locks are process-local, owned by the one coordinator instance
// that constructed the Manager; they narrow the window for overlapping edits
// but do not eliminate it. Horizontal scaling would require backing this with
// an external mutual-exclusion service.
package lock

import (
	"codepair/internal/model"
	"sync"
	"time"
)

// TTL is how long a granted lock stays valid. Expiry is checked lazily on the
// next acquisition touching the session; there is no background sweep.
const TTL = 1500 * time.Millisecond

type entry struct {
	userID    string
	r         model.Range
	expiresAt time.Time
}

// Result reports a one-shot acquisition attempt. There is no queueing: a
// rejected attempt fails fast with the holder's id.
type Result struct {
	Granted  bool
	LockedBy string
}

type Manager struct {
	mu    sync.Mutex
	locks map[string][]entry
}

func NewManager() *Manager {
	return &Manager{
		locks: make(map[string][]entry),
	}
}

// Acquire attempts to claim r for userID. A nil range is always granted:
// cursor and selection operations need no lock. A different user holding a
// live overlapping lock rejects the attempt; the caller's own overlapping
// entries are replaced.
func (m *Manager) Acquire(sessionID, userID string, r *model.Range, now time.Time) Result {
	if r == nil {
		return Result{Granted: true}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]entry, 0, len(m.locks[sessionID]))
	for _, e := range m.locks[sessionID] {
		if !now.Before(e.expiresAt) {
			continue
		}
		if e.userID != userID && e.r.Overlaps(*r) {
			// Rejection leaves the lock list untouched; expired entries
			// get reaped on the next successful pass.
			return Result{Granted: false, LockedBy: e.userID}
		}
		if e.userID == userID && e.r.Overlaps(*r) {
			// Same user re-acquiring replaces their prior claim.
			continue
		}
		kept = append(kept, e)
	}

	m.locks[sessionID] = append(kept, entry{
		userID:    userID,
		r:         *r,
		expiresAt: now.Add(TTL),
	})
	return Result{Granted: true}
}

// Release removes the caller's entries matching r, after the guarded
// operation completes (success or failure alike).
func (m *Manager) Release(sessionID, userID string, r *model.Range) {
	if r == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.locks[sessionID][:0]
	for _, e := range m.locks[sessionID] {
		if e.userID == userID && e.r == *r {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(m.locks, sessionID)
		return
	}
	m.locks[sessionID] = kept
}
