// Package presence tracks who is active on each board. State lives in
// process memory; a user who stops sending heartbeats drops off the
// roster after the timeout.
package presence

import (
	"sort"
	"sync"
	"time"
)

// Entry describes one user's presence on a board.
type Entry struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Activity    string    `json:"activity"`
	LastSeen    time.Time `json:"last_seen"`
}

// Tracker keeps per-board presence rosters. Concurrent heartbeats for
// the same user resolve last-write-wins.
type Tracker struct {
	mu      sync.RWMutex
	boards  map[string]map[string]Entry
	timeout time.Duration
	done    chan struct{}
	once    sync.Once
	now     func() time.Time
}

// NewTracker creates a tracker that forgets users quiet for longer
// than timeout, sweeping twice per timeout period.
func NewTracker(timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	t := &Tracker{
		boards:  make(map[string]map[string]Entry),
		timeout: timeout,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go t.sweep()
	return t
}

func (t *Tracker) sweep() {
	ticker := time.NewTicker(t.timeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			cutoff := t.now().Add(-t.timeout)
			t.mu.Lock()
			for boardID, roster := range t.boards {
				for userID, entry := range roster {
					if entry.LastSeen.Before(cutoff) {
						delete(roster, userID)
					}
				}
				if len(roster) == 0 {
					delete(t.boards, boardID)
				}
			}
			t.mu.Unlock()
		}
	}
}

// Touch records a heartbeat for the user on the board. An empty
// activity keeps whatever the user last reported.
func (t *Tracker) Touch(boardID, userID, displayName, activity string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	roster := t.boards[boardID]
	if roster == nil {
		roster = make(map[string]Entry)
		t.boards[boardID] = roster
	}
	if activity == "" {
		activity = roster[userID].Activity
	}
	roster[userID] = Entry{
		UserID:      userID,
		DisplayName: displayName,
		Activity:    activity,
		LastSeen:    t.now(),
	}
}

// Leave removes the user from the board roster immediately.
func (t *Tracker) Leave(boardID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	roster := t.boards[boardID]
	delete(roster, userID)
	if len(roster) == 0 {
		delete(t.boards, boardID)
	}
}

// List returns the board's active users ordered by display name, with
// stale entries filtered even if the sweeper has not run yet.
func (t *Tracker) List(boardID string) []Entry {
	cutoff := t.now().Add(-t.timeout)
	t.mu.RLock()
	defer t.mu.RUnlock()
	entries := make([]Entry, 0, len(t.boards[boardID]))
	for _, entry := range t.boards[boardID] {
		if entry.LastSeen.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].DisplayName == entries[j].DisplayName {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return entries
}

// Close stops the background sweep.
func (t *Tracker) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}
