// Package session holds the client-side session token and the local editing
// state (active color, merge source) shared by the dispatcher and readers.
package session

import (
	"errors"
	"sync"
)

// ErrNoSession is returned by operations that need a session before one has
// been created.
var ErrNoSession = errors.New("no active session")

// Handle is the explicit session context. The zero value has no session,
// active color index 0 and no merge source.
//
// Handle is safe for concurrent use.
type Handle struct {
	mu          sync.RWMutex
	id          string
	activeColor int
	mergeSource int
	hasSource   bool
}

// New returns an empty Handle.
func New() *Handle {
	return &Handle{}
}

// ID returns the current session token, or "" when none exists.
func (h *Handle) ID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id
}

// Current returns the session token and whether one exists.
func (h *Handle) Current() (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.id, h.id != ""
}

// HasSession reports whether a session token is held.
func (h *Handle) HasSession() bool {
	_, ok := h.Current()
	return ok
}

// SetID replaces the active session. The previous session is abandoned
// without notifying the backend.
func (h *Handle) SetID(id string) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

// ActiveColorIndex returns the palette index used for painting.
func (h *Handle) ActiveColorIndex() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeColor
}

// SetActiveColorIndex selects the color used by subsequent paint calls.
// The index is not checked against the palette.
func (h *Handle) SetActiveColorIndex(i int) {
	h.mu.Lock()
	h.activeColor = i
	h.mu.Unlock()
}

// PickMergeSource records i as the source of a pending merge.
func (h *Handle) PickMergeSource(i int) {
	h.mu.Lock()
	h.mergeSource = i
	h.hasSource = true
	h.mu.Unlock()
}

// MergeSource returns the picked merge source, if any.
func (h *Handle) MergeSource() (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mergeSource, h.hasSource
}

// ClearMergeSource forgets the pending merge source.
func (h *Handle) ClearMergeSource() {
	h.mu.Lock()
	h.mergeSource = 0
	h.hasSource = false
	h.mu.Unlock()
}

// Snapshot is a point-in-time copy of the handle.
type Snapshot struct {
	ID               string
	ActiveColorIndex int
	MergeSource      int
	HasMergeSource   bool
}

// Snapshot returns a consistent copy of all fields.
func (h *Handle) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Snapshot{
		ID:               h.id,
		ActiveColorIndex: h.activeColor,
		MergeSource:      h.mergeSource,
		HasMergeSource:   h.hasSource,
	}
}
