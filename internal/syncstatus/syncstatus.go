// Package syncstatus tracks the process-wide write indicator and the permission banner.
package syncstatus

import (
	"sync"
	"time"
)

type Status string

const (
	Idle    Status = "idle"
	Syncing Status = "syncing"
	Success Status = "success"
	Error   Status = "error"
)

// State is what the sync toast and the permission banner render.
type State struct {
	Status Status `json:"status"`
	// LastError is the message of the most recent failed write while Status is Error.
	LastError string `json:"lastError,omitempty"`
	// PermissionDenied stays set until DismissBanner is called.
	PermissionDenied bool `json:"permissionDenied"`
}

// Hub is the observable sync state. Concurrent writes coalesce: the status is Syncing while any
// write is in flight, and once the last one ends it becomes Error if any of them failed, otherwise
// Success. Both return to Idle after their reset delay.
type Hub struct {
	successDelay time.Duration
	errorDelay   time.Duration

	mu          sync.Mutex
	state       State
	inFlight    int
	failed      bool
	generation  int
	resetTimer  *time.Timer
	subscribers map[int]func(State)
	nextID      int

	// publishLock serializes deliveries so subscribers see states in order.
	publishLock sync.Mutex
}

func New(successDelay, errorDelay time.Duration) *Hub {
	return &Hub{
		successDelay: successDelay,
		errorDelay:   errorDelay,
		state:        State{Status: Idle},
		subscribers:  make(map[int]func(State)),
	}
}

// Subscribe calls fn with the current state and on every change until the returned func is
// called. fn must not call the Hub's publishing methods.
func (h *Hub) Subscribe(fn func(State)) (unsubscribe func()) {
	h.publishLock.Lock()
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	state := h.state
	h.mu.Unlock()
	fn(state)
	h.publishLock.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subscribers, id)
	}
}

// State returns the current state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Begin marks the start of a write.
func (h *Hub) Begin() {
	h.mu.Lock()
	if h.inFlight == 0 {
		h.failed = false
		h.state.LastError = ""
	}
	h.inFlight++
	h.generation++
	h.stopTimer()
	h.state.Status = Syncing
	h.mu.Unlock()

	h.publish()
}

// End marks the end of a write started with Begin. err is the write's result.
func (h *Hub) End(err error) {
	h.mu.Lock()
	if h.inFlight > 0 {
		h.inFlight--
	}
	if err != nil {
		h.failed = true
		h.state.LastError = err.Error()
	}
	if h.inFlight > 0 {
		h.mu.Unlock()
		return
	}

	delay := h.successDelay
	h.state.Status = Success
	if h.failed {
		delay = h.errorDelay
		h.state.Status = Error
	}
	h.generation++
	generation := h.generation
	h.stopTimer()
	h.resetTimer = time.AfterFunc(delay, func() { h.resetToIdle(generation) })
	h.mu.Unlock()

	h.publish()
}

// PermissionDenied raises the persistent permission banner.
func (h *Hub) PermissionDenied() {
	h.mu.Lock()
	changed := !h.state.PermissionDenied
	h.state.PermissionDenied = true
	h.mu.Unlock()

	if changed {
		h.publish()
	}
}

// DismissBanner clears the permission banner.
func (h *Hub) DismissBanner() {
	h.mu.Lock()
	changed := h.state.PermissionDenied
	h.state.PermissionDenied = false
	h.mu.Unlock()

	if changed {
		h.publish()
	}
}

// Close stops any pending reset.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopTimer()
}

func (h *Hub) resetToIdle(generation int) {
	h.mu.Lock()
	if generation != h.generation {
		h.mu.Unlock()
		return
	}
	h.state.Status = Idle
	h.state.LastError = ""
	h.mu.Unlock()

	h.publish()
}

// stopTimer must be called with mu held.
func (h *Hub) stopTimer() {
	if h.resetTimer != nil {
		h.resetTimer.Stop()
		h.resetTimer = nil
	}
}

func (h *Hub) publish() {
	h.publishLock.Lock()
	defer h.publishLock.Unlock()

	h.mu.Lock()
	state := h.state
	subscribers := make([]func(State), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		subscribers = append(subscribers, fn)
	}
	h.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}
