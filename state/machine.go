// Package state tracks the connection lifecycle of a chat client as a
// finite-state machine with a fixed transition table. External layers
// subscribe to transitions to render connection status reactively.
package state

import (
	"log/slog"
	"sync"
	"time"
)

// State is one of the connection lifecycle states.
type State string

const (
	Idle       State = "idle"
	Connecting State = "connecting"
	Connected  State = "connected"
	Chatting   State = "chatting"
	Error      State = "error"
	Closed     State = "closed"
)

// transitions is the fixed adjacency table. A transition not listed here is
// rejected. Closed is not terminal; it can re-enter Idle or Connecting.
var transitions = map[State][]State{
	Idle:       {Connecting, Closed},
	Connecting: {Connected, Error, Closed},
	Connected:  {Chatting, Closed, Error},
	Chatting:   {Connected, Closed, Error},
	Error:      {Connecting, Closed, Idle},
	Closed:     {Idle, Connecting},
}

// Change describes one accepted transition.
type Change struct {
	From      State
	To        State
	Timestamp time.Time
}

// Listener receives state changes. Listeners are invoked synchronously and
// serially by the goroutine calling Transition; a long-running listener
// blocks the caller.
type Listener func(Change)

// Machine is a connection-lifecycle state machine. It is safe for concurrent
// use.
type Machine struct {
	mu        sync.Mutex
	current   State
	listeners map[int]Listener
	nextID    int
	log       *slog.Logger
}

// NewMachine creates a machine in the Idle state.
func NewMachine() *Machine {
	return NewMachineAt(Idle)
}

// NewMachineAt creates a machine starting in the given state.
func NewMachineAt(initial State) *Machine {
	return &Machine{
		current:   initial,
		listeners: make(map[int]Listener),
		log:       slog.Default(),
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Is reports whether the machine is in the given state.
func (m *Machine) Is(s State) bool {
	return m.Current() == s
}

// Transition attempts to move to the given state. If the move is not in the
// transition table the state is unchanged, a warning is logged, and false is
// returned. On success all listeners are notified before Transition returns.
func (m *Machine) Transition(to State) bool {
	m.mu.Lock()
	from := m.current
	if !allowed(from, to) {
		m.mu.Unlock()
		m.log.Warn("invalid state transition", "from", from, "to", to)
		return false
	}
	m.current = to
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	change := Change{From: from, To: to, Timestamp: time.Now()}
	for _, fn := range fns {
		m.notify(fn, change)
	}
	return true
}

// notify invokes one listener, isolating panics so a failing listener cannot
// prevent the others from running.
func (m *Machine) notify(fn Listener, change Change) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("state listener panicked", "from", change.From, "to", change.To, "panic", r)
		}
	}()
	fn(change)
}

// On registers a listener for state changes and returns a function that
// removes exactly that listener.
func (m *Machine) On(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Destroy drops all listeners. The machine remains usable; new listeners can
// be registered afterwards.
func (m *Machine) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = make(map[int]Listener)
}

func allowed(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
