package pairing

import (
	"log/slog"
	"sync"
	"time"
)

const defaultSubscriberQueue = 16

// Machine is the pairing state machine.
//
// Concurrency guarantees:
//   - all transitions are serialized by mu
//   - Begin refuses a second handshake while one is running
//   - publishing never blocks (slow subscribers miss intermediate snapshots)
type Machine struct {
	log *slog.Logger
	now func() time.Time

	mu        sync.Mutex
	seq       uint64
	state     State
	challenge *Challenge
	renewals  int
	lastErr   string
	updatedAt time.Time

	nextSub uint64
	subs    map[uint64]chan Snapshot
}

// NewMachine returns a machine in StateUnauthenticated.
func NewMachine(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	m := &Machine{
		log:   log,
		now:   time.Now,
		state: StateUnauthenticated,
		subs:  make(map[uint64]chan Snapshot),
	}
	m.updatedAt = m.now().UTC()
	return m
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers an observer. The current snapshot is delivered first.
// The returned cancel func is idempotent.
func (m *Machine) Subscribe(queue int) (<-chan Snapshot, func()) {
	if queue <= 0 {
		queue = defaultSubscriberQueue
	}
	ch := make(chan Snapshot, queue)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snapshotLocked()
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Begin starts a handshake.
func (m *Machine) Begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.Pairing():
		return ErrHandshakeRunning
	case m.state == StateAuthenticated:
		return ErrAlreadyAuthenticated
	}

	m.challenge = nil
	m.renewals = 0
	m.lastErr = ""
	m.transitionLocked(StateAwaitingScan)
	return nil
}

// Challenge records a newly issued pairing code. Every code after the first
// counts as a renewal.
func (m *Machine) Challenge(c Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingScan {
		return TransitionError{From: m.state, Event: "challenge"}
	}
	if m.challenge != nil {
		m.renewals++
	}
	cp := c
	m.challenge = &cp
	m.transitionLocked(StateAwaitingScan)

	m.log.Info("pairing.challenge", "renewals", m.renewals, "expires_at", c.ExpiresAt)
	return nil
}

// PasswordRequested records that the remote side asked for the second factor.
func (m *Machine) PasswordRequested() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Pairing() {
		return TransitionError{From: m.state, Event: "password"}
	}
	m.challenge = nil
	m.transitionLocked(StateAwaitingSecondFactor)

	m.log.Info("pairing.second_factor")
	return nil
}

// Note records a non-fatal protocol error without changing state.
func (m *Machine) Note(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastErr = err.Error()
	m.transitionLocked(m.state)
	m.log.Warn("pairing.error", "state", m.state, "err", err)
}

// Authenticated marks the session usable. It is valid from any state.
func (m *Machine) Authenticated() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.challenge = nil
	m.lastErr = ""
	m.transitionLocked(StateAuthenticated)
}

// Fail aborts the running handshake.
func (m *Machine) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAuthenticated {
		return
	}
	m.challenge = nil
	if err != nil {
		m.lastErr = err.Error()
	}
	m.transitionLocked(StateFailed)
}

func (m *Machine) transitionLocked(next State) {
	m.state = next
	m.seq++
	m.updatedAt = m.now().UTC()

	snap := m.snapshotLocked()
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		Seq:       m.seq,
		State:     m.state,
		Renewals:  m.renewals,
		Err:       m.lastErr,
		UpdatedAt: m.updatedAt,
	}
	if m.challenge != nil {
		cp := *m.challenge
		s.Challenge = &cp
	}
	return s
}
