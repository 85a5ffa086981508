// Package scanner gates decoded QR payloads. The original UI re-armed itself
// with ad hoc timers; here the behavior is an explicit state machine with an
// injected clock so re-arm logic is testable without wall-clock waits.
package scanner

import (
	"sync"
	"time"
)

// State of one gate.
type State int

const (
	// Armed accepts the next scan.
	Armed State = iota
	// Processing holds while a check-in is in flight; further scans are
	// dropped. An in-flight store write cannot be cancelled, only awaited.
	Processing
	// CoolingDown holds until a deadline, then re-arms.
	CoolingDown
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Processing:
		return "processing"
	case CoolingDown:
		return "cooling_down"
	default:
		return "unknown"
	}
}

// Gate serializes scans for one capture session: at most one payload is in
// flight, identical payloads are debounced, and completion starts a cooldown
// before the next scan is accepted.
type Gate struct {
	mu       sync.Mutex
	state    State
	until    time.Time
	lastSeen string
	lastAt   time.Time

	rescanDelay time.Duration
	okCooldown  time.Duration
	errCooldown time.Duration
	now         func() time.Time
}

// NewGate creates an armed gate. now may be nil for the wall clock.
func NewGate(rescanDelay, okCooldown, errCooldown time.Duration, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{
		state:       Armed,
		rescanDelay: rescanDelay,
		okCooldown:  okCooldown,
		errCooldown: errCooldown,
		now:         now,
	}
}

// Accept reports whether a decoded payload may start a check-in, moving the
// gate to Processing when it does. Empty payloads, repeats of the previous
// payload within the re-scan delay, and scans while not armed are dropped.
func (g *Gate) Accept(payload string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.tick(now)
	if g.state != Armed || payload == "" {
		return false
	}
	if payload == g.lastSeen && now.Sub(g.lastAt) < g.rescanDelay {
		return false
	}
	g.state = Processing
	g.lastSeen = payload
	g.lastAt = now
	return true
}

// Complete records the result of the in-flight check-in and starts the
// cooldown; failures cool down longer so the operator can read the message.
func (g *Gate) Complete(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Processing {
		return
	}
	cooldown := g.okCooldown
	if !success {
		cooldown = g.errCooldown
	}
	g.state = CoolingDown
	g.until = g.now().Add(cooldown)
}

// Reset re-arms immediately, clearing the debounce memory.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = Armed
	g.until = time.Time{}
	g.lastSeen = ""
	g.lastAt = time.Time{}
}

// State reports the current state, applying any elapsed cooldown first.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tick(g.now())
	return g.state
}

// CooldownRemaining reports how long until the gate re-arms, zero otherwise.
func (g *Gate) CooldownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	g.tick(now)
	if g.state != CoolingDown {
		return 0
	}
	return g.until.Sub(now)
}

// tick realizes the timer-elapsed transition. Callers hold the lock.
func (g *Gate) tick(now time.Time) {
	if g.state == CoolingDown && !now.Before(g.until) {
		g.state = Armed
		g.until = time.Time{}
	}
}

// Registry hands out one gate per capture session.
type Registry struct {
	mu    sync.Mutex
	gates map[string]*Gate

	rescanDelay time.Duration
	okCooldown  time.Duration
	errCooldown time.Duration
	now         func() time.Time
}

// NewRegistry creates a registry producing gates with the given timings.
func NewRegistry(rescanDelay, okCooldown, errCooldown time.Duration, now func() time.Time) *Registry {
	return &Registry{
		gates:       make(map[string]*Gate),
		rescanDelay: rescanDelay,
		okCooldown:  okCooldown,
		errCooldown: errCooldown,
		now:         now,
	}
}

// Get returns the gate for a session, creating it on first use.
func (r *Registry) Get(sessionID string) *Gate {
	r.mu.Lock()
	defer r.mu.Unlock()
	gate, ok := r.gates[sessionID]
	if !ok {
		gate = NewGate(r.rescanDelay, r.okCooldown, r.errCooldown, r.now)
		r.gates[sessionID] = gate
	}
	return gate
}

// Drop discards a session's gate, typically on logout.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gates, sessionID)
}
