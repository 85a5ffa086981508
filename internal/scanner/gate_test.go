package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate() (*Gate, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	gate := NewGate(500*time.Millisecond, 3*time.Second, 5*time.Second, clock.Now)
	return gate, clock
}

func TestGateAcceptMovesToProcessing(t *testing.T) {
	gate, _ := newTestGate()

	assert.Equal(t, Armed, gate.State())
	assert.True(t, gate.Accept("REF-100"))
	assert.Equal(t, Processing, gate.State())
}

func TestGateDropsWhileProcessing(t *testing.T) {
	gate, _ := newTestGate()

	assert.True(t, gate.Accept("REF-100"))
	assert.False(t, gate.Accept("REF-200"), "one check-in in flight at a time")
}

func TestGateDropsEmptyPayload(t *testing.T) {
	gate, _ := newTestGate()
	assert.False(t, gate.Accept(""))
	assert.Equal(t, Armed, gate.State())
}

func TestGateCooldownAndReArm(t *testing.T) {
	gate, clock := newTestGate()

	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(true)
	assert.Equal(t, CoolingDown, gate.State())
	assert.Equal(t, 3*time.Second, gate.CooldownRemaining())

	clock.Advance(2 * time.Second)
	assert.False(t, gate.Accept("REF-200"), "still cooling down")

	clock.Advance(time.Second)
	assert.Equal(t, Armed, gate.State())
	assert.True(t, gate.Accept("REF-200"))
}

func TestGateErrorCooldownIsLonger(t *testing.T) {
	gate, clock := newTestGate()

	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(false)
	assert.Equal(t, 5*time.Second, gate.CooldownRemaining())

	clock.Advance(3 * time.Second)
	assert.Equal(t, CoolingDown, gate.State())
	clock.Advance(2 * time.Second)
	assert.Equal(t, Armed, gate.State())
}

func TestGateDebouncesRepeatedPayload(t *testing.T) {
	gate, clock := newTestGate()

	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(true)
	clock.Advance(3 * time.Second) // re-armed, but only 3s since REF-100 was seen

	// The same code held in front of the camera re-decodes immediately
	// after re-arm; a different code goes straight through.
	assert.True(t, gate.Accept("REF-100"), "re-scan delay elapsed long ago")

	gate.Reset()
	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(true)
	gate.Reset()
	// Within the re-scan delay the identical payload is dropped even armed.
	clock.Advance(100 * time.Millisecond)
	assert.True(t, gate.Accept("REF-100"), "reset clears debounce memory")
}

func TestGateRescanDelayDropsImmediateRepeat(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	gate := NewGate(500*time.Millisecond, 0, 0, clock.Now)

	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(true) // zero cooldown: instantly armed again

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, Armed, gate.State())
	assert.False(t, gate.Accept("REF-100"), "identical payload within re-scan delay")
	assert.True(t, gate.Accept("REF-200"))
}

func TestGateResetReArmsImmediately(t *testing.T) {
	gate, _ := newTestGate()

	assert.True(t, gate.Accept("REF-100"))
	gate.Complete(false)
	assert.Equal(t, CoolingDown, gate.State())

	gate.Reset()
	assert.Equal(t, Armed, gate.State())
	assert.True(t, gate.Accept("REF-200"))
}

func TestGateCompleteOutsideProcessingIsNoOp(t *testing.T) {
	gate, _ := newTestGate()
	gate.Complete(true)
	assert.Equal(t, Armed, gate.State())
}

func TestRegistryOneGatePerSession(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	reg := NewRegistry(500*time.Millisecond, 3*time.Second, 5*time.Second, clock.Now)

	a := reg.Get("session-a")
	b := reg.Get("session-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, reg.Get("session-a"))

	// Sessions are independent: one processing does not block the other.
	assert.True(t, a.Accept("REF-100"))
	assert.True(t, b.Accept("REF-100"))

	reg.Drop("session-a")
	assert.NotSame(t, a, reg.Get("session-a"))
}
