package playback

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultHeartbeatTimeout is how long a RemoteClock keeps extrapolating
// without hearing from the player.
const DefaultHeartbeatTimeout = 2 * time.Second

// ManualClock only moves when told to. Used for replays and tests.
type ManualClock struct {
	mu sync.Mutex
	t  float64
}

func NewManualClock(start float64) *ManualClock {
	return &ManualClock{t: start}
}

func (c *ManualClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *ManualClock) Set(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *ManualClock) Advance(d float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t += d
	return c.t
}

// WallClock is a local media clock: it follows wall time while playing and
// holds its position while paused.
type WallClock struct {
	mu        sync.Mutex
	now       func() time.Time
	base      float64
	startedAt time.Time
	playing   bool
}

// NewWallClock returns a paused clock at position zero. A nil now uses
// time.Now.
func NewWallClock(now func() time.Time) *WallClock {
	if now == nil {
		now = time.Now
	}
	return &WallClock{now: now}
}

func (c *WallClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *WallClock) positionLocked() float64 {
	if !c.playing {
		return c.base
	}
	return c.base + c.now().Sub(c.startedAt).Seconds()
}

func (c *WallClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.startedAt = c.now()
	c.playing = true
}

func (c *WallClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.base = c.positionLocked()
	c.playing = false
}

// Seek moves the position without changing the play state.
func (c *WallClock) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = t
	c.startedAt = c.now()
}

func (c *WallClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// RemoteClock mirrors a player running elsewhere, typically a browser video
// element posting its currentTime. Between heartbeats the position is
// extrapolated with wall time; if heartbeats stop while playing, the clock
// freezes at its last extrapolated position.
type RemoteClock struct {
	mu       sync.Mutex
	now      func() time.Time
	pos      float64
	at       time.Time
	playing  bool
	lastSeen time.Time
	watchdog func(func())
}

// NewRemoteClock creates a paused remote clock. A zero timeout uses
// DefaultHeartbeatTimeout and a nil now uses time.Now.
func NewRemoteClock(timeout time.Duration, now func() time.Time) *RemoteClock {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &RemoteClock{
		now:      now,
		watchdog: debounce.New(timeout),
	}
}

// Update records a heartbeat from the player.
func (c *RemoteClock) Update(t float64, playing bool) {
	c.mu.Lock()
	now := c.now()
	c.pos = t
	c.at = now
	c.playing = playing
	c.lastSeen = now
	c.mu.Unlock()

	if playing {
		c.watchdog(c.freeze)
	}
}

func (c *RemoteClock) freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.pos = c.positionLocked()
	c.at = c.now()
	c.playing = false
}

func (c *RemoteClock) positionLocked() float64 {
	if !c.playing {
		return c.pos
	}
	return c.pos + c.now().Sub(c.at).Seconds()
}

func (c *RemoteClock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *RemoteClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// LastHeartbeat returns when Update was last called, zero if never.
func (c *RemoteClock) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}
