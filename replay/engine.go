// Package replay reconstructs recorded terminal sessions at any playback
// offset and drives the playhead on a fixed-rate clock.
package replay

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vpuppets-console/models"
)

// DefaultTick is the real-time interval between playhead advances
const DefaultTick = 50 * time.Millisecond

// SkipMs is the rewind / fast-forward step
const SkipMs = 5000

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrInvalidSpeed   = errors.New("speed must be 1, 2 or 4")
	ErrNoSession      = errors.New("no session selected")
	ErrClosed         = errors.New("replay engine closed")
)

type State string

const (
	StateIdle    State = "IDLE"
	StatePaused  State = "PAUSED"
	StatePlaying State = "PLAYING"
)

var speeds = []int{1, 2, 4}

// Render concatenates, in frame order, the payload of every frame stamped
// at or before the playhead. A playhead at zero shows nothing unless it is
// also the end of the session. Input and output frames share one buffer.
func Render(session *models.AttackSession, playheadMs int64) string {
	if session == nil {
		return ""
	}
	if playheadMs <= 0 && session.DurationMs() > 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range session.Frames {
		if f.TimeMs > playheadMs {
			break
		}
		b.WriteString(f.Data)
	}
	return b.String()
}

// Validate checks that frame offsets never go backwards and that the
// duration covers the last frame.
func Validate(session *models.AttackSession) error {
	if session == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidSession)
	}
	if session.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidSession)
	}
	var prev int64
	for i, f := range session.Frames {
		if f.TimeMs < 0 {
			return fmt.Errorf("%w: frame %d has negative offset", ErrInvalidSession, i)
		}
		if f.TimeMs < prev {
			return fmt.Errorf("%w: frame %d at %dms precedes %dms", ErrInvalidSession, i, f.TimeMs, prev)
		}
		prev = f.TimeMs
	}
	if prev > session.DurationMs() {
		return fmt.Errorf("%w: last frame at %dms exceeds duration %dms", ErrInvalidSession, prev, session.DurationMs())
	}
	return nil
}

// Snapshot is the observable replay state of one viewer
type Snapshot struct {
	State      State  `json:"state"`
	SessionID  string `json:"session_id,omitempty"`
	PlayheadMs int64  `json:"playhead_ms"`
	DurationMs int64  `json:"duration_ms"`
	Speed      int    `json:"speed"`
	Content    string `json:"content"`
}

// Engine is the replay state machine of one viewer. It owns at most one
// ticking task, which exists exactly while the engine is PLAYING.
type Engine struct {
	mu       sync.Mutex
	sched    Scheduler
	interval time.Duration

	session  *models.AttackSession
	playhead int64
	playing  bool
	speed    int
	closed   bool

	task Task
	gen  uint64 // bumped whenever task is replaced or stopped
}

// NewEngine creates an idle engine. A nil scheduler means TickerScheduler.
func NewEngine(sched Scheduler, interval time.Duration) *Engine {
	if sched == nil {
		sched = TickerScheduler{}
	}
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Engine{sched: sched, interval: interval, speed: 1}
}

// Select loads a session paused at offset zero
func (e *Engine) Select(session *models.AttackSession) error {
	if err := Validate(session); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.stopLocked()
	e.session = session
	e.playhead = 0
	return nil
}

// Play starts advancing the playhead. It is a no-op without a session, when
// already playing, or for a zero-length session. Playing from the end
// restarts at zero.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.session == nil || e.playing {
		return
	}
	end := e.session.DurationMs()
	if end == 0 {
		return
	}
	if e.playhead >= end {
		e.playhead = 0
	}

	e.playing = true
	e.gen++
	gen := e.gen
	e.task = e.sched.Every(e.interval, func() { e.tick(gen, e.interval.Milliseconds()) })
}

// Pause stops advancing the playhead
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

// Seek moves the playhead, clamped to [0, duration]. The play state is kept.
func (e *Engine) Seek(offsetMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ErrNoSession
	}
	e.playhead = e.clamp(offsetMs)
	return nil
}

// Rewind seeks SkipMs backwards
func (e *Engine) Rewind() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ErrNoSession
	}
	e.playhead = e.clamp(e.playhead - SkipMs)
	return nil
}

// FastForward seeks SkipMs forwards
func (e *Engine) FastForward() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ErrNoSession
	}
	e.playhead = e.clamp(e.playhead + SkipMs)
	return nil
}

// SetSpeed sets the multiplier directly
func (e *Engine) SetSpeed(multiplier int) error {
	for _, s := range speeds {
		if s == multiplier {
			e.mu.Lock()
			e.speed = multiplier
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: got %d", ErrInvalidSpeed, multiplier)
}

// CycleSpeed steps 1 -> 2 -> 4 -> 1 and returns the new multiplier
func (e *Engine) CycleSpeed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := speeds[0]
	for i, s := range speeds {
		if s == e.speed {
			next = speeds[(i+1)%len(speeds)]
			break
		}
	}
	e.speed = next
	return next
}

// Tick advances a playing engine by elapsedRealMs of wall time. The ticking
// task calls it; tests drive it directly.
func (e *Engine) Tick(elapsedRealMs int64) {
	e.mu.Lock()
	gen := e.gen
	e.mu.Unlock()
	e.tick(gen, elapsedRealMs)
}

func (e *Engine) tick(gen uint64, elapsedRealMs int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || !e.playing || e.session == nil {
		return
	}
	end := e.session.DurationMs()
	e.playhead += elapsedRealMs * int64(e.speed)
	if e.playhead >= end {
		e.playhead = end
		e.stopLocked()
	}
}

// Close stops the task and releases the session. A closed engine stays idle.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.session = nil
	e.playhead = 0
	e.closed = true
}

// Snapshot returns the current state with the content rendered from scratch
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{State: StateIdle, Speed: e.speed, PlayheadMs: e.playhead}
	if e.session == nil {
		return snap
	}
	snap.State = StatePaused
	if e.playing {
		snap.State = StatePlaying
	}
	snap.SessionID = e.session.ID
	snap.DurationMs = e.session.DurationMs()
	snap.Content = Render(e.session, e.playhead)
	return snap
}

// Ticking reports whether the engine currently owns a running task
func (e *Engine) Ticking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task != nil
}

func (e *Engine) stopLocked() {
	if e.task != nil {
		e.task.Stop()
		e.task = nil
	}
	e.playing = false
	e.gen++
}

func (e *Engine) clamp(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	if end := e.session.DurationMs(); ms > end {
		return end
	}
	return ms
}
