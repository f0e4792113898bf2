package services

import (
	"context"
	"sync"
	"time"

	"vpuppets-console/replay"
	"vpuppets-console/system"
)

// ReplayHub keeps one replay engine per viewer
type ReplayHub struct {
	sessions *SessionService
	sched    replay.Scheduler
	tick     time.Duration

	mu      sync.Mutex
	engines map[string]*replay.Engine
}

func NewReplayHub(sessions *SessionService, sched replay.Scheduler, tick time.Duration) *ReplayHub {
	return &ReplayHub{
		sessions: sessions,
		sched:    sched,
		tick:     tick,
		engines:  make(map[string]*replay.Engine),
	}
}

// Engine returns the viewer's engine, creating an idle one on first use
func (h *ReplayHub) Engine(viewer string) *replay.Engine {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.engines[viewer]; ok {
		return e
	}
	e := replay.NewEngine(h.sched, h.tick)
	h.engines[viewer] = e
	replayEngines.Inc()
	return e
}

// Lookup returns the viewer's engine without creating one
func (h *ReplayHub) Lookup(viewer string) (*replay.Engine, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.engines[viewer]
	return e, ok
}

// Snapshot reports the viewer's replay state. A viewer with no engine is
// IDLE at normal speed; reading it allocates nothing.
func (h *ReplayHub) Snapshot(viewer string) replay.Snapshot {
	if e, ok := h.Lookup(viewer); ok {
		return e.Snapshot()
	}
	return replay.Snapshot{State: replay.StateIdle, Speed: 1}
}

// Select loads a stored session into the viewer's engine
func (h *ReplayHub) Select(ctx context.Context, viewer, sessionID string) (replay.Snapshot, error) {
	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		return replay.Snapshot{}, err
	}
	e := h.Engine(viewer)
	if err := e.Select(sess); err != nil {
		return replay.Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// Close stops and forgets the viewer's engine
func (h *ReplayHub) Close(viewer string) bool {
	h.mu.Lock()
	e, ok := h.engines[viewer]
	delete(h.engines, viewer)
	h.mu.Unlock()
	if !ok {
		return false
	}
	e.Close()
	replayEngines.Dec()
	return true
}

// Shutdown closes every engine
func (h *ReplayHub) Shutdown() {
	h.mu.Lock()
	engines := h.engines
	h.engines = make(map[string]*replay.Engine)
	h.mu.Unlock()

	for _, e := range engines {
		e.Close()
		replayEngines.Dec()
	}
	system.Info("Replay hub stopped (%d viewers)", len(engines))
}
