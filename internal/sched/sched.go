// Package sched is a single goroutine cooperative scheduler driven by the
// ebiten game loop. Tasks, timers and frame callbacks all run inside Tick, so
// code scheduled here never needs locks. Other goroutines hand work back
// with Post.
package sched

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrUnknownFrame = errors.New("sched: unknown frame request")

// FrameFunc receives the tick time.
type FrameFunc func(now time.Time)

type FrameID uint64

type Timer struct {
	s       *Scheduler
	id      uint64
	due     time.Time
	fn      func()
	stopped bool
}

// Stop prevents the timer from firing. It reports whether the timer was
// still pending.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	return t.s.removeTimer(t)
}

type frame struct {
	id FrameID
	fn FrameFunc
}

type Scheduler struct {
	mu     sync.Mutex
	posted []func()

	now     time.Time
	timers  []*Timer
	frames  []frame
	running []frame // frames of the current tick not yet run
	nextID  uint64
	inTick  bool
}

func New(now time.Time) *Scheduler {
	return &Scheduler{now: now}
}

// Now is the time of the current or last tick.
func (s *Scheduler) Now() time.Time {
	return s.now
}

// Post queues fn to run on the next tick. Safe for concurrent use.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// AfterFunc runs fn on the first tick at or after now+d.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) *Timer {
	s.nextID++
	timer := &Timer{s: s, id: s.nextID, due: s.now.Add(d), fn: fn}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *Scheduler) removeTimer(timer *Timer) bool {
	for i, item := range s.timers {
		if item == timer {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return true
		}
	}
	return false
}

// RequestAnimationFrame runs fn once on the next tick.
func (s *Scheduler) RequestAnimationFrame(fn FrameFunc) (FrameID, error) {
	if fn == nil {
		return 0, errors.New("sched: nil frame func")
	}
	s.nextID++
	id := FrameID(s.nextID)
	s.frames = append(s.frames, frame{id: id, fn: fn})
	return id, nil
}

func (s *Scheduler) CancelAnimationFrame(id FrameID) error {
	var ok bool
	if s.frames, ok = removeFrame(s.frames, id); ok {
		return nil
	}
	if s.running, ok = removeFrame(s.running, id); ok {
		return nil
	}
	return ErrUnknownFrame
}

func removeFrame(frames []frame, id FrameID) ([]frame, bool) {
	for i, item := range frames {
		if item.id == id {
			return append(frames[:i], frames[i+1:]...), true
		}
	}
	return frames, false
}

// Pending reports the number of queued timers and frame requests.
func (s *Scheduler) Pending() (timers, frames int) {
	return len(s.timers), len(s.frames)
}

// Tick advances the clock and runs posted tasks, due timers and the frame
// callbacks requested before this tick, in that order.
func (s *Scheduler) Tick(now time.Time) {
	if s.inTick {
		return
	}
	s.inTick = true
	defer func() { s.inTick = false }()
	if now.After(s.now) {
		s.now = now
	}

	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		fn()
	}

	due := make([]*Timer, 0)
	for _, timer := range s.timers {
		if !timer.due.After(s.now) {
			due = append(due, timer)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].due.Before(due[j].due)
	})
	for _, timer := range due {
		if timer.stopped {
			continue // stopped by an earlier callback
		}
		timer.stopped = true
		s.removeTimer(timer)
		timer.fn()
	}

	s.running, s.frames = s.frames, nil
	for len(s.running) > 0 {
		item := s.running[0]
		s.running = s.running[1:]
		item.fn(s.now)
	}
}
