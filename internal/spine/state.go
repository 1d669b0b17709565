package spine

import (
	"fmt"
	"math"
)

type TrackEntry struct {
	Animation  *Animation
	TrackIndex int
	Loop       bool
	TrackTime  float32 // seconds since the entry started
	TimeScale  float32
	lastTime   float32 // track time at the previous apply, -1 before the first
}

// AnimationTime is the track time mapped into the animation.
func (e *TrackEntry) AnimationTime() float32 {
	if e.Loop && e.Animation.Duration > 0 {
		return mod(e.TrackTime, e.Animation.Duration)
	}
	return min(e.TrackTime, e.Animation.Duration)
}

func (e *TrackEntry) SetTrackTime(val float32) {
	e.TrackTime = val
	e.lastTime = -1
}

type AnimationListener interface {
	Start(entry *TrackEntry)
	End(entry *TrackEntry)
	Complete(entry *TrackEntry)
	Event(entry *TrackEntry, event *Event)
}

// ListenerFuncs adapts plain functions, nil fields are skipped.
type ListenerFuncs struct {
	OnStart    func(entry *TrackEntry)
	OnEnd      func(entry *TrackEntry)
	OnComplete func(entry *TrackEntry)
	OnEvent    func(entry *TrackEntry, event *Event)
}

func (l ListenerFuncs) Start(entry *TrackEntry) {
	if l.OnStart != nil {
		l.OnStart(entry)
	}
}

func (l ListenerFuncs) End(entry *TrackEntry) {
	if l.OnEnd != nil {
		l.OnEnd(entry)
	}
}

func (l ListenerFuncs) Complete(entry *TrackEntry) {
	if l.OnComplete != nil {
		l.OnComplete(entry)
	}
}

func (l ListenerFuncs) Event(entry *TrackEntry, event *Event) {
	if l.OnEvent != nil {
		l.OnEvent(entry, event)
	}
}

// AnimationState plays one animation per track. Tracks do not mix, a higher
// track overrides the properties it keys.
type AnimationState struct {
	Data      *SkeletonData
	Tracks    []*TrackEntry
	Listeners []AnimationListener
	TimeScale float32
}

func NewAnimationState(data *SkeletonData) *AnimationState {
	return &AnimationState{Data: data, TimeScale: 1}
}

func (s *AnimationState) AddListener(listener AnimationListener) {
	s.Listeners = append(s.Listeners, listener)
}

func (s *AnimationState) ClearListeners() {
	s.Listeners = nil
}

func (s *AnimationState) Current(track int) *TrackEntry {
	if track < 0 || track >= len(s.Tracks) {
		return nil
	}
	return s.Tracks[track]
}

func (s *AnimationState) SetAnimation(track int, name string, loop bool) (*TrackEntry, error) {
	if track < 0 {
		return nil, fmt.Errorf("spine: invalid track %d", track)
	}
	anim := s.Data.FindAnimation(name)
	if anim == nil {
		return nil, fmt.Errorf("spine: animation not found: %s", name)
	}
	s.ClearTrack(track)
	for len(s.Tracks) <= track {
		s.Tracks = append(s.Tracks, nil)
	}
	entry := &TrackEntry{
		Animation:  anim,
		TrackIndex: track,
		Loop:       loop,
		TimeScale:  1,
		lastTime:   -1,
	}
	s.Tracks[track] = entry
	for _, listener := range s.Listeners {
		listener.Start(entry)
	}
	return entry, nil
}

func (s *AnimationState) ClearTrack(track int) {
	entry := s.Current(track)
	if entry == nil {
		return
	}
	s.Tracks[track] = nil
	for _, listener := range s.Listeners {
		listener.End(entry)
	}
}

func (s *AnimationState) ClearTracks() {
	for i := range s.Tracks {
		s.ClearTrack(i)
	}
	s.Tracks = s.Tracks[:0]
}

// Update advances every track by delta seconds.
func (s *AnimationState) Update(delta float32) {
	delta *= s.TimeScale
	for _, entry := range s.Tracks {
		if entry == nil {
			continue
		}
		last := entry.TrackTime
		entry.TrackTime += delta * entry.TimeScale
		if completed(entry, last) {
			for _, listener := range s.Listeners {
				listener.Complete(entry)
			}
		}
	}
}

func completed(entry *TrackEntry, last float32) bool {
	duration := entry.Animation.Duration
	if duration <= 0 || entry.TrackTime <= last {
		return false
	}
	if entry.Loop {
		return math.Floor(float64(entry.TrackTime/duration)) > math.Floor(float64(last/duration))
	}
	return last < duration && entry.TrackTime >= duration
}

// Apply poses skel with every track, lowest track first.
func (s *AnimationState) Apply(skel *Skeleton) bool {
	applied := false
	for _, entry := range s.Tracks {
		if entry == nil {
			continue
		}
		fire := func(event *Event) {
			for _, listener := range s.Listeners {
				listener.Event(entry, event)
			}
		}
		if len(s.Listeners) == 0 {
			fire = nil
		}
		last := entry.lastTime
		if last >= 0 && entry.Loop && entry.Animation.Duration > 0 && entry.TrackTime-last >= entry.Animation.Duration {
			last = -1 // skipped a whole loop
		}
		entry.Animation.Apply(skel, last, entry.TrackTime, entry.Loop, fire)
		entry.lastTime = entry.TrackTime
		applied = true
	}
	return applied
}
