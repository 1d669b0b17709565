package character

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sk2233/spineview/internal/sched"
)

type fakeLibs struct {
	mu        sync.Mutex
	graphics  GraphicsFactory
	animation AnimationRuntime
	probes    atomic.Int32
}

func (l *fakeLibs) Graphics() (GraphicsFactory, bool) {
	l.probes.Add(1)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.graphics, l.graphics != nil
}

func (l *fakeLibs) Animation() (AnimationRuntime, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.animation, l.animation != nil
}

func (l *fakeLibs) set(graphics GraphicsFactory, animation AnimationRuntime) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.graphics, l.animation = graphics, animation
}

type fakeFactory struct {
	capErr  error
	newErr  error
	delay   time.Duration
	created atomic.Int32
	runtime *fakeRuntime
}

func (f *fakeFactory) CheckCapability() error {
	return f.capErr
}

func (f *fakeFactory) NewRuntime(ctx context.Context) (GraphicsRuntime, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.newErr != nil {
		return nil, f.newErr
	}
	f.created.Add(1)
	return f.runtime, nil
}

type fakeRuntime struct {
	sched *sched.Scheduler
	// frameSurfaces makes surfaces schedule their own frames.
	frameSurfaces bool
	failRequests  int
	surfaces      []*fakeSurface
}

func (r *fakeRuntime) MakeSurface(canvas Canvas) (Surface, error) {
	surface := &fakeSurface{canvas: canvas}
	r.surfaces = append(r.surfaces, surface)
	if r.frameSurfaces {
		return &frameSurface{fakeSurface: surface, sched: r.sched, failRequests: r.failRequests}, nil
	}
	return surface, nil
}

type fakeSurface struct {
	canvas   Canvas
	clears   int
	deleted  int
	clearErr error
}

func (s *fakeSurface) Clear() error {
	s.clears++
	return s.clearErr
}

func (s *fakeSurface) Delete() error {
	s.deleted++
	return nil
}

type frameSurface struct {
	*fakeSurface
	sched        *sched.Scheduler
	failRequests int
	requests     int
	cancels      int
}

func (s *frameSurface) RequestAnimationFrame(fn sched.FrameFunc) (sched.FrameID, error) {
	s.requests++
	if s.failRequests > 0 {
		s.failRequests--
		return 0, errors.New("surface lost")
	}
	return s.sched.RequestAnimationFrame(fn)
}

func (s *frameSurface) CancelAnimationFrame(id sched.FrameID) error {
	s.cancels++
	return s.sched.CancelAnimationFrame(id)
}

type fakeAnimation struct {
	names     []string
	errs      map[string]error
	block     chan struct{}
	panicPath string
	drawables []*fakeDrawable
	renderer  *fakeRenderer
}

func (a *fakeAnimation) LoadTextureAtlas(ctx context.Context, path string) (Atlas, error) {
	if err := a.errs[path]; err != nil {
		return nil, err
	}
	return "atlas:" + path, nil
}

func (a *fakeAnimation) LoadSkeletonData(ctx context.Context, path string, atlas Atlas) (SkeletonData, error) {
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if path == a.panicPath {
		panic("runtime error: makeslice: cap out of range")
	}
	if err := a.errs[path]; err != nil {
		return nil, err
	}
	return &fakeData{names: a.names}, nil
}

func (a *fakeAnimation) NewDrawable(data SkeletonData) (Drawable, error) {
	drawable := &fakeDrawable{
		skeleton: &fakeSkeleton{scaleX: 1, scaleY: 1},
		state:    &fakeState{catalog: data.AnimationNames()},
	}
	a.drawables = append(a.drawables, drawable)
	return drawable, nil
}

func (a *fakeAnimation) NewRenderer(runtime GraphicsRuntime) (Renderer, error) {
	return a.renderer, nil
}

type fakeData struct {
	names []string
}

func (d *fakeData) AnimationNames() []string {
	return d.names
}

type fakeDrawable struct {
	skeleton *fakeSkeleton
	state    *fakeState
}

func (d *fakeDrawable) Skeleton() Skeleton             { return d.skeleton }
func (d *fakeDrawable) AnimationState() AnimationState { return d.state }

func (d *fakeDrawable) Update(delta float32) {
	d.state.Update(delta)
	d.state.Apply(d.skeleton)
	d.skeleton.UpdateWorldTransform()
}

type fakeSkeleton struct {
	scaleX, scaleY float32
	x, y           float32
	setupPoses     int
	worldUpdates   int
	posed          string
}

func (s *fakeSkeleton) Scale() (float32, float32) { return s.scaleX, s.scaleY }
func (s *fakeSkeleton) SetScale(x, y float32)      { s.scaleX, s.scaleY = x, y }
func (s *fakeSkeleton) SetPosition(x, y float32)   { s.x, s.y = x, y }
func (s *fakeSkeleton) UpdateWorldTransform()      { s.worldUpdates++ }
func (s *fakeSkeleton) SetToSetupPose()            { s.setupPoses++; s.posed = "" }

type fakeState struct {
	catalog        []string
	track          *fakeEntry
	failOn         string
	clears         int
	listenerClears int
	updates        []float32
	listeners      []Listener
}

func (s *fakeState) ClearTracks() {
	s.clears++
	s.track = nil
}

func (s *fakeState) ClearListeners() {
	s.listenerClears++
	s.listeners = nil
}

func (s *fakeState) Update(delta float32) {
	s.updates = append(s.updates, delta)
	if s.track != nil {
		s.track.time += delta
	}
}

func (s *fakeState) Apply(skeleton Skeleton) bool {
	if s.track == nil {
		return false
	}
	skeleton.(*fakeSkeleton).posed = fmt.Sprintf("%s@%.3f", s.track.name, s.track.time)
	return true
}

func (s *fakeState) SetAnimation(track int, name string, loop bool) (TrackEntry, error) {
	if name == s.failOn || !slices.Contains(s.catalog, name) {
		return nil, fmt.Errorf("animation not found: %s", name)
	}
	// a fresh entry starts mid way so tests see the reset
	s.track = &fakeEntry{name: name, loop: loop, time: 0.5}
	return s.track, nil
}

func (s *fakeState) Current(track int) TrackEntry {
	if track != 0 || s.track == nil {
		return nil
	}
	return s.track
}

func (s *fakeState) AddListener(listener Listener) {
	s.listeners = append(s.listeners, listener)
}

type fakeEntry struct {
	name string
	loop bool
	time float32
}

func (e *fakeEntry) AnimationName() string  { return e.name }
func (e *fakeEntry) Loop() bool             { return e.loop }
func (e *fakeEntry) TrackTime() float32     { return e.time }
func (e *fakeEntry) SetTrackTime(t float32) { e.time = t }

type fakeRenderer struct {
	renders int
	err     error
	panics  bool
}

func (r *fakeRenderer) Render(surface Surface, drawable Drawable) error {
	r.renders++
	if r.panics {
		panic("bad vertex data")
	}
	return r.err
}

type notes struct {
	animations [][]string
	errors     []string
	debug      []string
}

func (n *notes) Animations(id string, names []string) { n.animations = append(n.animations, names) }
func (n *notes) Error(id string, msg string)          { n.errors = append(n.errors, msg) }
func (n *notes) Debug(id string, line string)         { n.debug = append(n.debug, line) }

func (n *notes) hasDebug(part string) bool {
	for _, line := range n.debug {
		if strings.Contains(line, part) {
			return true
		}
	}
	return false
}

type harness struct {
	t        *testing.T
	now      time.Time
	sched    *sched.Scheduler
	libs     *fakeLibs
	factory  *fakeFactory
	runtime  *fakeRuntime
	anim     *fakeAnimation
	renderer *fakeRenderer
	shared   *SharedRuntime
	notes    *notes
	timings  Timings
}

func newHarness(t *testing.T, names ...string) *harness {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := sched.New(now)
	runtime := &fakeRuntime{sched: s}
	renderer := &fakeRenderer{}
	h := &harness{
		t:        t,
		now:      now,
		sched:    s,
		libs:     &fakeLibs{},
		factory:  &fakeFactory{runtime: runtime},
		runtime:  runtime,
		anim:     &fakeAnimation{names: names, errs: map[string]error{}, renderer: renderer},
		renderer: renderer,
		shared:   &SharedRuntime{},
		notes:    &notes{},
		timings:  DefaultTimings(),
	}
	h.libs.set(h.factory, h.anim)
	return h
}

func (h *harness) session(opts Options) *Session {
	if opts.ID == "" {
		opts.ID = "hero"
	}
	if opts.AtlasPath == "" {
		opts.AtlasPath = "hero/hero.atlas"
	}
	if opts.SkeletonPath == "" {
		opts.SkeletonPath = "hero/hero.skel"
	}
	if opts.Canvas == (Canvas{}) {
		opts.Canvas = Canvas{Width: 400, Height: 300, DeviceScale: 1}
	}
	return New(opts, Deps{
		Scheduler: h.sched,
		Libraries: h.libs,
		Shared:    h.shared,
		Notifier:  h.notes,
		Timings:   h.timings,
	})
}

// advance moves the fake clock and runs one tick.
func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
	h.sched.Tick(h.now)
}

// step advances in frame sized steps.
func (h *harness) step(total, frame time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += frame {
		h.advance(frame)
	}
}

// waitState ticks without moving the fake clock until work posted from
// other goroutines has moved s into want.
func (h *harness) waitState(s *Session, want LoadState) {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			h.t.Fatalf("state = %s, want %s (debug: %q)", s.State(), want, h.notes.debug)
		}
		time.Sleep(time.Millisecond)
		h.sched.Tick(h.now)
	}
}

// ready starts s and runs it until the render loop produced a frame.
func (h *harness) ready(s *Session) {
	h.t.Helper()
	s.Start()
	h.waitState(s, Ready)
	h.advance(h.timings.LoopStartDelay)
	if s.Frames() == 0 {
		h.t.Fatalf("render loop did not start")
	}
}

func (h *harness) drawable(i int) *fakeDrawable {
	h.t.Helper()
	if i >= len(h.anim.drawables) {
		h.t.Fatalf("drawable %d not created", i)
	}
	return h.anim.drawables[i]
}
