// Package character runs the lifecycle of one animated character: waiting
// for the runtimes, loading assets, driving the render loop and tearing
// everything down again. All Session methods must be called from the
// scheduler goroutine; blocking work runs elsewhere and posts back.
package character

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sk2233/spineview/internal/logging"
	"github.com/sk2233/spineview/internal/sched"
)

type Position struct {
	X, Y float32
}

// AnchorOffset is the distance of the default anchor from the canvas bottom.
const AnchorOffset = 50

type Options struct {
	ID           string
	AtlasPath    string
	SkeletonPath string
	Scale        float32
	// Position of the skeleton root, nil for the default anchor.
	Position *Position
	Canvas   Canvas
	Playing  bool
}

type Timings struct {
	PollInterval      time.Duration
	ReadyTimeout      time.Duration
	LoopStartDelay    time.Duration
	SwitchSettle      time.Duration
	RescheduleBackoff time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		PollInterval:      200 * time.Millisecond,
		ReadyTimeout:      15 * time.Second,
		LoopStartDelay:    100 * time.Millisecond,
		SwitchSettle:      200 * time.Millisecond,
		RescheduleBackoff: time.Second,
	}
}

type Deps struct {
	Scheduler *sched.Scheduler
	Libraries Libraries
	Shared    *SharedRuntime
	Notifier  Notifier
	Logger    *logging.Logger
	Timings   Timings
}

type loopHandle struct {
	id     sched.FrameID
	frames FrameScheduler
	live   bool
}

type Session struct {
	id           string
	atlasPath    string
	skeletonPath string
	canvas       Canvas
	scale        float32
	position     *Position
	playing      bool

	sched   *sched.Scheduler
	libs    Libraries
	shared  *SharedRuntime
	notify  Notifier
	log     *logging.Logger
	timings Timings

	state  LoadState
	err    *Error
	gen    uint64
	cancel context.CancelFunc

	// staged is the surface of an initialization still loading assets.
	staged   Surface
	surface  Surface
	drawable Drawable
	renderer Renderer
	catalog  []string
	current  string

	loop        loopHandle
	lastFrame   time.Time
	frames      int
	switching   bool
	startTimer  *sched.Timer
	settleTimer *sched.Timer
	retryTimer  *sched.Timer
}

func New(opts Options, deps Deps) *Session {
	res := &Session{
		id:           opts.ID,
		atlasPath:    opts.AtlasPath,
		skeletonPath: opts.SkeletonPath,
		canvas:       opts.Canvas,
		scale:        opts.Scale,
		position:     opts.Position,
		playing:      opts.Playing,
		sched:        deps.Scheduler,
		libs:         deps.Libraries,
		shared:       deps.Shared,
		notify:       deps.Notifier,
		log:          deps.Logger,
		timings:      deps.Timings,
	}
	if res.canvas.ID == "" {
		res.canvas.ID = opts.ID
	}
	if res.scale == 0 {
		res.scale = 1
	}
	if res.shared == nil {
		res.shared = &SharedRuntime{}
	}
	if res.notify == nil {
		res.notify = NotifierFuncs{}
	}
	if res.log == nil {
		res.log = logging.NopLogger()
	}
	res.log = res.log.WithSession(opts.ID)
	if res.timings == (Timings{}) {
		res.timings = DefaultTimings()
	}
	return res
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() LoadState {
	return s.state
}

// Err is the fatal error that failed the session, if any.
func (s *Session) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Current is the active animation name.
func (s *Session) Current() string {
	return s.current
}

// Animations returns the catalog of the loaded skeleton.
func (s *Session) Animations() []string {
	return slices.Clone(s.catalog)
}

func (s *Session) Playing() bool {
	return s.playing
}

func (s *Session) Scale() float32 {
	return s.scale
}

// Drawable is the live drawable while Ready, nil otherwise.
func (s *Session) Drawable() Drawable {
	return s.drawable
}

// Surface is the live surface while Ready, nil otherwise.
func (s *Session) Surface() Surface {
	return s.surface
}

// Canvas is the canvas the session draws into.
func (s *Session) Canvas() Canvas {
	return s.canvas
}

// Frames counts rendered frames since the session became Ready.
func (s *Session) Frames() int {
	return s.frames
}

// Start begins loading. It does nothing unless the session is Idle.
func (s *Session) Start() {
	if s.state != Idle {
		return
	}
	s.begin()
}

func (s *Session) begin() {
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.err = nil
	s.setState(CheckingLibraries)
	s.debug("waiting for libraries")

	gate := &Gate{
		Probe:    func() Readiness { return ProbeLibraries(s.libs) },
		Interval: s.timings.PollInterval,
		Timeout:  s.timings.ReadyTimeout,
	}
	go func() {
		err := gate.Wait(ctx)
		s.sched.Post(func() { s.librariesChecked(ctx, gen, err) })
	}()
}

func (s *Session) librariesChecked(ctx context.Context, gen uint64, err error) {
	if gen != s.gen {
		return
	}
	if err != nil {
		s.fail(LibraryLoadTimeout, err)
		return
	}
	s.setState(Initializing)
	s.debug("libraries loaded")
	factory, _ := s.libs.Graphics()
	animation, _ := s.libs.Animation()

	if err := factory.CheckCapability(); err != nil {
		if !errors.Is(err, ErrCapabilityUnsupported) {
			err = fmt.Errorf("%w: %v", ErrCapabilityUnsupported, err)
		}
		s.fail(CapabilityUnsupported, err)
		return
	}
	go func() {
		runtime, err := s.shared.Get(ctx, factory)
		s.sched.Post(func() { s.runtimeReady(ctx, gen, animation, runtime, err) })
	}()
}

func (s *Session) runtimeReady(ctx context.Context, gen uint64, animation AnimationRuntime, runtime GraphicsRuntime, err error) {
	if gen != s.gen {
		return
	}
	if err != nil {
		s.fail(InitFailure, fmt.Errorf("create graphics runtime: %w", err))
		return
	}
	surface, err := runtime.MakeSurface(s.canvas)
	if err != nil {
		s.fail(InitFailure, fmt.Errorf("create surface %s: %w", s.canvas.ID, err))
		return
	}
	s.staged = surface
	s.setState(AssetsLoading)
	s.debug("loading assets", "atlas", s.atlasPath, "skeleton", s.skeletonPath)

	atlasPath, skeletonPath := s.atlasPath, s.skeletonPath
	go func() {
		data, err := loadAssets(ctx, animation, atlasPath, skeletonPath)
		s.sched.Post(func() { s.assetsLoaded(gen, animation, runtime, data, err) })
	}()
}

// loadAssets turns a panicking loader into an error so corrupt assets fail
// one session instead of the process.
func loadAssets(ctx context.Context, animation AnimationRuntime, atlasPath, skeletonPath string) (data SkeletonData, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("load assets %s: panic: %v", skeletonPath, p)
		}
	}()
	atlas, err := animation.LoadTextureAtlas(ctx, atlasPath)
	if err != nil {
		return nil, fmt.Errorf("load atlas %s: %w", atlasPath, err)
	}
	data, err = animation.LoadSkeletonData(ctx, skeletonPath, atlas)
	if err != nil {
		return nil, fmt.Errorf("load skeleton %s: %w", skeletonPath, err)
	}
	return data, nil
}

func (s *Session) assetsLoaded(gen uint64, animation AnimationRuntime, runtime GraphicsRuntime, data SkeletonData, err error) {
	if gen != s.gen {
		s.log.Debug("discarding assets of a superseded load")
		return
	}
	if err != nil {
		s.fail(AssetFetchFailure, err)
		return
	}
	s.debug("assets loaded")

	drawable, err := animation.NewDrawable(data)
	if err != nil {
		s.fail(InitFailure, fmt.Errorf("create drawable: %w", err))
		return
	}
	skeleton := drawable.Skeleton()
	skeleton.SetScale(s.scale, s.scale)
	skeleton.SetPosition(s.anchor())

	renderer, err := animation.NewRenderer(runtime)
	if err != nil {
		s.fail(InitFailure, fmt.Errorf("create renderer: %w", err))
		return
	}

	names := slices.Clone(data.AnimationNames())
	current := ""
	if len(names) > 0 {
		entry, err := drawable.AnimationState().SetAnimation(0, names[0], true)
		if err != nil {
			if disposer, ok := renderer.(Disposer); ok {
				disposer.Dispose()
			}
			s.fail(InitFailure, fmt.Errorf("activate %s: %w", names[0], err))
			return
		}
		if entry != nil {
			entry.SetTrackTime(0)
		}
		current = names[0]
		s.watchEvents(drawable.AnimationState())
		drawable.Update(0)
	}

	s.surface, s.staged = s.staged, nil
	s.drawable = drawable
	s.renderer = renderer
	s.catalog = names
	s.current = current
	s.frames = 0
	s.setState(Ready)
	s.notify.Animations(s.id, slices.Clone(names))
	s.debug("animations available", "names", strings.Join(names, ", "))
	if current != "" {
		s.debug("initial animation", "name", current)
	}

	s.lastFrame = s.sched.Now()
	s.startTimer = s.sched.AfterFunc(s.timings.LoopStartDelay, func() {
		s.startTimer = nil
		if gen != s.gen {
			return
		}
		s.debug("starting render loop")
		s.schedule(gen)
	})
}

func (s *Session) anchor() (float32, float32) {
	if s.position != nil {
		return s.position.X, s.position.Y
	}
	return float32(s.canvas.Width) / 2, float32(s.canvas.Height - AnchorOffset)
}

// frameScheduler is the surface when it schedules frames itself, otherwise
// the platform scheduler.
func (s *Session) frameScheduler() FrameScheduler {
	if frames, ok := s.surface.(FrameScheduler); ok {
		return frames
	}
	return s.sched
}

func (s *Session) schedule(gen uint64) {
	if gen != s.gen || s.loop.live || s.state != Ready {
		return
	}
	frames := s.frameScheduler()
	id, err := frames.RequestAnimationFrame(func(now time.Time) { s.frame(gen, now) })
	if err != nil {
		s.report(LoopRescheduleFailure, err)
		s.retryLater(gen)
		return
	}
	s.loop = loopHandle{id: id, frames: frames, live: true}
}

func (s *Session) retryLater(gen uint64) {
	if s.retryTimer != nil {
		return
	}
	s.retryTimer = s.sched.AfterFunc(s.timings.RescheduleBackoff, func() {
		s.retryTimer = nil
		s.schedule(gen)
	})
}

func (s *Session) frame(gen uint64, now time.Time) {
	s.loop = loopHandle{}
	if gen != s.gen || s.state != Ready {
		return
	}
	if err := s.surface.Clear(); err != nil {
		s.report(LoopRescheduleFailure, fmt.Errorf("clear surface: %w", err))
		s.retryLater(gen)
		return
	}
	if s.playing {
		delta := now.Sub(s.lastFrame).Seconds()
		s.lastFrame = now
		s.drawable.Update(float32(delta))
	}
	if err := s.render(); err != nil {
		s.report(RenderFrameFailure, err)
	}
	s.frames++
	s.schedule(gen)
}

func (s *Session) render() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	return s.renderer.Render(s.surface, s.drawable)
}

// SetPlaying pauses or resumes pose updates. Rendering continues while
// paused and resuming restarts the delta clock.
func (s *Session) SetPlaying(playing bool) {
	if playing == s.playing {
		return
	}
	s.playing = playing
	if playing {
		s.lastFrame = s.sched.Now()
	}
	s.log.Debug("playing changed", "playing", playing)
}

// SetAnimation switches track 0 to name. A request equal to the current
// animation is a no-op. Requests before Ready fail with ErrNotReady and
// requests while a switch settles fail with ErrSwitchInFlight. Failures are
// logged and leave the previous animation active.
func (s *Session) SetAnimation(name string) error {
	if s.state != Ready {
		s.debug("animation request before ready dropped", "name", name)
		return fmt.Errorf("%w: %s", ErrNotReady, s.state)
	}
	if name == s.current {
		return nil
	}
	if s.switching {
		s.debug("animation change blocked", "name", name)
		return fmt.Errorf("%w: %s", ErrSwitchInFlight, s.current)
	}
	if !slices.Contains(s.catalog, name) {
		err := fmt.Errorf("%w: %s", ErrUnknownAnimation, name)
		s.report(AnimationSwitchFailure, err)
		return err
	}

	s.switching = true
	if err := s.switchTo(name); err != nil {
		s.switching = false
		s.report(AnimationSwitchFailure, err)
		return err
	}
	gen := s.gen
	s.settleTimer = s.sched.AfterFunc(s.timings.SwitchSettle, func() {
		s.settleTimer = nil
		if gen == s.gen {
			s.switching = false
		}
	})
	return nil
}

func (s *Session) switchTo(name string) error {
	s.debug("changing animation", "name", name)
	state := s.drawable.AnimationState()
	skeleton := s.drawable.Skeleton()

	state.ClearTracks()
	state.ClearListeners()
	state.Update(0)
	skeleton.SetToSetupPose()

	entry, err := state.SetAnimation(0, name, true)
	if err != nil {
		if s.current != "" {
			if prev, restoreErr := state.SetAnimation(0, s.current, true); restoreErr == nil && prev != nil {
				prev.SetTrackTime(0)
				s.watchEvents(state)
			}
		}
		state.Apply(skeleton)
		skeleton.UpdateWorldTransform()
		return fmt.Errorf("set animation %s: %w", name, err)
	}
	if entry != nil {
		entry.SetTrackTime(0)
		s.current = name
		s.debug("animation changed", "name", name)
	} else {
		s.debug("no track entry created", "name", name)
	}
	s.watchEvents(state)
	state.Apply(skeleton)
	skeleton.UpdateWorldTransform()
	return nil
}

// watchEvents forwards keyframed events of the active animation to the
// debug feed when the runtime supports listeners.
func (s *Session) watchEvents(state AnimationState) {
	events, ok := state.(EventSource)
	if !ok {
		return
	}
	events.AddListener(Listener{
		OnComplete: func(animation string) {
			s.log.Debug("animation completed", "name", animation)
		},
		OnEvent: func(animation, event string) {
			s.debug("animation event", "name", animation, "event", event)
		},
	})
}

// SetScale sets the uniform skeleton scale. Before Ready the value becomes
// the initial scale.
func (s *Session) SetScale(scale float32) {
	if scale == s.scale {
		return
	}
	s.scale = scale
	if s.state != Ready {
		return
	}
	s.drawable.Skeleton().SetScale(scale, scale)
	s.debug("scale changed", "scale", fmt.Sprintf("%.2f", scale))
}

// SetPosition moves the skeleton root, nil restores the default anchor.
func (s *Session) SetPosition(pos *Position) {
	s.position = pos
	if s.state != Ready {
		return
	}
	s.drawable.Skeleton().SetPosition(s.anchor())
}

// SetAssets replaces the asset pair. A different pair releases everything
// and, unless the session was never started, loads again.
func (s *Session) SetAssets(atlasPath, skeletonPath string) {
	if atlasPath == s.atlasPath && skeletonPath == s.skeletonPath {
		return
	}
	if s.state == Disposed {
		return
	}
	started := s.state != Idle
	s.teardown()
	s.atlasPath, s.skeletonPath = atlasPath, skeletonPath
	s.setState(Idle)
	s.debug("assets changed", "atlas", atlasPath, "skeleton", skeletonPath)
	if started {
		s.begin()
	}
}

// Close releases every resource. It is safe in any state and idempotent.
func (s *Session) Close() {
	if s.state == Disposed {
		return
	}
	s.teardown()
	s.setState(Disposed)
	s.debug("resources released")
}

func (s *Session) teardown() {
	s.gen++
	s.try("cancel readiness wait", func() error {
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		return nil
	})
	s.try("stop timers", func() error {
		for _, timer := range []*sched.Timer{s.startTimer, s.settleTimer, s.retryTimer} {
			timer.Stop()
		}
		s.startTimer, s.settleTimer, s.retryTimer = nil, nil, nil
		s.switching = false
		return nil
	})
	s.try("cancel render loop", func() error {
		if !s.loop.live {
			return nil
		}
		id := s.loop.id
		s.loop = loopHandle{}
		return s.frameScheduler().CancelAnimationFrame(id)
	})
	s.try("delete surface", func() error {
		var errs []error
		for _, surface := range []Surface{s.surface, s.staged} {
			if surface != nil {
				errs = append(errs, surface.Delete())
			}
		}
		s.surface, s.staged = nil, nil
		return errors.Join(errs...)
	})
	s.try("dispose renderer", func() error {
		if disposer, ok := s.renderer.(Disposer); ok {
			disposer.Dispose()
		}
		return nil
	})
	s.drawable = nil
	s.renderer = nil
	s.catalog = nil
	s.current = ""
}

func (s *Session) try(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("teardown step panicked", "step", step, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		s.log.Warn("teardown step failed", "step", step, "error", err)
		s.notify.Debug(s.id, fmt.Sprintf("%s failed: %v", step, err))
	}
}

func (s *Session) fail(kind Kind, err error) {
	s.teardown()
	s.err = newError(kind, s.id, err)
	s.setState(Failed)
	s.log.Error("session failed", "kind", kind.String(), "error", err)
	msg := s.err.Error()
	s.notify.Debug(s.id, msg)
	s.notify.Error(s.id, msg)
}

func (s *Session) report(kind Kind, err error) {
	s.log.Warn(kind.String(), "error", err)
	s.notify.Debug(s.id, fmt.Sprintf("%s: %v", kind, err))
}

func (s *Session) setState(state LoadState) {
	if s.state == state {
		return
	}
	s.log.Debug("state changed", "from", s.state.String(), "to", state.String())
	s.state = state
}

func (s *Session) debug(msg string, args ...any) {
	s.log.Debug(msg, args...)
	s.notify.Debug(s.id, formatLine(msg, args...))
}

func formatLine(msg string, args ...any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	return sb.String()
}
