package character

import (
	"context"

	"github.com/sk2233/spineview/internal/sched"
)

// The interfaces below are everything a session needs from the graphics and
// animation runtimes. internal/host implements them on ebiten and
// internal/spine.

// Canvas is the rectangle a session draws into, in logical pixels.
type Canvas struct {
	ID          string
	Width       int
	Height      int
	DeviceScale float64
}

// Libraries reports which runtimes are available yet.
type Libraries interface {
	Graphics() (GraphicsFactory, bool)
	Animation() (AnimationRuntime, bool)
}

type GraphicsFactory interface {
	// CheckCapability fails with ErrCapabilityUnsupported when no surface
	// can be created at all.
	CheckCapability() error
	NewRuntime(ctx context.Context) (GraphicsRuntime, error)
}

type GraphicsRuntime interface {
	MakeSurface(canvas Canvas) (Surface, error)
}

// Surface is one canvas backing store. Surfaces that also implement
// FrameScheduler drive the render loop themselves.
type Surface interface {
	Clear() error
	Delete() error
}

type FrameScheduler interface {
	RequestAnimationFrame(fn sched.FrameFunc) (sched.FrameID, error)
	CancelAnimationFrame(id sched.FrameID) error
}

type AnimationRuntime interface {
	LoadTextureAtlas(ctx context.Context, path string) (Atlas, error)
	LoadSkeletonData(ctx context.Context, path string, atlas Atlas) (SkeletonData, error)
	NewDrawable(data SkeletonData) (Drawable, error)
	NewRenderer(runtime GraphicsRuntime) (Renderer, error)
}

// Atlas is only handed back to the runtime that produced it.
type Atlas any

type SkeletonData interface {
	// AnimationNames lists animations in declaration order.
	AnimationNames() []string
}

type Drawable interface {
	Skeleton() Skeleton
	AnimationState() AnimationState
	// Update advances the animation clock by delta seconds and poses the
	// skeleton.
	Update(delta float32)
}

type Skeleton interface {
	Scale() (x, y float32)
	SetScale(x, y float32)
	SetPosition(x, y float32)
	SetToSetupPose()
	UpdateWorldTransform()
}

type AnimationState interface {
	ClearTracks()
	ClearListeners()
	Update(delta float32)
	Apply(skeleton Skeleton) bool
	// SetAnimation returns a nil entry when the track could not be set.
	SetAnimation(track int, name string, loop bool) (TrackEntry, error)
	Current(track int) TrackEntry
}

// EventSource is implemented by animation states that report playback
// events. ClearListeners removes what AddListener registered.
type EventSource interface {
	AddListener(listener Listener)
}

// Listener receives playback events by animation name, nil fields are
// skipped.
type Listener struct {
	OnComplete func(animation string)
	OnEvent    func(animation, event string)
}

type TrackEntry interface {
	AnimationName() string
	Loop() bool
	TrackTime() float32
	SetTrackTime(t float32)
}

type Renderer interface {
	Render(surface Surface, drawable Drawable) error
}

// Disposer is implemented by renderers holding resources of their own.
type Disposer interface {
	Dispose()
}

// Notifier receives what the presentation layer shows.
type Notifier interface {
	Animations(id string, names []string)
	Error(id string, msg string)
	Debug(id string, line string)
}

// NotifierFuncs adapts plain functions, nil fields are skipped.
type NotifierFuncs struct {
	OnAnimations func(id string, names []string)
	OnError      func(id string, msg string)
	OnDebug      func(id string, line string)
}

func (n NotifierFuncs) Animations(id string, names []string) {
	if n.OnAnimations != nil {
		n.OnAnimations(id, names)
	}
}

func (n NotifierFuncs) Error(id string, msg string) {
	if n.OnError != nil {
		n.OnError(id, msg)
	}
}

func (n NotifierFuncs) Debug(id string, line string) {
	if n.OnDebug != nil {
		n.OnDebug(id, line)
	}
}
