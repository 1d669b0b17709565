package host

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sk2233/spineview/internal/character"
	"github.com/sk2233/spineview/internal/sched"
)

var ErrSurfaceDeleted = errors.New("host: surface deleted")

// Graphics creates the graphics runtime. Frames of its surfaces run on the
// scheduler.
type Graphics struct {
	sched       *sched.Scheduler
	deviceScale float64
}

// NewGraphics uses deviceScale for canvases that do not set their own, 0
// means 1.
func NewGraphics(s *sched.Scheduler, deviceScale float64) *Graphics {
	if deviceScale <= 0 {
		deviceScale = 1
	}
	return &Graphics{sched: s, deviceScale: deviceScale}
}

// CheckCapability creates and drops a scratch image.
func (g *Graphics) CheckCapability() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", character.ErrCapabilityUnsupported, r)
		}
	}()
	img := ebiten.NewImage(1, 1)
	img.Deallocate()
	return nil
}

func (g *Graphics) NewRuntime(ctx context.Context) (character.GraphicsRuntime, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Runtime{graphics: g}, nil
}

type Runtime struct {
	graphics *Graphics
}

// MakeSurface creates an offscreen image of the canvas size times the device
// scale. Drawing through Surface.GeoM uses logical pixels.
func (r *Runtime) MakeSurface(canvas character.Canvas) (character.Surface, error) {
	if canvas.Width <= 0 || canvas.Height <= 0 {
		return nil, fmt.Errorf("host: canvas %s has no size (%dx%d)", canvas.ID, canvas.Width, canvas.Height)
	}
	scale := canvas.DeviceScale
	if scale <= 0 {
		scale = r.graphics.deviceScale
	}
	canvas.DeviceScale = scale
	w := int(math.Ceil(float64(canvas.Width) * scale))
	h := int(math.Ceil(float64(canvas.Height) * scale))
	res := &Surface{
		canvas: canvas,
		image:  ebiten.NewImage(w, h),
		sched:  r.graphics.sched,
		frames: make(map[sched.FrameID]struct{}),
	}
	res.geoM.Scale(scale, scale)
	return res, nil
}

// Surface is one canvas. It schedules its own frames and drops them when
// deleted.
type Surface struct {
	canvas  character.Canvas
	image   *ebiten.Image
	geoM    ebiten.GeoM
	sched   *sched.Scheduler
	frames  map[sched.FrameID]struct{}
	deleted bool
}

func (s *Surface) Canvas() character.Canvas {
	return s.canvas
}

// Image is the backing image, nil once deleted.
func (s *Surface) Image() *ebiten.Image {
	return s.image
}

// GeoM maps logical canvas pixels to image pixels.
func (s *Surface) GeoM() ebiten.GeoM {
	return s.geoM
}

func (s *Surface) Deleted() bool {
	return s.deleted
}

func (s *Surface) Clear() error {
	if s.deleted {
		return ErrSurfaceDeleted
	}
	s.image.Clear()
	return nil
}

func (s *Surface) Delete() error {
	if s.deleted {
		return nil
	}
	s.deleted = true
	for id := range s.frames {
		_ = s.sched.CancelAnimationFrame(id)
	}
	clear(s.frames)
	if s.image != nil {
		s.image.Deallocate()
		s.image = nil
	}
	return nil
}

func (s *Surface) RequestAnimationFrame(fn sched.FrameFunc) (sched.FrameID, error) {
	if s.deleted {
		return 0, ErrSurfaceDeleted
	}
	var id sched.FrameID
	id, err := s.sched.RequestAnimationFrame(func(now time.Time) {
		delete(s.frames, id)
		fn(now)
	})
	if err != nil {
		return 0, err
	}
	s.frames[id] = struct{}{}
	return id, nil
}

func (s *Surface) CancelAnimationFrame(id sched.FrameID) error {
	if _, ok := s.frames[id]; !ok {
		return sched.ErrUnknownFrame
	}
	delete(s.frames, id)
	return s.sched.CancelAnimationFrame(id)
}

// Draw copies the surface onto dst with the canvas origin at x, y logical
// pixels. screenScale is the device scale of dst.
func (s *Surface) Draw(dst *ebiten.Image, x, y, screenScale float64) {
	if s.deleted {
		return
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Scale(screenScale/s.canvas.DeviceScale, screenScale/s.canvas.DeviceScale)
	op.GeoM.Translate(x*screenScale, y*screenScale)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(s.image, &op)
}
