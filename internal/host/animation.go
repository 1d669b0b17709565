package host

import (
	"context"
	"fmt"

	"github.com/sk2233/spineview/internal/character"
	"github.com/sk2233/spineview/internal/spine"
)

// Animation is the animation runtime on top of internal/spine.
type Animation struct {
	fetch spine.FetchFunc
}

// NewAnimation loads assets through fetch, usually assets.Fetcher.Fetch.
func NewAnimation(fetch spine.FetchFunc) *Animation {
	return &Animation{fetch: fetch}
}

func (a *Animation) LoadTextureAtlas(ctx context.Context, path string) (character.Atlas, error) {
	atlas, err := spine.LoadTextureAtlas(ctx, path, a.fetch)
	if err != nil {
		return nil, err
	}
	return atlas, nil
}

func (a *Animation) LoadSkeletonData(ctx context.Context, path string, atlas character.Atlas) (character.SkeletonData, error) {
	textures, ok := atlas.(*spine.Atlas)
	if !ok {
		return nil, fmt.Errorf("host: unexpected atlas %T", atlas)
	}
	data, err := spine.LoadSkeletonData(ctx, path, textures, a.fetch)
	if err != nil {
		return nil, err
	}
	return &skeletonData{data: data}, nil
}

func (a *Animation) NewDrawable(data character.SkeletonData) (character.Drawable, error) {
	item, ok := data.(*skeletonData)
	if !ok {
		return nil, fmt.Errorf("host: unexpected skeleton data %T", data)
	}
	res := spine.NewDrawable(item.data)
	return &drawable{
		drawable: res,
		skeleton: &skeleton{skeleton: res.Skeleton},
		state:    &animationState{state: res.State},
	}, nil
}

func (a *Animation) NewRenderer(runtime character.GraphicsRuntime) (character.Renderer, error) {
	if _, ok := runtime.(*Runtime); !ok {
		return nil, fmt.Errorf("host: unexpected graphics runtime %T", runtime)
	}
	return &renderer{renderer: spine.NewRenderer()}, nil
}

type skeletonData struct {
	data *spine.SkeletonData
}

func (d *skeletonData) AnimationNames() []string {
	return d.data.AnimationNames()
}

type drawable struct {
	drawable *spine.Drawable
	skeleton *skeleton
	state    *animationState
}

func (d *drawable) Skeleton() character.Skeleton {
	return d.skeleton
}

func (d *drawable) AnimationState() character.AnimationState {
	return d.state
}

func (d *drawable) Update(delta float32) {
	d.drawable.Update(delta)
}

type skeleton struct {
	skeleton *spine.Skeleton
}

func (s *skeleton) Scale() (float32, float32) {
	return s.skeleton.ScaleX, s.skeleton.ScaleY
}

func (s *skeleton) SetScale(x, y float32) {
	s.skeleton.ScaleX, s.skeleton.ScaleY = x, y
}

func (s *skeleton) SetPosition(x, y float32) {
	s.skeleton.X, s.skeleton.Y = x, y
}

func (s *skeleton) SetToSetupPose() {
	s.skeleton.SetToSetupPose()
}

func (s *skeleton) UpdateWorldTransform() {
	s.skeleton.UpdateWorldTransform()
}

type animationState struct {
	state *spine.AnimationState
}

func (s *animationState) ClearTracks() {
	s.state.ClearTracks()
}

func (s *animationState) ClearListeners() {
	s.state.ClearListeners()
}

func (s *animationState) Update(delta float32) {
	s.state.Update(delta)
}

func (s *animationState) Apply(skel character.Skeleton) bool {
	item, ok := skel.(*skeleton)
	if !ok {
		return false
	}
	return s.state.Apply(item.skeleton)
}

func (s *animationState) SetAnimation(track int, name string, loop bool) (character.TrackEntry, error) {
	entry, err := s.state.SetAnimation(track, name, loop)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return &trackEntry{entry: entry}, nil
}

func (s *animationState) Current(track int) character.TrackEntry {
	entry := s.state.Current(track)
	if entry == nil {
		return nil
	}
	return &trackEntry{entry: entry}
}

func (s *animationState) AddListener(listener character.Listener) {
	s.state.AddListener(spine.ListenerFuncs{
		OnComplete: func(entry *spine.TrackEntry) {
			if listener.OnComplete != nil {
				listener.OnComplete(entry.Animation.Name)
			}
		},
		OnEvent: func(entry *spine.TrackEntry, event *spine.Event) {
			if listener.OnEvent != nil {
				listener.OnEvent(entry.Animation.Name, event.Data.Name)
			}
		},
	})
}

type trackEntry struct {
	entry *spine.TrackEntry
}

func (e *trackEntry) AnimationName() string {
	return e.entry.Animation.Name
}

func (e *trackEntry) Loop() bool {
	return e.entry.Loop
}

func (e *trackEntry) TrackTime() float32 {
	return e.entry.TrackTime
}

func (e *trackEntry) SetTrackTime(t float32) {
	e.entry.SetTrackTime(t)
}

type renderer struct {
	renderer *spine.Renderer
}

func (r *renderer) Render(surface character.Surface, d character.Drawable) error {
	target, ok := surface.(*Surface)
	if !ok {
		return fmt.Errorf("host: unexpected surface %T", surface)
	}
	if target.Deleted() {
		return ErrSurfaceDeleted
	}
	item, ok := d.(*drawable)
	if !ok {
		return fmt.Errorf("host: unexpected drawable %T", d)
	}
	return r.renderer.Draw(target.Image(), item.drawable.Skeleton, target.GeoM())
}

func (r *renderer) Dispose() {
	r.renderer.Dispose()
}
