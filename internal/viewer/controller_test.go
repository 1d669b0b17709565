package viewer

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sk2233/spineview/internal/character"
	"github.com/sk2233/spineview/internal/config"
	"github.com/sk2233/spineview/internal/sched"
)

type fakeLibs struct {
	anim *fakeAnimation
}

func (l *fakeLibs) Graphics() (character.GraphicsFactory, bool)   { return fakeGraphics{}, true }
func (l *fakeLibs) Animation() (character.AnimationRuntime, bool) { return l.anim, true }

type fakeGraphics struct{}

func (fakeGraphics) CheckCapability() error { return nil }
func (fakeGraphics) NewRuntime(context.Context) (character.GraphicsRuntime, error) {
	return fakeGraphics{}, nil
}
func (fakeGraphics) MakeSurface(character.Canvas) (character.Surface, error) {
	return &fakeSurface{}, nil
}

type fakeSurface struct {
	deleted bool
}

func (s *fakeSurface) Clear() error  { return nil }
func (s *fakeSurface) Delete() error { s.deleted = true; return nil }

// fakeAnimation serves catalogs keyed by skeleton path. Unknown paths fail
// to load.
type fakeAnimation struct {
	catalogs map[string][]string
}

func (a *fakeAnimation) LoadTextureAtlas(_ context.Context, path string) (character.Atlas, error) {
	return path, nil
}

func (a *fakeAnimation) LoadSkeletonData(_ context.Context, path string, _ character.Atlas) (character.SkeletonData, error) {
	names, ok := a.catalogs[path]
	if !ok {
		return nil, errors.New("could not load file " + path + ": 404")
	}
	return fakeData(names), nil
}

func (a *fakeAnimation) NewDrawable(data character.SkeletonData) (character.Drawable, error) {
	return &fakeDrawable{
		skeleton: &fakeSkeleton{},
		state:    &fakeState{catalog: data.AnimationNames()},
	}, nil
}

func (a *fakeAnimation) NewRenderer(character.GraphicsRuntime) (character.Renderer, error) {
	return fakeRenderer{}, nil
}

type fakeData []string

func (d fakeData) AnimationNames() []string { return d }

type fakeDrawable struct {
	skeleton *fakeSkeleton
	state    *fakeState
}

func (d *fakeDrawable) Skeleton() character.Skeleton             { return d.skeleton }
func (d *fakeDrawable) AnimationState() character.AnimationState { return d.state }
func (d *fakeDrawable) Update(delta float32)                     { d.state.Update(delta) }

type fakeSkeleton struct {
	scaleX, scaleY float32
	x, y           float32
}

func (s *fakeSkeleton) Scale() (float32, float32) { return s.scaleX, s.scaleY }
func (s *fakeSkeleton) SetScale(x, y float32)     { s.scaleX, s.scaleY = x, y }
func (s *fakeSkeleton) SetPosition(x, y float32)  { s.x, s.y = x, y }
func (s *fakeSkeleton) SetToSetupPose()           {}
func (s *fakeSkeleton) UpdateWorldTransform()     {}

type fakeState struct {
	catalog []string
	track   *fakeEntry
}

func (s *fakeState) ClearTracks()                  { s.track = nil }
func (s *fakeState) ClearListeners()               {}
func (s *fakeState) Apply(character.Skeleton) bool { return s.track != nil }
func (s *fakeState) Update(delta float32) {
	if s.track != nil {
		s.track.time += delta
	}
}

func (s *fakeState) SetAnimation(_ int, name string, loop bool) (character.TrackEntry, error) {
	if !slices.Contains(s.catalog, name) {
		return nil, errors.New("animation not found: " + name)
	}
	s.track = &fakeEntry{name: name, loop: loop}
	return s.track, nil
}

func (s *fakeState) Current(int) character.TrackEntry {
	if s.track == nil {
		return nil
	}
	return s.track
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

type fakeRenderer struct{}

func (fakeRenderer) Render(character.Surface, character.Drawable) error { return nil }

type recorder struct {
	animations []string
	errors     []string
	debug      []string
}

func (r *recorder) Animations(id string, names []string) {
	r.animations = append(r.animations, id+":"+strings.Join(names, ","))
}
func (r *recorder) Error(id string, msg string)  { r.errors = append(r.errors, id+":"+msg) }
func (r *recorder) Debug(id string, line string) { r.debug = append(r.debug, id+":"+line) }

type harness struct {
	t     *testing.T
	now   time.Time
	sched *sched.Scheduler
	anim  *fakeAnimation
	notes *recorder
	ctrl  *Controller
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Characters = []config.CharacterConfig{
		{
			ID:       "hero",
			Atlas:    "hero/hero.atlas",
			Skeleton: "hero/hero.skel",
			Scale:    0.5,
			Canvas:   config.Rect{Width: 400, Height: 300},
		},
		{
			ID:       "villain",
			Atlas:    "villain/villain.atlas",
			Skeleton: "villain/villain.skel",
			Scale:    1,
			Position: &config.Position{X: 100, Y: 200},
			Canvas:   config.Rect{X: 400, Width: 400, Height: 300},
		},
	}
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := &harness{
		t:     t,
		now:   now,
		sched: sched.New(now),
		anim: &fakeAnimation{catalogs: map[string][]string{
			"hero/hero.skel":       {"idle", "walk", "jump"},
			"villain/villain.skel": {"stand", "attack"},
			"hero/hero2.skel":      {"wave"},
		}},
		notes: &recorder{},
	}
	h.ctrl = NewController(cfg, Options{
		Scheduler:   h.sched,
		Libraries:   &fakeLibs{anim: h.anim},
		Notifiers:   []character.Notifier{h.notes},
		DeviceScale: 1,
	})
	t.Cleanup(h.ctrl.Close)
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
	h.sched.Tick(h.now)
}

func (h *harness) waitState(id string, want character.LoadState) *character.Session {
	h.t.Helper()
	s := h.ctrl.Session(id)
	if s == nil {
		h.t.Fatalf("no session %s", id)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			h.t.Fatalf("%s state = %s, want %s", id, s.State(), want)
		}
		h.sched.Tick(h.now)
		time.Sleep(time.Millisecond)
	}
	return s
}

func (h *harness) startAll() {
	h.ctrl.Start()
	h.advance(0)
	h.advance(300 * time.Millisecond)
	h.waitState("hero", character.Ready)
	h.waitState("villain", character.Ready)
}

func TestControllerStartsStaggered(t *testing.T) {
	h := newHarness(t, testConfig())
	h.ctrl.Start()
	h.advance(0)
	if got := h.ctrl.Session("hero").State(); got == character.Idle {
		t.Error("first character should start immediately")
	}
	if got := h.ctrl.Session("villain").State(); got != character.Idle {
		t.Errorf("villain state = %s before its stagger delay", got)
	}
	h.advance(300 * time.Millisecond)
	h.waitState("hero", character.Ready)
	h.waitState("villain", character.Ready)

	if !slices.Contains(h.notes.animations, "hero:idle,walk,jump") || !slices.Contains(h.notes.animations, "villain:stand,attack") {
		t.Errorf("forwarded catalogs = %v", h.notes.animations)
	}
	if !strings.Contains(h.ctrl.Feed(), "villain: 2 animations") {
		t.Errorf("feed = %q", h.ctrl.Feed())
	}
	views := h.ctrl.Views()
	if len(views) != 2 || views[0].ID != "hero" || views[1].Rect.X != 400 || views[0].Surface == nil {
		t.Errorf("views = %+v", views)
	}
}

func TestControllerKeyboard(t *testing.T) {
	h := newHarness(t, testConfig())
	h.startAll()

	if h.ctrl.Selected() != "hero" {
		t.Fatalf("Selected() = %q", h.ctrl.Selected())
	}
	h.ctrl.Select(1)
	h.ctrl.Select(1)
	if h.ctrl.Selected() != "hero" {
		t.Errorf("selection should wrap, got %q", h.ctrl.Selected())
	}
	h.ctrl.Select(-1)
	if h.ctrl.Selected() != "villain" {
		t.Errorf("Select(-1) = %q, want villain", h.ctrl.Selected())
	}
	h.ctrl.Select(1)

	hero := h.ctrl.Session("hero")
	h.ctrl.StepAnimation(1)
	if hero.Current() != "walk" {
		t.Errorf("K: current = %q, want walk", hero.Current())
	}
	h.ctrl.StepAnimation(1)
	if hero.Current() != "walk" {
		t.Errorf("switch during settle should be ignored, current = %q", hero.Current())
	}
	h.advance(200 * time.Millisecond)
	h.ctrl.StepAnimation(-1)
	h.advance(200 * time.Millisecond)
	h.ctrl.StepAnimation(-1)
	if hero.Current() != "jump" {
		t.Errorf("J should wrap to the last animation, current = %q", hero.Current())
	}

	h.ctrl.AdjustScale(ScaleStep)
	if hero.Scale() != 0.55 {
		t.Errorf("scale = %v, want 0.55", hero.Scale())
	}
	for i := 0; i < 20; i++ {
		h.ctrl.AdjustScale(-ScaleStep)
	}
	if hero.Scale() != MinScale {
		t.Errorf("scale = %v, want clamped to %v", hero.Scale(), MinScale)
	}

	h.ctrl.TogglePlaying()
	if h.ctrl.Playing() || hero.Playing() || h.ctrl.Session("villain").Playing() {
		t.Error("toggle should pause every character")
	}
	h.ctrl.TogglePlaying()
	if !hero.Playing() || !h.ctrl.Session("villain").Playing() {
		t.Error("toggle should resume every character")
	}

	panel := h.ctrl.PanelText()
	for _, want := range []string{"hero (1/2) ready", "jump (3/3)", "scale 0.05", "playing"} {
		if !strings.Contains(panel, want) {
			t.Errorf("panel %q missing %q", panel, want)
		}
	}
}

func TestControllerCommands(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.ctrl.SetAnimation("hero", "walk"); !errors.Is(err, ErrNotReady) {
		t.Errorf("SetAnimation before start = %v", err)
	}
	h.startAll()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown character", h.ctrl.SetAnimation("ghost", "walk"), ErrUnknownCharacter},
		{"unknown animation", h.ctrl.SetAnimation("villain", "fly"), character.ErrUnknownAnimation},
		{"scale out of range", h.ctrl.SetScale("hero", 5), nil},
		{"scale unknown character", h.ctrl.SetScale("ghost", 1), ErrUnknownCharacter},
	}
	for _, tt := range tests {
		if tt.err == nil {
			t.Errorf("%s: expected an error", tt.name)
			continue
		}
		if tt.want != nil && !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, tt.err, tt.want)
		}
	}

	if err := h.ctrl.SetAnimation("villain", "attack"); err != nil {
		t.Fatal(err)
	}
	if got := h.ctrl.Session("villain").Current(); got != "attack" {
		t.Errorf("villain current = %q", got)
	}
	if err := h.ctrl.SetAnimation("villain", "stand"); !errors.Is(err, character.ErrSwitchInFlight) {
		t.Errorf("SetAnimation while the switch settles = %v, want ErrSwitchInFlight", err)
	}
	if got := h.ctrl.Session("villain").Current(); got != "attack" {
		t.Errorf("villain current = %q after a blocked request", got)
	}
	if err := h.ctrl.SetScale("villain", 2); err != nil {
		t.Fatal(err)
	}
	if got := h.ctrl.Session("villain").Scale(); got != 2 {
		t.Errorf("villain scale = %v", got)
	}
}

func TestControllerApplyConfig(t *testing.T) {
	h := newHarness(t, testConfig())
	h.startAll()
	villain := h.ctrl.Session("villain")
	h.ctrl.Select(1)
	h.ctrl.AdjustScale(ScaleStep)

	cfg := testConfig()
	cfg.Playing = false
	cfg.Characters[0].Skeleton = "hero/hero2.skel"
	cfg.Characters[0].Scale = 0.75
	cfg.Characters[1] = config.CharacterConfig{
		ID:       "sidekick",
		Atlas:    "villain/villain.atlas",
		Skeleton: "villain/villain.skel",
		Scale:    1,
		Canvas:   config.Rect{X: 800, Width: 200, Height: 300},
	}
	h.ctrl.ApplyConfig(cfg)
	h.advance(0)

	if villain.State() != character.Disposed {
		t.Errorf("removed character state = %s", villain.State())
	}
	if h.ctrl.Session("villain") != nil {
		t.Error("removed character still listed")
	}
	if h.ctrl.Selected() != "hero" {
		t.Errorf("selection should fall back to the first character, got %q", h.ctrl.Selected())
	}

	hero := h.waitState("hero", character.Ready)
	if !slices.Equal(hero.Animations(), []string{"wave"}) {
		t.Errorf("hero reloaded catalog = %v", hero.Animations())
	}
	if hero.Scale() != 0.75 || hero.Playing() {
		t.Errorf("hero scale %v playing %t", hero.Scale(), hero.Playing())
	}
	sidekick := h.waitState("sidekick", character.Ready)
	if sidekick.Playing() {
		t.Error("new character should follow the play flag")
	}

	// 未改动的缩放保持键盘调整的值
	h.ctrl.AdjustScale(ScaleStep)
	h.ctrl.ApplyConfig(cfg)
	if hero.Scale() != 0.8 {
		t.Errorf("unchanged config scale overrode the adjusted one: %v", hero.Scale())
	}
}

func TestControllerCanvasChangeRecreates(t *testing.T) {
	h := newHarness(t, testConfig())
	h.startAll()
	old := h.ctrl.Session("hero")

	cfg := testConfig()
	cfg.Characters[0].Canvas.Width = 500
	h.ctrl.ApplyConfig(cfg)
	h.advance(0)

	if old.State() != character.Disposed {
		t.Errorf("old session state = %s", old.State())
	}
	hero := h.waitState("hero", character.Ready)
	if hero == old || hero.Canvas().Width != 500 {
		t.Errorf("hero canvas = %+v", hero.Canvas())
	}
}

func TestControllerErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Characters[1].Skeleton = "villain/missing.skel"
	h := newHarness(t, cfg)
	h.ctrl.Start()
	h.advance(0)
	h.advance(300 * time.Millisecond)
	h.waitState("hero", character.Ready)
	h.waitState("villain", character.Failed)

	views := h.ctrl.Views()
	if views[0].Err != "" || !strings.Contains(views[1].Err, "asset fetch failure") {
		t.Errorf("view errors = %q, %q", views[0].Err, views[1].Err)
	}
	if len(h.notes.errors) != 1 || !strings.HasPrefix(h.notes.errors[0], "villain:") {
		t.Errorf("forwarded errors = %v", h.notes.errors)
	}
	if !strings.Contains(h.ctrl.Feed(), "villain/missing.skel") {
		t.Errorf("feed = %q", h.ctrl.Feed())
	}

	cfg.Characters[1].Skeleton = "villain/villain.skel"
	h.ctrl.ApplyConfig(cfg)
	h.advance(0)
	h.waitState("villain", character.Ready)
	if h.ctrl.Views()[1].Err != "" {
		t.Errorf("error should clear after a successful reload, got %q", h.ctrl.Views()[1].Err)
	}
}

func TestControllerEmpty(t *testing.T) {
	cfg := config.Default()
	h := newHarness(t, cfg)
	h.ctrl.Start()
	h.ctrl.Select(1)
	h.ctrl.StepAnimation(1)
	h.ctrl.AdjustScale(ScaleStep)
	if h.ctrl.Selected() != "" || h.ctrl.PanelText() != "no characters configured" {
		t.Errorf("selected %q panel %q", h.ctrl.Selected(), h.ctrl.PanelText())
	}
}
