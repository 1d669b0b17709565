// Package viewer hosts every configured character in one ebiten window. The
// Controller owns the sessions and is driven from the scheduler goroutine;
// Game adapts it to ebiten.
package viewer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sk2233/spineview/internal/character"
	"github.com/sk2233/spineview/internal/config"
	"github.com/sk2233/spineview/internal/logging"
	"github.com/sk2233/spineview/internal/sched"
)

const (
	MinScale  = 0.05
	MaxScale  = 3
	ScaleStep = 0.05
)

var (
	ErrUnknownCharacter = errors.New("unknown character")
	ErrNotReady         = errors.New("character not ready")
)

type Options struct {
	Scheduler *sched.Scheduler
	Libraries character.Libraries
	Shared    *character.SharedRuntime
	Logger    *logging.Logger
	Feed      *logging.Feed
	// Notifiers receive every session notification after the controller.
	Notifiers []character.Notifier
	// DeviceScale is the canvas backing scale, 0 lets the graphics runtime
	// decide.
	DeviceScale float64
}

type entry struct {
	config     config.CharacterConfig
	session    *character.Session
	err        string
	startTimer *sched.Timer
}

// View is what Game needs to draw one character.
type View struct {
	ID      string
	Rect    config.Rect
	Surface character.Surface
	Err     string
}

type Controller struct {
	sched       *sched.Scheduler
	libs        character.Libraries
	shared      *character.SharedRuntime
	log         *logging.Logger
	feed        *logging.Feed
	notifiers   []character.Notifier
	deviceScale float64

	timings  character.Timings
	stagger  time.Duration
	playing  bool
	entries  []*entry
	selected int
	started  bool
}

func NewController(cfg *config.Config, opts Options) *Controller {
	res := &Controller{
		sched:       opts.Scheduler,
		libs:        opts.Libraries,
		shared:      opts.Shared,
		log:         opts.Logger,
		feed:        opts.Feed,
		notifiers:   opts.Notifiers,
		deviceScale: opts.DeviceScale,
	}
	if res.shared == nil {
		res.shared = &character.SharedRuntime{}
	}
	if res.log == nil {
		res.log = logging.NopLogger()
	}
	res.log = res.log.WithComponent("viewer")
	if res.feed == nil {
		res.feed = logging.NewFeed(cfg.Logging.FeedLimit)
	}
	res.applySettings(cfg)
	for _, cc := range cfg.Characters {
		res.entries = append(res.entries, &entry{config: cc, session: res.newSession(cc)})
	}
	return res
}

func timings(t config.TimingConfig) character.Timings {
	return character.Timings{
		PollInterval:      t.PollInterval(),
		ReadyTimeout:      t.ReadyTimeout(),
		LoopStartDelay:    t.LoopStartDelay(),
		SwitchSettle:      t.SwitchSettle(),
		RescheduleBackoff: t.RescheduleBackoff(),
	}
}

func (c *Controller) applySettings(cfg *config.Config) {
	c.timings = timings(cfg.Timings)
	c.stagger = cfg.Timings.StartStagger()
	c.playing = cfg.Playing
}

func (c *Controller) newSession(cc config.CharacterConfig) *character.Session {
	return character.New(character.Options{
		ID:           cc.ID,
		AtlasPath:    cc.Atlas,
		SkeletonPath: cc.Skeleton,
		Scale:        float32(cc.Scale),
		Position:     position(cc.Position),
		Canvas: character.Canvas{
			ID:          cc.ID,
			Width:       cc.Canvas.Width,
			Height:      cc.Canvas.Height,
			DeviceScale: c.deviceScale,
		},
		Playing: c.playing,
	}, character.Deps{
		Scheduler: c.sched,
		Libraries: c.libs,
		Shared:    c.shared,
		Notifier:  c,
		Logger:    c.log,
		Timings:   c.timings,
	})
}

func position(p *config.Position) *character.Position {
	if p == nil {
		return nil
	}
	return &character.Position{X: float32(p.X), Y: float32(p.Y)}
}

func samePosition(a, b *config.Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Start starts the sessions one stagger interval apart, in config order.
func (c *Controller) Start() {
	if c.started {
		return
	}
	c.started = true
	for i, e := range c.entries {
		c.startLater(e, time.Duration(i)*c.stagger)
	}
}

func (c *Controller) startLater(e *entry, delay time.Duration) {
	e.startTimer = c.sched.AfterFunc(delay, func() {
		e.startTimer = nil
		e.session.Start()
	})
}

// Close disposes every session.
func (c *Controller) Close() {
	for _, e := range c.entries {
		e.startTimer.Stop()
		e.session.Close()
	}
	c.log.Info("viewer closed", "characters", len(c.entries))
}

func (c *Controller) find(id string) *entry {
	for _, e := range c.entries {
		if e.config.ID == id {
			return e
		}
	}
	return nil
}

// Session returns the session of id, or nil.
func (c *Controller) Session(id string) *character.Session {
	if e := c.find(id); e != nil {
		return e.session
	}
	return nil
}

// Selected is the id of the character the keyboard controls.
func (c *Controller) Selected() string {
	if len(c.entries) == 0 {
		return ""
	}
	return c.entries[c.selected].config.ID
}

func (c *Controller) Select(delta int) {
	n := len(c.entries)
	if n == 0 {
		return
	}
	c.selected = ((c.selected+delta)%n + n) % n
}

// StepAnimation moves the selected character delta entries through its
// catalog, wrapping around.
func (c *Controller) StepAnimation(delta int) {
	if len(c.entries) == 0 {
		return
	}
	s := c.entries[c.selected].session
	names := s.Animations()
	n := len(names)
	if n == 0 {
		return
	}
	idx := slices.Index(names, s.Current())
	if idx < 0 {
		idx = 0
	}
	// the session logs a blocked step
	_ = s.SetAnimation(names[((idx+delta)%n+n)%n])
}

// AdjustScale changes the selected character's scale by delta, clamped to
// MinScale..MaxScale.
func (c *Controller) AdjustScale(delta float32) {
	if len(c.entries) == 0 {
		return
	}
	s := c.entries[c.selected].session
	s.SetScale(clampScale(s.Scale() + delta))
}

func clampScale(v float32) float32 {
	v = float32(math.Round(float64(v)*100) / 100)
	return min(max(v, MinScale), MaxScale)
}

func (c *Controller) Playing() bool {
	return c.playing
}

func (c *Controller) TogglePlaying() {
	c.SetPlaying(!c.playing)
}

// SetPlaying applies one play flag to every character.
func (c *Controller) SetPlaying(playing bool) {
	c.playing = playing
	for _, e := range c.entries {
		e.session.SetPlaying(playing)
	}
}

func (c *Controller) SetAnimation(id, name string) error {
	e := c.find(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	if e.session.State() != character.Ready {
		return fmt.Errorf("%w: %s is %s", ErrNotReady, id, e.session.State())
	}
	if !slices.Contains(e.session.Animations(), name) {
		return fmt.Errorf("%w: %s", character.ErrUnknownAnimation, name)
	}
	return e.session.SetAnimation(name)
}

func (c *Controller) SetScale(id string, scale float32) error {
	e := c.find(id)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	if scale < MinScale || scale > MaxScale {
		return fmt.Errorf("scale %v out of range %v..%v", scale, MinScale, MaxScale)
	}
	e.session.SetScale(scale)
	return nil
}

// ApplyConfig follows a reloaded configuration. Changed assets reload the
// character and changed scale or position apply in place. Characters with a
// new canvas are recreated. Timings only affect sessions created afterwards.
func (c *Controller) ApplyConfig(cfg *config.Config) {
	selected := c.Selected()
	c.applySettings(cfg)

	entries := make([]*entry, 0, len(cfg.Characters))
	for _, cc := range cfg.Characters {
		e := c.find(cc.ID)
		switch {
		case e == nil:
			e = &entry{config: cc, session: c.newSession(cc)}
			c.log.Info("character added", "id", cc.ID)
			if c.started {
				c.startLater(e, 0)
			}
		case e.config.Canvas != cc.Canvas:
			e.startTimer.Stop()
			e.session.Close()
			e = &entry{config: cc, session: c.newSession(cc)}
			c.log.Info("character canvas changed", "id", cc.ID)
			if c.started {
				c.startLater(e, 0)
			}
		default:
			if e.config.Atlas != cc.Atlas || e.config.Skeleton != cc.Skeleton {
				e.err = ""
			}
			e.session.SetAssets(cc.Atlas, cc.Skeleton)
			if cc.Scale != e.config.Scale {
				e.session.SetScale(float32(cc.Scale))
			}
			if !samePosition(cc.Position, e.config.Position) {
				e.session.SetPosition(position(cc.Position))
			}
			e.config = cc
		}
		entries = append(entries, e)
	}
	for _, e := range c.entries {
		if cfg.FindCharacter(e.config.ID) == nil {
			e.startTimer.Stop()
			e.session.Close()
			c.log.Info("character removed", "id", e.config.ID)
		}
	}
	c.entries = entries

	c.selected = 0
	for i, e := range c.entries {
		if e.config.ID == selected {
			c.selected = i
		}
	}
	c.SetPlaying(cfg.Playing)
	c.log.Info("config applied", "characters", len(c.entries))
}

// Views lists the characters in draw order.
func (c *Controller) Views() []View {
	res := make([]View, 0, len(c.entries))
	for _, e := range c.entries {
		res = append(res, View{
			ID:      e.config.ID,
			Rect:    e.config.Canvas,
			Surface: e.session.Surface(),
			Err:     e.err,
		})
	}
	return res
}

// Feed is the newest-first debug text.
func (c *Controller) Feed() string {
	return c.feed.String()
}

// PanelText describes the selected character and the key bindings.
func (c *Controller) PanelText() string {
	if len(c.entries) == 0 {
		return "no characters configured"
	}
	e := c.entries[c.selected]
	s := e.session
	var sb strings.Builder
	fmt.Fprintf(&sb, "[Tab] %s (%d/%d) %s\n", e.config.ID, c.selected+1, len(c.entries), s.State())
	names := s.Animations()
	if idx := slices.Index(names, s.Current()); idx >= 0 {
		fmt.Fprintf(&sb, "[J/K] %s (%d/%d)\n", names[idx], idx+1, len(names))
	} else {
		sb.WriteString("[J/K] -\n")
	}
	fmt.Fprintf(&sb, "[-/=] scale %.2f\n", s.Scale())
	if c.playing {
		sb.WriteString("[Space] playing\n")
	} else {
		sb.WriteString("[Space] paused\n")
	}
	return sb.String()
}

func (c *Controller) Animations(id string, names []string) {
	if e := c.find(id); e != nil {
		e.err = ""
	}
	c.feed.Add(fmt.Sprintf("%s: %d animations", id, len(names)))
	for _, n := range c.notifiers {
		n.Animations(id, names)
	}
}

func (c *Controller) Error(id string, msg string) {
	if e := c.find(id); e != nil {
		e.err = msg
	}
	for _, n := range c.notifiers {
		n.Error(id, msg)
	}
}

func (c *Controller) Debug(id string, line string) {
	c.feed.Add(id + ": " + line)
	for _, n := range c.notifiers {
		n.Debug(id, line)
	}
}
