package viewer

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sk2233/spineview/internal/config"
	"github.com/sk2233/spineview/internal/host"
	"github.com/sk2233/spineview/internal/sched"
)

const panelHeight = 80

// Game runs the scheduler from ebiten's update loop and composes the
// character surfaces onto the screen.
type Game struct {
	controller *Controller
	sched      *sched.Scheduler
	registry   *host.Registry
	window     config.WindowConfig
	done       <-chan struct{}
	published  bool
	showPanel  bool
}

// NewGame creates the game. Closing done, or closing the window, disposes
// every character and ends the loop.
func NewGame(controller *Controller, s *sched.Scheduler, registry *host.Registry, window config.WindowConfig, done <-chan struct{}) *Game {
	return &Game{
		controller: controller,
		sched:      s,
		registry:   registry,
		window:     window,
		done:       done,
		showPanel:  true,
	}
}

// DeviceScale is the configured scale, or the monitor's.
func DeviceScale(window config.WindowConfig) float64 {
	if window.DeviceScale > 0 {
		return window.DeviceScale
	}
	return ebiten.Monitor().DeviceScaleFactor()
}

func (g *Game) Update() error {
	select {
	case <-g.done:
		return g.shutdown()
	default:
	}
	if ebiten.IsWindowBeingClosed() {
		return g.shutdown()
	}
	// 图形资源只能在游戏循环开始后创建
	if !g.published {
		g.published = true
		g.registry.PublishGraphics(host.NewGraphics(g.sched, DeviceScale(g.window)))
	}
	g.handleInput()
	g.sched.Tick(time.Now())
	return nil
}

func (g *Game) shutdown() error {
	g.controller.Close()
	return ebiten.Termination
}

func (g *Game) handleInput() {
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		if ebiten.IsKeyPressed(ebiten.KeyShift) {
			g.controller.Select(-1)
		} else {
			g.controller.Select(1)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyJ) {
		g.controller.StepAnimation(-1)
	} else if inpututil.IsKeyJustPressed(ebiten.KeyK) {
		g.controller.StepAnimation(1)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) {
		g.controller.AdjustScale(-ScaleStep)
	} else if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		g.controller.AdjustScale(ScaleStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.controller.TogglePlaying()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF1) {
		g.showPanel = !g.showPanel
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	scale := DeviceScale(g.window)
	for _, view := range g.controller.Views() {
		if surface, ok := view.Surface.(*host.Surface); ok {
			surface.Draw(screen, float64(view.Rect.X), float64(view.Rect.Y), scale)
		}
		if view.Err != "" {
			x := int(float64(view.Rect.X)*scale) + 8
			y := int(float64(view.Rect.Y)*scale) + 8
			ebitenutil.DebugPrintAt(screen, view.Err, x, y)
		}
	}
	if !g.showPanel {
		return
	}
	ebitenutil.DebugPrint(screen, g.controller.PanelText())
	ebitenutil.DebugPrintAt(screen, g.controller.Feed(), 0, panelHeight)
}

func (g *Game) Layout(w, h int) (int, int) {
	scale := DeviceScale(g.window)
	return int(float64(w) * scale), int(float64(h) * scale)
}
