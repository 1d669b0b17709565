package character

import (
	"context"
	"fmt"
	"time"
)

// Readiness is one probe result.
type Readiness struct {
	GraphicsReady  bool
	AnimationReady bool
}

func (r Readiness) Ready() bool {
	return r.GraphicsReady && r.AnimationReady
}

// ProbeLibraries checks libs once.
func ProbeLibraries(libs Libraries) Readiness {
	_, graphics := libs.Graphics()
	_, animation := libs.Animation()
	return Readiness{GraphicsReady: graphics, AnimationReady: animation}
}

// Gate waits for both runtimes to become available.
type Gate struct {
	Probe    func() Readiness
	Interval time.Duration
	Timeout  time.Duration
}

// Wait probes immediately and then every Interval. It returns nil once a
// probe is ready, ErrLibraryTimeout after Timeout, or the context error.
// Nothing is probed after Wait returns.
func (g *Gate) Wait(ctx context.Context) error {
	if g.Probe().Ready() {
		return nil
	}
	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()
	timeout := time.NewTimer(g.Timeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout.C:
			last := g.Probe()
			if last.Ready() {
				return nil
			}
			return fmt.Errorf("%w after %v (graphics: %t, animation: %t)",
				ErrLibraryTimeout, g.Timeout, last.GraphicsReady, last.AnimationReady)
		case <-ticker.C:
			if g.Probe().Ready() {
				return nil
			}
		}
	}
}
