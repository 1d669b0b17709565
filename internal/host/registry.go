// Package host backs the session capabilities with ebiten images and the
// spine runtime. Nothing here may be used before the ebiten loop has
// produced its first tick, which is why the runtimes are published through
// a Registry.
package host

import (
	"sync/atomic"

	"github.com/sk2233/spineview/internal/character"
)

// Registry publishes the runtimes once they can be used. It is safe for
// concurrent use.
type Registry struct {
	graphics  atomic.Pointer[Graphics]
	animation atomic.Pointer[Animation]
}

func (r *Registry) Graphics() (character.GraphicsFactory, bool) {
	res := r.graphics.Load()
	if res == nil {
		return nil, false
	}
	return res, true
}

func (r *Registry) Animation() (character.AnimationRuntime, bool) {
	res := r.animation.Load()
	if res == nil {
		return nil, false
	}
	return res, true
}

func (r *Registry) PublishGraphics(graphics *Graphics) {
	r.graphics.Store(graphics)
}

func (r *Registry) PublishAnimation(animation *Animation) {
	r.animation.Store(animation)
}
