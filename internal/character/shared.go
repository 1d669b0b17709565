package character

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// SharedRuntime holds the one graphics runtime all sessions use. The first
// successful Get creates it and later calls reuse the result. Concurrent first
// calls join one creation that no single caller's cancellation aborts; each
// caller stops waiting when its own ctx is done. A failed creation is not
// cached.
type SharedRuntime struct {
	group   singleflight.Group
	mu      sync.Mutex
	runtime GraphicsRuntime
	created int
}

func (s *SharedRuntime) Get(ctx context.Context, factory GraphicsFactory) (GraphicsRuntime, error) {
	if rt := s.load(); rt != nil {
		return rt, nil
	}
	creation := context.WithoutCancel(ctx)
	ch := s.group.DoChan("runtime", func() (any, error) {
		if rt := s.load(); rt != nil {
			return rt, nil
		}
		rt, err := factory.NewRuntime(creation)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.runtime = rt
		s.created++
		s.mu.Unlock()
		return rt, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(GraphicsRuntime), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *SharedRuntime) load() GraphicsRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime
}

// Created reports how many runtimes were created, at most one.
func (s *SharedRuntime) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}
