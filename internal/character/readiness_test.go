package character

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateWait(t *testing.T) {
	tests := []struct {
		name       string
		readyAfter int32 // probes before ready, -1 for never
		want       error
		wantProbes int32
	}{
		{"ready at once", 0, nil, 1},
		{"ready after polling", 3, nil, 4},
		{"never ready", -1, ErrLibraryTimeout, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var probes atomic.Int32
			gate := &Gate{
				Probe: func() Readiness {
					n := probes.Add(1)
					ready := tt.readyAfter >= 0 && n > tt.readyAfter
					return Readiness{GraphicsReady: ready, AnimationReady: true}
				},
				Interval: time.Millisecond,
				Timeout:  200 * time.Millisecond,
			}
			err := gate.Wait(context.Background())
			if !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Fatalf("Wait() = %v, want %v", err, tt.want)
			}
			if tt.wantProbes >= 0 && probes.Load() != tt.wantProbes {
				t.Errorf("probes = %d, want %d", probes.Load(), tt.wantProbes)
			}
			after := probes.Load()
			time.Sleep(5 * time.Millisecond)
			if probes.Load() != after {
				t.Error("probing continued after Wait returned")
			}
		})
	}
}

func TestGateCancel(t *testing.T) {
	gate := &Gate{
		Probe:    func() Readiness { return Readiness{} },
		Interval: time.Millisecond,
		Timeout:  time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	if err := gate.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}

func TestProbeLibraries(t *testing.T) {
	libs := &fakeLibs{}
	if ProbeLibraries(libs).Ready() {
		t.Error("empty libraries reported ready")
	}
	libs.set(&fakeFactory{}, nil)
	if got := ProbeLibraries(libs); !got.GraphicsReady || got.AnimationReady {
		t.Errorf("ProbeLibraries() = %+v", got)
	}
	libs.set(&fakeFactory{}, &fakeAnimation{})
	if !ProbeLibraries(libs).Ready() {
		t.Error("both libraries present but not ready")
	}
}
