package sched

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestTickOrder(t *testing.T) {
	s := New(epoch)
	var got []string
	if _, err := s.RequestAnimationFrame(func(time.Time) { got = append(got, "frame") }); err != nil {
		t.Fatal(err)
	}
	s.AfterFunc(0, func() { got = append(got, "timer") })
	s.Post(func() { got = append(got, "post") })
	s.Tick(epoch)
	if strings.Join(got, ",") != "post,timer,frame" {
		t.Errorf("order = %v", got)
	}
}

func TestAfterFunc(t *testing.T) {
	s := New(epoch)
	var got []int
	s.AfterFunc(200*time.Millisecond, func() { got = append(got, 2) })
	s.AfterFunc(100*time.Millisecond, func() { got = append(got, 1) })
	stopped := s.AfterFunc(150*time.Millisecond, func() { got = append(got, 9) })
	if !stopped.Stop() {
		t.Error("Stop() on a pending timer should report true")
	}
	if stopped.Stop() {
		t.Error("second Stop() should report false")
	}
	s.Tick(epoch.Add(50 * time.Millisecond))
	if len(got) != 0 {
		t.Fatalf("fired early: %v", got)
	}
	s.Tick(epoch.Add(time.Second))
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("fired = %v, want [1 2]", got)
	}
	if timers, _ := s.Pending(); timers != 0 {
		t.Errorf("pending timers = %d", timers)
	}
}

func TestTimerStoppedByEarlierTimer(t *testing.T) {
	s := New(epoch)
	fired := false
	var second *Timer
	s.AfterFunc(10*time.Millisecond, func() { second.Stop() })
	second = s.AfterFunc(20*time.Millisecond, func() { fired = true })
	s.Tick(epoch.Add(time.Second))
	if fired {
		t.Error("a timer stopped during the tick should not fire")
	}
}

func TestFramesRunOncePerRequest(t *testing.T) {
	s := New(epoch)
	count := 0
	var loop FrameFunc
	loop = func(now time.Time) {
		count++
		if _, err := s.RequestAnimationFrame(loop); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.RequestAnimationFrame(loop); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		s.Tick(epoch.Add(time.Duration(i) * 16 * time.Millisecond))
		if count != i {
			t.Fatalf("tick %d: frames run = %d", i, count)
		}
	}
}

func TestCancelAnimationFrame(t *testing.T) {
	s := New(epoch)
	ran := false
	id, _ := s.RequestAnimationFrame(func(time.Time) { ran = true })
	if err := s.CancelAnimationFrame(id); err != nil {
		t.Fatal(err)
	}
	if err := s.CancelAnimationFrame(id); !errors.Is(err, ErrUnknownFrame) {
		t.Errorf("second cancel error = %v, want ErrUnknownFrame", err)
	}
	s.Tick(epoch)
	if ran {
		t.Error("cancelled frame ran")
	}

	// a frame cancelled by an earlier frame of the same tick does not run
	var second FrameID
	if _, err := s.RequestAnimationFrame(func(time.Time) { _ = s.CancelAnimationFrame(second) }); err != nil {
		t.Fatal(err)
	}
	second, _ = s.RequestAnimationFrame(func(time.Time) { ran = true })
	s.Tick(epoch.Add(time.Second))
	if ran {
		t.Error("frame cancelled during the tick ran")
	}
}

func TestRequestAnimationFrameNil(t *testing.T) {
	if _, err := New(epoch).RequestAnimationFrame(nil); err == nil {
		t.Error("nil frame func should fail")
	}
}

func TestPostConcurrent(t *testing.T) {
	s := New(epoch)
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Post(func() { count++ })
		}()
	}
	wg.Wait()
	s.Tick(epoch)
	if count != 50 {
		t.Errorf("ran %d posted tasks, want 50", count)
	}
}

func TestNowIsMonotonic(t *testing.T) {
	s := New(epoch)
	s.Tick(epoch.Add(time.Second))
	s.Tick(epoch)
	if !s.Now().Equal(epoch.Add(time.Second)) {
		t.Errorf("Now() = %v", s.Now())
	}
}
