package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"readgate/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeSurface struct {
	mu           sync.Mutex
	scrollTop    float64
	clientHeight float64
	scrollHeight float64
}

func (s *fakeSurface) ScrollTop() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollTop
}

func (s *fakeSurface) ClientHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientHeight
}

func (s *fakeSurface) ScrollHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollHeight
}

func (s *fakeSurface) SetScrollTop(top float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrollTop = top
}

func startedTracker(t *testing.T, clock Clock, surface ScrollSurface, wordCount int) *Tracker {
	t.Helper()
	tracker := NewTracker(clock, surface, wordCount, models.DefaultGatePolicy())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	tracker.Start(ctx)
	return tracker
}

func TestTrackerScrollRatioMonotonic(t *testing.T) {
	clock := newFakeClock()
	surface := &fakeSurface{clientHeight: 500, scrollHeight: 2000}
	tracker := startedTracker(t, clock, surface, 600)

	// Scroll down in steps, then back up: the reported ratio must never
	// regress.
	steps := []float64{0, 400, 900, 1500, 300, 0, 1500}
	previous := 0.0
	for _, top := range steps {
		surface.SetScrollTop(top)
		clock.Advance(time.Second)
		tracker.Sample()

		ratio := tracker.Progress().ScrollRatio
		if ratio < previous {
			t.Errorf("scroll ratio regressed from %v to %v at scrollTop %v", previous, ratio, top)
		}
		previous = ratio
	}

	if previous != 1.0 {
		t.Errorf("expected full scroll to reach ratio 1.0, got %v", previous)
	}
}

func TestTrackerProgressIdempotent(t *testing.T) {
	clock := newFakeClock()
	surface := &fakeSurface{scrollTop: 700, clientHeight: 500, scrollHeight: 2000}
	tracker := startedTracker(t, clock, surface, 600)

	clock.Advance(2 * time.Second)
	tracker.Sample()

	first := tracker.Progress()
	second := tracker.Progress()

	if second.ScrollRatio < first.ScrollRatio {
		t.Errorf("repeated Progress regressed scroll ratio: %v then %v", first.ScrollRatio, second.ScrollRatio)
	}
	if second.SecondsElapsed < first.SecondsElapsed {
		t.Errorf("repeated Progress regressed elapsed seconds: %v then %v", first.SecondsElapsed, second.SecondsElapsed)
	}
}

func TestTrackerNilSurfaceReadsFullyScrolled(t *testing.T) {
	clock := newFakeClock()
	tracker := startedTracker(t, clock, nil, 40)

	if ratio := tracker.Progress().ScrollRatio; ratio != 1.0 {
		t.Errorf("non-scrollable content should read as fully scrolled, got %v", ratio)
	}
}

func TestTrackerShortSurfaceReadsFullyScrolled(t *testing.T) {
	clock := newFakeClock()
	surface := &fakeSurface{clientHeight: 800, scrollHeight: 500}
	tracker := startedTracker(t, clock, surface, 40)

	if ratio := tracker.Progress().ScrollRatio; ratio != 1.0 {
		t.Errorf("content shorter than the viewport should read as fully scrolled, got %v", ratio)
	}
}

func TestTrackerBottomEpsilon(t *testing.T) {
	clock := newFakeClock()
	surface := &fakeSurface{scrollTop: 1499, clientHeight: 500, scrollHeight: 2000}
	tracker := startedTracker(t, clock, surface, 600)

	clock.Advance(time.Second)
	tracker.Sample()

	if ratio := tracker.Progress().ScrollRatio; ratio != 1.0 {
		t.Errorf("scroll within epsilon of the bottom should read 1.0, got %v", ratio)
	}
}

func TestTrackerSkimmingEarnsNoCredit(t *testing.T) {
	clock := newFakeClock()
	surface := &fakeSurface{clientHeight: 500, scrollHeight: 10000}
	tracker := startedTracker(t, clock, surface, 600)

	// A jump covering most of the document in 100ms is far above the
	// velocity cap; it must not raise the ratio.
	surface.SetScrollTop(9000)
	clock.Advance(100 * time.Millisecond)
	tracker.Sample()

	if ratio := tracker.Progress().ScrollRatio; ratio > 0.1 {
		t.Errorf("skimming jump should earn no scroll credit, got ratio %v", ratio)
	}

	// Holding position restores credit on the next sample.
	clock.Advance(5 * time.Second)
	tracker.Sample()

	if ratio := tracker.Progress().ScrollRatio; ratio < 0.9 {
		t.Errorf("settled position should earn scroll credit, got ratio %v", ratio)
	}
}

func TestTrackerElapsedSecondsFollowClock(t *testing.T) {
	clock := newFakeClock()
	tracker := startedTracker(t, clock, nil, 600)

	clock.Advance(7 * time.Second)

	if elapsed := tracker.Progress().SecondsElapsed; elapsed != 7 {
		t.Errorf("expected 7 elapsed seconds, got %v", elapsed)
	}
}

func TestTrackerStopsWhenContextCancelled(t *testing.T) {
	tracker := NewTracker(SystemClock, nil, 100, models.DefaultGatePolicy())
	ctx, cancel := context.WithCancel(context.Background())
	tracker.Start(ctx)

	cancel()

	select {
	case <-tracker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("tracker poll loop did not stop after context cancellation")
	}
}
