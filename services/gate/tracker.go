package gate

import (
	"context"
	"sync"
	"time"

	"readgate/models"
)

// DefaultPollInterval bounds the tracker's CPU cost: progress is sampled on
// a fixed tick, not on every scroll event.
const DefaultPollInterval = 300 * time.Millisecond

// scrollBottomEpsilon absorbs sub-pixel rounding when deciding whether the
// surface is scrolled to the end.
const scrollBottomEpsilon = 2.0

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock used outside tests.
var SystemClock Clock = systemClock{}

// ScrollSurface exposes the geometry of the rendered content container. A
// nil surface means non-scrollable short content, which always reads as
// fully scrolled.
type ScrollSurface interface {
	ScrollTop() float64
	ClientHeight() float64
	ScrollHeight() float64
}

// Tracker observes a content surface and produces the reading-progress
// signal. The poll loop is owned by the context passed to Start, so teardown
// is explicit: cancelling the context stops the ticker and no dangling timer
// survives the owner.
type Tracker struct {
	clock        Clock
	surface      ScrollSurface
	wordCount    int
	policy       models.GatePolicy
	pollInterval time.Duration

	mu             sync.Mutex
	startedAt      time.Time
	started        bool
	maxScrollRatio float64
	lastRawRatio   float64
	lastSampleAt   time.Time
	done           chan struct{}
}

func NewTracker(clock Clock, surface ScrollSurface, wordCount int, policy models.GatePolicy) *Tracker {
	if clock == nil {
		clock = SystemClock
	}
	return &Tracker{
		clock:        clock,
		surface:      surface,
		wordCount:    wordCount,
		policy:       policy,
		pollInterval: DefaultPollInterval,
	}
}

// Start records the session start time and begins polling until ctx is
// cancelled. Starting twice is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.startedAt = t.clock.Now()
	t.lastSampleAt = t.startedAt
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.Sample()

	go func() {
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()
		defer close(t.done)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sample()
			}
		}
	}()
}

// Sample takes one reading of the surface. The max scroll ratio only ever
// moves forward; scrolling back up never regresses it. A jump faster than
// the policy's scroll-velocity cap is treated as skimming and earns no
// credit for that tick.
func (t *Tracker) Sample() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}

	now := t.clock.Now()
	raw := t.rawScrollRatio()

	elapsed := now.Sub(t.lastSampleAt).Seconds()
	skimming := false
	if t.policy.MaxScrollVelocity > 0 && elapsed > 0 {
		velocity := (raw - t.lastRawRatio) / elapsed
		skimming = velocity > t.policy.MaxScrollVelocity
	}

	t.lastRawRatio = raw
	t.lastSampleAt = now

	if !skimming && raw > t.maxScrollRatio {
		t.maxScrollRatio = raw
	}
}

// Progress recomputes the signal idempotently from tracker state: calling it
// repeatedly without new samples never regresses the values.
func (t *Tracker) Progress() models.ReadingProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	var elapsed float64
	if t.started {
		elapsed = t.clock.Now().Sub(t.startedAt).Seconds()
	}

	return models.ReadingProgress{
		SecondsElapsed: elapsed,
		ScrollRatio:    t.maxScrollRatio,
		WordCount:      t.wordCount,
	}
}

// Done reports tracker shutdown; it unblocks once the poll loop has exited.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *Tracker) rawScrollRatio() float64 {
	if t.surface == nil {
		return 1.0
	}

	scrollHeight := t.surface.ScrollHeight()
	clientHeight := t.surface.ClientHeight()
	scrollTop := t.surface.ScrollTop()

	if scrollHeight <= clientHeight {
		return 1.0
	}
	if scrollTop+clientHeight >= scrollHeight-scrollBottomEpsilon {
		return 1.0
	}

	ratio := (scrollTop + clientHeight) / scrollHeight
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
