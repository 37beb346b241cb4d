package feed

import (
	"sync"
	"time"
)

// ViewportTracker turns raw scroll visibility samples into a single
// discrete active item index. A candidate only becomes active after
// surviving the settle debounce, so rapid back-and-forth scrolling
// collapses to one terminal transition. The tracker knows nothing about
// quizzes or rewards.
//
// All methods must be called with the session mutex held; the mutex is
// only taken by the tracker itself inside timer callbacks. This keeps
// every handler run-to-completion with respect to session state.
type ViewportTracker struct {
	mu        *sync.Mutex
	threshold float64
	debounce  time.Duration
	onActive  func(index int)

	active    int
	candidate int
	timer     *time.Timer
	seq       int
}

func NewViewportTracker(mu *sync.Mutex, threshold float64, debounce time.Duration, onActive func(index int)) *ViewportTracker {
	return &ViewportTracker{
		mu:        mu,
		threshold: threshold,
		debounce:  debounce,
		onActive:  onActive,
		active:    -1,
		candidate: -1,
	}
}

// Report ingests one visibility sample set. It emits at most one
// activeChanged callback per physical transition, and never emits for an
// unchanged index.
func (t *ViewportTracker) Report(candidates []VisibilityCandidate) {
	best := t.bestCandidate(candidates)

	if best < 0 || best == t.active {
		// Nothing qualifies, or the user is back at the resting position:
		// any pending switch is stale.
		t.cancelPending()
		return
	}

	if t.timer != nil && best == t.candidate {
		// Already waiting for this candidate to settle.
		return
	}

	t.cancelPending()

	if t.debounce <= 0 {
		t.settle(best)
		return
	}

	t.candidate = best
	t.seq++
	seq := t.seq
	t.timer = time.AfterFunc(t.debounce, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.seq != seq {
			return
		}
		t.timer = nil
		t.settle(t.candidate)
	})
}

// Active returns the currently reported active index, -1 if none.
func (t *ViewportTracker) Active() int {
	return t.active
}

// Reset drops the active index and any pending transition. Used when the
// session's item list is refreshed and indices change meaning.
func (t *ViewportTracker) Reset() {
	t.cancelPending()
	t.active = -1
}

// bestCandidate picks the most visible candidate at or above the
// threshold. Ties break toward the lowest index regardless of input order,
// so the result is deterministic; the earlier item in scroll direction
// wins, and that decides whose dwell timer starts.
func (t *ViewportTracker) bestCandidate(candidates []VisibilityCandidate) int {
	best := -1
	bestFraction := 0.0
	for _, c := range candidates {
		if c.Index < 0 || c.VisibleFraction < t.threshold {
			continue
		}
		if best == -1 || c.VisibleFraction > bestFraction ||
			(c.VisibleFraction == bestFraction && c.Index < best) {
			best = c.Index
			bestFraction = c.VisibleFraction
		}
	}
	return best
}

func (t *ViewportTracker) settle(index int) {
	t.candidate = -1
	if index < 0 || index == t.active {
		return
	}
	t.active = index
	t.onActive(index)
}

func (t *ViewportTracker) cancelPending() {
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.candidate = -1
}
