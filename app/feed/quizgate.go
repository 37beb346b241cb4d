package feed

import (
	"sync"
	"time"

	"github.com/lumilearn/lumifeed/app/catalog"
)

// QuizGate decides, for the active item, whether and when its quiz is
// presented, and guarantees at-most-once presentation per item per
// session. The gate moves between three states: idle (no timer, no quiz on
// screen), timing (dwell timer counting down for the active item) and
// presenting (a quiz is on screen).
//
// The dwell timer is an instance field with strict cancel-before-start
// discipline: starting a timer unconditionally cancels the previous one,
// so at most one timer is ever in flight and a stray timer from a
// previous item can never fire after scrolling or navigating away.
//
// Like ViewportTracker, all methods expect the session mutex held; the
// gate takes it itself only inside the timer callback.
type QuizGate struct {
	mu        *sync.Mutex
	dwell     time.Duration
	onPresent func(itemID string)

	resolved  map[string]bool
	presented map[string]bool

	pendingItemID   string
	pendingTimer    *time.Timer
	presentedItemID string
	seq             int
}

func NewQuizGate(mu *sync.Mutex, dwell time.Duration, onPresent func(itemID string)) *QuizGate {
	return &QuizGate{
		mu:        mu,
		dwell:     dwell,
		onPresent: onPresent,
		resolved:  make(map[string]bool),
		presented: make(map[string]bool),
	}
}

// OnActiveChanged evaluates the newly active item. Scrolling away while a
// timer is counting down cancels it silently; that is the normal
// fast-scroll path and quizzes for skimmed items never appear.
func (g *QuizGate) OnActiveChanged(item *catalog.Item) {
	g.cancelTimer()

	if g.presentedItemID != "" {
		// A quiz is on screen; never a second one at the same time.
		return
	}
	if item == nil || item.Quiz == nil {
		return
	}
	if g.resolved[item.ID] || g.presented[item.ID] {
		return
	}

	if g.dwell <= 0 {
		g.present(item.ID)
		return
	}

	g.pendingItemID = item.ID
	g.seq++
	seq := g.seq
	g.pendingTimer = time.AfterFunc(g.dwell, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.seq != seq {
			return
		}
		g.pendingTimer = nil
		itemID := g.pendingItemID
		g.pendingItemID = ""
		if itemID != "" {
			g.present(itemID)
		}
	})
}

// AnswerCorrect marks the item resolved and clears the presentation. The
// resolved marker is per-item terminal: the quiz is never re-presented
// this session.
func (g *QuizGate) AnswerCorrect(itemID string) {
	g.resolve(itemID)
}

// AnswerIncorrect keeps the quiz on screen so the learner may retry.
// Formative, not punitive: a wrong answer neither dismisses nor resolves.
func (g *QuizGate) AnswerIncorrect(itemID string) {
}

// Dismiss marks the item resolved without reward.
func (g *QuizGate) Dismiss(itemID string) {
	g.resolve(itemID)
}

// Refresh reconciles gate state with a refreshed item list. Any pending
// timer is cancelled: the active index resets with the new list, and a
// timer must only ever fire for the active item. A presentation whose
// target vanished is cleared; resolved markers are retained, so a
// historical item reappearing later in the session does not re-quiz the
// user.
func (g *QuizGate) Refresh(itemIDs map[string]bool) {
	g.cancelTimer()
	if g.presentedItemID != "" && !itemIDs[g.presentedItemID] {
		g.presentedItemID = ""
	}
}

// Halt is the hard teardown: cancel any timer and drop the presentation.
func (g *QuizGate) Halt() {
	g.cancelTimer()
	g.presentedItemID = ""
}

func (g *QuizGate) IsResolved(itemID string) bool {
	return g.resolved[itemID]
}

func (g *QuizGate) ResolvedCount() int {
	return len(g.resolved)
}

// PresentedItemID returns the item whose quiz is on screen, "" if none.
func (g *QuizGate) PresentedItemID() string {
	return g.presentedItemID
}

// PendingTimerItemID returns the dwell timer's target item, "" if none.
func (g *QuizGate) PendingTimerItemID() string {
	return g.pendingItemID
}

func (g *QuizGate) present(itemID string) {
	g.presented[itemID] = true
	g.presentedItemID = itemID
	g.onPresent(itemID)
}

func (g *QuizGate) resolve(itemID string) {
	g.resolved[itemID] = true
	if g.presentedItemID == itemID {
		g.presentedItemID = ""
	}
}

func (g *QuizGate) cancelTimer() {
	g.seq++
	if g.pendingTimer != nil {
		g.pendingTimer.Stop()
		g.pendingTimer = nil
	}
	g.pendingItemID = ""
}
