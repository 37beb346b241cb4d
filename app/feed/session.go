package feed

import (
	"sync"
	"time"

	"github.com/lumilearn/lumifeed/app/catalog"
)

// FeedSession is one continuous viewing session for one user. All mutable
// state is guarded by mu; the tracker's and gate's timer callbacks take
// the same mutex, so every event handler runs to completion before the
// next one observes the session.
type FeedSession struct {
	ID        string
	UserID    string
	IsCurator bool

	mu        sync.Mutex
	items     []catalog.Item
	byID      map[string]int
	catalogOK bool

	activeIndex   int // -1 when the feed is empty or nothing has settled
	muted         bool
	playingItemID string

	tracker *ViewportTracker
	gate    *QuizGate

	lastActivity time.Time
	closed       bool
}

func (s *FeedSession) touch() {
	s.lastActivity = time.Now()
}

func (s *FeedSession) itemAt(index int) *catalog.Item {
	if index < 0 || index >= len(s.items) {
		return nil
	}
	return &s.items[index]
}

// applyActive is the tracker's activeChanged handler. Playback follows the
// active item: exactly one item plays, all others are paused, and nothing
// plays while a quiz is on screen.
func (s *FeedSession) applyActive(index int) {
	s.activeIndex = index
	s.gate.OnActiveChanged(s.itemAt(index))
	s.syncPlayback()
}

// applyPresented is the gate's presentQuiz handler: all media pauses while
// a quiz is presented, since concurrent audio and quiz narration degrade
// comprehension for the target age group.
func (s *FeedSession) applyPresented(itemID string) {
	s.playingItemID = ""
}

func (s *FeedSession) syncPlayback() {
	if s.gate.PresentedItemID() != "" {
		s.playingItemID = ""
		return
	}
	if item := s.itemAt(s.activeIndex); item != nil {
		s.playingItemID = item.ID
	} else {
		s.playingItemID = ""
	}
}

// replaceItems swaps in a refreshed item list. Indices change meaning, so
// the tracker is reset; the gate reconciles timers against the new ids and
// keeps its resolved markers.
func (s *FeedSession) replaceItems(items []catalog.Item) {
	s.items = items
	s.byID = indexByID(items)
	s.catalogOK = true

	ids := make(map[string]bool, len(items))
	for _, item := range items {
		ids[item.ID] = true
	}
	s.gate.Refresh(ids)
	s.tracker.Reset()
	s.activeIndex = -1
	s.syncPlayback()
}

// close is the hard teardown: cancel timers, halt playback. Not a drain.
func (s *FeedSession) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.gate.Halt()
	s.playingItemID = ""
}

func (s *FeedSession) snapshot() SessionView {
	view := SessionView{
		SessionID:        s.ID,
		UserID:           s.UserID,
		CatalogAvailable: s.catalogOK,
		ItemCount:        len(s.items),
		ActiveIndex:      s.activeIndex,
		PlayingItemID:    s.playingItemID,
		Muted:            s.muted,
		ResolvedCount:    s.gate.ResolvedCount(),
	}

	if item := s.itemAt(s.activeIndex); item != nil {
		v := toItemView(*item)
		view.ActiveItem = &v
	}

	if presentedID := s.gate.PresentedItemID(); presentedID != "" {
		view.QuizPresented = true
		if idx, ok := s.byID[presentedID]; ok {
			item := s.items[idx]
			if item.Quiz != nil {
				view.PresentedQuiz = &QuizView{
					ItemID:  item.ID,
					Prompt:  item.Quiz.Prompt,
					Options: item.Quiz.Options,
				}
			}
		}
	}

	return view
}

func indexByID(items []catalog.Item) map[string]int {
	byID := make(map[string]int, len(items))
	for i, item := range items {
		byID[item.ID] = i
	}
	return byID
}
