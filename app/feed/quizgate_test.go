package feed

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lumilearn/lumifeed/app/catalog"
)

func quizItem(id string) *catalog.Item {
	return &catalog.Item{
		ID:       id,
		Title:    "Test Item " + id,
		Category: catalog.CategoryWild,
		Quiz: &catalog.Quiz{
			Prompt:       "Test prompt",
			Options:      []string{"A", "B", "C"},
			CorrectIndex: 1,
		},
	}
}

func plainItem(id string) *catalog.Item {
	return &catalog.Item{ID: id, Title: "Plain Item " + id, Category: catalog.CategoryWild}
}

func TestQuizGate_OnActiveChanged_PresentsAfterDwell(t *testing.T) {
	var mu sync.Mutex
	var presented []string
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {
		presented = append(presented, itemID)
	})

	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))
	if gate.PendingTimerItemID() != "a" {
		t.Errorf("Expected a pending dwell timer for item a, got %q", gate.PendingTimerItemID())
	}
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(presented) != 1 || presented[0] != "a" {
		t.Errorf("Expected quiz for item a to be presented once, got %v", presented)
	}
	if gate.PresentedItemID() != "a" {
		t.Errorf("Expected item a to be the presented item, got %q", gate.PresentedItemID())
	}
}

func TestQuizGate_OnActiveChanged_ScrollAwayCancelsTimer(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {
		presentations++
	})

	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))
	gate.OnActiveChanged(nil)
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if presentations != 0 {
		t.Errorf("Expected no presentation after scrolling away, got %d", presentations)
	}
	if gate.PendingTimerItemID() != "" {
		t.Errorf("Expected no pending timer after scrolling away, got %q", gate.PendingTimerItemID())
	}
}

func TestQuizGate_OnActiveChanged_NewItemReplacesPendingTimer(t *testing.T) {
	var mu sync.Mutex
	var presented []string
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {
		presented = append(presented, itemID)
	})

	// Skim item a, land on item b: only b's quiz may appear.
	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))
	gate.OnActiveChanged(quizItem("b"))
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(presented) != 1 || presented[0] != "b" {
		t.Errorf("Expected only item b's quiz to be presented, got %v", presented)
	}
}

func TestQuizGate_OnActiveChanged_ImmediateModeSkipsTimer(t *testing.T) {
	var mu sync.Mutex
	var presented []string
	gate := NewQuizGate(&mu, 0, func(itemID string) {
		presented = append(presented, itemID)
	})

	mu.Lock()
	defer mu.Unlock()
	gate.OnActiveChanged(quizItem("a"))

	if len(presented) != 1 || presented[0] != "a" {
		t.Errorf("Expected immediate presentation with zero dwell, got %v", presented)
	}
}

func TestQuizGate_OnActiveChanged_IgnoresItemsWithoutQuiz(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 0, func(itemID string) {
		presentations++
	})

	mu.Lock()
	defer mu.Unlock()
	gate.OnActiveChanged(plainItem("a"))
	gate.OnActiveChanged(nil)

	if presentations != 0 {
		t.Errorf("Expected no presentations for quiz-less items, got %d", presentations)
	}
}

func TestQuizGate_OnActiveChanged_AtMostOncePerItem(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 0, func(itemID string) {
		presentations++
	})

	mu.Lock()
	defer mu.Unlock()

	gate.OnActiveChanged(quizItem("a"))
	gate.AnswerCorrect("a")

	// Scroll away and come back: the quiz must not reappear.
	gate.OnActiveChanged(plainItem("b"))
	gate.OnActiveChanged(quizItem("a"))

	if presentations != 1 {
		t.Errorf("Expected item a's quiz to be presented exactly once, got %d", presentations)
	}
}

func TestQuizGate_OnActiveChanged_RandomAlternationPresentsAtMostOncePerItem(t *testing.T) {
	var mu sync.Mutex
	presentations := make(map[string]int)
	gate := NewQuizGate(&mu, time.Millisecond, func(itemID string) {
		presentations[itemID]++
	})

	// A window of items, half with quizzes, scrolled over at random.
	items := make([]*catalog.Item, 8)
	for i := range items {
		id := fmt.Sprintf("item-%d", i)
		if i%2 == 0 {
			items[i] = quizItem(id)
		} else {
			items[i] = plainItem(id)
		}
	}

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 500; step++ {
		mu.Lock()
		switch rng.Intn(10) {
		case 0:
			gate.OnActiveChanged(nil)
		case 1:
			if presented := gate.PresentedItemID(); presented != "" {
				gate.Dismiss(presented)
			}
		default:
			gate.OnActiveChanged(items[rng.Intn(len(items))])
		}
		mu.Unlock()

		// Let in-flight dwell timers fire now and then.
		if step%25 == 0 {
			time.Sleep(3 * time.Millisecond)
		}
	}

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(presentations) == 0 {
		t.Fatal("Expected at least one presentation during alternation")
	}
	for id, count := range presentations {
		if count > 1 {
			t.Errorf("Quiz for %s was presented %d times, want at most once per session", id, count)
		}
	}
}

func TestQuizGate_OnActiveChanged_NoSecondQuizWhilePresenting(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 0, func(itemID string) {
		presentations++
	})

	mu.Lock()
	defer mu.Unlock()

	gate.OnActiveChanged(quizItem("a"))
	gate.OnActiveChanged(quizItem("b"))

	if presentations != 1 {
		t.Errorf("Expected no second quiz while one is on screen, got %d presentations", presentations)
	}
	if gate.PresentedItemID() != "a" {
		t.Errorf("Expected item a to remain presented, got %q", gate.PresentedItemID())
	}
}

func TestQuizGate_AnswerIncorrect_KeepsQuizPresented(t *testing.T) {
	var mu sync.Mutex
	gate := NewQuizGate(&mu, 0, func(itemID string) {})

	mu.Lock()
	defer mu.Unlock()

	gate.OnActiveChanged(quizItem("a"))
	gate.AnswerIncorrect("a")

	if gate.PresentedItemID() != "a" {
		t.Errorf("Expected quiz to stay on screen after a wrong answer, got %q", gate.PresentedItemID())
	}
	if gate.IsResolved("a") {
		t.Errorf("Wrong answer must not resolve the item")
	}
}

func TestQuizGate_Dismiss_ResolvesWithoutReappearing(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 0, func(itemID string) {
		presentations++
	})

	mu.Lock()
	defer mu.Unlock()

	gate.OnActiveChanged(quizItem("a"))
	gate.Dismiss("a")

	if gate.PresentedItemID() != "" {
		t.Errorf("Expected presentation cleared after dismiss, got %q", gate.PresentedItemID())
	}
	if !gate.IsResolved("a") {
		t.Errorf("Expected dismissed item to be resolved")
	}

	gate.OnActiveChanged(plainItem("b"))
	gate.OnActiveChanged(quizItem("a"))
	if presentations != 1 {
		t.Errorf("Expected dismissed quiz to never reappear, got %d presentations", presentations)
	}
}

func TestQuizGate_Refresh_CancelsVanishedRetainsResolved(t *testing.T) {
	var mu sync.Mutex
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {})

	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))
	gate.AnswerCorrect("done")

	// Refreshed list no longer contains item a.
	gate.Refresh(map[string]bool{"b": true, "done": true})

	if gate.PendingTimerItemID() != "" {
		t.Errorf("Expected pending timer cancelled for vanished item, got %q", gate.PendingTimerItemID())
	}
	if !gate.IsResolved("done") {
		t.Errorf("Expected resolved markers to survive a refresh")
	}
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if gate.PresentedItemID() != "" {
		t.Errorf("Expected no presentation after the refresh cancelled the timer, got %q", gate.PresentedItemID())
	}
}

func TestQuizGate_Refresh_CancelsPendingTimerForSurvivingItem(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {
		presentations++
	})

	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))

	// Item a survives the refresh, but the active index reset with the new
	// list; the stale timer must not fire while nothing is active.
	gate.Refresh(map[string]bool{"a": true})
	if gate.PendingTimerItemID() != "" {
		t.Errorf("Expected pending timer cancelled on refresh, got %q", gate.PendingTimerItemID())
	}
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if presentations != 0 {
		t.Errorf("Expected no presentation from the stale timer, got %d", presentations)
	}

	// The item was never presented, so settling on it again re-arms.
	gate.OnActiveChanged(quizItem("a"))
	if gate.PendingTimerItemID() != "a" {
		t.Errorf("Expected a fresh dwell timer after re-activating, got %q", gate.PendingTimerItemID())
	}
}

func TestQuizGate_Halt_CancelsEverything(t *testing.T) {
	var mu sync.Mutex
	presentations := 0
	gate := NewQuizGate(&mu, 20*time.Millisecond, func(itemID string) {
		presentations++
	})

	mu.Lock()
	gate.OnActiveChanged(quizItem("a"))
	gate.Halt()
	mu.Unlock()

	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if presentations != 0 {
		t.Errorf("Expected no presentation after halt, got %d", presentations)
	}
	if gate.PresentedItemID() != "" || gate.PendingTimerItemID() != "" {
		t.Errorf("Expected gate fully idle after halt")
	}
}
