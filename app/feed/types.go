package feed

import (
	"context"
	"errors"

	"github.com/lumilearn/lumifeed/app/catalog"
)

var (
	ErrSessionNotFound = errors.New("feed session not found")
	ErrSessionClosed   = errors.New("feed session is closed")
	ErrItemNotFound    = errors.New("item not found in session")
	ErrNoQuizForItem   = errors.New("item has no quiz")
	ErrInvalidOption   = errors.New("chosen option index is out of range")
)

// ContentCatalog supplies the ordered list of learnable items a session is
// built from.
type ContentCatalog interface {
	FetchItems(ctx context.Context) ([]catalog.Item, error)
}

var _ ContentCatalog = (*catalog.Catalog)(nil)

// RewardLedger credits reward counters and records learning history. The
// feed core never caches or locally decrements counters; every credit is a
// single issued request.
type RewardLedger interface {
	Credit(ctx context.Context, userID string, category catalog.Category) error
	RecordLearned(ctx context.Context, userID, itemID string) error
}

// VisibilityCandidate is one raw visibility sample for an item index.
type VisibilityCandidate struct {
	Index           int     `json:"index"`
	VisibleFraction float64 `json:"visible_fraction"`
}

// AnswerResult classifies the outcome of answering a presented quiz.
type AnswerResult string

const (
	AnswerCorrect   AnswerResult = "correct"
	AnswerIncorrect AnswerResult = "incorrect"
	// AnswerDuplicate is the no-op result for answers to an already
	// resolved item; no reward is issued and no state changes.
	AnswerDuplicate AnswerResult = "duplicate"
)

// ItemView is the render projection of a catalog item. The correct option
// index is deliberately absent.
type ItemView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	MediaRef string `json:"media_ref"`
	Category string `json:"category"`
	HasQuiz  bool   `json:"has_quiz"`
}

// QuizView is the render projection of a presented quiz.
type QuizView struct {
	ItemID  string   `json:"item_id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// SessionView is a read-only snapshot of session state for the
// presentation layer.
type SessionView struct {
	SessionID        string    `json:"session_id"`
	UserID           string    `json:"user_id"`
	CatalogAvailable bool      `json:"catalog_available"`
	ItemCount        int       `json:"item_count"`
	ActiveIndex      int       `json:"active_index"` // -1 when no item is active
	ActiveItem       *ItemView `json:"active_item,omitempty"`
	PlayingItemID    string    `json:"playing_item_id,omitempty"`
	Muted            bool      `json:"muted"`
	QuizPresented    bool      `json:"quiz_presented"`
	PresentedQuiz    *QuizView `json:"presented_quiz,omitempty"`
	ResolvedCount    int       `json:"resolved_count"`
}

func toItemView(item catalog.Item) ItemView {
	return ItemView{
		ID:       item.ID,
		Title:    item.Title,
		MediaRef: item.MediaRef,
		Category: string(item.Category),
		HasQuiz:  item.HasQuiz(),
	}
}
