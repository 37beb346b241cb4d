package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumilearn/lumifeed/app/catalog"
)

// Controller composes the viewport tracker, quiz gate, catalog and ledger
// into the observable feed behavior, and owns the registry of live
// sessions.
type Controller struct {
	catalog  ContentCatalog
	ledger   RewardLedger
	registry *Registry

	threshold     float64
	debounce      time.Duration
	dwell         time.Duration
	creditTimeout time.Duration
}

// Options configures per-session timing behavior. Dwell and debounce are
// product parameters, not constants: immediate mode (dwell 0) is valid.
type Options struct {
	VisibilityThreshold float64
	SettleDebounce      time.Duration
	QuizDwell           time.Duration
}

func NewController(cat ContentCatalog, ledger RewardLedger, registry *Registry, opts Options) *Controller {
	threshold := opts.VisibilityThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	return &Controller{
		catalog:       cat,
		ledger:        ledger,
		registry:      registry,
		threshold:     threshold,
		debounce:      opts.SettleDebounce,
		dwell:         opts.QuizDwell,
		creditTimeout: 10 * time.Second,
	}
}

// LoadSession fetches the catalog and opens a new session for the user.
// A failed fetch still yields a registered, displayable empty session
// together with ErrCatalogUnavailable; an empty feed is a valid state,
// not a crash.
func (c *Controller) LoadSession(ctx context.Context, userID string, isCurator bool) (*FeedSession, error) {
	s := &FeedSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		IsCurator:    isCurator,
		activeIndex:  -1,
		muted:        true,
		lastActivity: time.Now(),
	}
	s.tracker = NewViewportTracker(&s.mu, c.threshold, c.debounce, s.applyActive)
	s.gate = NewQuizGate(&s.mu, c.dwell, s.applyPresented)

	items, err := c.catalog.FetchItems(ctx)
	if err != nil {
		slog.Error("Catalog fetch failed, opening empty session", "user", userID, "error", err)
		s.byID = map[string]int{}
		c.registry.Add(s)
		return s, err
	}

	s.items = items
	s.byID = indexByID(items)
	s.catalogOK = true
	c.registry.Add(s)

	slog.Debug("Feed session opened", "session", s.ID, "user", userID, "items", len(items))
	return s, nil
}

// OnScrollVisibility forwards raw visibility samples to the session's
// tracker. On an empty feed this is a no-op.
func (c *Controller) OnScrollVisibility(sessionID string, candidates []VisibilityCandidate) error {
	s := c.registry.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.touch()

	if len(s.items) == 0 {
		return nil
	}

	s.tracker.Report(candidates)
	return nil
}

// OnAnswer checks the chosen option against the item's quiz. A correct
// answer issues exactly one reward credit per (user, item) per session;
// duplicate submissions are no-ops. An incorrect answer leaves the quiz
// presented so the learner may retry.
func (c *Controller) OnAnswer(sessionID, itemID string, chosenOptionIndex int) (AnswerResult, error) {
	s := c.registry.Get(sessionID)
	if s == nil {
		return "", ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrSessionClosed
	}
	s.touch()

	idx, ok := s.byID[itemID]
	if !ok {
		return "", ErrItemNotFound
	}
	item := s.items[idx]
	if item.Quiz == nil {
		return "", ErrNoQuizForItem
	}

	// Guard against double-submission from duplicate taps: once resolved,
	// answers are ignored and no second credit is ever issued.
	if s.gate.IsResolved(itemID) {
		slog.Debug("Duplicate answer ignored", "session", s.ID, "item", itemID)
		return AnswerDuplicate, nil
	}

	if chosenOptionIndex < 0 || chosenOptionIndex >= len(item.Quiz.Options) {
		return "", ErrInvalidOption
	}

	if chosenOptionIndex != item.Quiz.CorrectIndex {
		s.gate.AnswerIncorrect(itemID)
		return AnswerIncorrect, nil
	}

	// Resolve first, then issue the credit. The session does not wait for
	// ledger confirmation: a failed write never blocks the learning flow
	// or rolls back the resolved marker.
	s.gate.AnswerCorrect(itemID)
	s.syncPlayback()
	go c.credit(s.UserID, item.ID, item.Category)

	return AnswerCorrect, nil
}

// credit issues the ledger increment for a correct answer, fire and
// forget. A write failure is logged and journaled by the ledger for later
// reconciliation; the core neither retries in a loop nor rolls back the
// resolved marker.
func (c *Controller) credit(userID, itemID string, category catalog.Category) {
	ctx, cancel := context.WithTimeout(context.Background(), c.creditTimeout)
	defer cancel()

	if err := c.ledger.Credit(ctx, userID, category); err != nil {
		slog.Error("Reward credit failed", "user", userID, "item", itemID, "category", category, "error", err)
	}
	if err := c.ledger.RecordLearned(ctx, userID, itemID); err != nil {
		slog.Warn("Failed to record learning history", "user", userID, "item", itemID, "error", err)
	}
}

// OnDismiss marks the item resolved without reward and resumes playback.
func (c *Controller) OnDismiss(sessionID, itemID string) error {
	s := c.registry.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.touch()

	if _, ok := s.byID[itemID]; !ok {
		return ErrItemNotFound
	}

	s.gate.Dismiss(itemID)
	s.syncPlayback()
	return nil
}

// SetMuted toggles the session-wide mute flag.
func (c *Controller) SetMuted(sessionID string, muted bool) error {
	s := c.registry.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.touch()
	s.muted = muted
	return nil
}

// RefreshSession re-fetches the catalog and swaps the session's item list.
// Stale timers for vanished items are cancelled; resolved markers survive.
func (c *Controller) RefreshSession(ctx context.Context, sessionID string) error {
	s := c.registry.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	items, err := c.catalog.FetchItems(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	s.touch()
	s.replaceItems(items)
	return nil
}

// Snapshot returns a read-only projection of the session for rendering.
func (c *Controller) Snapshot(sessionID string) (*SessionView, error) {
	s := c.registry.Get(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	view := s.snapshot()
	return &view, nil
}

// Items returns the session's ordered item projections.
func (c *Controller) Items(sessionID string) ([]ItemView, error) {
	s := c.registry.Get(sessionID)
	if s == nil {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]ItemView, 0, len(s.items))
	for _, item := range s.items {
		views = append(views, toItemView(item))
	}
	return views, nil
}

// CloseSession tears the session down and removes it from the registry.
func (c *Controller) CloseSession(sessionID string) error {
	s := c.registry.Get(sessionID)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.close()
	s.mu.Unlock()

	c.registry.Remove(sessionID)
	return nil
}
