package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
)

var ErrRewardWriteFailed = errors.New("reward increment failed")

var _ feed.RewardLedger = (*Ledger)(nil)

// Balance is a user's reward counters, per category plus total.
type Balance struct {
	PerCategory map[catalog.Category]int `json:"per_category"`
	Total       int                      `json:"total"`
}

// Ledger owns reward crediting, balance reads, learning history and the
// failure journal. Counters live entirely in the database; nothing is
// cached locally except through the optional read-side balance cache.
type Ledger struct {
	profiles database.ProfileRepository
	cache    *BalanceCache // nil when Redis is not configured
}

func NewLedger(profiles database.ProfileRepository, cache *BalanceCache) *Ledger {
	return &Ledger{profiles: profiles, cache: cache}
}

// Credit applies one atomic increment to the category and total counters.
// On failure the increment is journaled for later reconciliation and
// ErrRewardWriteFailed is returned; the caller is expected not to retry.
func (l *Ledger) Credit(ctx context.Context, userID string, category catalog.Category) error {
	if !category.Valid() {
		return fmt.Errorf("cannot credit unknown category %q", category)
	}

	if err := l.profiles.IncrementLumis(ctx, userID, string(category)); err != nil {
		// Journal with a fresh context: the credit context may already be
		// expired, and the journal row is the only trace of the failure.
		journalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if jerr := l.profiles.JournalFailedReward(journalCtx, userID, string(category), err.Error()); jerr != nil {
			slog.Error("Failed to journal reward write failure", "user", userID, "category", category, "error", jerr)
		}
		return fmt.Errorf("%w: %v", ErrRewardWriteFailed, err)
	}

	l.invalidate(ctx, userID)
	return nil
}

// GetBalance returns the per-category and total counters, served from the
// cache when possible. A user with no profile row has an all-zero balance.
func (l *Ledger) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	if l.cache != nil {
		if balance, ok := l.cache.Get(ctx, userID); ok {
			return balance, nil
		}
	}

	profile, err := l.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance := &Balance{
		PerCategory: map[catalog.Category]int{
			catalog.CategoryWild:  profile.LumisWild,
			catalog.CategoryAstro: profile.LumisAstro,
			catalog.CategoryWord:  profile.LumisWord,
			catalog.CategoryMath:  profile.LumisMath,
			catalog.CategoryBody:  profile.LumisBody,
		},
		Total: profile.TotalLumis,
	}

	if l.cache != nil {
		l.cache.Set(ctx, userID, balance)
	}
	return balance, nil
}

func (l *Ledger) RecordLearned(ctx context.Context, userID, itemID string) error {
	return l.profiles.RecordLearned(ctx, userID, itemID)
}

// DueItemID returns the id of one item whose quiz was learned before the
// cutoff and is due for repetition, "" if nothing is due.
func (l *Ledger) DueItemID(ctx context.Context, userID string, cutoff time.Duration) (string, error) {
	return l.profiles.GetDueItemID(ctx, userID, time.Now().UTC().Add(-cutoff))
}

// Reconcile replays unsettled journal entries, applying each increment
// once. It is called by the background reconciliation task, never by the
// feed core.
func (l *Ledger) Reconcile(ctx context.Context, limit int) (settled, failed int, err error) {
	entries, err := l.profiles.GetUnsettledJournal(ctx, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range entries {
		if err := l.profiles.IncrementLumis(ctx, entry.UserID, entry.Category); err != nil {
			failed++
			if berr := l.profiles.BumpJournalAttempt(ctx, entry.ID, err.Error()); berr != nil {
				slog.Error("Failed to update journal attempt", "entry", entry.ID, "error", berr)
			}
			continue
		}

		if err := l.profiles.SettleJournalEntry(ctx, entry.ID); err != nil {
			slog.Error("Increment applied but journal entry not settled", "entry", entry.ID, "error", err)
			failed++
			continue
		}

		l.invalidate(ctx, entry.UserID)
		settled++
	}

	return settled, failed, nil
}

func (l *Ledger) invalidate(ctx context.Context, userID string) {
	if l.cache != nil {
		l.cache.Invalidate(ctx, userID)
	}
}
