package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/database"
)

// mockProfileRepo is an in-memory ProfileRepository.
type mockProfileRepo struct {
	increments   map[string]int
	incrementErr error
	journal      []database.JournalEntry
	settled      []int64
	bumped       []int64
	learned      map[string]bool
	dueItemID    string
	profile      *database.Profile
	profileErr   error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{
		increments: make(map[string]int),
		learned:    make(map[string]bool),
	}
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID string) (*database.Profile, error) {
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	if m.profile != nil {
		return m.profile, nil
	}
	return &database.Profile{UserID: userID}, nil
}

func (m *mockProfileRepo) IncrementLumis(ctx context.Context, userID, category string) error {
	if m.incrementErr != nil {
		return m.incrementErr
	}
	m.increments[userID+"/"+category]++
	return nil
}

func (m *mockProfileRepo) RecordLearned(ctx context.Context, userID, itemID string) error {
	m.learned[userID+"/"+itemID] = true
	return nil
}

func (m *mockProfileRepo) GetDueItemID(ctx context.Context, userID string, learnedBefore time.Time) (string, error) {
	return m.dueItemID, nil
}

func (m *mockProfileRepo) JournalFailedReward(ctx context.Context, userID, category, reason string) error {
	m.journal = append(m.journal, database.JournalEntry{
		ID:        int64(len(m.journal) + 1),
		UserID:    userID,
		Category:  category,
		LastError: reason,
	})
	return nil
}

func (m *mockProfileRepo) GetUnsettledJournal(ctx context.Context, limit int) ([]database.JournalEntry, error) {
	if len(m.journal) > limit {
		return m.journal[:limit], nil
	}
	return m.journal, nil
}

func (m *mockProfileRepo) SettleJournalEntry(ctx context.Context, id int64) error {
	m.settled = append(m.settled, id)
	return nil
}

func (m *mockProfileRepo) BumpJournalAttempt(ctx context.Context, id int64, reason string) error {
	m.bumped = append(m.bumped, id)
	return nil
}

func TestLedger_Credit_IncrementsCounter(t *testing.T) {
	repo := newMockProfileRepo()
	ledger := NewLedger(repo, nil)

	if err := ledger.Credit(context.Background(), "user-1", catalog.CategoryMath); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if repo.increments["user-1/math"] != 1 {
		t.Errorf("Expected one math increment, got %d", repo.increments["user-1/math"])
	}
	if len(repo.journal) != 0 {
		t.Errorf("Expected no journal entries on success, got %d", len(repo.journal))
	}
}

func TestLedger_Credit_UnknownCategory(t *testing.T) {
	ledger := NewLedger(newMockProfileRepo(), nil)

	if err := ledger.Credit(context.Background(), "user-1", catalog.Category("dinos")); err == nil {
		t.Errorf("Expected an error for an unknown category")
	}
}

func TestLedger_Credit_FailureIsJournaled(t *testing.T) {
	repo := newMockProfileRepo()
	repo.incrementErr = errors.New("disk full")
	ledger := NewLedger(repo, nil)

	err := ledger.Credit(context.Background(), "user-1", catalog.CategoryWild)
	if !errors.Is(err, ErrRewardWriteFailed) {
		t.Errorf("Expected ErrRewardWriteFailed, got %v", err)
	}
	if len(repo.journal) != 1 {
		t.Fatalf("Expected the failed credit journaled, got %d entries", len(repo.journal))
	}
	if repo.journal[0].Category != "wild" || repo.journal[0].UserID != "user-1" {
		t.Errorf("Unexpected journal entry: %+v", repo.journal[0])
	}
}

func TestLedger_GetBalance_MapsProfileCounters(t *testing.T) {
	repo := newMockProfileRepo()
	repo.profile = &database.Profile{
		UserID:     "user-1",
		LumisWild:  3,
		LumisAstro: 1,
		TotalLumis: 4,
	}
	ledger := NewLedger(repo, nil)

	balance, err := ledger.GetBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Total != 4 {
		t.Errorf("Expected total 4, got %d", balance.Total)
	}
	if balance.PerCategory[catalog.CategoryWild] != 3 {
		t.Errorf("Expected 3 wild lumis, got %d", balance.PerCategory[catalog.CategoryWild])
	}
	if balance.PerCategory[catalog.CategoryMath] != 0 {
		t.Errorf("Expected zero math lumis, got %d", balance.PerCategory[catalog.CategoryMath])
	}
}

func TestLedger_GetBalance_NewUserIsAllZero(t *testing.T) {
	ledger := NewLedger(newMockProfileRepo(), nil)

	balance, err := ledger.GetBalance(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance.Total != 0 {
		t.Errorf("Expected zero balance for a new user, got %d", balance.Total)
	}
	if len(balance.PerCategory) != len(catalog.Categories) {
		t.Errorf("Expected every category present, got %v", balance.PerCategory)
	}
}

func TestLedger_Reconcile_SettlesJournaledCredits(t *testing.T) {
	repo := newMockProfileRepo()
	repo.journal = []database.JournalEntry{
		{ID: 1, UserID: "user-1", Category: "wild"},
		{ID: 2, UserID: "user-2", Category: "math"},
	}
	ledger := NewLedger(repo, nil)

	settled, failed, err := ledger.Reconcile(context.Background(), 50)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if settled != 2 || failed != 0 {
		t.Errorf("Expected 2 settled and 0 failed, got %d/%d", settled, failed)
	}
	if repo.increments["user-1/wild"] != 1 || repo.increments["user-2/math"] != 1 {
		t.Errorf("Expected each journaled increment applied once, got %v", repo.increments)
	}
	if len(repo.settled) != 2 {
		t.Errorf("Expected both entries settled, got %v", repo.settled)
	}
}

func TestLedger_Reconcile_FailedEntryIsBumpedNotSettled(t *testing.T) {
	repo := newMockProfileRepo()
	repo.journal = []database.JournalEntry{{ID: 7, UserID: "user-1", Category: "wild"}}
	repo.incrementErr = errors.New("still broken")
	ledger := NewLedger(repo, nil)

	settled, failed, err := ledger.Reconcile(context.Background(), 50)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if settled != 0 || failed != 1 {
		t.Errorf("Expected 0 settled and 1 failed, got %d/%d", settled, failed)
	}
	if len(repo.bumped) != 1 || repo.bumped[0] != 7 {
		t.Errorf("Expected the entry's attempt counter bumped, got %v", repo.bumped)
	}
	if len(repo.settled) != 0 {
		t.Errorf("Expected no entries settled, got %v", repo.settled)
	}
}

func TestLedger_DueItemID_PassesCutoff(t *testing.T) {
	repo := newMockProfileRepo()
	repo.dueItemID = "item-9"
	ledger := NewLedger(repo, nil)

	id, err := ledger.DueItemID(context.Background(), "user-1", 24*time.Hour)
	if err != nil {
		t.Fatalf("DueItemID failed: %v", err)
	}
	if id != "item-9" {
		t.Errorf("Expected item-9 due, got %q", id)
	}
}
