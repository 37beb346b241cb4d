package database

import (
	"context"
	"time"
)

// NewItem carries the fields of an item being created or imported.
type NewItem struct {
	ID               string
	Title            string
	MediaRef         string
	Category         string
	CuratorID        string
	Approved         bool
	QuizPrompt       string
	QuizOptions      string
	QuizCorrectIndex int
	SourceGUID       string
	PublishedAt      time.Time
}

type ItemRepository interface {
	GetApprovedItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	GetItemsByCurator(ctx context.Context, curatorID string) ([]Item, error)
	GetItemsMissingQuiz(ctx context.Context, limit int) ([]Item, error)
	GetItemCount(ctx context.Context) (int, error)

	InsertItem(ctx context.Context, item NewItem) error
	UpsertImportedItem(ctx context.Context, item NewItem) (bool, error)
	UpdateItemQuiz(ctx context.Context, id, prompt, options string, correctIndex int) error
	SetItemApproved(ctx context.Context, id string, approved bool) error
}

type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	IncrementLumis(ctx context.Context, userID, category string) error

	RecordLearned(ctx context.Context, userID, itemID string) error
	GetDueItemID(ctx context.Context, userID string, learnedBefore time.Time) (string, error)

	JournalFailedReward(ctx context.Context, userID, category, reason string) error
	GetUnsettledJournal(ctx context.Context, limit int) ([]JournalEntry, error)
	SettleJournalEntry(ctx context.Context, id int64) error
	BumpJournalAttempt(ctx context.Context, id int64, reason string) error
}
