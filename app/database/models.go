package database

import (
	"time"
)

// Item represents a content item row. Quiz columns are stored raw; the
// catalog package owns decoding them into a structured quiz.
type Item struct {
	ID               string
	Title            string
	MediaRef         string
	Category         string
	CuratorID        string
	Approved         bool
	QuizPrompt       string
	QuizOptions      string // JSON array, or a legacy serialized-text encoding of one
	QuizCorrectIndex int
	SourceGUID       string
	PublishedAt      time.Time
	CreatedAt        time.Time
}

// Profile holds a user's per-category and total lumi counters.
type Profile struct {
	UserID     string
	LumisWild  int
	LumisAstro int
	LumisWord  int
	LumisMath  int
	LumisBody  int
	TotalLumis int
	UpdatedAt  time.Time
}

// JournalEntry records a reward increment that could not be applied and is
// waiting for reconciliation.
type JournalEntry struct {
	ID        int64
	UserID    string
	Category  string
	Attempts  int
	LastError string
	CreatedAt time.Time
	SettledAt *time.Time
}
