package catalog

import (
	"time"
)

// Category is a fixed knowledge-domain tag carried by both content items
// and reward counters.
type Category string

const (
	CategoryWild  Category = "wild"
	CategoryAstro Category = "astro"
	CategoryWord  Category = "word"
	CategoryMath  Category = "math"
	CategoryBody  Category = "body"
)

// Categories lists all known knowledge domains in display order.
var Categories = []Category{CategoryWild, CategoryAstro, CategoryWord, CategoryMath, CategoryBody}

func (c Category) Valid() bool {
	switch c {
	case CategoryWild, CategoryAstro, CategoryWord, CategoryMath, CategoryBody:
		return true
	}
	return false
}

// Quiz is a decoded multiple-choice question embedded in an item.
// CorrectIndex is always a valid index into Options.
type Quiz struct {
	Prompt       string
	Options      []string
	CorrectIndex int
}

// Item is one unit of learnable content. Items are immutable for the
// duration of a feed session; media refs are opaque to the feed core.
type Item struct {
	ID          string
	Title       string
	MediaRef    string
	Category    Category
	CuratorID   string
	Approved    bool
	Quiz        *Quiz
	PublishedAt time.Time
}

func (i Item) HasQuiz() bool {
	return i.Quiz != nil
}
