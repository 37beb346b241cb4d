package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lumilearn/lumifeed/app/database"
)

var ErrCatalogUnavailable = errors.New("content catalog is unavailable")

// Catalog is the database-backed content source for feed sessions.
type Catalog struct {
	itemRepo database.ItemRepository

	// Malformed quiz rows are logged once per item id, not on every fetch.
	warnedMu sync.Mutex
	warned   map[string]bool
}

func NewCatalog(itemRepo database.ItemRepository) *Catalog {
	return &Catalog{
		itemRepo: itemRepo,
		warned:   make(map[string]bool),
	}
}

// FetchItems returns the ordered list of learnable items. Items whose quiz
// columns cannot be decoded are returned without a quiz; a decode problem
// never fails the fetch.
func (c *Catalog) FetchItems(ctx context.Context) ([]Item, error) {
	rows, err := c.itemRepo.GetApprovedItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, c.toItem(row))
	}
	return items, nil
}

// GetItem returns a single item by id, or nil if it does not exist.
func (c *Catalog) GetItem(ctx context.Context, id string) (*Item, error) {
	row, err := c.itemRepo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if row == nil {
		return nil, nil
	}
	item := c.toItem(*row)
	return &item, nil
}

func (c *Catalog) toItem(row database.Item) Item {
	item := Item{
		ID:          row.ID,
		Title:       row.Title,
		MediaRef:    row.MediaRef,
		Category:    Category(row.Category),
		CuratorID:   row.CuratorID,
		Approved:    row.Approved,
		PublishedAt: row.PublishedAt,
	}

	quiz, err := DecodeQuiz(row.QuizPrompt, row.QuizOptions, row.QuizCorrectIndex)
	if err != nil {
		c.warnOnce(row.ID, err)
		return item
	}
	item.Quiz = quiz
	return item
}

func (c *Catalog) warnOnce(itemID string, err error) {
	c.warnedMu.Lock()
	defer c.warnedMu.Unlock()

	if c.warned[itemID] {
		return
	}
	c.warned[itemID] = true
	slog.Warn("Item has malformed quiz data, treating as quiz-less", "item", itemID, "error", err)
}
