package database

import (
	"context"
	"database/sql"
	"fmt"
)

var _ ItemRepository = (*ItemRepositoryImpl)(nil)

// ItemRepositoryImpl handles database operations for content items
type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

const itemColumns = `id, title, media_ref, category, curator_id, approved,
	       quiz_prompt, quiz_options, quiz_correct_index, source_guid,
	       published_at, created_at`

// GetApprovedItems returns all approved items in display order, newest
// first. This is the ordered list a feed session is built from.
func (r *ItemRepositoryImpl) GetApprovedItems(ctx context.Context) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE approved = 1
		ORDER BY published_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *ItemRepositoryImpl) GetItem(ctx context.Context, id string) (*Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ItemRepositoryImpl) GetItemsByCurator(ctx context.Context, curatorID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE curator_id = ?
		ORDER BY created_at DESC
	`, curatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query curator items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// GetItemsMissingQuiz returns approved items that have no quiz columns set
// yet; these are candidates for background quiz generation.
func (r *ItemRepositoryImpl) GetItemsMissingQuiz(ctx context.Context, limit int) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE approved = 1 AND quiz_prompt = '' AND quiz_options = ''
		ORDER BY created_at
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query items missing quiz: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *ItemRepositoryImpl) GetItemCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (r *ItemRepositoryImpl) InsertItem(ctx context.Context, item NewItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO items (
			id, title, media_ref, category, curator_id, approved,
			quiz_prompt, quiz_options, quiz_correct_index, source_guid, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Title, item.MediaRef, item.Category, item.CuratorID,
		item.Approved, item.QuizPrompt, item.QuizOptions, item.QuizCorrectIndex,
		item.SourceGUID, item.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// UpsertImportedItem inserts an item keyed by its source GUID, updating
// title and media ref if the source re-publishes it. Returns true when a
// new row was created.
func (r *ItemRepositoryImpl) UpsertImportedItem(ctx context.Context, item NewItem) (bool, error) {
	// An empty source GUID carries no identity; matching it would hit
	// curator-created rows, whose source_guid is ''. The unique index on
	// source_guid excludes '' for the same reason.
	if item.SourceGUID == "" {
		if err := r.InsertItem(ctx, item); err != nil {
			return false, err
		}
		return true, nil
	}

	var existingID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM items WHERE source_guid = ?`, item.SourceGUID).Scan(&existingID)

	if err == sql.ErrNoRows {
		if err := r.InsertItem(ctx, item); err != nil {
			return false, err
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check imported item: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE items
		SET title = ?, media_ref = ?, published_at = ?
		WHERE id = ?
	`, item.Title, item.MediaRef, item.PublishedAt, existingID)
	if err != nil {
		return false, fmt.Errorf("failed to update imported item: %w", err)
	}
	return false, nil
}

func (r *ItemRepositoryImpl) UpdateItemQuiz(ctx context.Context, id, prompt, options string, correctIndex int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE items
		SET quiz_prompt = ?, quiz_options = ?, quiz_correct_index = ?
		WHERE id = ?
	`, prompt, options, correctIndex, id)
	if err != nil {
		return fmt.Errorf("failed to update item quiz: %w", err)
	}
	return nil
}

func (r *ItemRepositoryImpl) SetItemApproved(ctx context.Context, id string, approved bool) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE items SET approved = ? WHERE id = ?
	`, approved, id)
	if err != nil {
		return fmt.Errorf("failed to set item approval: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	err := row.Scan(
		&item.ID, &item.Title, &item.MediaRef, &item.Category,
		&item.CuratorID, &item.Approved, &item.QuizPrompt, &item.QuizOptions,
		&item.QuizCorrectIndex, &item.SourceGUID, &item.PublishedAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}
