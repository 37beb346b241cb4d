package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ ProfileRepository = (*ProfileRepositoryImpl)(nil)

// ProfileRepositoryImpl handles database operations for reward profiles,
// learning history and the reward journal.
type ProfileRepositoryImpl struct {
	db *DB
}

func NewProfileRepository(db *DB) *ProfileRepositoryImpl {
	return &ProfileRepositoryImpl{db: db}
}

func (r *ProfileRepositoryImpl) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, lumis_wild, lumis_astro, lumis_word, lumis_math,
		       lumis_body, total_lumis, updated_at
		FROM profiles
		WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.LumisWild, &p.LumisAstro, &p.LumisWord,
		&p.LumisMath, &p.LumisBody, &p.TotalLumis, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		// A user with no profile row has an all-zero balance.
		return &Profile{UserID: userID, UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// lumiColumn maps a category to its counter column. Categories must be
// whitelisted here because the column name is spliced into SQL.
func lumiColumn(category string) (string, error) {
	switch category {
	case "wild":
		return "lumis_wild", nil
	case "astro":
		return "lumis_astro", nil
	case "word":
		return "lumis_word", nil
	case "math":
		return "lumis_math", nil
	case "body":
		return "lumis_body", nil
	}
	return "", fmt.Errorf("unknown lumi category: %s", category)
}

// IncrementLumis applies a single atomic server-side increment to the
// category counter and the total counter. No client-side read-modify-write:
// two quick correct answers from the same user cannot lose an update.
func (r *ProfileRepositoryImpl) IncrementLumis(ctx context.Context, userID, category string) error {
	column, err := lumiColumn(category)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO profiles (user_id, %[1]s, total_lumis, updated_at)
		VALUES (?, 1, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			%[1]s = %[1]s + 1,
			total_lumis = total_lumis + 1,
			updated_at = CURRENT_TIMESTAMP
	`, column)

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to increment lumis: %w", err)
	}
	return nil
}

func (r *ProfileRepositoryImpl) RecordLearned(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO learning_history (user_id, item_id, last_learned_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, item_id) DO UPDATE SET
			last_learned_at = CURRENT_TIMESTAMP
	`, userID, itemID)
	if err != nil {
		return fmt.Errorf("failed to record learning history: %w", err)
	}
	return nil
}

// GetDueItemID returns one item whose quiz the user last answered before
// the cutoff, oldest first. Empty string means nothing is due.
func (r *ProfileRepositoryImpl) GetDueItemID(ctx context.Context, userID string, learnedBefore time.Time) (string, error) {
	var itemID string
	err := r.db.QueryRowContext(ctx, `
		SELECT h.item_id
		FROM learning_history h
		JOIN items i ON i.id = h.item_id
		WHERE h.user_id = ? AND h.last_learned_at < ? AND i.approved = 1
		ORDER BY h.last_learned_at
		LIMIT 1
	`, userID, learnedBefore).Scan(&itemID)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query due item: %w", err)
	}
	return itemID, nil
}

func (r *ProfileRepositoryImpl) JournalFailedReward(ctx context.Context, userID, category, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reward_journal (user_id, category, attempts, last_error)
		VALUES (?, ?, 1, ?)
	`, userID, category, reason)
	if err != nil {
		return fmt.Errorf("failed to journal reward: %w", err)
	}
	return nil
}

func (r *ProfileRepositoryImpl) GetUnsettledJournal(ctx context.Context, limit int) ([]JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category, attempts, last_error, created_at, settled_at
		FROM reward_journal
		WHERE settled_at IS NULL
		ORDER BY created_at
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Category, &e.Attempts,
			&e.LastError, &e.CreatedAt, &e.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}
	return entries, nil
}

func (r *ProfileRepositoryImpl) SettleJournalEntry(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reward_journal SET settled_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to settle journal entry: %w", err)
	}
	return nil
}

func (r *ProfileRepositoryImpl) BumpJournalAttempt(ctx context.Context, id int64, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE reward_journal SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, reason, id)
	if err != nil {
		return fmt.Errorf("failed to bump journal attempt: %w", err)
	}
	return nil
}
