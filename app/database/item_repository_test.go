package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func TestItemRepository_UpsertImportedItem_EmptyGUIDNeverMatchesCuratorRows(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	curatorItem := NewItem{
		ID:               "curator-1",
		Title:            "Handmade Clip",
		MediaRef:         "https://media.example/handmade.mp4",
		Category:         "wild",
		CuratorID:        "alice",
		Approved:         true,
		QuizCorrectIndex: -1,
		PublishedAt:      time.Now().UTC(),
	}
	if err := repo.InsertItem(ctx, curatorItem); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	// An imported entry that carries no source GUID must never be matched
	// against the curator row, whose source_guid is also ''.
	isNew, err := repo.UpsertImportedItem(ctx, NewItem{
		ID:               "imported-1",
		Title:            "Imported Clip",
		MediaRef:         "https://cdn.example/imported.mp4",
		Category:         "astro",
		QuizCorrectIndex: -1,
		PublishedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertImportedItem failed: %v", err)
	}
	if !isNew {
		t.Errorf("Expected the identity-less import stored as a new row")
	}

	kept, err := repo.GetItem(ctx, "curator-1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if kept.Title != "Handmade Clip" || kept.MediaRef != "https://media.example/handmade.mp4" {
		t.Errorf("Curator item was overwritten by an unrelated import: title=%q media=%q",
			kept.Title, kept.MediaRef)
	}

	count, err := repo.GetItemCount(ctx)
	if err != nil {
		t.Fatalf("GetItemCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 distinct rows, got %d", count)
	}
}

func TestItemRepository_UpsertImportedItem_UpdatesBySourceGUID(t *testing.T) {
	db := newTestDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	first := NewItem{
		ID:               "import-1",
		Title:            "First Title",
		MediaRef:         "https://cdn.example/v1.mp4",
		Category:         "wild",
		QuizCorrectIndex: -1,
		SourceGUID:       "guid-1",
		PublishedAt:      time.Now().UTC(),
	}
	isNew, err := repo.UpsertImportedItem(ctx, first)
	if err != nil {
		t.Fatalf("UpsertImportedItem failed: %v", err)
	}
	if !isNew {
		t.Errorf("Expected the first upsert to create a row")
	}

	second := first
	second.ID = "import-2"
	second.Title = "Republished Title"
	second.MediaRef = "https://cdn.example/v2.mp4"
	isNew, err = repo.UpsertImportedItem(ctx, second)
	if err != nil {
		t.Fatalf("UpsertImportedItem failed: %v", err)
	}
	if isNew {
		t.Errorf("Expected the re-published entry to update, not create")
	}

	got, err := repo.GetItem(ctx, "import-1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected the original row to survive")
	}
	if got.Title != "Republished Title" || got.MediaRef != "https://cdn.example/v2.mp4" {
		t.Errorf("Expected the row updated in place, got title=%q media=%q", got.Title, got.MediaRef)
	}

	count, err := repo.GetItemCount(ctx)
	if err != nil {
		t.Fatalf("GetItemCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected a single row for one source GUID, got %d", count)
	}
}
