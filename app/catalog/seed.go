package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/lumilearn/lumifeed/app/database"
)

// Pack is a curated set of content items loaded from a YAML file. Packs
// are how starter content ships with the service; curator uploads and feed
// imports add to the same items table.
type Pack struct {
	Name  string     // derived from filename (without .yml extension)
	Items []PackItem `yaml:"items"`
}

type PackItem struct {
	Slug     string    `yaml:"slug"`
	Title    string    `yaml:"title"`
	MediaURL string    `yaml:"media_url"`
	Category string    `yaml:"category"`
	Quiz     *PackQuiz `yaml:"quiz"`
}

type PackQuiz struct {
	Prompt       string   `yaml:"prompt"`
	Options      []string `yaml:"options"`
	CorrectIndex int      `yaml:"correct_index"`
}

// Seeder loads content packs from a directory and upserts their items.
type Seeder struct {
	contentDir string
	itemRepo   database.ItemRepository
}

func NewSeeder(contentDir string, itemRepo database.ItemRepository) *Seeder {
	return &Seeder{contentDir: contentDir, itemRepo: itemRepo}
}

// Run loads every *.yml pack in the content directory. A missing directory
// is not an error; a broken pack file is.
func (s *Seeder) Run(ctx context.Context) (int, error) {
	if _, err := os.Stat(s.contentDir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(s.contentDir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to find pack files: %w", err)
	}

	seeded := 0
	for _, file := range files {
		pack, err := LoadPack(file)
		if err != nil {
			return seeded, fmt.Errorf("error loading %s: %w", file, err)
		}

		n, err := s.seedPack(ctx, pack)
		if err != nil {
			return seeded, fmt.Errorf("error seeding %s: %w", file, err)
		}
		seeded += n

		slog.Debug("Content pack loaded", "pack", pack.Name, "items", len(pack.Items), "new", n)
	}

	return seeded, nil
}

// LoadPack parses and validates a single pack file.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	fileName := filepath.Base(path)
	pack.Name = fileName[:len(fileName)-len(filepath.Ext(fileName))]

	for i, item := range pack.Items {
		if item.Slug == "" {
			return nil, fmt.Errorf("item %d has no slug", i)
		}
		if item.Title == "" || item.MediaURL == "" {
			return nil, fmt.Errorf("item %q is missing title or media_url", item.Slug)
		}
		if !Category(item.Category).Valid() {
			return nil, fmt.Errorf("item %q has unknown category %q", item.Slug, item.Category)
		}
		if q := item.Quiz; q != nil {
			if q.Prompt == "" || len(q.Options) < 2 {
				return nil, fmt.Errorf("item %q has an incomplete quiz", item.Slug)
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return nil, fmt.Errorf("item %q has correct_index out of range", item.Slug)
			}
		}
	}

	return &pack, nil
}

func (s *Seeder) seedPack(ctx context.Context, pack *Pack) (int, error) {
	created := 0
	for _, item := range pack.Items {
		row := database.NewItem{
			ID:               uuid.NewString(),
			Title:            item.Title,
			MediaRef:         item.MediaURL,
			Category:         item.Category,
			Approved:         true,
			QuizCorrectIndex: -1,
			SourceGUID:       fmt.Sprintf("pack:%s:%s", pack.Name, item.Slug),
			PublishedAt:      time.Now().UTC(),
		}

		if q := item.Quiz; q != nil {
			options, err := EncodeOptions(q.Options)
			if err != nil {
				return created, fmt.Errorf("failed to encode options for %q: %w", item.Slug, err)
			}
			row.QuizPrompt = q.Prompt
			row.QuizOptions = options
			row.QuizCorrectIndex = q.CorrectIndex
		}

		isNew, err := s.itemRepo.UpsertImportedItem(ctx, row)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
	}
	return created, nil
}
