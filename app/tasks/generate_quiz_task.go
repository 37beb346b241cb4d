package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/database"
)

const generateBatchSize = 10

// GenerateQuizTask finds approved items that have no quiz yet and asks the
// analyzer to propose one. Items the analyzer cannot handle are left
// alone and retried on a later run.
type GenerateQuizTask struct {
	Task
	itemRepo database.ItemRepository
	analyzer *analyzer.Analyzer
}

func NewGenerateQuizTask(itemRepo database.ItemRepository, analyzerClient *analyzer.Analyzer) *GenerateQuizTask {
	return &GenerateQuizTask{
		Task:     NewTask(TaskTypeGenerateQuiz, "missing-quiz"),
		itemRepo: itemRepo,
		analyzer: analyzerClient,
	}
}

func (t *GenerateQuizTask) Execute(ctx context.Context) error {
	if !t.analyzer.Enabled() {
		return nil
	}

	items, err := t.itemRepo.GetItemsMissingQuiz(ctx, generateBatchSize)
	if err != nil {
		return fmt.Errorf("failed to load items missing quiz: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	generated := 0
	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		suggestion, err := t.analyzer.Analyze(ctx, item.MediaRef)
		if err != nil {
			slog.Warn("Quiz generation failed for item", "item", item.ID, "error", err)
			continue
		}

		options, err := catalog.EncodeOptions(suggestion.Options)
		if err != nil {
			slog.Warn("Failed to encode generated options", "item", item.ID, "error", err)
			continue
		}

		if err := t.itemRepo.UpdateItemQuiz(ctx, item.ID, suggestion.Prompt, options, suggestion.CorrectIndex); err != nil {
			return fmt.Errorf("failed to store generated quiz: %w", err)
		}
		generated++
	}

	slog.Info("Quiz generation completed", "candidates", len(items), "generated", generated,
		"duration", t.GetDuration().String())
	return nil
}
