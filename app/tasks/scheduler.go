package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/cfg"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
	"github.com/lumilearn/lumifeed/app/ledger"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// ImportSource is one configured media feed to import items from.
type ImportSource struct {
	Category catalog.Category
	URL      string
}

// ParseImportFeeds parses "category=url" pairs from configuration.
func ParseImportFeeds(entries []string) ([]ImportSource, error) {
	sources := make([]ImportSource, 0, len(entries))
	for _, entry := range entries {
		category, url, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("import feed %q is not a category=url pair", entry)
		}
		if !catalog.Category(category).Valid() {
			return nil, fmt.Errorf("import feed %q has unknown category %q", entry, category)
		}
		sources = append(sources, ImportSource{Category: catalog.Category(category), URL: url})
	}
	return sources, nil
}

type Scheduler struct {
	itemRepo    database.ItemRepository
	ledgerSvc   *ledger.Ledger
	registry    *feed.Registry
	analyzer    *analyzer.Analyzer
	httpClient  *http.Client
	sources     []ImportSource
	userAgent   string
	interval    time.Duration
	sessionTTL  time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(itemRepo database.ItemRepository, ledgerSvc *ledger.Ledger,
	registry *feed.Registry, analyzerClient *analyzer.Analyzer, httpClient *http.Client,
	sources []ImportSource) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		itemRepo:    itemRepo,
		ledgerSvc:   ledgerSvc,
		registry:    registry,
		analyzer:    analyzerClient,
		httpClient:  httpClient,
		sources:     sources,
		userAgent:   cfg.UserAgent,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		sessionTTL:  time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 100),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	for _, source := range s.sources {
		importTask := NewImportFeedTask(source, s.httpClient, s.itemRepo, s.userAgent)
		if err := s.EnqueueTask(importTask); err != nil {
			slog.Warn("Failed to enqueue ImportFeedTask", "url", source.URL, "error", err)
		}
	}

	if s.analyzer.Enabled() {
		generateTask := NewGenerateQuizTask(s.itemRepo, s.analyzer)
		if err := s.EnqueueTask(generateTask); err != nil {
			slog.Warn("Failed to enqueue GenerateQuizTask", "error", err)
		}
	} else {
		slog.Debug("Analyzer not configured, skipping GenerateQuizTask")
	}

	reconcileTask := NewReconcileRewardsTask(s.ledgerSvc)
	if err := s.EnqueueTask(reconcileTask); err != nil {
		slog.Warn("Failed to enqueue ReconcileRewardsTask", "error", err)
	}

	sweepTask := NewSweepSessionsTask(s.registry, s.sessionTTL)
	if err := s.EnqueueTask(sweepTask); err != nil {
		slog.Warn("Failed to enqueue SweepSessionsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
