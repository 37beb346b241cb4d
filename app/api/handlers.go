package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/cfg"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
	"github.com/lumilearn/lumifeed/app/ledger"
	"github.com/lumilearn/lumifeed/app/tasks"
)

// importClient is shared by manually triggered import tasks.
var importClient = &http.Client{Timeout: 30 * time.Second}

func NewHandler(controller *feed.Controller, registry *feed.Registry,
	cat *catalog.Catalog, ledgerSvc *ledger.Ledger, itemRepo database.ItemRepository,
	analyzerClient *analyzer.Analyzer, scheduler tasks.TaskSchedulerInterface,
	sources []tasks.ImportSource) *Handler {
	return &Handler{
		controller: controller,
		registry:   registry,
		catalog:    cat,
		ledgerSvc:  ledgerSvc,
		itemRepo:   itemRepo,
		analyzer:   analyzerClient,
		scheduler:  scheduler,
		sources:    sources,
	}
}

// CreateSession opens a feed session for the user identified by the
// identity provider. A catalog outage still yields a usable empty session.
func (h *Handler) CreateSession(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-User-ID header is required"})
		return
	}

	session, err := h.controller.LoadSession(c.Request.Context(), userID, c.GetBool("isCurator"))
	if err != nil && !errors.Is(err, catalog.ErrCatalogUnavailable) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return
	}

	items, _ := h.controller.Items(session.ID)
	view, verr := h.controller.Snapshot(session.ID)
	if verr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": view,
		"items":   items,
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.controller.Snapshot(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ReportVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.OnScrollVisibility(c.Param("id"), req.Candidates); err != nil {
		h.sessionError(c, err)
		return
	}

	view, err := h.controller.Snapshot(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.controller.OnAnswer(c.Param("id"), req.ItemID, *req.OptionIndex)
	if err != nil {
		switch {
		case errors.Is(err, feed.ErrItemNotFound), errors.Is(err, feed.ErrNoQuizForItem):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, feed.ErrInvalidOption):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.sessionError(c, err)
		}
		return
	}

	view, verr := h.controller.Snapshot(c.Param("id"))
	if verr != nil {
		h.sessionError(c, verr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"session": view,
	})
}

func (h *Handler) Dismiss(c *gin.Context) {
	var req dismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.OnDismiss(c.Param("id"), req.ItemID); err != nil {
		if errors.Is(err, feed.ErrItemNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) SetMuted(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.controller.SetMuted(c.Param("id"), *req.Muted); err != nil {
		h.sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshSession(c *gin.Context) {
	if err := h.controller.RefreshSession(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, catalog.ErrCatalogUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content catalog is unavailable"})
			return
		}
		h.sessionError(c, err)
		return
	}

	view, err := h.controller.Snapshot(c.Param("id"))
	if err != nil {
		h.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.controller.CloseSession(c.Param("id")); err != nil {
		h.sessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.ledgerSvc.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "get_balance", "user", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance"})
		return
	}
	c.JSON(http.StatusOK, balance)
}

// GetRepetition returns one item whose quiz the user learned longer ago
// than the repetition cutoff, for a gentle review round.
func (h *Handler) GetRepetition(c *gin.Context) {
	cutoff := time.Duration(cfg.Get().RepetitionCutoffH) * time.Hour

	itemID, err := h.ledgerSvc.DueItemID(c.Request.Context(), c.Param("id"), cutoff)
	if err != nil {
		slog.Error("Database error", "operation", "get_repetition", "user", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load repetition item"})
		return
	}
	if itemID == "" {
		c.JSON(http.StatusOK, gin.H{"due": false})
		return
	}

	item, err := h.catalog.GetItem(c.Request.Context(), itemID)
	if err != nil || item == nil || item.Quiz == nil {
		c.JSON(http.StatusOK, gin.H{"due": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"due": true,
		"item": gin.H{
			"id":       item.ID,
			"title":    item.Title,
			"category": item.Category,
		},
		"quiz": gin.H{
			"prompt":  item.Quiz.Prompt,
			"options": item.Quiz.Options,
		},
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemCount, err := h.itemRepo.GetItemCount(c.Request.Context()); err == nil {
		health["items"] = itemCount
	}

	health["active_sessions"] = h.registry.Count()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	appCfg := cfg.Get()

	stats := gin.H{
		"version":          appCfg.Version,
		"active_sessions":  h.registry.Count(),
		"import_feeds":     len(h.sources),
		"analyzer_enabled": h.analyzer.Enabled(),
		"timestamp":        time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemCount, err := h.itemRepo.GetItemCount(c.Request.Context()); err == nil {
		stats["items"] = itemCount
	}

	c.JSON(http.StatusOK, stats)
}

// CreateItem is the curator studio upload: a new approved item, with an
// optional embedded quiz.
func (h *Handler) CreateItem(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" || !c.GetBool("isCurator") {
		c.JSON(http.StatusForbidden, gin.H{"error": "curator role required"})
		return
	}

	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !catalog.Category(req.Category).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	item := database.NewItem{
		ID:               uuid.NewString(),
		Title:            req.Title,
		MediaRef:         req.MediaURL,
		Category:         req.Category,
		CuratorID:        userID,
		Approved:         true,
		QuizCorrectIndex: -1,
		PublishedAt:      time.Now().UTC(),
	}

	if q := req.Quiz; q != nil {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "correct_index out of range"})
			return
		}
		options, err := catalog.EncodeOptions(q.Options)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to encode options"})
			return
		}
		item.QuizPrompt = q.Prompt
		item.QuizOptions = options
		item.QuizCorrectIndex = q.CorrectIndex
	}

	if err := h.itemRepo.InsertItem(c.Request.Context(), item); err != nil {
		slog.Error("Database error", "operation", "create_item", "curator", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": item.ID})
}

func (h *Handler) GetItem(c *gin.Context) {
	item, err := h.catalog.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load item"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) ApproveItem(c *gin.Context) {
	if err := h.itemRepo.SetItemApproved(c.Request.Context(), c.Param("id"), true); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListCuratorItems(c *gin.Context) {
	items, err := h.itemRepo.GetItemsByCurator(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("Database error", "operation", "list_curator_items", "curator", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load curator items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// AnalyzeItem is the curator studio helper that pre-fills the upload form
// from the analysis service.
func (h *Handler) AnalyzeItem(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	suggestion, err := h.analyzer.Analyze(c.Request.Context(), req.MediaURL)
	if err != nil {
		if h.analyzer.Enabled() {
			slog.Error("Content analysis failed", "url", req.MediaURL, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "content analysis failed"})
		} else {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "content analysis is not configured"})
		}
		return
	}

	c.JSON(http.StatusOK, suggestion)
}

// TriggerImport enqueues an immediate import run for every configured
// media feed instead of waiting for the next scheduler tick.
func (h *Handler) TriggerImport(c *gin.Context) {
	enqueued := 0
	for _, source := range h.sources {
		task := tasks.NewImportFeedTask(source, importClient, h.itemRepo, cfg.Get().UserAgent)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue import task", "url", source.URL, "error", err)
			continue
		}
		enqueued++
	}

	c.JSON(http.StatusAccepted, gin.H{"enqueued": enqueued, "sources": len(h.sources)})
}

func (h *Handler) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feed.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, feed.ErrSessionClosed):
		c.JSON(http.StatusGone, gin.H{"error": "session is closed"})
	default:
		slog.Error("Session operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
