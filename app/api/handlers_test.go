package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
	"github.com/lumilearn/lumifeed/app/ledger"
	"github.com/lumilearn/lumifeed/app/tasks"
)

type stubItemRepo struct {
	database.ItemRepository
	items      []database.Item
	inserted   []database.NewItem
	approveErr error
}

func (s *stubItemRepo) GetApprovedItems(ctx context.Context) ([]database.Item, error) {
	return s.items, nil
}

func (s *stubItemRepo) InsertItem(ctx context.Context, item database.NewItem) error {
	s.inserted = append(s.inserted, item)
	return nil
}

func (s *stubItemRepo) SetItemApproved(ctx context.Context, id string, approved bool) error {
	return s.approveErr
}

type stubProfileRepo struct {
	database.ProfileRepository
}

func (s *stubProfileRepo) GetProfile(ctx context.Context, userID string) (*database.Profile, error) {
	return &database.Profile{UserID: userID}, nil
}

func (s *stubProfileRepo) IncrementLumis(ctx context.Context, userID, category string) error {
	return nil
}

func (s *stubProfileRepo) RecordLearned(ctx context.Context, userID, itemID string) error {
	return nil
}

type stubScheduler struct {
	enqueued []tasks.TaskInterface
}

func (s *stubScheduler) Start() {}
func (s *stubScheduler) Stop()  {}
func (s *stubScheduler) EnqueueTask(task tasks.TaskInterface) error {
	s.enqueued = append(s.enqueued, task)
	return nil
}

func newTestHandler(itemRepo *stubItemRepo) *Handler {
	cat := catalog.NewCatalog(itemRepo)
	registry := feed.NewRegistry()
	controller := feed.NewController(cat, ledger.NewLedger(&stubProfileRepo{}, nil), registry, feed.Options{})
	return NewHandler(controller, registry, cat, ledger.NewLedger(&stubProfileRepo{}, nil),
		itemRepo, analyzer.NewAnalyzer("", "test", http.DefaultClient), &stubScheduler{}, nil)
}

func testContext(t *testing.T, method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestHandler_CreateSession_RequiresUserID(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{})
	c, w := testContext(t, http.MethodPost, "")

	handler.CreateSession(c)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a user id, got %d", w.Code)
	}
}

func TestHandler_CreateSession_ReturnsItems(t *testing.T) {
	repo := &stubItemRepo{items: []database.Item{
		{ID: "a", Title: "Clip A", Category: "wild", QuizCorrectIndex: -1},
	}}
	handler := newTestHandler(repo)
	c, w := testContext(t, http.MethodPost, "")
	c.Set("userID", "user-1")

	handler.CreateSession(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Session feed.SessionView `json:"session"`
		Items   []feed.ItemView  `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Session.CatalogAvailable || resp.Session.ItemCount != 1 {
		t.Errorf("Unexpected session view: %+v", resp.Session)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "a" {
		t.Errorf("Unexpected items: %+v", resp.Items)
	}
}

func TestHandler_GetSession_UnknownID(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{})
	c, w := testContext(t, http.MethodGet, "")
	c.Params = gin.Params{{Key: "id", Value: "no-such-session"}}

	handler.GetSession(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown session, got %d", w.Code)
	}
}

func TestHandler_Answer_StatusCodes(t *testing.T) {
	repo := &stubItemRepo{items: []database.Item{
		{
			ID:               "quizzed",
			Title:            "Quizzed",
			Category:         "math",
			QuizPrompt:       "Q",
			QuizOptions:      `["A","B"]`,
			QuizCorrectIndex: 0,
		},
	}}
	handler := newTestHandler(repo)

	cc, cw := testContext(t, http.MethodPost, "")
	cc.Set("userID", "user-1")
	handler.CreateSession(cc)

	var created struct {
		Session feed.SessionView `json:"session"`
	}
	if err := json.Unmarshal(cw.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to decode session response: %v", err)
	}

	// Settle on the quizzed item so its quiz is presented (zero debounce
	// and dwell make this synchronous).
	vc, _ := testContext(t, http.MethodPost, `{"candidates":[{"index":0,"visible_fraction":1.0}]}`)
	vc.Params = gin.Params{{Key: "id", Value: created.Session.SessionID}}
	handler.ReportVisibility(vc)

	cases := []struct {
		name string
		body string
		want int
	}{
		{"unknown item", `{"item_id":"nope","option_index":0}`, http.StatusNotFound},
		{"invalid option", `{"item_id":"quizzed","option_index":9}`, http.StatusBadRequest},
		{"missing body fields", `{}`, http.StatusBadRequest},
		{"correct answer", `{"item_id":"quizzed","option_index":0}`, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := testContext(t, http.MethodPost, tc.body)
			c.Params = gin.Params{{Key: "id", Value: created.Session.SessionID}}

			handler.Answer(c)

			if w.Code != tc.want {
				t.Errorf("Expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestHandler_CreateItem_RequiresCuratorRole(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{})
	c, w := testContext(t, http.MethodPost, `{"title":"T","media_url":"https://x.example/v.mp4","category":"wild"}`)
	c.Set("userID", "user-1")
	c.Set("isCurator", false)

	handler.CreateItem(c)

	if w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for a non-curator, got %d", w.Code)
	}
}

func TestHandler_CreateItem_Valid(t *testing.T) {
	repo := &stubItemRepo{}
	handler := newTestHandler(repo)
	body := `{"title":"Meerkats","media_url":"https://x.example/v.mp4","category":"wild",` +
		`"quiz":{"prompt":"Why?","options":["Lookout","Fun"],"correct_index":0}}`
	c, w := testContext(t, http.MethodPost, body)
	c.Set("userID", "curator-1")
	c.Set("isCurator", true)

	handler.CreateItem(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("Expected 1 insert, got %d", len(repo.inserted))
	}
	item := repo.inserted[0]
	if item.CuratorID != "curator-1" || !item.Approved {
		t.Errorf("Expected an approved curator item, got %+v", item)
	}
	if item.QuizOptions != `["Lookout","Fun"]` {
		t.Errorf("Unexpected encoded options: %q", item.QuizOptions)
	}
}

func TestHandler_CreateItem_UnknownCategory(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{})
	c, w := testContext(t, http.MethodPost, `{"title":"T","media_url":"https://x.example/v.mp4","category":"dinos"}`)
	c.Set("userID", "curator-1")
	c.Set("isCurator", true)

	handler.CreateItem(c)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unknown category, got %d", w.Code)
	}
}

func TestHandler_ApproveItem_UnknownItem(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{approveErr: errors.New("item not found")})
	c, w := testContext(t, http.MethodPost, "")
	c.Params = gin.Params{{Key: "id", Value: "nope"}}

	handler.ApproveItem(c)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown item, got %d", w.Code)
	}
}

func TestHandler_AnalyzeItem_Disabled(t *testing.T) {
	handler := newTestHandler(&stubItemRepo{})
	c, w := testContext(t, http.MethodPost, `{"media_url":"https://x.example/v.mp4"}`)

	handler.AnalyzeItem(c)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when analysis is not configured, got %d", w.Code)
	}
}
