package api

import (
	"github.com/lumilearn/lumifeed/app/analyzer"
	"github.com/lumilearn/lumifeed/app/catalog"
	"github.com/lumilearn/lumifeed/app/database"
	"github.com/lumilearn/lumifeed/app/feed"
	"github.com/lumilearn/lumifeed/app/ledger"
	"github.com/lumilearn/lumifeed/app/tasks"
)

type Handler struct {
	controller *feed.Controller
	registry   *feed.Registry
	catalog    *catalog.Catalog
	ledgerSvc  *ledger.Ledger
	itemRepo   database.ItemRepository
	analyzer   *analyzer.Analyzer
	scheduler  tasks.TaskSchedulerInterface
	sources    []tasks.ImportSource
}

type visibilityRequest struct {
	Candidates []feed.VisibilityCandidate `json:"candidates" binding:"required"`
}

type answerRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	OptionIndex *int   `json:"option_index" binding:"required"`
}

type dismissRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

type muteRequest struct {
	Muted *bool `json:"muted" binding:"required"`
}

type createItemRequest struct {
	Title    string             `json:"title" binding:"required"`
	MediaURL string             `json:"media_url" binding:"required,url"`
	Category string             `json:"category" binding:"required"`
	Quiz     *createQuizRequest `json:"quiz"`
}

type createQuizRequest struct {
	Prompt       string   `json:"prompt" binding:"required"`
	Options      []string `json:"options" binding:"required,min=2"`
	CorrectIndex int      `json:"correct_index"`
}

type analyzeRequest struct {
	MediaURL string `json:"media_url" binding:"required,url"`
}
