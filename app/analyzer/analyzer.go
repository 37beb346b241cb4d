package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability"

	"github.com/lumilearn/lumifeed/app/catalog"
)

var ErrDisabled = errors.New("content analysis is not configured")

const maxExcerptLen = 2000

// Suggestion is what the analysis endpoint proposes for a media URL:
// a title, a knowledge category and a complete quiz.
type Suggestion struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Prompt       string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

// Analyzer calls an external content-analysis endpoint to generate quiz
// suggestions for curator uploads and imported items. The endpoint itself
// is opaque; this client only enriches the request with readable page
// context scraped from the media URL.
type Analyzer struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

func NewAnalyzer(endpoint, userAgent string, httpClient *http.Client) *Analyzer {
	return &Analyzer{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

// Enabled reports whether an analysis endpoint is configured.
func (a *Analyzer) Enabled() bool {
	return a.endpoint != ""
}

type analyzeRequest struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Analyze asks the analysis endpoint for a quiz suggestion. Page context
// extraction is best effort: a page that cannot be fetched or parsed just
// yields a context-free request.
func (a *Analyzer) Analyze(ctx context.Context, mediaURL string) (*Suggestion, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}

	request := analyzeRequest{URL: mediaURL}
	if title, excerpt, err := a.fetchPageContext(ctx, mediaURL); err != nil {
		slog.Debug("Page context extraction failed, analyzing URL only", "url", mediaURL, "error", err)
	} else {
		request.Title = title
		request.Excerpt = excerpt
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyze endpoint returned HTTP %d", resp.StatusCode)
	}

	var suggestion Suggestion
	if err := json.NewDecoder(resp.Body).Decode(&suggestion); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}

	if err := validateSuggestion(&suggestion); err != nil {
		return nil, fmt.Errorf("analyze endpoint returned unusable suggestion: %w", err)
	}

	return &suggestion, nil
}

func validateSuggestion(s *Suggestion) error {
	if s.Prompt == "" {
		return errors.New("empty question")
	}
	if len(s.Options) < 2 {
		return errors.New("fewer than two options")
	}
	if s.CorrectIndex < 0 || s.CorrectIndex >= len(s.Options) {
		return errors.New("correct_index out of range")
	}
	if s.Category != "" && !catalog.Category(s.Category).Valid() {
		return fmt.Errorf("unknown category %q", s.Category)
	}
	return nil
}

// fetchPageContext fetches the media page and extracts a readable title
// and text excerpt to give the analysis endpoint something to work with.
func (a *Analyzer) fetchPageContext(ctx context.Context, mediaURL string) (string, string, error) {
	pageURL, err := url.Parse(mediaURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid media URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create page request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("page returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("failed to read page body: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to extract content: %w", err)
	}

	excerpt := strings.TrimSpace(article.TextContent)
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}

	return article.Title, excerpt, nil
}
