// Package triageapi is the HTTP client for the nurse-triage backend: a
// one-shot dashboard snapshot endpoint and a per-encounter SSE stream.
package triageapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/triageboard/triageboard/internal/domain/dashboard"
)

const (
	// maxBodySnippet bounds how much of an unexpected body is carried in
	// error messages.
	maxBodySnippet = 180

	defaultTimeout = 15 * time.Second
)

// Client talks to the triage backend. The zero value is not usable; create
// one with NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout: SSE connections are long-lived.
	streamClient *http.Client
	logger       zerolog.Logger
}

// NewClient creates a client for the triage backend rooted at baseURL
// (e.g. "http://triage-backend:9000").
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: defaultTimeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// SetTimeout overrides the snapshot request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

func (c *Client) dashboardURL(encounterID string) string {
	return c.baseURL + "/triage/nurse/dashboard/" + encounterID
}

func (c *Client) streamURL(encounterID string) string {
	return c.baseURL + "/triage/nurse/stream/" + encounterID
}

// LoadDashboard issues one snapshot request and returns the dashboard with
// its collections sorted per the reconciliation invariants. It never
// constructs a default dashboard on failure; "treat never-loaded as empty"
// is a caller decision.
func (c *Client) LoadDashboard(ctx context.Context, encounterID string) (*dashboard.Dashboard, error) {
	url := c.dashboardURL(encounterID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: snippet(body)}
	}

	var d dashboard.Dashboard
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, &MalformedResponseError{
			URL:           url,
			ContentType:   resp.Header.Get("Content-Type"),
			Snippet:       snippet(body),
			LooksLikeHTML: looksLikeHTML(body),
		}
	}

	if d.QuestionEvents == nil {
		d.QuestionEvents = []dashboard.QuestionEvent{}
	}
	if d.TierSummaries == nil {
		d.TierSummaries = []dashboard.TierSummary{}
	}
	dashboard.SortQuestionEvents(d.QuestionEvents)
	dashboard.SortTierSummaries(d.TierSummaries)

	return &d, nil
}

func snippet(body []byte) string {
	s := string(body)
	if len(s) > maxBodySnippet {
		s = s[:maxBodySnippet]
	}
	return s
}

func looksLikeHTML(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return strings.HasPrefix(strings.ToLower(s), "<!doctype") || strings.HasPrefix(s, "<")
}
