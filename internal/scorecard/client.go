package scorecard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/store"
)

// Snapshot is the grader's latest view of a story.
type Snapshot struct {
	StoryID  string        `json:"story_id"`
	Metrics  store.Metrics `json:"metrics"`
	GradedAt time.Time     `json:"graded_at"`
	Sprint   *SprintInfo   `json:"sprint,omitempty"`
}

type SprintInfo struct {
	Objective   string `json:"objective"`
	HorizonDays int    `json:"horizon_days"`
}

type Client interface {
	GetSnapshot(ctx context.Context, storyID string) (*Snapshot, error)
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetSnapshot returns nil, nil when the grader has never scored the story.
func (c *HTTPClient) GetSnapshot(ctx context.Context, storyID string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/stories/"+url.PathEscape(storyID)+"/metrics", nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Agent-ID", "storyloop")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("scorecard: %d %s", resp.StatusCode, string(body))
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("scorecard: decode snapshot: %w", err)
	}
	if snap.Metrics == nil {
		snap.Metrics = store.Metrics{}
	}
	return &snap, nil
}
