package merch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Candidate struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"` // draft, review, approved
}

type Client interface {
	GetCandidate(ctx context.Context, storyID string) (*Candidate, error)
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

func (c *HTTPClient) doReq(ctx context.Context, method, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return nil, resp.StatusCode, fmt.Errorf("merch %s %s: %d %s", method, path, resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}

// GetCandidate returns nil, nil when the story has no merch candidate.
func (c *HTTPClient) GetCandidate(ctx context.Context, storyID string) (*Candidate, error) {
	data, status, err := c.doReq(ctx, "GET", "/stories/"+url.PathEscape(storyID)+"/merch/candidate")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var cand Candidate
	if err := json.Unmarshal(data, &cand); err != nil {
		return nil, err
	}
	if cand.ID == "" {
		return nil, nil
	}
	return &cand, nil
}
