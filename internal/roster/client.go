package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MikeSquared-Agency/Storyloop/internal/autonomy"
)

// Assignment binds a role agent to the collaborator who owns its work.
type Assignment struct {
	RoleAgentID string `json:"role_agent_id"`
	UserID      string `json:"user_id"`
}

type Client interface {
	ListAssignments(ctx context.Context, storyID string) ([]Assignment, error)
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

type assignmentsResponse struct {
	Data []Assignment `json:"data"`
}

func (c *HTTPClient) ListAssignments(ctx context.Context, storyID string) ([]Assignment, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/stories/"+url.PathEscape(storyID)+"/collaborators", nil)
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("roster: %d %s", resp.StatusCode, string(body))
	}

	var result assignmentsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

// ToRoster drops assignments without a user, so those roles count as missing owners.
func ToRoster(assignments []Assignment) autonomy.Roster {
	r := autonomy.Roster{}
	for _, a := range assignments {
		if a.RoleAgentID == "" || a.UserID == "" {
			continue
		}
		r[a.RoleAgentID] = a.UserID
	}
	return r
}
