// Package api is the HTTP client for the orchestration server's REST
// surface. The push connection carries state changes; this client
// carries cold loads and operator commands.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swarmdeck/swarmdeck/internal/domain"
	"github.com/swarmdeck/swarmdeck/internal/errors"
	"github.com/swarmdeck/swarmdeck/internal/workflow"
)

// Client talks to one orchestration server. Configure BaseURL, Token,
// and Timeout before the first request; after that the client is safe
// for concurrent use.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// CardRequest carries the writable card fields.
type CardRequest struct {
	ProjectID   string             `json:"project_id,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Labels      []string           `json:"labels,omitempty"`
	Priority    int                `json:"priority,omitempty"`
	Deadline    *time.Time         `json:"deadline,omitempty"`
	LoopConfig  *domain.LoopConfig `json:"loop_config,omitempty"`
}

// ListCards returns all cards, optionally scoped to one project.
func (c *Client) ListCards(ctx context.Context, projectID string) ([]domain.Card, error) {
	endpoint := "api/cards"
	if projectID != "" {
		endpoint += "?project=" + url.QueryEscape(projectID)
	}
	var resp struct {
		Items []domain.Card `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetCard fetches a card by id.
func (c *Client) GetCard(ctx context.Context, cardID string) (domain.Card, error) {
	var resp domain.Card
	err := c.do(ctx, http.MethodGet, c.cardPath(cardID, ""), nil, &resp)
	return resp, err
}

// CreateCard creates a card in draft.
func (c *Client) CreateCard(ctx context.Context, req CardRequest) (domain.Card, error) {
	var resp domain.Card
	err := c.do(ctx, http.MethodPost, "api/cards", req, &resp)
	return resp, err
}

// UpdateCard replaces the writable fields of a card.
func (c *Client) UpdateCard(ctx context.Context, cardID string, req CardRequest) (domain.Card, error) {
	var resp domain.Card
	err := c.do(ctx, http.MethodPut, c.cardPath(cardID, ""), req, &resp)
	return resp, err
}

// DeleteCard removes a card.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	return c.do(ctx, http.MethodDelete, c.cardPath(cardID, ""), nil, nil)
}

// ApplyTrigger asks the server to run one workflow transition. The
// server is the authority; local validation only catches the obvious
// errors early.
func (c *Client) ApplyTrigger(ctx context.Context, cardID string, trigger workflow.Trigger) (domain.Card, error) {
	body := map[string]any{"trigger": string(trigger)}
	var resp domain.Card
	err := c.do(ctx, http.MethodPost, c.cardPath(cardID, "transition"), body, &resp)
	return resp, err
}

// ListWorkers returns the worker fleet.
func (c *Client) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	var resp struct {
		Items []domain.Worker `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "api/workers", nil, &resp)
	return resp.Items, err
}

// ListProjects returns all projects.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var resp struct {
		Items []domain.Project `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "api/projects", nil, &resp)
	return resp.Items, err
}

// ListLoops returns the loop status for every card with an agent loop.
func (c *Client) ListLoops(ctx context.Context) ([]domain.Loop, error) {
	var resp struct {
		Items []domain.Loop `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "api/loops", nil, &resp)
	return resp.Items, err
}

// LoopAction pauses, resumes, or stops a card's agent loop. Action is
// one of "pause", "resume", "stop".
func (c *Client) LoopAction(ctx context.Context, cardID, action string) error {
	return c.do(ctx, http.MethodPost, c.cardPath(cardID, "loop/"+url.PathEscape(action)), nil, nil)
}

// WorkerOutput returns up to limit recent output lines for a worker.
// Satisfies tail.BacklogLoader.
func (c *Client) WorkerOutput(ctx context.Context, workerID string, limit int) ([]domain.OutputLine, error) {
	endpoint := fmt.Sprintf("api/workers/%s/output", url.PathEscape(workerID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp struct {
		Items []domain.OutputLine `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	// Never written back to the shared struct: requests run concurrently.
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if method != http.MethodGet {
		// The server de-duplicates retried commands by this key.
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &errors.RequestError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) cardPath(cardID, suffix string) string {
	p := "api/cards/" + url.PathEscape(cardID)
	if suffix != "" {
		p += "/" + strings.TrimLeft(suffix, "/")
	}
	return p
}
