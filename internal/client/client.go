// Package client talks to the kpiboard HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kpiboard/internal/core"
	"kpiboard/internal/validation"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
	Details []validation.Violation
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	parts := make([]string, len(e.Details))
	for i, v := range e.Details {
		parts[i] = v.Path + ": " + v.Message
	}
	return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, strings.Join(parts, "; "))
}

// Result is the body of a successful write.
type Result[T any] struct {
	OK        bool   `json:"ok"`
	Data      T      `json:"data"`
	Persisted bool   `json:"persisted"`
	Warning   string `json:"warning,omitempty"`
}

// BudgetSummary is the budget summary endpoint payload.
type BudgetSummary struct {
	Summary core.BudgetSummary `json:"summary"`
	Months  []string           `json:"months"`
}

// DashboardSummary is the dashboard summary endpoint payload.
type DashboardSummary struct {
	Summary core.DashboardSummary `json:"summary"`
}

type Client struct {
	baseURL  string
	http     *http.Client
	user     string
	password string
}

type Option func(*Client)

// WithBasicAuth sends credentials on every request.
func WithBasicAuth(user, password string) Option {
	return func(c *Client) {
		c.user = user
		c.password = password
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Dashboard(ctx context.Context) (core.DashboardDocument, error) {
	var doc core.DashboardDocument
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &doc)
	return doc, err
}

func (c *Client) Budget(ctx context.Context) (core.BudgetDocument, error) {
	var doc core.BudgetDocument
	err := c.do(ctx, http.MethodGet, "/api/budget", nil, &doc)
	return doc, err
}

func (c *Client) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary
	err := c.do(ctx, http.MethodGet, "/api/dashboard/summary", nil, &out)
	return out, err
}

func (c *Client) BudgetSummary(ctx context.Context) (BudgetSummary, error) {
	var out BudgetSummary
	err := c.do(ctx, http.MethodGet, "/api/budget/summary", nil, &out)
	return out, err
}

// ReplaceDashboard overwrites the whole dashboard document.
func (c *Client) ReplaceDashboard(ctx context.Context, doc core.DashboardDocument) (Result[core.DashboardDocument], error) {
	var out Result[core.DashboardDocument]
	err := c.do(ctx, http.MethodPut, "/api/dashboard", doc, &out)
	return out, err
}

// PatchDashboard merges patch into the stored dashboard.
func (c *Client) PatchDashboard(ctx context.Context, patch any) (Result[core.DashboardDocument], error) {
	var out Result[core.DashboardDocument]
	err := c.do(ctx, http.MethodPatch, "/api/dashboard", patch, &out)
	return out, err
}

// ReplaceBudget overwrites the whole budget document.
func (c *Client) ReplaceBudget(ctx context.Context, doc core.BudgetDocument) (Result[core.BudgetDocument], error) {
	var out Result[core.BudgetDocument]
	err := c.do(ctx, http.MethodPut, "/api/budget", doc, &out)
	return out, err
}

// PatchBudget merges patch into the stored budget.
func (c *Client) PatchBudget(ctx context.Context, patch any) (Result[core.BudgetDocument], error) {
	var out Result[core.BudgetDocument]
	err := c.do(ctx, http.MethodPatch, "/api/budget", patch, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error   string                 `json:"error"`
			Details []validation.Violation `json:"details"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Details = payload.Details
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
