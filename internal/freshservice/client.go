// Package freshservice is the client for the Freshservice v2 REST API.
// It covers the two read endpoints the exporter needs: the filtered ticket
// search and the per-ticket time-entries listing.
package freshservice

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/KnightedIT/freshservice-dashboard/internal/config"
)

// Client represents the Freshservice API client
type Client struct {
	httpClient  *resty.Client
	baseURL     string
	filterTag   string
	workspaceID int64
	pageSize    int
	logger      *log.Logger
}

// NewClient creates a client authenticated with apiKey. Freshservice uses
// Basic auth with the key as the username and a literal "X" password, and
// scopes requests to a workspace through the current_workspace_id cookie.
func NewClient(cfg *config.FreshserviceConfig, apiKey string) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 100
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL()).
		SetTimeout(timeout).
		SetBasicAuth(apiKey, "X").
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetCookie(&http.Cookie{
			Name:  "current_workspace_id",
			Value: strconv.FormatInt(cfg.WorkspaceID, 10),
		})

	if cfg.RetryCount > 0 {
		httpClient.SetRetryCount(cfg.RetryCount)
		if cfg.RetryWaitTime > 0 {
			httpClient.SetRetryWaitTime(cfg.RetryWaitTime)
		}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL(),
		filterTag:   cfg.FilterTag,
		workspaceID: cfg.WorkspaceID,
		pageSize:    pageSize,
		logger:      log.New(log.Writer(), "[FRESHSERVICE] ", log.LstdFlags),
	}
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// PageSize returns the raw page size used for ticket discovery.
func (c *Client) PageSize() int {
	return c.pageSize
}

// Ping checks if the API is reachable with the configured credential.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("per_page", "1").
		Get("/tickets")

	if err != nil {
		return fmt.Errorf("helpdesk unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("helpdesk returned %s", resp.Status())
	}
	return nil
}
