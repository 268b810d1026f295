// Package redcap fetches project metadata, variable dictionaries and records
// from a REDCap API endpoint.
package redcap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"redcapdl/internal/table"
)

// DefaultBaseURL is the Edinburgh REDCap API endpoint.
const DefaultBaseURL = "https://redcap.usher.ed.ac.uk/api/"

// UnknownProject is returned when the project payload carries no title.
const UnknownProject = "Unknown Project"

// APIError is a non-200 answer from the REDCap API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("redcap: HTTP %d: %s", e.Status, msg)
}

// Client talks to one REDCap project, identified by its API token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient returns a client for token. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("redcap: empty API token")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("redcap: invalid base url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("redcap").With(zap.String("token", MaskToken(token)))
	return c, nil
}

// MaskToken hides all but the last four characters of an API token.
func MaskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
}

// Token returns the masked token, safe for logs.
func (c *Client) Token() string { return MaskToken(c.token) }

// CheckAccess probes the project endpoint. It logs the outcome and returns
// the failure, if any.
func (c *Client) CheckAccess(ctx context.Context) error {
	if _, err := c.post(ctx, c.projectForm()); err != nil {
		c.log.Error("failed to access REDCap API", zap.Error(err))
		return err
	}
	c.log.Info("successfully accessed REDCap API")
	return nil
}

// ProjectTitle returns the human readable project title.
func (c *Client) ProjectTitle(ctx context.Context) (string, error) {
	body, err := c.post(ctx, c.projectForm())
	if err != nil {
		return "", fmt.Errorf("fetch project title: %w", err)
	}
	var info struct {
		ProjectTitle *string `json:"project_title"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("decode project info: %w", err)
	}
	if info.ProjectTitle == nil {
		return UnknownProject, nil
	}
	return *info.ProjectTitle, nil
}

// Variables returns the project's variable dictionary.
func (c *Client) Variables(ctx context.Context) (*table.Table, error) {
	form := c.form("metadata", "csv")
	body, err := c.post(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("fetch variable dictionary: %w", err)
	}
	t, err := table.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse variable dictionary: %w", err)
	}
	c.log.Info("fetched variable dictionary", zap.Int("rows", t.Len()))
	return t, nil
}

// Report returns every record of the project in flat, raw form.
func (c *Client) Report(ctx context.Context) (*table.Table, error) {
	form := c.form("record", "csv")
	form.Set("type", "flat")
	form.Set("csvDelimiter", "")
	form.Set("rawOrLabel", "raw")
	form.Set("rawOrLabelHeaders", "raw")
	form.Set("exportCheckboxLabel", "true")
	body, err := c.post(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	t, err := table.ReadCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	c.log.Info("fetched report data", zap.Int("rows", t.Len()), zap.Int("columns", t.Width()))
	return t, nil
}

func (c *Client) projectForm() url.Values { return c.form("project", "json") }

func (c *Client) form(content, format string) url.Values {
	return url.Values{
		"token":        {c.token},
		"content":      {content},
		"format":       {format},
		"returnFormat": {"json"},
	}
}

func (c *Client) post(ctx context.Context, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json, text/csv")

	c.log.Debug("requesting", zap.String("content", form.Get("content")))
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("redcap request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}
