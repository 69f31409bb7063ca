// Package ccm provides a client for the remote CCM task-management service.
package ccm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// callTimeout bounds every mutating/listing call.
	callTimeout = 8 * time.Second

	// resolveTimeout bounds listing calls made for name resolution, so a
	// stalled lookup cannot hold up a whole turn.
	resolveTimeout = 5 * time.Second
)

// Project is a project as reported by the CCM service.
type Project struct {
	ID        json.Number `json:"id"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	RemoteURL string      `json:"remoteUrl"`
	CreatedAt string      `json:"createdAt"`
}

// Task is a task as reported by the CCM service.
type Task struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	ProjectID json.Number `json:"projectId"`
	Branch    string      `json:"branch"`
	Status    string      `json:"status"`
}

// Client talks to the CCM HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a CCM client for the given base URL.
func NewClient(baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: transport,
		},
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "ccm"}),
	}
}

// BaseURL returns the configured service endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// response is a raw CCM reply before interpretation.
type response struct {
	Status int
	Body   []byte
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body any) (*response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &response{Status: resp.StatusCode, Body: data}, nil
}

// ListProjects fetches all projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	resp, err := c.do(ctx, callTimeout, http.MethodGet, "/projects", nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("list projects: HTTP %d", resp.Status)
	}

	var projects []Project
	if err := json.Unmarshal(resp.Body, &projects); err != nil {
		return nil, fmt.Errorf("parse projects: %w", err)
	}
	return projects, nil
}

// ListTasks fetches tasks, optionally filtered by project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	path := "/tasks"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}

	resp, err := c.do(ctx, callTimeout, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, fmt.Errorf("list tasks: HTTP %d", resp.Status)
	}

	var tasks []Task
	if err := json.Unmarshal(resp.Body, &tasks); err != nil {
		return nil, fmt.Errorf("parse tasks: %w", err)
	}
	return tasks, nil
}

// Healthy probes the service and returns the project count on success.
func (c *Client) Healthy(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	projects, err := c.ListProjects(ctx)
	if err != nil {
		return 0, err
	}
	return len(projects), nil
}
