package ccm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"
)

// Action names accepted by Execute. These mirror the classifier's intent set
// minus chat and the delete intents, which never reach the service.
const (
	ActionListProjects  = "list_projects"
	ActionListTasks     = "list_tasks"
	ActionCreateProject = "create_project"
	ActionCreateTask    = "create_task"
	ActionStartTask     = "start_task"
	ActionStopTask      = "stop_task"
)

// Execute performs one outbound call for the given action and returns the
// decoded result. Failures are folded into the result value as a map carrying
// an "error" key, never returned as a Go error, so the caller can hand
// whatever came back to the summarizer.
func (c *Client) Execute(ctx context.Context, action string, params map[string]string) any {
	resp, err := c.dispatch(ctx, action, params)
	if err != nil {
		c.logger.Warn("action failed", "action", action, "params", params, "error", err)
		return map[string]any{"error": err.Error()}
	}

	result := decodeResult(resp)
	c.logger.Info("action executed",
		"action", action,
		"params", params,
		"status", resp.Status,
		"response", preview(resp.Body, 200),
	)
	return result
}

func (c *Client) dispatch(ctx context.Context, action string, params map[string]string) (*response, error) {
	switch action {
	case ActionListProjects:
		return c.do(ctx, callTimeout, http.MethodGet, "/projects", nil)

	case ActionListTasks:
		path := "/tasks"
		if id := params["projectId"]; id != "" {
			path += "?projectId=" + url.QueryEscape(id)
		}
		return c.do(ctx, callTimeout, http.MethodGet, path, nil)

	case ActionCreateProject:
		return c.do(ctx, callTimeout, http.MethodPost, "/projects", map[string]string{
			"name": params["name"],
			"path": params["path"],
		})

	case ActionCreateTask:
		return c.do(ctx, callTimeout, http.MethodPost, "/tasks", map[string]string{
			"title":     params["title"],
			"projectId": params["projectId"],
			"branch":    params["branch"],
		})

	case ActionStartTask:
		id := params["taskId"]
		if id == "" {
			return nil, fmt.Errorf("start_task requires taskId")
		}
		body := map[string]string{}
		if branch := params["branch"]; branch != "" {
			body["branch"] = branch
		}
		return c.do(ctx, callTimeout, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/start", body)

	case ActionStopTask:
		id := params["taskId"]
		if id == "" {
			return nil, fmt.Errorf("stop_task requires taskId")
		}
		return c.do(ctx, callTimeout, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/stop", nil)

	default:
		return nil, fmt.Errorf("unsupported action: %s", action)
	}
}

// decodeResult parses the body as JSON when possible; otherwise the raw text
// and status survive as a structured fallback instead of being discarded.
func decodeResult(resp *response) any {
	var parsed any
	if err := json.Unmarshal(resp.Body, &parsed); err == nil {
		return parsed
	}
	return map[string]any{
		"status": resp.Status,
		"body":   string(resp.Body),
	}
}

// preview cuts the body to at most n bytes on a rune boundary for logging.
func preview(body []byte, n int) string {
	s := string(body)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
