package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bborn/jarvis/internal/session"
)

// Intent types form a closed set.
const (
	IntentChat          = "chat"
	IntentListProjects  = "list_projects"
	IntentListTasks     = "list_tasks"
	IntentCreateProject = "create_project"
	IntentCreateTask    = "create_task"
	IntentStartTask     = "start_task"
	IntentStopTask      = "stop_task"
	IntentDeleteProject = "delete_project"
	IntentDeleteTask    = "delete_task"
)

// ClassifyWindow caps how many history entries feed classification.
const ClassifyWindow = 6

// contextTurnLimit truncates each context turn to bound prompt size.
const contextTurnLimit = 200

// Intent is a classified user goal with its free-form parameters.
type Intent struct {
	Type   string
	Params map[string]string
}

// IsDelete reports whether the intent is one of the unsupported delete
// operations, which must never reach the executor.
func (i *Intent) IsDelete() bool {
	return i.Type == IntentDeleteProject || i.Type == IntentDeleteTask
}

// requiredParams lists the keys each actionable intent needs before dispatch.
var requiredParams = map[string][]string{
	IntentCreateProject: {"name", "path"},
	IntentCreateTask:    {"title", "projectId", "branch"},
	IntentStartTask:     {"taskId"},
	IntentStopTask:      {"taskId"},
}

// MissingParams returns the required keys the intent does not carry yet.
// Name params stand in for their id counterparts since resolution fills the
// id in later.
func (i *Intent) MissingParams() []string {
	var missing []string
	for _, key := range requiredParams[i.Type] {
		if i.Params[key] != "" {
			continue
		}
		switch key {
		case "projectId":
			if i.Params["projectName"] != "" || i.Params["name"] != "" {
				continue
			}
		case "taskId":
			if i.Params["taskName"] != "" {
				continue
			}
		}
		missing = append(missing, key)
	}
	return missing
}

// Classify sends the utterance plus a bounded context window to the model
// and parses the structured intent out of its reply. Classification never
// fails a turn: any parse problem degrades to the chat intent.
func (c *Client) Classify(ctx context.Context, utterance string, window []session.Message) *Intent {
	prompt := buildClassifyPrompt(utterance, window)

	text, err := c.CompleteText(ctx, "", []Message{{Role: "user", Content: prompt}})
	if err != nil {
		c.logger.Warn("classification call failed, falling back to chat", "error", err)
		return &Intent{Type: IntentChat, Params: map[string]string{}}
	}

	return parseIntent(text)
}

func buildClassifyPrompt(utterance string, window []session.Message) string {
	var sb strings.Builder

	sb.WriteString(`You are an intent classifier for a server operations assistant that manages projects and tasks on a remote CCM service. Classify the user's message and return a JSON object.

Available intents:
- chat: General conversation, questions, anything not listed below
- list_projects: List projects on CCM
- list_tasks: List tasks, optionally for one project
- create_project: Create a new project
- create_task: Create a task in a project
- start_task: Start a task
- stop_task: Stop a task
- delete_project: Delete a project
- delete_task: Delete a task

Return a JSON object:
{
  "intent": "<intent>",
  "params": {
    "name": "<project name for create_project>",
    "path": "<filesystem path for create_project>",
    "title": "<task title for create_task>",
    "projectId": "<project id if the user gave one>",
    "projectName": "<project name to look up>",
    "branch": "<git branch for create_task>",
    "taskId": "<task id if the user gave one>",
    "taskName": "<task name to look up>"
  }
}

Omit params you cannot fill. Resolve pronouns ("it", "that project") using
the conversation context below. Respond with only the JSON object.

`)

	if len(window) > 0 {
		sb.WriteString("Conversation context:\n")
		for _, m := range window {
			sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, truncate(m.Content, contextTurnLimit)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("User message: %s", utterance))
	return sb.String()
}

// truncate cuts s to at most limit bytes on a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of free text: a fenced code block
// first, then the first brace-balanced span.
func extractJSON(text string) (string, bool) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], true
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// parseIntent decodes the model's reply. The params object is flattened
// together with any sibling keys the model left at the top level, and
// top-level keys win. Models are not consistent about the output shape.
func parseIntent(text string) *Intent {
	raw, ok := extractJSON(text)
	if !ok {
		return &Intent{Type: IntentChat, Params: map[string]string{}}
	}

	var decoded map[string]any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return &Intent{Type: IntentChat, Params: map[string]string{}}
	}

	intent := &Intent{Type: IntentChat, Params: map[string]string{}}

	if nested, ok := decoded["params"].(map[string]any); ok {
		for k, v := range nested {
			if s := stringify(v); s != "" {
				intent.Params[k] = s
			}
		}
	}

	for k, v := range decoded {
		switch k {
		case "intent":
			if s, ok := v.(string); ok && s != "" {
				intent.Type = s
			}
		case "params":
			// already flattened
		default:
			if s := stringify(v); s != "" {
				intent.Params[k] = s
			}
		}
	}

	if !validIntent(intent.Type) {
		intent.Type = IntentChat
	}
	return intent
}

func validIntent(t string) bool {
	switch t {
	case IntentChat, IntentListProjects, IntentListTasks, IntentCreateProject,
		IntentCreateTask, IntentStartTask, IntentStopTask,
		IntentDeleteProject, IntentDeleteTask:
		return true
	}
	return false
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
