package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/bborn/jarvis/internal/ccm"
	"github.com/bborn/jarvis/internal/session"
)

// Orchestration strategies.
const (
	StrategyTools  = "tools"
	StrategyPhases = "phases"
)

// maxToolRounds bounds the tool-calling loop. The limit message below is the
// liveness guarantee when the model never stops asking for tools.
const maxToolRounds = 5

// ClearSentinel in a model reply clears the session context.
const ClearSentinel = "__CLEAR_CONTEXT__"

const (
	toolLimitMessage   = "I hit the tool-call limit without finishing. Please try again."
	contextClearedMsg  = "Context cleared."
	emptyReplyFallback = "Done."
)

const systemPromptBase = `You are Jarvis, a lightweight operations assistant and dispatch center for a personal server.
You manage projects and tasks on a remote CCM service and answer general questions.
You cannot run shell commands, read or write files, or check service health yourself; for those, tell the user to use /run or /status.
If the user asks you to forget the conversation, reply with exactly __CLEAR_CONTEXT__.
Keep replies concise and do not promise things you cannot do.`

// TaskService is the remote task-management surface the orchestrator drives.
// *ccm.Client implements it.
type TaskService interface {
	Execute(ctx context.Context, action string, params map[string]string) any
	ResolveProject(ctx context.Context, name string) *ccm.Project
	ResolveTask(ctx context.Context, name, projectID string) *ccm.Task
}

// Orchestrator turns an inbound utterance into exactly one reply. Depending
// on the configured strategy it either runs the phased pipeline or the
// tool-calling loop.
type Orchestrator struct {
	ai       *Client
	svc      TaskService
	strategy string
	logger   *log.Logger
}

// NewOrchestrator creates an orchestrator using the given strategy.
func NewOrchestrator(client *Client, svc TaskService, strategy string) *Orchestrator {
	if strategy != StrategyPhases {
		strategy = StrategyTools
	}
	return &Orchestrator{
		ai:       client,
		svc:      svc,
		strategy: strategy,
		logger:   log.NewWithOptions(os.Stderr, log.Options{Prefix: "orchestrator"}),
	}
}

// Respond processes one turn for the session. The returned error is the one
// failure class allowed to surface raw: the completion call itself failing.
func (o *Orchestrator) Respond(ctx context.Context, sess *session.Session, text string) (string, error) {
	turnID := uuid.NewString()[:8]
	o.logger.Info("turn started", "turn", turnID, "strategy", o.strategy, "len", len(text))

	var reply string
	var err error
	if o.strategy == StrategyPhases {
		reply, err = o.respondPhases(ctx, sess, text)
	} else {
		reply, err = o.respondTools(ctx, sess, text)
	}
	if err != nil {
		o.logger.Error("turn failed", "turn", turnID, "error", err)
		return "", err
	}

	if strings.Contains(reply, ClearSentinel) {
		sess.Reset()
		o.logger.Info("turn cleared context", "turn", turnID)
		return contextClearedMsg, nil
	}

	sess.Append(session.RoleUser, text)
	sess.Append(session.RoleAssistant, reply)
	o.logger.Info("turn done", "turn", turnID, "reply_len", len(reply))
	return reply, nil
}

// respondPhases runs classify, resolve, execute, summarize.
func (o *Orchestrator) respondPhases(ctx context.Context, sess *session.Session, text string) (string, error) {
	intent := o.ai.Classify(ctx, text, sess.ContextWindow(ClassifyWindow))
	o.logger.Debug("classified", "intent", intent.Type, "params", intent.Params)

	if intent.Type == IntentChat {
		return o.chat(ctx, sess, text)
	}

	// The CCM service has no delete endpoints; these never reach the
	// executor.
	if intent.IsDelete() {
		return deleteApology(intent), nil
	}

	if missing := intent.MissingParams(); len(missing) > 0 {
		return fmt.Sprintf("I need a bit more to do that — please tell me: %s.", strings.Join(missing, ", ")), nil
	}

	o.resolveNames(ctx, intent)

	result := o.svc.Execute(ctx, intent.Type, intent.Params)

	return o.summarize(ctx, sess, text, result)
}

// resolveNames fills projectId/taskId from their name counterparts, mutating
// the params map in place. A failed resolution leaves the params as they
// are; the action proceeds with whatever identifiers it has.
func (o *Orchestrator) resolveNames(ctx context.Context, intent *Intent) {
	if intent.Params["projectId"] == "" {
		name := intent.Params["projectName"]
		if name == "" && intent.Type != IntentCreateProject {
			name = intent.Params["name"]
		}
		if name != "" {
			if p := o.svc.ResolveProject(ctx, name); p != nil {
				intent.Params["projectId"] = p.ID.String()
			}
		}
	}

	if intent.Params["taskId"] == "" && intent.Params["taskName"] != "" {
		if t := o.svc.ResolveTask(ctx, intent.Params["taskName"], intent.Params["projectId"]); t != nil {
			intent.Params["taskId"] = t.ID.String()
		}
	}
}

// chat answers directly from the rolling history with no remote calls.
func (o *Orchestrator) chat(ctx context.Context, sess *session.Session, text string) (string, error) {
	messages := historyMessages(sess.History())
	messages = append(messages, Message{Role: "user", Content: text})
	return o.ai.CompleteText(ctx, o.systemPrompt(sess), messages)
}

// summarize narrates the raw action result in natural language. Execution
// failures ride through here too: the model explains the error rather than
// the user seeing raw JSON.
func (o *Orchestrator) summarize(ctx context.Context, sess *session.Session, text string, result any) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", result))
	}

	messages := historyMessages(sess.History())
	messages = append(messages,
		Message{Role: "user", Content: text},
		Message{Role: "assistant", Content: string(raw)},
		Message{Role: "user", Content: "The assistant turn above is the raw JSON result of the action you performed. Summarize it for the user in one or two concise sentences. If it contains an error, explain what went wrong."},
	)
	return o.ai.CompleteText(ctx, o.systemPrompt(sess), messages)
}

// respondTools runs the bounded tool-invocation loop.
func (o *Orchestrator) respondTools(ctx context.Context, sess *session.Session, text string) (string, error) {
	messages := historyMessages(sess.History())
	messages = append(messages, Message{Role: "user", Content: text})
	system := o.systemPrompt(sess)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := o.ai.Complete(ctx, system, messages, toolDeclarations)
		if err != nil {
			return "", err
		}

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			reply := strings.TrimSpace(resp.Text())
			if reply == "" {
				reply = emptyReplyFallback
			}
			return reply, nil
		}

		// Fold the model's tool-invocation turn and one synthetic turn
		// carrying every result back into the sequence.
		messages = append(messages, Message{Role: "assistant", Content: resp.Content})

		results := make([]ContentBlock, 0, len(calls))
		for _, call := range calls {
			params := paramsFromInput(call.Input)
			result := o.svc.Execute(ctx, call.Name, params)
			raw, err := json.Marshal(result)
			if err != nil {
				raw = []byte(fmt.Sprintf("%q", fmt.Sprint(result)))
			}
			results = append(results, ContentBlock{
				Type:      "tool_result",
				ToolUseID: call.ID,
				Content:   string(raw),
			})
		}
		messages = append(messages, Message{Role: "user", Content: results})
	}

	return toolLimitMessage, nil
}

func (o *Orchestrator) systemPrompt(sess *session.Session) string {
	if sess.CurrentProject == nil {
		return systemPromptBase
	}
	return fmt.Sprintf("%s\nCurrent project: %s (%s)", systemPromptBase, sess.CurrentProject.Name, sess.CurrentProject.Path)
}

// deleteApology names the best identifier we have for what the user wanted
// gone.
func deleteApology(intent *Intent) string {
	target := "unknown"
	for _, key := range []string{"projectName", "name", "taskName", "taskId"} {
		if v := intent.Params[key]; v != "" {
			target = v
			break
		}
	}
	return fmt.Sprintf("Sorry, I can't delete %q — the CCM service has no delete endpoint. You'll need to remove it on the server directly.", target)
}

func historyMessages(history []session.Message) []Message {
	messages := make([]Message, 0, len(history)+4)
	for _, m := range history {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

// paramsFromInput flattens a tool invocation's structured input into the
// executor's string parameter map.
func paramsFromInput(input json.RawMessage) map[string]string {
	params := map[string]string{}
	if len(input) == 0 {
		return params
	}

	var decoded map[string]any
	dec := json.NewDecoder(strings.NewReader(string(input)))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return params
	}
	for k, v := range decoded {
		if s := stringify(v); s != "" {
			params[k] = s
		}
	}
	return params
}
