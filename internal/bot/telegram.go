// Package bot is the Telegram front end: long-poll transport, command
// routing, and the bridge into the conversation orchestrator.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// pollTimeout is the long-poll window passed to getUpdates.
const pollTimeout = 30 * time.Second

// API is a minimal Telegram Bot API client: long-poll receive and message
// send are all this bot needs.
type API struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewAPI creates a client for the given bot token.
func NewAPI(token string) *API {
	return &API{
		baseURL: "https://api.telegram.org/bot" + token,
		httpClient: &http.Client{
			// Must exceed the long-poll window.
			Timeout: pollTimeout + 15*time.Second,
		},
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "telegram"}),
	}
}

// NewAPIWithBaseURL points the client at a non-default server. Tests use
// this with a local fake.
func NewAPIWithBaseURL(baseURL string) *API {
	api := NewAPI("")
	api.baseURL = baseURL
	return api
}

// Update is one getUpdates entry.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message"`
}

// IncomingMessage is the inbound half of the transport boundary.
type IncomingMessage struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (a *API) call(ctx context.Context, method string, payload any, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/"+method, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("parse %s response: %w", method, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s failed: %s", method, parsed.Description)
	}
	if result != nil {
		return json.Unmarshal(parsed.Result, result)
	}
	return nil
}

// GetUpdates long-polls for new updates after offset.
func (a *API) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": int(pollTimeout.Seconds()),
	}
	var updates []Update
	if err := a.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage delivers one text chunk to a chat.
func (a *API) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return a.call(ctx, "sendMessage", payload, nil)
}
