package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WebhookExecutor posts an event to the action's URL. Any non-2xx response
// is an error; the engine decides what to do with the failure.
type WebhookExecutor struct {
	Client *http.Client
}

type webhookPayload struct {
	ExecutionID  int64             `json:"executionId"`
	AutomationID string            `json:"automationId"`
	RecipientID  string            `json:"recipientId"`
	ActionID     string            `json:"actionId"`
	Context      map[string]string `json:"context,omitempty"`
}

func (e *WebhookExecutor) Execute(ctx context.Context, req *Request) error {
	payload, err := json.Marshal(webhookPayload{
		ExecutionID:  req.Execution.ID,
		AutomationID: req.Execution.AutomationID,
		RecipientID:  req.Recipient.ID,
		ActionID:     req.Action.ID,
		Context:      req.Execution.Context,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Action.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post webhook %s: %w", req.Action.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook %s returned status %d", req.Action.URL, resp.StatusCode)
	}
	return nil
}
