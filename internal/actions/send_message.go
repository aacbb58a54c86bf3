package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// SendMessageExecutor renders and delivers one message. The delivery log is
// checked first so a replayed wake-up for an already-sent action is a no-op.
type SendMessageExecutor struct {
	Renderer   core.Renderer
	Deliverer  core.Deliverer
	Deliveries DeliveryLog
	Clock      core.Clock
}

func (e *SendMessageExecutor) Execute(ctx context.Context, req *Request) error {
	sent, err := e.Deliveries.Sent(req.Execution.ID, req.Action.ID)
	if err != nil {
		return fmt.Errorf("delivery log lookup: %w", err)
	}
	if sent {
		slog.InfoContext(ctx, "Message already delivered, skipping send",
			"execution_id", req.Execution.ID, "action_id", req.Action.ID)
		return nil
	}

	subject, err := e.Renderer.Render(req.Action.Subject, req.Recipient, req.Execution.Context)
	if err != nil {
		return fmt.Errorf("render subject: %w", err)
	}
	body, err := e.Renderer.Render(req.Action.Template, req.Recipient, req.Execution.Context)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	if err := e.Deliverer.Send(ctx, subject, body, req.Recipient.Email); err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}

	if _, err := e.Deliveries.Record(&domain.DeliveryRecord{
		ExecutionID: req.Execution.ID,
		ActionID:    req.Action.ID,
		RecipientID: req.Recipient.ID,
		Subject:     subject,
		SentAt:      e.Clock.Now(),
	}); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
