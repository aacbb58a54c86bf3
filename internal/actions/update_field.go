package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
)

// UpdateFieldExecutor writes one custom field on the recipient. A value with
// the "context." prefix is resolved from the execution context at run time,
// anything else is taken literally. Setting the same value twice is a no-op,
// so replays are safe.
type UpdateFieldExecutor struct {
	Recipients core.RecipientStore
}

func (e *UpdateFieldExecutor) Execute(ctx context.Context, req *Request) error {
	value := req.Action.Value
	if strings.HasPrefix(value, "context.") {
		key := strings.TrimPrefix(value, "context.")
		resolved, ok := req.Execution.Context[key]
		if !ok {
			return fmt.Errorf("context key %q not present on execution %d", key, req.Execution.ID)
		}
		value = resolved
	}
	if err := e.Recipients.SetField(ctx, req.Recipient.ID, req.Action.Field, value); err != nil {
		return fmt.Errorf("set field %q: %w", req.Action.Field, err)
	}
	return nil
}
