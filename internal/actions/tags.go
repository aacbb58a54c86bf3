package actions

import (
	"context"
	"fmt"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
)

// TagExecutor adds or removes one tag on the recipient. The store's tag
// operations are idempotent, so replays are safe.
type TagExecutor struct {
	Recipients core.RecipientStore
	Remove     bool
}

func (e *TagExecutor) Execute(ctx context.Context, req *Request) error {
	if e.Remove {
		if err := e.Recipients.RemoveTag(ctx, req.Recipient.ID, req.Action.Tag); err != nil {
			return fmt.Errorf("remove tag %q: %w", req.Action.Tag, err)
		}
		return nil
	}
	if err := e.Recipients.AddTag(ctx, req.Recipient.ID, req.Action.Tag); err != nil {
		return fmt.Errorf("add tag %q: %w", req.Action.Tag, err)
	}
	return nil
}
