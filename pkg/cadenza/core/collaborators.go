package core

import (
	"context"
	"errors"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// ErrRecipientNotFound is returned by a RecipientStore when the id is unknown.
var ErrRecipientNotFound = errors.New("recipient not found")

// RecipientStore is the contact-store collaborator. Mutations must be safe
// under concurrent callers; tag operations are idempotent (adding an existing
// tag or removing an absent one is a no-op).
type RecipientStore interface {
	GetRecipient(ctx context.Context, id string) (*domain.Recipient, error)
	AddTag(ctx context.Context, id string, tag string) error
	RemoveTag(ctx context.Context, id string, tag string) error
	SetField(ctx context.Context, id string, field string, value string) error
}

// Deliverer is the transport collaborator that sends a rendered message.
type Deliverer interface {
	Send(ctx context.Context, subject, body, recipientAddress string) error
}

// Renderer is the personalization collaborator; it never mutates state.
type Renderer interface {
	Render(template string, recipient *domain.Recipient, execCtx map[string]string) (string, error)
}
