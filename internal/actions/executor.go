// Package actions contains one executor per action kind. Executors are
// stateless against the execution row: flow control (cursor advance, waits,
// halts) belongs to the engine, an executor only performs its side effect.
package actions

import (
	"context"
	"net/http"
	"time"

	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// Request carries everything an executor may read. Executors may write to
// Execution.Context; the engine persists it when it changed.
type Request struct {
	Execution *domain.Execution
	Action    *domain.Action
	Recipient *domain.Recipient
}

// Executor performs the side effect of one action kind. It must be safe to
// call again for the same (execution, action) pair after a crash.
type Executor interface {
	Execute(ctx context.Context, req *Request) error
}

// DeliveryLog is the audit store an executor consults before sending.
type DeliveryLog interface {
	Sent(executionID int64, actionID string) (bool, error)
	Record(d *domain.DeliveryRecord) (string, error)
}

// Registry maps action kinds to their executors.
type Registry struct {
	executors map[domain.ActionKind]Executor
}

// Deps are the collaborators the built-in executors need.
type Deps struct {
	Recipients core.RecipientStore
	Deliverer  core.Deliverer
	Renderer   core.Renderer
	Deliveries DeliveryLog
	Clock      core.Clock
	HTTPClient *http.Client
}

// NewRegistry wires the built-in executors. Wait and halt are registered as
// no-ops so that every kind in a validated definition resolves; the engine
// interprets them.
func NewRegistry(deps Deps) *Registry {
	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Registry{
		executors: map[domain.ActionKind]Executor{
			domain.ActionSendMessage: &SendMessageExecutor{
				Renderer:   deps.Renderer,
				Deliverer:  deps.Deliverer,
				Deliveries: deps.Deliveries,
				Clock:      deps.Clock,
			},
			domain.ActionAddTag:      &TagExecutor{Recipients: deps.Recipients, Remove: false},
			domain.ActionRemoveTag:   &TagExecutor{Recipients: deps.Recipients, Remove: true},
			domain.ActionUpdateField: &UpdateFieldExecutor{Recipients: deps.Recipients},
			domain.ActionWebhook:     &WebhookExecutor{Client: client},
			domain.ActionWait:        noopExecutor{},
			domain.ActionHalt:        noopExecutor{},
		},
	}
}

// Resolve returns the executor for a kind.
func (r *Registry) Resolve(kind domain.ActionKind) (Executor, bool) {
	e, ok := r.executors[kind]
	return e, ok
}

type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, req *Request) error { return nil }
