package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cadenzahq/cadenza/internal/actions"
	"github.com/cadenzahq/cadenza/pkg/cadenza/core"
	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

// ErrAutomationNotFound is returned for an unknown automation id.
var ErrAutomationNotFound = errors.New("automation not found")

// DefinitionRegistry validates and stores automation definitions. Every write
// creates a new immutable version; running executions keep the version they
// started on. The latest version of each definition is cached in memory.
type DefinitionRegistry struct {
	automations AutomationRepo
	executors   *actions.Registry
	validate    *validator.Validate
	clock       core.Clock

	mu    sync.RWMutex
	cache map[string]*domain.Automation
}

func NewDefinitionRegistry(automations AutomationRepo, executors *actions.Registry, clock core.Clock) *DefinitionRegistry {
	return &DefinitionRegistry{
		automations: automations,
		executors:   executors,
		validate:    validator.New(),
		clock:       clock,
		cache:       make(map[string]*domain.Automation),
	}
}

// Register stores a definition as the next version of its id. A blank id
// starts a new automation at version 1. Validation failures reject the whole
// definition; nothing is stored.
func (r *DefinitionRegistry) Register(a *domain.Automation) (*domain.Automation, error) {
	if a.Status == "" {
		a.Status = domain.StatusDraft
	}
	if err := r.validate.Struct(a); err != nil {
		return nil, fmt.Errorf("invalid automation definition: %w", err)
	}
	for _, action := range a.Actions {
		if _, ok := r.executors.Resolve(action.Kind); !ok {
			return nil, fmt.Errorf("action %q: no executor for kind %q", action.ID, action.Kind)
		}
	}

	// Version assignment and the save must not interleave between
	// concurrent registrations of the same id.
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if a.ID == "" {
		a.ID = uuid.NewString()
		a.Version = 1
		a.Created = now
	} else {
		latest, err := r.automations.FindLatest(a.ID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if latest == nil || errors.Is(err, sql.ErrNoRows) {
			a.Version = 1
			a.Created = now
		} else {
			a.Version = latest.Version + 1
			a.Created = latest.Created
			// Counters carry across versions.
			a.Triggered = latest.Triggered
			a.Completed = latest.Completed
			a.AvgCompletionMinutes = latest.AvgCompletionMinutes
		}
	}
	a.Updated = now

	if err := r.automations.SaveVersion(a); err != nil {
		return nil, err
	}
	r.cache[a.ID] = a
	return a, nil
}

// UpdateStatus changes the lifecycle status of the latest version.
func (r *DefinitionRegistry) UpdateStatus(id string, status domain.AutomationStatus) error {
	switch status {
	case domain.StatusDraft, domain.StatusActive, domain.StatusInactive, domain.StatusPaused:
	default:
		return fmt.Errorf("unknown automation status %q", status)
	}
	if _, err := r.Latest(id); err != nil {
		return err
	}
	if err := r.automations.UpdateStatus(id, status); err != nil {
		return err
	}
	r.mu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Pointers handed out by Latest may still be in use by running
		// triggers, so the cached value is replaced rather than mutated.
		updated := *cached
		updated.Status = status
		r.cache[id] = &updated
	}
	r.mu.Unlock()
	return nil
}

// Latest returns the newest version of the definition, reading through to
// the database on a cache miss.
func (r *DefinitionRegistry) Latest(id string) (*domain.Automation, error) {
	r.mu.RLock()
	cached, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	a, err := r.automations.FindLatest(id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAutomationNotFound
	}
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[id] = a
	r.mu.Unlock()
	return a, nil
}

// Version returns one exact stored version. Pinned versions are immutable so
// no cache is kept for them.
func (r *DefinitionRegistry) Version(id string, version int) (*domain.Automation, error) {
	a, err := r.automations.FindVersion(id, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAutomationNotFound
	}
	return a, err
}

// All returns the newest version of every definition and refreshes the cache.
func (r *DefinitionRegistry) All() (*[]domain.Automation, error) {
	defs, err := r.automations.FindAllLatest()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	for i := range *defs {
		a := (*defs)[i]
		r.cache[a.ID] = &a
	}
	r.mu.Unlock()
	return defs, nil
}
