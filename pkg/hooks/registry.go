package hooks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ormasoftchile/flowlogic/pkg/schema"
)

// ErrNotOwner is returned when an actor other than the workflow's creator
// tries to mutate its hooks.
var ErrNotOwner = errors.New("hooks: actor does not own this workflow")

// ErrHookNotFound is returned for lookups and mutations of unknown hook ids.
var ErrHookNotFound = errors.New("hooks: hook not found")

// Registry holds the hooks of one workflow and enforces the ownership
// contract: only the workflow's creator may create, update, or delete hooks.
// Reads are unrestricted. It implements Source.
type Registry struct {
	workflowID string
	owner      string

	mu    sync.RWMutex
	hooks map[string]schema.Hook
}

// NewRegistry creates a registry for a workflow, seeded with its authored
// hooks.
func NewRegistry(wf *schema.Workflow) *Registry {
	r := &Registry{
		workflowID: wf.Meta.ID,
		owner:      wf.Meta.CreatedBy,
		hooks:      make(map[string]schema.Hook, len(wf.Hooks)),
	}
	for _, h := range wf.Hooks {
		r.hooks[h.ID] = h
	}
	return r
}

func (r *Registry) authorize(actor string) error {
	if actor != r.owner {
		return fmt.Errorf("%w: %q is not %q", ErrNotOwner, actor, r.owner)
	}
	return nil
}

// Create adds a hook. The actor must be the workflow's creator and the id
// must be free.
func (r *Registry) Create(actor string, h schema.Hook) error {
	if err := r.authorize(actor); err != nil {
		return err
	}
	if h.ID == "" {
		return errors.New("hooks: hook id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[h.ID]; exists {
		return fmt.Errorf("hooks: hook %q already exists", h.ID)
	}
	h.WorkflowID = r.workflowID
	r.hooks[h.ID] = h
	return nil
}

// Update replaces an existing hook.
func (r *Registry) Update(actor string, h schema.Hook) error {
	if err := r.authorize(actor); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[h.ID]; !exists {
		return fmt.Errorf("%w: %q", ErrHookNotFound, h.ID)
	}
	h.WorkflowID = r.workflowID
	r.hooks[h.ID] = h
	return nil
}

// Delete removes a hook.
func (r *Registry) Delete(actor, hookID string) error {
	if err := r.authorize(actor); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[hookID]; !exists {
		return fmt.Errorf("%w: %q", ErrHookNotFound, hookID)
	}
	delete(r.hooks, hookID)
	return nil
}

// Get returns one hook by id.
func (r *Registry) Get(hookID string) (schema.Hook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hooks[hookID]
	if !ok {
		return schema.Hook{}, fmt.Errorf("%w: %q", ErrHookNotFound, hookID)
	}
	return h, nil
}

// List returns every registered hook sorted by (phase, order, id).
func (r *Registry) List() []schema.Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schema.Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Phase != out[j].Phase {
			return out[i].Phase < out[j].Phase
		}
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// HooksForPhase implements Source: enabled hooks of the phase, ordered.
func (r *Registry) HooksForPhase(_ context.Context, workflowID, phase string) ([]schema.Hook, error) {
	if workflowID != r.workflowID {
		return nil, fmt.Errorf("hooks: registry serves workflow %q, not %q", r.workflowID, workflowID)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []schema.Hook
	for _, h := range r.hooks {
		if h.Enabled && h.Phase == phase {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
