// internal/presentation/registry.go
package presentation

import (
	"context"
	"sync"
	"time"

	"loan-checker/internal/common/logger"
	"loan-checker/internal/common/metrics"

	"github.com/google/uuid"
)

// Registry keeps form instances in memory and evicts idle ones.
type Registry struct {
	mu      sync.RWMutex
	forms   map[string]*Form
	idleTTL time.Duration
	logger  logger.Logger
	now     func() time.Time
}

func NewRegistry(idleTTL time.Duration, log logger.Logger) *Registry {
	return &Registry{
		forms:   make(map[string]*Form),
		idleTTL: idleTTL,
		logger:  log.WithFields(map[string]interface{}{"component": "form-registry"}),
		now:     time.Now,
	}
}

func (r *Registry) Create() *Form {
	f := newForm(uuid.NewString(), r.logger, r.now)

	r.mu.Lock()
	r.forms[f.id] = f
	n := len(r.forms)
	r.mu.Unlock()

	metrics.ActiveForms.Set(float64(n))
	return f
}

func (r *Registry) Get(id string) (*Form, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.forms[id]
	return f, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.forms)
}

// Sweep removes forms untouched for longer than the idle TTL. Forms with a
// request in flight are kept.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	removed := 0
	for id, f := range r.forms {
		touched, busy := f.idleSince()
		if busy || touched.After(cutoff) {
			continue
		}
		delete(r.forms, id)
		removed++
	}
	n := len(r.forms)
	r.mu.Unlock()

	metrics.ActiveForms.Set(float64(n))
	if removed > 0 {
		r.logger.Debug("evicted idle forms", map[string]interface{}{"removed": removed, "remaining": n})
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}
