package httpapi

import (
	"log"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/config"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/metrics"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
)

// #region registry
// Registry owns one engine per subject, created on first touch with a
// store-backed resume. Engines are single-threaded; every call goes through
// the subject's mutex, so gin's concurrent handlers serialize per subject.
// Backpressure is a per-subject token bucket sized from the server config.
type Registry struct {
	config config.Config
	store  *modelstore.Store
	sink   engine.NotificationSink

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	engine  *engine.Engine
	limiter *rate.Limiter
}

// NewRegistry creates an empty registry. The store may be nil in tests.
func NewRegistry(config config.Config, store *modelstore.Store, sink engine.NotificationSink) *Registry {
	return &Registry{
		config:  config,
		store:   store,
		sink:    sink,
		entries: make(map[string]*entry),
	}
}

// get returns the subject's entry, creating and resuming the engine on
// first touch.
func (r *Registry) get(subject string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ent, ok := r.entries[subject]; ok {
		return ent, nil
	}

	eng, err := engine.New(subject, engine.ConfigFrom(r.config), r.store, r.sink)
	if err != nil {
		return nil, err
	}
	ent := &entry{
		engine:  eng,
		limiter: rate.NewLimiter(rate.Limit(r.config.Server.RateLimit), r.config.Server.RateBurst),
	}
	r.entries[subject] = ent
	metrics.SetActiveSubjects(len(r.entries))
	return ent, nil
}

// Do runs fn with the subject's engine under its lock.
func (r *Registry) Do(subject string, fn func(*engine.Engine) error) error {
	ent, err := r.get(subject)
	if err != nil {
		return err
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return fn(ent.engine)
}

// Allow reports whether the subject may post another sample now.
func (r *Registry) Allow(subject string) (bool, error) {
	ent, err := r.get(subject)
	if err != nil {
		return false, err
	}
	return ent.limiter.Allow(), nil
}

// CheckpointAll persists every resident engine, in stable order. Used at
// shutdown; failures are logged per subject and do not stop the sweep.
func (r *Registry) CheckpointAll(trigger string) {
	r.mu.Lock()
	subjects := make([]string, 0, len(r.entries))
	for subject := range r.entries {
		subjects = append(subjects, subject)
	}
	r.mu.Unlock()
	sort.Strings(subjects)

	for _, subject := range subjects {
		err := r.Do(subject, func(e *engine.Engine) error {
			_, err := e.Checkpoint(trigger)
			return err
		})
		if err != nil {
			log.Printf("[HTTP] %s checkpoint subject=%s: %v", trigger, subject, err)
		}
	}
}

// #endregion registry
