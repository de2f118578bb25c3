package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/descanso-app/descanso/internal/shared"
)

// SubmitInput is the caller-supplied portion of a new request. The store
// assigns id and request date; the engine computes the day count and stamps
// the viewer as requester.
type SubmitInput struct {
	StartDate    time.Time
	EndDate      time.Time
	Kind         Kind
	FractionType FractionType
	Notes        string
}

// EngineOptions tunes an Engine. Zero values fall back to defaults.
type EngineOptions struct {
	// ReconcileInterval is the defensive full-resync period. Default 30s.
	ReconcileInterval time.Duration
	// Loads coalesces concurrent reconciliation loads across engines.
	Loads *singleflight.Group
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Engine maintains the per-viewer cached collection of requests, kept
// consistent with the change feed. An employee's cache holds only their own
// requests; a manager's cache holds all requests. Cache mutations are
// serialized by a per-instance mutex; store I/O runs outside the lock.
type Engine struct {
	viewer shared.Identity
	repo   Repository
	bridge *Bridge
	logger *slog.Logger
	clock  func() time.Time
	loads  *singleflight.Group

	mu        sync.Mutex
	cache     map[uuid.UUID]Request
	listeners map[int]func()
	nextID    int

	unsubscribe func()
	stop        context.CancelFunc
	done        chan struct{}
}

// NewEngine performs the initial full load for the viewer, subscribes to the
// change feed, and starts the periodic reconciliation loop. Close releases
// the subscription and the loop together.
func NewEngine(ctx context.Context, viewer shared.Identity, repo Repository, feed Subscriber, bridge *Bridge, logger *slog.Logger, opts EngineOptions) (*Engine, error) {
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Loads == nil {
		opts.Loads = &singleflight.Group{}
	}
	e := &Engine{
		viewer:    viewer,
		repo:      repo,
		bridge:    bridge,
		logger:    logger,
		clock:     opts.Clock,
		loads:     opts.Loads,
		cache:     make(map[uuid.UUID]Request),
		listeners: make(map[int]func()),
	}

	initial, err := e.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("request: initial load: %w", err)
	}
	e.mu.Lock()
	for _, req := range initial {
		e.cache[req.ID] = req
	}
	e.mu.Unlock()

	e.unsubscribe = feed.Subscribe(e.handleInsert, e.handleUpdate)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.stop = cancel
	e.done = make(chan struct{})
	go e.reconcileLoop(loopCtx, opts.ReconcileInterval)

	return e, nil
}

// Viewer returns the identity this engine is scoped to.
func (e *Engine) Viewer() shared.Identity {
	return e.viewer
}

// load runs the scope-appropriate full listing. Manager loads are coalesced
// across engines; every caller still gets its own copy of the result.
func (e *Engine) load(ctx context.Context) ([]Request, error) {
	if e.viewer.IsManager() {
		v, err, _ := e.loads.Do("list-all", func() (any, error) {
			return e.repo.ListAll(ctx)
		})
		if err != nil {
			return nil, err
		}
		return v.([]Request), nil
	}
	return e.repo.ListByEmployee(ctx, e.viewer.ID)
}

// visible reports whether a record belongs in this viewer's scope.
func (e *Engine) visible(req Request) bool {
	return e.viewer.IsManager() || req.EmployeeID == e.viewer.ID
}

// handleInsert applies an insert event. The cache write is idempotent on id:
// the event for a just-submitted record may arrive after the direct response
// already landed, and must not produce a duplicate entry.
func (e *Engine) handleInsert(req Request) {
	if !e.visible(req) {
		return
	}
	e.mu.Lock()
	_, existed := e.cache[req.ID]
	e.cache[req.ID] = req
	e.mu.Unlock()

	if !existed {
		e.bridge.NewRequestArrived(e.viewer, req)
	}
	e.notifyChanged()
}

// handleUpdate applies an update event, replacing the cached record.
func (e *Engine) handleUpdate(req Request) {
	if !e.visible(req) {
		return
	}
	e.mu.Lock()
	prev, had := e.cache[req.ID]
	e.cache[req.ID] = req
	e.mu.Unlock()

	leftPending := req.Status != StatusPending && (!had || prev.Status == StatusPending)
	if leftPending && req.Status != StatusNotified {
		e.bridge.OwnRequestDecided(e.viewer, req)
	}
	e.notifyChanged()
}

// Submit validates the candidate and persists it. The engine does not insert
// the result into the cache: the pushed insert event is the single source of
// truth, and the idempotent cache write dedupes the two paths.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (Request, error) {
	candidate := Request{
		EmployeeID:   e.viewer.ID,
		EmployeeName: e.viewer.Name,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Days:         ComputeDays(in.StartDate, in.EndDate),
		Kind:         in.Kind,
		FractionType: in.FractionType,
		Status:       StatusPending,
		Notes:        in.Notes,
	}
	if err := candidate.Validate(); err != nil {
		return Request{}, err
	}
	created, err := e.repo.Create(ctx, candidate)
	if err != nil {
		return Request{}, err
	}
	e.bridge.Submitted(e.viewer)
	return created, nil
}

// Decide applies a manager decision with the pending status as the expected
// prior state. A lost optimistic race surfaces as ErrStaleState; the engine
// never retries on the caller's behalf.
func (e *Engine) Decide(ctx context.Context, id uuid.UUID, d Decision) (Request, error) {
	target, err := d.Target()
	if err != nil {
		return Request{}, err
	}
	if err := Authorize(e.viewer, StatusPending, target); err != nil {
		return Request{}, err
	}
	updated, err := e.repo.UpdateStatus(ctx, id, StatusPending, target, e.viewer.ID, e.clock())
	if err != nil {
		if errors.Is(err, shared.ErrStaleState) || errors.Is(err, shared.ErrNotFound) {
			e.bridge.DecisionConflict(e.viewer)
		}
		return Request{}, err
	}
	e.bridge.DecisionApplied(e.viewer, d)
	return updated, nil
}

// Requests returns the cached collection, most recent request date first.
func (e *Engine) Requests() []Request {
	e.mu.Lock()
	out := make([]Request, 0, len(e.cache))
	for _, req := range e.cache {
		out = append(out, req)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestDate.After(out[j].RequestDate)
	})
	return out
}

// Pending returns the cached pending requests, most recent first.
func (e *Engine) Pending() []Request {
	all := e.Requests()
	out := all[:0]
	for _, req := range all {
		if req.Pending() {
			out = append(out, req)
		}
	}
	return out
}

// Get returns a cached request by id.
func (e *Engine) Get(id uuid.UUID) (Request, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req, ok := e.cache[id]
	return req, ok
}

// OnChange registers a callback invoked after every cache mutation. The
// callback runs on the mutating goroutine and must not block. The returned
// handle removes the registration.
func (e *Engine) OnChange(cb func()) (remove func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = cb
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

func (e *Engine) notifyChanged() {
	e.mu.Lock()
	cbs := make([]func(), 0, len(e.listeners))
	for _, cb := range e.listeners {
		cbs = append(cbs, cb)
	}
	e.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// reconcileLoop re-runs the full load on a fixed interval as a defensive
// resync against missed feed events.
func (e *Engine) reconcileLoop(ctx context.Context, interval time.Duration) {
	defer close(e.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Reconcile(ctx); err != nil {
				e.logger.Warn("reconcile", slog.Any("error", err))
			}
		}
	}
}

// Reconcile merges a fresh full load into the cache by id. The store is
// authoritative: the loaded value always wins over the cached one.
func (e *Engine) Reconcile(ctx context.Context) error {
	fresh, err := e.load(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	for _, req := range fresh {
		e.cache[req.ID] = req
	}
	e.mu.Unlock()
	e.notifyChanged()
	return nil
}

// Close releases the feed subscription and the reconciliation loop together.
// Safe to call more than once.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.stop != nil {
		e.stop()
		<-e.done
		e.stop = nil
	}
}
