package request

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/descanso-app/descanso/internal/shared"
)

// Manager owns one synchronization engine per connected viewer. Engines are
// created lazily on first use and released when the viewer's session ends,
// taking their feed subscription and reconciliation loop with them.
type Manager struct {
	repo   Repository
	feed   Subscriber
	bridge *Bridge
	hub    *Hub
	logger *slog.Logger
	opts   EngineOptions

	mu      sync.Mutex
	engines map[uuid.UUID]*managedEngine
}

type managedEngine struct {
	engine     *Engine
	removeTick func()
}

// NewManager constructs a Manager.
func NewManager(repo Repository, feed Subscriber, bridge *Bridge, hub *Hub, logger *slog.Logger, opts EngineOptions) *Manager {
	return &Manager{
		repo:    repo,
		feed:    feed,
		bridge:  bridge,
		hub:     hub,
		logger:  logger,
		opts:    opts,
		engines: make(map[uuid.UUID]*managedEngine),
	}
}

// Engine returns the viewer's engine, creating it on first use. Cache
// changes are forwarded to the viewer's live streams through the hub.
func (m *Manager) Engine(ctx context.Context, viewer shared.Identity) (*Engine, error) {
	m.mu.Lock()
	if held, ok := m.engines[viewer.ID]; ok {
		m.mu.Unlock()
		return held.engine, nil
	}
	m.mu.Unlock()

	// Built outside the lock: the initial load hits the store.
	engine, err := NewEngine(ctx, viewer, m.repo, m.feed, m.bridge, m.logger, m.opts)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.engines[viewer.ID]; ok {
		// Lost the construction race; keep the first engine.
		go engine.Close()
		return held.engine, nil
	}
	viewerID := viewer.ID
	remove := engine.OnChange(func() { m.hub.Ping(viewerID) })
	m.engines[viewerID] = &managedEngine{engine: engine, removeTick: remove}
	return engine, nil
}

// Release closes and forgets the viewer's engine, if any.
func (m *Manager) Release(viewerID uuid.UUID) {
	m.mu.Lock()
	held, ok := m.engines[viewerID]
	delete(m.engines, viewerID)
	m.mu.Unlock()
	if !ok {
		return
	}
	held.removeTick()
	held.engine.Close()
}

// CloseAll releases every engine. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	engines := make([]*managedEngine, 0, len(m.engines))
	for id, held := range m.engines {
		engines = append(engines, held)
		delete(m.engines, id)
	}
	m.mu.Unlock()
	for _, held := range engines {
		held.removeTick()
		held.engine.Close()
	}
}
