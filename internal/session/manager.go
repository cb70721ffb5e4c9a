package session

import (
	"context"
	"sync"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"
	"regionmap/internal/regionindex"
	"regionmap/internal/theme"

	"github.com/google/uuid"
)

// Manager tracks mounted views.
type Manager struct {
	opts    Options
	loader  Loader
	catalog *regionindex.Catalog

	mu    sync.Mutex
	views map[string]*View
}

func NewManager(opts Options, loader Loader, catalog *regionindex.Catalog) *Manager {
	return &Manager{opts: opts, loader: loader, catalog: catalog, views: make(map[string]*View)}
}

// Mount starts a new view styled by ad. Each mount runs the source chain from
// the first source again.
func (m *Manager) Mount(ctx context.Context, ad *theme.Adapter, mo MountOptions) *View {
	v := newView(ctx, uuid.NewString(), m.opts, mo, m.loader, m.catalog, ad)
	m.mu.Lock()
	m.views[v.ID] = v
	m.mu.Unlock()
	metrics.ViewsActive.Inc()
	logger.L().Debug("view_mounted", "view", v.ID, "theme_key", ad.Key())
	v.start()
	return v
}

// Unmount stops and forgets the view; unknown ids are ignored.
func (m *Manager) Unmount(id string) {
	m.mu.Lock()
	v, ok := m.views[id]
	delete(m.views, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	v.Unmount()
	metrics.ViewsActive.Dec()
	logger.L().Debug("view_unmounted", "view", id)
}

// Get returns a mounted view.
func (m *Manager) Get(id string) (*View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[id]
	return v, ok
}

// Len is the number of mounted views.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// Close unmounts every view.
func (m *Manager) Close() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.views))
	for id := range m.views {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.Unmount(id)
	}
}
