package theme

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"regionmap/internal/logger"
	"regionmap/internal/metrics"
)

// Adapter is the observable mode of one client. All methods are safe for
// concurrent use.
type Adapter struct {
	mu     sync.RWMutex
	mode   Mode
	key    string
	store  Store
	nextID int
	subs   map[int]func(Mode)
	log    *slog.Logger
}

const storeTimeout = 2 * time.Second

// NewAdapter loads the persisted mode for key, falling back to system when
// nothing is stored or the store fails. A nil store keeps the mode in memory
// only.
func NewAdapter(ctx context.Context, store Store, key string, system Mode) *Adapter {
	a := &Adapter{mode: system, key: key, store: store, subs: make(map[int]func(Mode)), log: logger.Component("theme")}
	if a.mode == "" {
		a.mode = Light
	}
	if store == nil {
		return a
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	m, ok, err := store.Get(ctx, key)
	switch {
	case err != nil:
		a.log.Warn("theme_load_error", "key", key, "err", err)
	case ok:
		a.mode = m
	}
	return a
}

// Key is the persisted key of this adapter.
func (a *Adapter) Key() string { return a.key }

// Mode returns the current mode.
func (a *Adapter) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// Set changes the mode, persists it and notifies subscribers. Setting the
// current mode is still persisted but does not notify. Persistence failures
// are logged; the in-memory mode changes regardless.
func (a *Adapter) Set(ctx context.Context, m Mode) {
	a.mu.Lock()
	changed := a.mode != m
	a.mode = m
	subs := make([]func(Mode), 0, len(a.subs))
	if changed {
		for _, fn := range a.subs {
			subs = append(subs, fn)
		}
	}
	a.mu.Unlock()

	if a.store != nil {
		sctx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := a.store.Put(sctx, a.key, m); err != nil {
			a.log.Warn("theme_persist_error", "key", a.key, "err", err)
		}
		cancel()
	}
	if !changed {
		return
	}
	metrics.ThemeChangesTotal.WithLabelValues(string(m)).Inc()
	a.log.Debug("theme_changed", "key", a.key, "mode", m)
	for _, fn := range subs {
		fn(m)
	}
}

// Toggle flips the mode and returns the new one.
func (a *Adapter) Toggle(ctx context.Context) Mode {
	a.mu.RLock()
	next := a.mode.Opposite()
	a.mu.RUnlock()
	a.Set(ctx, next)
	return next
}

// Subscribe registers fn for mode changes. fn runs on the goroutine that
// changed the mode and must not block. The returned func unsubscribes.
func (a *Adapter) Subscribe(fn func(Mode)) (cancel func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// watched reports whether any view is subscribed.
func (a *Adapter) watched() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs) > 0
}

// Registry hands out one shared Adapter per key so every view and request of
// a client observes the same value. Adapters are kept in recency order; those
// without subscribers are dropped once idle for longer than the idle limit or
// when the registry grows past its capacity. A dropped client reloads its
// mode from the store on its next request.
type Registry struct {
	mu       sync.Mutex
	store    Store
	capacity int
	idle     time.Duration
	lst      *list.List
	adapters map[string]*list.Element
	now      func() time.Time
}

type slot struct {
	a    *Adapter
	used time.Time
}

const (
	defaultRegistryCap  = 10000
	defaultRegistryIdle = 24 * time.Hour
)

func NewRegistry(store Store) *Registry {
	return NewRegistryLimits(store, defaultRegistryCap, defaultRegistryIdle)
}

// NewRegistryLimits bounds the registry to capacity adapters, each kept for at
// most idle since its last use.
func NewRegistryLimits(store Store, capacity int, idle time.Duration) *Registry {
	if capacity < 1 {
		capacity = 1
	}
	return &Registry{
		store:    store,
		capacity: capacity,
		idle:     idle,
		lst:      list.New(),
		adapters: make(map[string]*list.Element),
		now:      time.Now,
	}
}

// For returns the adapter for key, creating it with system as the fallback
// mode on first use.
func (r *Registry) For(ctx context.Context, key string, system Mode) *Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.adapters[key]; ok {
		s := e.Value.(*slot)
		s.used = r.now()
		r.lst.MoveToFront(e)
		return s.a
	}
	a := NewAdapter(ctx, r.store, key, system)
	r.adapters[key] = r.lst.PushFront(&slot{a: a, used: r.now()})
	// the new adapter stays even when every older one is watched
	for e := r.lst.Back(); e != nil && e != r.lst.Front() && r.lst.Len() > r.capacity; {
		prev := e.Prev()
		if s := e.Value.(*slot); !s.a.watched() {
			r.remove(e)
		}
		e = prev
	}
	return a
}

func (r *Registry) remove(e *list.Element) {
	delete(r.adapters, e.Value.(*slot).a.key)
	r.lst.Remove(e)
}

// Sweep drops adapters idle past the limit that no view subscribes to and
// returns how many were dropped.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.idle)
	n := 0
	for e := r.lst.Back(); e != nil; {
		prev := e.Prev()
		s := e.Value.(*slot)
		if !s.used.Before(cutoff) {
			break
		}
		if !s.a.watched() {
			r.remove(e)
			n++
		}
		e = prev
	}
	return n
}

// Len is the number of live adapters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lst.Len()
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	log := logger.Component("theme")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				log.Debug("theme_registry_sweep", "evicted", n, "live", r.Len())
			}
		}
	}
}
