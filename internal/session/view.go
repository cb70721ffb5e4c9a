// Package session runs one event loop per mounted map view.
//
// A view paints immediately with an empty, pending overlay and loads region
// data in the background. The load result, client events and theme changes
// are all handled on the view's own goroutine, so the viewport, layer and
// controller are never touched concurrently. Unmounting clears the liveness
// flag and cancels the context; a load finishing afterwards is discarded.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"regionmap/internal/interaction"
	"regionmap/internal/logger"
	"regionmap/internal/metrics"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
	"regionmap/internal/theme"
	"regionmap/internal/viewport"

	"github.com/paulmach/orb"
)

// Loader produces region data for a view.
type Loader interface {
	Load(ctx context.Context, alive func() bool) regionsrc.LoadResult
}

// Options configure every view of a manager.
type Options struct {
	Viewport viewport.Config
	Center   orb.Point
	Zoom     int
	Size     viewport.Size
	Tiles    map[theme.Mode]viewport.BaseLayer
	Palettes interaction.Palettes
	Index    regionindex.Options
}

// MountOptions are per view.
type MountOptions struct {
	Size   viewport.Size
	Retina bool
	// Focus, when set, centres the view there instead of Options.Center.
	Focus *orb.Point
}

// View is one mounted map.
type View struct {
	ID string

	opts    Options
	retina  bool
	loader  Loader
	catalog *regionindex.Catalog
	theme   *theme.Adapter

	vp     *viewport.Viewport
	layer  *viewport.Layer
	ctrl   *interaction.Controller
	status regionsrc.Status

	in      chan Event
	loaded  chan regionsrc.LoadResult
	themeCh chan struct{}
	out     chan any

	alive  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
	unsub  func()
	log    *slog.Logger
}

func newView(parent context.Context, id string, opts Options, mo MountOptions, loader Loader, catalog *regionindex.Catalog, ad *theme.Adapter) *View {
	size := mo.Size
	if size.W <= 0 || size.H <= 0 {
		size = opts.Size
	}
	center := opts.Center
	if mo.Focus != nil {
		center = *mo.Focus
	}
	ctx, cancel := context.WithCancel(parent)
	layer := viewport.NewLayer()
	v := &View{
		ID:      id,
		opts:    opts,
		retina:  mo.Retina,
		loader:  loader,
		catalog: catalog,
		theme:   ad,
		vp:      viewport.New(opts.Viewport, center, opts.Zoom, size),
		layer:   layer,
		ctrl:    interaction.NewController(layer, ad, opts.Palettes),
		status:  regionsrc.StatusPending,
		in:      make(chan Event, 64),
		loaded:  make(chan regionsrc.LoadResult, 1),
		themeCh: make(chan struct{}, 1),
		out:     make(chan any, 16),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     logger.Component("session").With("view", id),
	}
	v.alive.Store(true)
	return v
}

// start emits the first frame and launches the loop and the loader.
func (v *View) start() {
	v.unsub = v.theme.Subscribe(func(theme.Mode) {
		select {
		case v.themeCh <- struct{}{}:
		default:
		}
	})
	go v.loop()
	go func() {
		res := v.loader.Load(v.ctx, v.alive.Load)
		select {
		case v.loaded <- res:
		case <-v.ctx.Done():
			if res.Status != regionsrc.StatusPending {
				metrics.StaleCompletionsTotal.Inc()
			}
		}
	}()
}

// Updates delivers frames, patches and theme messages. It is closed after
// Unmount.
func (v *View) Updates() <-chan any { return v.out }

// Done is closed when the loop has exited.
func (v *View) Done() <-chan struct{} { return v.done }

// Alive reports whether the view is still mounted.
func (v *View) Alive() bool { return v.alive.Load() }

// Dispatch queues a client event. It reports false once the view is gone.
func (v *View) Dispatch(ev Event) bool {
	if !v.alive.Load() {
		return false
	}
	select {
	case v.in <- ev:
		return true
	case <-v.ctx.Done():
		return false
	}
}

// Unmount stops the view. It is safe to call more than once.
func (v *View) Unmount() {
	v.once.Do(func() {
		v.alive.Store(false)
		v.cancel()
		if v.unsub != nil {
			v.unsub()
		}
	})
}

func (v *View) loop() {
	defer close(v.done)
	defer close(v.out)
	defer func() {
		v.ctrl.Detach()
		v.layer.Clear()
	}()
	v.emitFrame()
	for {
		select {
		case <-v.ctx.Done():
			return
		case res := <-v.loaded:
			v.handleLoad(res)
		case <-v.themeCh:
			v.handleTheme()
		case ev := <-v.in:
			v.handleEvent(ev)
		}
	}
}

func (v *View) handleLoad(res regionsrc.LoadResult) {
	if !v.alive.Load() {
		metrics.StaleCompletionsTotal.Inc()
		return
	}
	switch res.Status {
	case regionsrc.StatusLoaded:
		ix, st, err := regionindex.Build(res.Data, v.opts.Index)
		if err != nil {
			v.log.Warn("region_index_error", "source", res.Source.URL, "err", err)
			v.setUnavailable()
			return
		}
		v.layer.Mount(ix.Features())
		n := v.ctrl.Attach()
		v.status = regionsrc.StatusLoaded
		if v.catalog != nil {
			v.catalog.Publish(regionindex.Snapshot{Status: res.Status, Source: res.Source, Index: ix, Stats: st})
		}
		v.log.Info("view_regions_ready", "source", res.Source.URL, "regions", ix.Len(), "interactive", n)
		v.emitFrame()
	case regionsrc.StatusUnavailable:
		v.setUnavailable()
	}
}

// setUnavailable keeps the map usable without an overlay.
func (v *View) setUnavailable() {
	v.ctrl.Detach()
	v.layer.Clear()
	v.status = regionsrc.StatusUnavailable
	if v.catalog != nil {
		v.catalog.Publish(regionindex.Snapshot{Status: regionsrc.StatusUnavailable})
	}
	v.emitFrame()
}

func (v *View) handleTheme() {
	v.layer.Invalidate()
	v.ctrl.Restyle()
	v.emit(ThemeChanged{Type: "theme", Mode: v.theme.Mode()})
	v.emitFrame()
}

func (v *View) handleEvent(ev Event) {
	switch ev.Type {
	case EvEnter:
		v.emitPatch(v.ctrl.Enter(ev.ID))
	case EvLeave:
		v.emitPatch(v.ctrl.Leave(ev.ID))
	case EvPan:
		v.vp.PanBy(ev.DX, ev.DY)
		v.emitFrame()
	case EvDrag:
		v.vp.Drag(ev.DX, ev.DY)
		v.emitFrame()
	case EvDragEnd:
		v.vp.DragEnd()
		v.emitFrame()
	case EvZoom:
		if ev.X != nil && ev.Y != nil {
			v.vp.ZoomAround(orb.Point{*ev.X, *ev.Y}, ev.Delta)
		} else {
			v.vp.SetZoom(v.vp.Zoom() + ev.Delta)
		}
		v.emitFrame()
	case EvResize:
		v.vp.Resize(ev.W, ev.H)
		v.emitFrame()
	case EvTheme:
		// the adapter notifies every view of this client, this one included
		if m, ok := theme.ParseMode(ev.Mode); ok {
			v.theme.Set(v.ctx, m)
		} else {
			v.theme.Toggle(v.ctx)
		}
	default:
		v.log.Debug("view_event_unknown", "type", ev.Type)
	}
}

func (v *View) emit(m any) {
	select {
	case v.out <- m:
	case <-v.ctx.Done():
	}
}

func (v *View) emitPatch(p interaction.Patch) {
	if p.Empty() {
		return
	}
	v.emit(Patch{Type: "patch", Patch: p})
}

func (v *View) emitFrame() {
	v.emit(v.frame())
}

func (v *View) frame() Frame {
	mode := v.theme.Mode()
	bl := v.opts.Tiles[mode]
	f := Frame{
		Type:     "frame",
		Status:   v.status,
		Mode:     mode,
		Viewport: v.vp.State(),
		Base:     Base{BaseLayer: bl, Tiles: v.vp.VisibleTiles(bl, v.retina)},
		Regions:  make([]RegionView, 0, v.layer.Len()),
		Revision: v.layer.Revision(),
	}
	for _, id := range v.layer.Order() {
		d := v.layer.Path(id, v.vp)
		if d == "" {
			continue
		}
		s, _ := v.layer.Shape(id)
		a := v.layer.Anchor(id, v.vp)
		f.Regions = append(f.Regions, RegionView{
			ID:          id,
			Name:        s.Name,
			Path:        d,
			Style:       s.Style,
			Interactive: v.ctrl.Attached(id),
			Anchor:      [2]float64{a[0], a[1]},
		})
		f.Order = append(f.Order, id)
	}
	f.Active, _ = v.ctrl.Active()
	return f
}
