// Entry point: reads configuration, wires the region map service and serves
// it. Handlers live in internal/api.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"regionmap/internal/api"
	"regionmap/internal/charts"
	"regionmap/internal/config"
	"regionmap/internal/locate"
	"regionmap/internal/logger"
	"regionmap/internal/metrics"
	"regionmap/internal/middleware"
	"regionmap/internal/migrate"
	"regionmap/internal/regionindex"
	"regionmap/internal/regionsrc"
	"regionmap/internal/session"
	"regionmap/internal/theme"
	"regionmap/internal/transport/ws"
	"regionmap/internal/utils"

	"github.com/redis/go-redis/v9"
)

func main() {
	config.LoadDotEnv()
	l := logger.Setup()
	l.Debug("log_init_ok")
	env := config.FromEnv()
	l.Debug("config_api_base", "base", env.APIBase)

	profile, err := config.LoadProfile(env.ProfilePath)
	if err != nil {
		l.Error("profile_error", "path", env.ProfilePath, "err", err)
		os.Exit(1)
	}
	l.Info("profile_ready", "name", profile.Name, "sources", len(profile.Sources))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if env.PGEnabled {
		db, err = utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(ctx, db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
	}

	var rc *redis.Client
	if env.RedisEnabled {
		rc = utils.OpenRedisFromEnv()
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	} else {
		l.Info("redis_disabled")
	}

	themes := theme.NewRegistry(themeStore(env, db, rc))
	go themes.Run(ctx, time.Hour)

	loader := regionsrc.NewLoader(profile.Sources, sourceFetcher(env, rc))
	catalog := &regionindex.Catalog{}
	go warmUp(ctx, loader, catalog, profile.IndexOptions())

	views := session.NewManager(session.Options{
		Viewport: profile.Viewport(),
		Center:   profile.Center.Point(),
		Zoom:     profile.Zoom,
		Size:     profile.Size,
		Tiles:    profile.Tiles,
		Palettes: profile.Palettes,
		Index:    profile.IndexOptions(),
	}, loader, catalog)
	defer views.Close()

	var chartProviders charts.Chain
	if rc != nil {
		chartProviders = append(chartProviders, charts.NewRedis(rc))
	}
	chartProviders = append(chartProviders, charts.NewStatic(profile.Charts))

	deps := api.Deps{
		Profile:  profile,
		Catalog:  catalog,
		Views:    views,
		Themes:   themes,
		Charts:   chartProviders,
		Upgrader: ws.NewUpgrader(splitList(os.Getenv("WS_ALLOWED_ORIGINS"))),
	}
	if loc, closeLoc := openLocator(env, catalog); loc != nil {
		defer closeLoc()
		deps.Locator = loc
	}

	mux := http.NewServeMux()
	mux.Handle(env.APIBase+"/", http.StripPrefix(env.APIBase, api.BuildRoutes(deps)))
	mux.Handle(env.APIBase+"/metrics", middleware.AllowlistFromEnv("METRICS").Wrap(metrics.Handler()))
	mux.Handle("/", http.FileServer(http.Dir(env.UIDist)))
	// exposes the api base to the frontend instead of hardcoding it
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + env.APIBase + "'\n"))
		_, _ = w.Write([]byte("window.__THEME_KEY__='" + theme.DefaultKey + "'\n"))
		_, _ = w.Write([]byte("window.__MAP_PROFILE__='" + profile.Name + "'\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: env.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		views.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()

	if env.TLSEnable {
		if err := utils.EnsureSelfSignedCert(env.TLSCertPath, env.TLSKeyPath, "regionmap.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", env.Addr, "cert", env.TLSCertPath)
		err = s.ListenAndServeTLS(env.TLSCertPath, env.TLSKeyPath)
	} else {
		l.Info("listening", "addr", env.Addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("serve_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown")
}

func themeStore(env config.Env, db *sql.DB, rc *redis.Client) theme.Store {
	l := logger.L()
	switch env.ThemeStore {
	case "redis":
		if rc != nil {
			l.Info("theme_store", "kind", "redis")
			return theme.NewRedisStore(rc, env.ThemeTTL)
		}
		l.Warn("theme_store_fallback", "want", "redis", "reason", "redis_disabled")
	case "postgres", "pg":
		if db != nil {
			l.Info("theme_store", "kind", "postgres")
			return theme.NewPostgresStore(db)
		}
		l.Warn("theme_store_fallback", "want", "postgres", "reason", "pg_disabled")
	}
	l.Info("theme_store", "kind", "memory")
	return theme.NewMemoryStore()
}

// sourceFetcher reads sources over HTTP when ASSET_BASE_URL is set and from
// ASSET_DIR otherwise, cached in redis when available.
func sourceFetcher(env config.Env, rc *redis.Client) regionsrc.Fetcher {
	var f regionsrc.Fetcher
	if env.AssetBaseURL != "" {
		f = &regionsrc.HTTPFetcher{Client: &http.Client{Timeout: env.FetchTimeout}, BaseURL: env.AssetBaseURL}
		logger.L().Debug("config_sources", "base", env.AssetBaseURL)
	} else {
		f = regionsrc.DirFetcher{FS: os.DirFS(env.AssetDir)}
		logger.L().Debug("config_sources", "dir", env.AssetDir)
	}
	if rc != nil && env.SourceTTL > 0 {
		f = &regionsrc.CachedFetcher{Next: f, Cache: rc, TTL: env.SourceTTL}
	}
	return &regionsrc.SharedFetcher{Next: f, Timeout: env.FetchTimeout}
}

// warmUp loads regions once at startup so HTTP readers have data before the
// first view mounts.
func warmUp(ctx context.Context, loader *regionsrc.Loader, catalog *regionindex.Catalog, opts regionindex.Options) {
	res := loader.Load(ctx, nil)
	switch res.Status {
	case regionsrc.StatusLoaded:
		ix, st, err := regionindex.Build(res.Data, opts)
		if err != nil {
			logger.L().Warn("warmup_index_error", "err", err)
			catalog.Publish(regionindex.Snapshot{Status: regionsrc.StatusUnavailable})
			return
		}
		catalog.Publish(regionindex.Snapshot{Status: res.Status, Source: res.Source, Index: ix, Stats: st})
	case regionsrc.StatusUnavailable:
		catalog.Publish(regionindex.Snapshot{Status: res.Status})
	}
}

// openLocator opens whichever IP databases exist. It returns nil when none
// does.
func openLocator(env config.Env, catalog *regionindex.Catalog) (*locate.Locator, func()) {
	l := logger.L()
	var chain locate.Chain
	var closers []func()
	if g, err := locate.OpenGeoIP(env.GeoIPCityPath); err == nil {
		chain = append(chain, g)
		closers = append(closers, func() { _ = g.Close() })
		l.Info("geoip_ready", "path", env.GeoIPCityPath)
	} else {
		l.Info("geoip_skipped", "path", env.GeoIPCityPath, "err", err)
	}
	if x, err := locate.OpenIP2Region(env.IP2RegionV4Path); err == nil {
		chain = append(chain, x)
		closers = append(closers, x.Close)
		l.Info("ip2region_ready", "path", env.IP2RegionV4Path)
	} else {
		l.Info("ip2region_skipped", "path", env.IP2RegionV4Path, "err", err)
	}
	if len(chain) == 0 {
		return nil, nil
	}
	return locate.New(chain, catalog, env.LocateMaxKm, env.LocateCacheTTL), func() {
		for _, c := range closers {
			c()
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
