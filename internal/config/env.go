// Package config gathers process settings from the environment and the
// country-specific map profile from YAML.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Env is every process setting, resolved once at startup.
type Env struct {
	Addr         string
	APIBase      string
	UIDist       string
	AssetDir     string
	AssetBaseURL string
	ProfilePath  string
	FetchTimeout time.Duration
	SourceTTL    time.Duration

	RedisEnabled bool
	PGEnabled    bool
	ThemeStore   string
	ThemeTTL     time.Duration

	GeoIPCityPath   string
	IP2RegionV4Path string
	LocateCacheTTL  time.Duration
	LocateMaxKm     float64

	TLSEnable   bool
	TLSCertPath string
	TLSKeyPath  string
}

// LoadDotEnv reads .env and data/env/.env when present. Variables already in
// the environment win.
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// FromEnv resolves Env with inline defaults.
func FromEnv() Env {
	return Env{
		Addr:         str("ADDR", ":8080"),
		APIBase:      str("API_BASE", "/api"),
		UIDist:       str("UI_DIST", filepath.Join("ui", "dist")),
		AssetDir:     str("ASSET_DIR", filepath.Join("data", "regions")),
		AssetBaseURL: os.Getenv("ASSET_BASE_URL"),
		ProfilePath:  os.Getenv("MAP_PROFILE"),
		FetchTimeout: millis("FETCH_TIMEOUT_MS", 10000),
		SourceTTL:    seconds("SOURCE_CACHE_TTL_S", 3600),

		RedisEnabled: boolean("REDIS_ENABLED", false),
		PGEnabled:    boolean("PG_ENABLED", false),
		ThemeStore:   str("THEME_STORE", "memory"),
		ThemeTTL:     seconds("THEME_TTL_S", 0),

		GeoIPCityPath:   str("GEOIP_CITY_PATH", filepath.Join("data", "geoip", "GeoLite2-City.mmdb")),
		IP2RegionV4Path: str("IP2REGION_V4_PATH", filepath.Join("data", "ip2region", "ip2region_v4.xdb")),
		LocateCacheTTL:  seconds("LOCATE_CACHE_TTL_S", 600),
		LocateMaxKm:     float("LOCATE_MAX_KM", 150),

		TLSEnable:   boolean("TLS_ENABLE", false),
		TLSCertPath: str("TLS_CERT_PATH", filepath.Join("data", "tls", "cert.pem")),
		TLSKeyPath:  str("TLS_KEY_PATH", filepath.Join("data", "tls", "key.pem")),
	}
}

func str(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func boolean(k string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(k)); err == nil {
		return v
	}
	return def
}

func float(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return v
	}
	return def
}

func seconds(k string, def int) time.Duration {
	return time.Duration(integer(k, def)) * time.Second
}

func millis(k string, def int) time.Duration {
	return time.Duration(integer(k, def)) * time.Millisecond
}

func integer(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v >= 0 {
		return v
	}
	return def
}
