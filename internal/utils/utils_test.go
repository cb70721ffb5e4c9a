package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_USER", "map")
	t.Setenv("PG_PASSWORD", "s3cr@t")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	assert.Equal(t, "postgres://map:s3cr%40t@db:6543/regionmap?sslmode=disable", PostgresDSNFromEnv())

	t.Setenv("PG_DSN", "postgres://x@y/z")
	assert.Equal(t, "postgres://x@y/z", PostgresDSNFromEnv())
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "tls", "cert.pem")
	key := filepath.Join(dir, "tls", "key.pem")
	require.NoError(t, EnsureSelfSignedCert(cert, key, "regionmap.local"))
	_, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	// existing files are left alone
	require.NoError(t, EnsureSelfSignedCert(cert, key, "other"))
}
