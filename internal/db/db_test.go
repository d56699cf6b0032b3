package db

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDBMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	d, err := NewDB(path)
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, path, d.Path())

	version, dirty, err := d.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(1))

	// migrated schema accepts cache rows
	_, err = d.Exec(`INSERT INTO cache_entries (id, cache_key, source_path, blob, created_at_ns)
		VALUES ('id1', 'k1', 'voyage.csv', x'00', 1)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestNewDBIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	d, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	// reopening an already-migrated database is fine
	d, err = NewDB(path)
	require.NoError(t, err)
	defer d.Close()

	_, dirty, err := d.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestAttachAdminRoutes(t *testing.T) {
	d, err := NewDB(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer d.Close()

	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	// the tailsql UI answers under its route prefix
	req := httptest.NewRequest(http.MethodGet, "/debug/tailsql/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.NotEqual(t, http.StatusNotFound, rec.Code)
}
