package db

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB creates a migrated database in the test's temp dir.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "growth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPragmasApplied verifies that essential PRAGMAs are set on open.
func TestPragmasApplied(t *testing.T) {
	db := newTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var busyTimeout, synchronous, tempStore, foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.NoError(t, db.QueryRow("PRAGMA synchronous").Scan(&synchronous))
	require.NoError(t, db.QueryRow("PRAGMA temp_store").Scan(&tempStore))
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 5000, busyTimeout)
	assert.Equal(t, 1, synchronous, "NORMAL")
	assert.Equal(t, 2, tempStore, "MEMORY")
	assert.Equal(t, 1, foreignKeys)
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := getMigrationsFS()
	require.NoError(t, err)

	latest, err := GetLatestMigrationVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), latest)

	db := newTestDB(t)
	status, err := db.GetMigrationStatus(migrations)
	require.NoError(t, err)
	assert.Equal(t, MigrationStatus{CurrentVersion: 2, LatestVersion: 2}, status)
	assert.False(t, status.Pending())
}

func TestMigrateDownAndUp(t *testing.T) {
	db := newTestDB(t)
	migrations, err := getMigrationsFS()
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown(migrations))
	v, dirty, err := db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateTo(migrations, 2))
	v, _, err = db.MigrateVersion(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	require.NoError(t, db.MigrateUp(migrations), "no change is not an error")
}

func TestOpenDBLeavesSchemaAlone(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "raw.db"))
	require.NoError(t, err)
	defer db.Close()

	migrations, err := getMigrationsFS()
	require.NoError(t, err)
	status, err := db.GetMigrationStatus(migrations)
	require.NoError(t, err)
	assert.Equal(t, uint(0), status.CurrentVersion)
	assert.True(t, status.Pending())
}

func TestRunMigrate(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	defer db.Close()

	var out bytes.Buffer
	require.NoError(t, RunMigrate(&out, db, "status", nil))
	assert.Contains(t, out.String(), "2 version(s) behind")

	out.Reset()
	require.NoError(t, RunMigrate(&out, db, "up", nil))
	assert.Contains(t, out.String(), "Current version: 2 (dirty: false)")

	out.Reset()
	require.NoError(t, RunMigrate(&out, db, "version", []string{"1"}))
	assert.Contains(t, out.String(), "Migrated to version 1")

	out.Reset()
	require.NoError(t, RunMigrate(&out, db, "down", nil))
	assert.Contains(t, out.String(), "Current version: 0")

	require.NoError(t, RunMigrate(&out, db, "force", []string{"2"}))

	assert.Error(t, RunMigrate(&out, db, "version", nil))
	assert.Error(t, RunMigrate(&out, db, "version", []string{"x"}))
	assert.Error(t, RunMigrate(&out, db, "sideways", nil))
}

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment; filename=growth-backup-"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("SQLite format 3\x00")))
}
