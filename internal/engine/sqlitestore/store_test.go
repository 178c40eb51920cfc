package sqlitestore

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockplane/storemigrate/internal/migration"
)

// walOnlyStore returns a store whose notes rows exist only in its -wal file,
// as left behind by a process that exited without checkpointing.
func walOnlyStore(t *testing.T) string {
	t.Helper()
	live := filepath.Join(t.TempDir(), "live.sqlite")

	db, err := sql.Open("sqlite", live)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		notesV0,
		"PRAGMA journal_mode=WAL",
		"PRAGMA wal_autocheckpoint=0",
		"INSERT INTO notes (id, body) VALUES (1, 'only in wal')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	// Copy while the writer still holds the log open
	path := newStorePath(t)
	copyFile(t, live, path)
	copyFile(t, live+"-wal", path+"-wal")
	require.NoError(t, db.Close())
	return path
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	in, err := os.Open(from)
	require.NoError(t, err)
	defer func() { _ = in.Close() }()
	out, err := os.Create(to)
	require.NoError(t, err)
	_, err = io.Copy(out, in)
	require.NoError(t, err)
	require.NoError(t, out.Close())
}

func TestCheckpointWAL(t *testing.T) {
	ctx := context.Background()
	path := walOnlyStore(t)
	engine := New()

	require.NoError(t, engine.CheckpointWAL(ctx, path))

	_, err := os.Stat(path + "-wal")
	assert.True(t, os.IsNotExist(err), "expected -wal to be removed, got %v", err)

	md, err := engine.ReadMetadata(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "delete", md.Attributes["journal_mode"])
	assert.Equal(t, []string{"only in wal"}, queryStrings(t, path, "SELECT body FROM notes"))
}

func TestCheckpointWAL_NotInWALMode(t *testing.T) {
	ctx := context.Background()
	path := newStorePath(t)
	createStore(t, path, notesV0)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, New().CheckpointWAL(ctx, path))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMigrationOfWALStoreSeesLoggedRows(t *testing.T) {
	ctx := context.Background()
	path := walOnlyStore(t)
	scratchDir := t.TempDir()

	plan, err := migration.TryBuildMigration(ctx, New(), NewCatalog(notesCatalogFS()),
		notesDescriptor(path, "V0V1", "V1V2"), migration.WithScratchDir(scratchDir))
	require.NoError(t, err)
	require.NoError(t, plan.PerformMigration(ctx, nil))

	assert.Equal(t, []string{"only "}, queryStrings(t, path, "SELECT title FROM notes"))
	assert.Empty(t, dirEntries(t, scratchDir))
}

func TestReplaceStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	original := filepath.Join(dir, "app.sqlite")
	createStore(t, original, notesV0, `INSERT INTO notes (id, body) VALUES (1, 'old')`)
	require.NoError(t, os.Chmod(original, 0o600))
	require.NoError(t, os.WriteFile(original+"-journal", []byte("stale"), 0o644))

	replacement := filepath.Join(t.TempDir(), "new.sqlite")
	createStore(t, replacement, notesV1, `INSERT INTO notes (id, body) VALUES (1, 'new')`)

	require.NoError(t, New().ReplaceStore(ctx, original, replacement))

	assert.Equal(t, []string{"new"}, queryStrings(t, original, "SELECT body FROM notes"))
	assert.Equal(t, []string{"app.sqlite"}, dirEntries(t, dir))

	info, err := os.Stat(original)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// The replacement itself is left for the caller to destroy
	_, err = os.Stat(replacement)
	assert.NoError(t, err)
}

func TestReplaceStore_FailureLeavesOriginal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	original := filepath.Join(dir, "app.sqlite")
	createStore(t, original, notesV0)
	before, err := os.ReadFile(original)
	require.NoError(t, err)

	err = New().ReplaceStore(ctx, original, filepath.Join(dir, "missing.sqlite"))
	require.Error(t, err)

	after, err := os.ReadFile(original)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"app.sqlite"}, dirEntries(t, dir))
}

func TestReplaceStore_FailedRenameKeepsJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// A directory in the original's place makes the final rename fail
	original := filepath.Join(dir, "app.sqlite")
	require.NoError(t, os.MkdirAll(filepath.Join(original, "occupied"), 0o755))
	journal := original + "-journal"
	require.NoError(t, os.WriteFile(journal, []byte("hot"), 0o644))

	replacement := filepath.Join(t.TempDir(), "new.sqlite")
	createStore(t, replacement, notesV1)

	err := New().ReplaceStore(ctx, original, replacement)
	require.ErrorContains(t, err, "failed to move")

	data, err := os.ReadFile(journal)
	require.NoError(t, err)
	assert.Equal(t, "hot", string(data))
	assert.ElementsMatch(t, []string{"app.sqlite", "app.sqlite-journal"}, dirEntries(t, dir))
}

func TestDestroyStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "scratch.sqlite")
	createStore(t, path, notesV0)
	require.NoError(t, os.WriteFile(path+"-shm", []byte("x"), 0o644))

	engine := New()
	require.NoError(t, engine.DestroyStore(ctx, path))
	assert.Empty(t, dirEntries(t, dir))
	assert.NoError(t, engine.DestroyStore(ctx, path))
}

func TestReadMetadata(t *testing.T) {
	ctx := context.Background()
	engine := New()

	t.Run("valid store", func(t *testing.T) {
		path := newStorePath(t)
		createStore(t, path, notesV2, "PRAGMA user_version = 7")

		md, err := engine.ReadMetadata(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, path, md.Path)
		assert.Equal(t, EngineName, md.Engine)
		assert.Len(t, md.Fingerprint, 64)
		assert.Equal(t, "7", md.Attributes["user_version"])
		assert.Equal(t, "2", md.Attributes["tables"])
	})

	t.Run("read does not modify the store", func(t *testing.T) {
		path := newStorePath(t)
		createStore(t, path, notesV0)
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		_, err = engine.ReadMetadata(ctx, path)
		require.NoError(t, err)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	badStores := map[string]func(t *testing.T) string{
		"missing": func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "missing.sqlite")
		},
		"directory": func(t *testing.T) string {
			return t.TempDir()
		},
		"not sqlite": func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "notes.sqlite")
			require.NoError(t, os.WriteFile(path, []byte("just some text that is long enough"), 0o644))
			return path
		},
		"empty file": func(t *testing.T) string {
			path := filepath.Join(t.TempDir(), "empty.sqlite")
			require.NoError(t, os.WriteFile(path, nil, 0o644))
			return path
		},
	}
	for name, setup := range badStores {
		t.Run(name, func(t *testing.T) {
			path := setup(t)
			_, err := engine.ReadMetadata(ctx, path)
			assert.ErrorIs(t, err, migration.ErrBadStore)

			var storeErr *migration.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, path, storeErr.Path)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(notesCatalogFS())
	latest, err := catalog.ResolveSchema(ctx, "Notes", "V1")
	require.NoError(t, err)
	engine := New()

	current := newStorePath(t)
	createStore(t, current, notesV1)
	db, err := engine.Open(ctx, current, latest)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	stale := newStorePath(t)
	createStore(t, stale, notesV0)
	_, err = engine.Open(ctx, stale, latest)
	assert.ErrorIs(t, err, migration.ErrNoCompatibleVersionFound)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(notesCatalogFS())
	s, err := catalog.ResolveSchema(ctx, "Notes", "V3")
	require.NoError(t, err)
	engine := New()

	path := filepath.Join(t.TempDir(), "nested", "notes.sqlite")
	db, err := engine.Create(ctx, path, s.(*Schema))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	md, err := engine.ReadMetadata(ctx, path)
	require.NoError(t, err)
	assert.True(t, engine.IsCompatible(s, md))

	_, err = engine.Create(ctx, path, s.(*Schema))
	assert.ErrorIs(t, err, migration.ErrDestinationExists)
}
