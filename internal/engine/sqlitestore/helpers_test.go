package sqlitestore

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/lockplane/storemigrate/internal/migration"
)

const (
	notesV0 = `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);`

	notesV1 = `CREATE TABLE notes (
	id INTEGER PRIMARY KEY,
	body TEXT,
	created_at TEXT NOT NULL DEFAULT '1970-01-01'
);`

	notesV2 = `CREATE TABLE notes (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT,
	created_at TEXT NOT NULL DEFAULT '1970-01-01'
);
CREATE TABLE tags (
	note_id INTEGER NOT NULL REFERENCES notes (id),
	tag TEXT NOT NULL
);`

	notesV3Tables = `CREATE TABLE notes (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	body TEXT,
	created_at TEXT NOT NULL DEFAULT '1970-01-01',
	priority INTEGER
);
CREATE TABLE tags (
	note_id INTEGER NOT NULL REFERENCES notes (id),
	tag TEXT NOT NULL
);`

	notesV3Indexes = `CREATE INDEX idx_tags_note ON tags (note_id);`
)

var notesVersions = []string{"V0", "V1", "V2", "V3"}

func notesCatalogFS() fstest.MapFS {
	return fstest.MapFS{
		"Notes/V0.lp.sql":              {Data: []byte(notesV0)},
		"Notes/V1.lp.sql":              {Data: []byte(notesV1)},
		"Notes/V2.lp.sql":              {Data: []byte(notesV2)},
		"Notes/V3/01_tables.lp.sql":    {Data: []byte(notesV3Tables)},
		"Notes/V3/02_indexes.lp.sql":   {Data: []byte(notesV3Indexes)},
		"mappings/V0V1.mapping.json":   {Data: []byte(`{"tables": [{"destination": "notes"}]}`)},
		"mappings/V1V2.mapping.json":   {Data: []byte(v1v2Mapping)},
		"mappings/broken.mapping.json": {Data: []byte(`{"tables": [{"destination": "notes", "columns": {"id": "id", "title": "NULL"}}]}`)},
	}
}

const v1v2Mapping = `{
	"description": "Split a title off the body",
	"tables": [
		{
			"destination": "notes",
			"columns": {
				"id": "id",
				"title": "coalesce(substr(body, 1, 5), 'untitled')",
				"body": "body",
				"created_at": "created_at"
			}
		}
	]
}`

func notesDescriptor(path string, mappings ...string) migration.StoreDescriptor {
	return migration.StoreDescriptor{
		Name:     "notes",
		Path:     path,
		Family:   "Notes",
		Versions: append([]string(nil), notesVersions...),
		Mappings: mappings,
	}
}

// createStore creates a SQLite file at path from ddl and runs inserts.
func createStore(t *testing.T, path, ddl string, statements ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(ddl)
	require.NoError(t, err)
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func queryStrings(t *testing.T, path, query string) []string {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s sql.NullString
		require.NoError(t, rows.Scan(&s))
		if s.Valid {
			out = append(out, s.String)
		} else {
			out = append(out, "<nil>")
		}
	}
	require.NoError(t, rows.Err())
	return out
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func newStorePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "notes.sqlite")
}
