package boltstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/lockplane/storemigrate/internal/migration"
)

var notesVersions = []string{"V0", "V1", "V2", "V3"}

func notesCatalog(t *testing.T) *Catalog {
	t.Helper()
	c := NewCatalog()
	require.NoError(t, c.LoadFS(fstest.MapFS{
		"Notes/V0.layout.json": {Data: []byte(`{"buckets": [
			{"name": "notes", "fields": [{"name": "body", "type": "string"}]}
		]}`)},
		"Notes/V1.layout.json": {Data: []byte(`{"buckets": [
			{"name": "notes", "fields": [
				{"name": "body", "type": "string"},
				{"name": "created", "type": "int", "required": true, "default": 0}
			]}
		]}`)},
		"mappings/V0V1.mapping.json": {Data: []byte(`{"buckets": [{"destination": "notes"}]}`)},
	}))

	v2, err := NewLayout("V2", BucketLayout{Name: "notes", Fields: []Field{
		{Name: "title", Type: TypeString, Required: true},
		{Name: "body", Type: TypeString},
		{Name: "created", Type: TypeInt, Required: true, Default: 0},
	}})
	require.NoError(t, err)
	c.RegisterLayout("Notes", v2)

	v3, err := NewLayout("V3",
		BucketLayout{Name: "notes", Fields: []Field{
			{Name: "title", Type: TypeString, Required: true},
			{Name: "body", Type: TypeString},
			{Name: "created", Type: TypeInt, Required: true, Default: 0},
			{Name: "priority", Type: TypeFloat},
		}},
		BucketLayout{Name: "tags", Fields: []Field{{Name: "tag", Type: TypeString, Required: true}}},
	)
	require.NoError(t, err)
	c.RegisterLayout("Notes", v3)

	c.RegisterMapping(NewMapping("V1V2", BucketMapping{
		Destination: "notes",
		Fields: map[string]Converter{
			"title": func(source Record) (any, error) {
				body, _ := source["body"].(string)
				if body == "" {
					return "untitled", nil
				}
				return strings.Fields(body)[0], nil
			},
			"body":    CopyField("body"),
			"created": CopyField("created"),
		},
	}))
	c.RegisterMapping(NewMapping("failing", BucketMapping{
		Destination: "notes",
		Fields: map[string]Converter{
			"title": func(Record) (any, error) { return nil, errors.New("converter exploded") },
		},
	}))
	return c
}

// testContext returns a context canceled when the test finishes, standing in
// for testing.T.Context on toolchains before Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func layoutOf(t *testing.T, c *Catalog, version string) *Layout {
	t.Helper()
	s, err := c.ResolveSchema(testContext(t), "Notes", version)
	require.NoError(t, err)
	return s.(*Layout)
}

// createStore writes a store at version with records in the notes bucket.
func createStore(t *testing.T, c *Catalog, version string, notes map[string]Record) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.bolt")
	layout := layoutOf(t, c, version)

	db, err := New().Create(path, layout)
	require.NoError(t, err)
	for key, rec := range notes {
		require.NoError(t, Put(db, layout, "notes", key, rec))
	}
	require.NoError(t, db.Close())
	return path
}

func notesDescriptor(path string, mappings ...string) migration.StoreDescriptor {
	return migration.StoreDescriptor{
		Name:     "notes",
		Path:     path,
		Family:   "Notes",
		Versions: append([]string(nil), notesVersions...),
		Mappings: mappings,
	}
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
