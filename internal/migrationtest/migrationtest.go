// Package migrationtest drives a store through its version chain in tests:
// populate it at an old version, migrate, then check it at the new one.
package migrationtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lockplane/storemigrate/internal/engine/boltstore"
	"github.com/lockplane/storemigrate/internal/engine/sqlitestore"
	"github.com/lockplane/storemigrate/internal/migration"
)

// Target is an engine, its catalog and a way to create an empty store.
type Target struct {
	Engine  migration.Engine
	Catalog migration.Catalog

	// Create writes an empty store at path holding schema.
	Create func(ctx context.Context, path string, schema migration.Schema) error
}

// SQLiteTarget tests SQLite stores described by catalog.
func SQLiteTarget(catalog *sqlitestore.Catalog, opts ...sqlitestore.Option) Target {
	engine := sqlitestore.New(opts...)
	return Target{
		Engine:  engine,
		Catalog: catalog,
		Create: func(ctx context.Context, path string, schema migration.Schema) error {
			s, ok := schema.(*sqlitestore.Schema)
			if !ok {
				return fmt.Errorf("schema %s is %T, not a sqlite schema", schema.Version(), schema)
			}
			db, err := engine.Create(ctx, path, s)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// BoltTarget tests bolt stores described by catalog.
func BoltTarget(catalog *boltstore.Catalog, opts ...boltstore.Option) Target {
	engine := boltstore.New(opts...)
	return Target{
		Engine:  engine,
		Catalog: catalog,
		Create: func(_ context.Context, path string, schema migration.Schema) error {
			l, ok := schema.(*boltstore.Layout)
			if !ok {
				return fmt.Errorf("schema %s is %T, not a bolt layout", schema.Version(), schema)
			}
			db, err := engine.Create(path, l)
			if err != nil {
				return err
			}
			return db.Close()
		},
	}
}

// Action inspects or modifies the store at path. The store is at the
// newest version of the descriptor it was migrated with.
type Action func(t testing.TB, path string)

// WithTemporaryStore calls fn with a copy of d whose store lives in a fresh
// temporary directory. The directory is removed when the test ends.
func WithTemporaryStore(t testing.TB, d migration.StoreDescriptor, ext string, fn func(d migration.StoreDescriptor)) {
	t.Helper()
	tmp := d
	tmp.Name = uuid.NewString()
	tmp.Path = filepath.Join(t.TempDir(), "db"+ext)
	tmp.Versions = append([]string(nil), d.Versions...)
	tmp.Mappings = append([]string(nil), d.Mappings...)
	fn(tmp)
}

// RunMigration creates the store at its oldest version and runs pre, then
// migrates it to the newest version in one plan of len(Versions)-1 steps
// and runs post.
func RunMigration(t testing.TB, target Target, d migration.StoreDescriptor, pre, post Action) {
	t.Helper()
	WithTemporaryStore(t, d, target.Engine.Extension(), func(store migration.StoreDescriptor) {
		oldest, err := store.WithMaxVersion(0)
		require.NoError(t, err)
		step(t, target, oldest, 0, pre)
		step(t, target, store, len(store.Versions)-1, post)
	})
}

// RunStepByStep walks the store through every version one at a time,
// expecting exactly one step per advance. actions[i] runs once the store is
// at Versions[i].
func RunStepByStep(t testing.TB, target Target, d migration.StoreDescriptor, actions map[int]Action) {
	t.Helper()
	WithTemporaryStore(t, d, target.Engine.Extension(), func(store migration.StoreDescriptor) {
		for i := range store.Versions {
			upTo, err := store.WithMaxVersion(i)
			require.NoError(t, err)
			expected := 1
			if i == 0 {
				expected = 0
			}
			step(t, target, upTo, expected, actions[i])
		}
	})
}

// step creates the store at the newest version if it does not exist yet,
// checks the plan has expectedSteps steps, performs it and runs action.
func step(t testing.TB, target Target, d migration.StoreDescriptor, expectedSteps int, action Action) {
	t.Helper()
	ctx := context.Background()

	if _, err := os.Stat(d.Path); os.IsNotExist(err) {
		latest, err := target.Catalog.ResolveSchema(ctx, d.Family, d.Latest())
		require.NoError(t, err)
		require.NoError(t, target.Create(ctx, d.Path, latest))
	}

	plan, err := migration.TryBuildMigration(ctx, target.Engine, target.Catalog, d,
		migration.WithScratchDir(t.TempDir()))
	require.NoError(t, err)
	require.Equal(t, expectedSteps, plan.StepCount(),
		"store %s migrating to %s", d.Name, d.Latest())
	require.NoError(t, plan.PerformMigration(ctx, nil))

	if action != nil {
		action(t, d.Path)
	}
}
