package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSchema fingerprints a version by its structure string so two versions
// can be made structurally identical.
type fakeSchema struct {
	version   string
	structure string
}

func (s fakeSchema) Version() string     { return s.version }
func (s fakeSchema) Fingerprint() string { return "fp:" + s.structure }

type fakeMapping struct {
	name     string
	inferred bool
}

func (m fakeMapping) Name() string   { return m.name }
func (m fakeMapping) Inferred() bool { return m.inferred }

type fakeCatalog struct {
	schemas  map[string]fakeSchema
	mappings map[string]bool

	mu       sync.Mutex
	inferred []string
	inferErr error
}

func newFakeCatalog(versions []string, mappings ...string) *fakeCatalog {
	c := &fakeCatalog{
		schemas:  make(map[string]fakeSchema),
		mappings: make(map[string]bool),
	}
	for _, v := range versions {
		c.schemas["App/"+v] = fakeSchema{version: v, structure: v}
	}
	for _, m := range mappings {
		c.mappings[m] = true
	}
	return c
}

func (c *fakeCatalog) ResolveSchema(_ context.Context, family, version string) (Schema, error) {
	s, ok := c.schemas[family+"/"+version]
	if !ok {
		return nil, fmt.Errorf("schema %s/%s: %w", family, version, ErrNotFound)
	}
	return s, nil
}

func (c *fakeCatalog) ResolveMapping(_ context.Context, name string) (Mapping, error) {
	if !c.mappings[name] {
		return nil, fmt.Errorf("mapping %s: %w", name, ErrNotFound)
	}
	return fakeMapping{name: name}, nil
}

func (c *fakeCatalog) InferMapping(_ context.Context, source, destination Schema) (Mapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inferErr != nil {
		return nil, c.inferErr
	}
	name := source.Version() + "->" + destination.Version()
	c.inferred = append(c.inferred, name)
	return fakeMapping{name: name, inferred: true}, nil
}

// fakeEngine stores "<structure>\n<payload lines>" in plain files. Each step
// appends a line naming the mapping it ran, so tests can follow the chain.
type fakeEngine struct {
	t *testing.T

	// failOn makes Migrate fail when producing this destination version
	failOn string
	// failErr is returned by the failing step
	failErr error
	// destroyErr makes DestroyStore fail for every scratch store
	destroyErr error
	// replaceErr makes ReplaceStore fail
	replaceErr error
	// duringMigrate runs inside Migrate with the context the step was given
	duringMigrate func(ctx context.Context)

	mu           sync.Mutex
	checkpoints  []string
	migrations   []string
	destroyed    []string
	replacements int
}

func (e *fakeEngine) Name() string      { return "fake" }
func (e *fakeEngine) Extension() string { return ".fake" }

func (e *fakeEngine) ReadMetadata(_ context.Context, path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewStoreError(path, err)
	}
	structure, _, _ := strings.Cut(string(data), "\n")
	if structure == "" {
		return nil, NewStoreError(path, errors.New("empty store"))
	}
	return &Metadata{Path: path, Engine: e.Name(), Fingerprint: "fp:" + structure}, nil
}

func (e *fakeEngine) IsCompatible(schema Schema, md *Metadata) bool {
	return schema.Fingerprint() == md.Fingerprint
}

func (e *fakeEngine) Migrate(ctx context.Context, step Step, sourcePath, destinationPath string) error {
	if e.duringMigrate != nil {
		e.duringMigrate(ctx)
	}
	e.mu.Lock()
	e.migrations = append(e.migrations, step.Mapping.Name())
	e.mu.Unlock()

	if _, err := os.Stat(destinationPath); err == nil {
		return ErrDestinationExists
	}

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}
	_, payload, _ := strings.Cut(string(data), "\n")
	out := step.Destination.(fakeSchema).structure + "\n" + payload + step.Mapping.Name() + "\n"

	// A failing step leaves a partial destination behind
	if step.Destination.Version() == e.failOn {
		if err := os.WriteFile(destinationPath, []byte("partial"), 0o644); err != nil {
			return err
		}
		return e.failErr
	}
	return os.WriteFile(destinationPath, []byte(out), 0o644)
}

func (e *fakeEngine) CheckpointWAL(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checkpoints = append(e.checkpoints, path)
	return nil
}

func (e *fakeEngine) ReplaceStore(_ context.Context, originalPath, replacementPath string) error {
	if e.replaceErr != nil {
		return e.replaceErr
	}
	data, err := os.ReadFile(replacementPath)
	if err != nil {
		return err
	}
	staging := originalPath + ".staging"
	if err := os.WriteFile(staging, data, 0o644); err != nil {
		return err
	}
	e.mu.Lock()
	e.replacements++
	e.mu.Unlock()
	return os.Rename(staging, originalPath)
}

func (e *fakeEngine) DestroyStore(_ context.Context, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyErr != nil {
		return e.destroyErr
	}
	e.destroyed = append(e.destroyed, path)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// fakeJournal records calls in order.
type fakeJournal struct {
	active   bool
	calls    []string
	tracked  map[string]bool
	beginErr error
}

func (j *fakeJournal) Begin(store, path string, total int) error {
	if j.beginErr != nil {
		return j.beginErr
	}
	j.active = true
	j.tracked = make(map[string]bool)
	j.calls = append(j.calls, fmt.Sprintf("begin %s %d", store, total))
	return nil
}

func (j *fakeJournal) Track(p string) error {
	j.tracked[p] = true
	j.calls = append(j.calls, "track")
	return nil
}

func (j *fakeJournal) Untrack(p string) error {
	delete(j.tracked, p)
	j.calls = append(j.calls, "untrack")
	return nil
}

func (j *fakeJournal) Complete(step int) error {
	j.calls = append(j.calls, fmt.Sprintf("complete %d", step))
	return nil
}

func (j *fakeJournal) End() error {
	j.active = false
	j.calls = append(j.calls, "end")
	return nil
}

var fourVersions = []string{"V0", "V1", "V2", "V3"}

// writeStore creates a fake store at version in dir and returns its path.
func writeStore(t *testing.T, dir, version string) string {
	t.Helper()
	path := filepath.Join(dir, "app.fake")
	require.NoError(t, os.WriteFile(path, []byte(version+"\nseed\n"), 0o644))
	return path
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func descriptorFor(path string, mappings ...string) StoreDescriptor {
	return StoreDescriptor{
		Name:     "app",
		Path:     path,
		Family:   "App",
		Versions: append([]string(nil), fourVersions...),
		Mappings: mappings,
	}
}
