package sqlitestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/schema"
)

// MappingsDir is the catalog directory mapping files are read from.
const MappingsDir = "mappings"

// Catalog resolves versions and mappings from a file tree laid out as
//
//	<family>/<version>.lp.sql         one DDL file per version, or
//	<family>/<version>/*.lp.sql       a directory of DDL files
//	mappings/<name>.mapping.json      explicit mappings
//
// Resolved schemas are cached; a Catalog is safe for concurrent use.
type Catalog struct {
	fsys fs.FS

	mu      sync.Mutex
	schemas map[string]*Schema
}

// NewCatalog creates a catalog over fsys.
func NewCatalog(fsys fs.FS) *Catalog {
	return &Catalog{
		fsys:    fsys,
		schemas: make(map[string]*Schema),
	}
}

// ResolveSchema loads and introspects the DDL for version.
func (c *Catalog) ResolveSchema(ctx context.Context, family, version string) (migration.Schema, error) {
	name := path.Join(family, version)

	c.mu.Lock()
	cached, ok := c.schemas[name]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	ddl, err := schema.ReadDDL(c.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: schema %s: %w", migration.ErrNotFound, name, err)
		}
		return nil, err
	}

	s, err := NewSchema(ctx, version, ddl)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", name, err)
	}

	c.mu.Lock()
	c.schemas[name] = s
	c.mu.Unlock()
	return s, nil
}

// ResolveMapping reads and validates mappings/<name>.mapping.json.
func (c *Catalog) ResolveMapping(_ context.Context, name string) (migration.Mapping, error) {
	file := path.Join(MappingsDir, name+MappingFileSuffix)
	data, err := fs.ReadFile(c.fsys, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: mapping file %s", migration.ErrNotFound, file)
		}
		return nil, fmt.Errorf("failed to read mapping file %s: %w", file, err)
	}
	return ParseMapping(name, data)
}

// InferMapping derives a mapping between two SQLite schemas.
func (c *Catalog) InferMapping(_ context.Context, source, destination migration.Schema) (migration.Mapping, error) {
	src, ok := source.(*Schema)
	if !ok {
		return nil, fmt.Errorf("%w: source schema %s is %T, not a SQLite schema", migration.ErrMappingInference, source.Version(), source)
	}
	dst, ok := destination.(*Schema)
	if !ok {
		return nil, fmt.Errorf("%w: destination schema %s is %T, not a SQLite schema", migration.ErrMappingInference, destination.Version(), destination)
	}
	return InferMapping(src, dst)
}

var _ migration.Catalog = (*Catalog)(nil)
