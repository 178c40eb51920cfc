package boltstore

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/lockplane/storemigrate/internal/migration"
)

const (
	// LayoutFileSuffix is the extension of layout files in a catalog directory.
	LayoutFileSuffix = ".layout.json"

	// MappingFileSuffix is the extension of mapping files in a catalog directory.
	MappingFileSuffix = ".mapping.json"

	mappingsDir = "mappings"
)

// Catalog is a registry of layouts and mappings. Mappings with Go
// converters are registered in code; layouts and declarative mappings can
// also be loaded from a directory.
type Catalog struct {
	mu       sync.RWMutex
	layouts  map[string]*Layout
	mappings map[string]*Mapping
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		layouts:  make(map[string]*Layout),
		mappings: make(map[string]*Mapping),
	}
}

// RegisterLayout adds a layout to family under its version.
func (c *Catalog) RegisterLayout(family string, l *Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layouts[path.Join(family, l.Version())] = l
}

// RegisterMapping adds a mapping under its name.
func (c *Catalog) RegisterMapping(m *Mapping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mappings[m.Name()] = m
}

// LoadFS registers every <family>/<version>.layout.json and
// mappings/<name>.mapping.json found in fsys.
func (c *Catalog) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		dir, file := path.Split(p)
		dir = strings.TrimSuffix(dir, "/")

		switch {
		case dir == mappingsDir && strings.HasSuffix(file, MappingFileSuffix):
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			m, err := ParseMapping(strings.TrimSuffix(file, MappingFileSuffix), data)
			if err != nil {
				return err
			}
			c.RegisterMapping(m)

		case dir != "" && strings.HasSuffix(file, LayoutFileSuffix):
			data, err := fs.ReadFile(fsys, p)
			if err != nil {
				return err
			}
			l, err := ParseLayout(strings.TrimSuffix(file, LayoutFileSuffix), data)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			c.RegisterLayout(dir, l)
		}
		return nil
	})
}

func (c *Catalog) ResolveSchema(_ context.Context, family, version string) (migration.Schema, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.layouts[path.Join(family, version)]
	if !ok {
		return nil, fmt.Errorf("%w: layout %s/%s", migration.ErrNotFound, family, version)
	}
	return l, nil
}

func (c *Catalog) ResolveMapping(_ context.Context, name string) (migration.Mapping, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.mappings[name]
	if !ok {
		return nil, fmt.Errorf("%w: mapping %s", migration.ErrNotFound, name)
	}
	return m, nil
}

func (c *Catalog) InferMapping(_ context.Context, source, destination migration.Schema) (migration.Mapping, error) {
	src, ok := source.(*Layout)
	if !ok {
		return nil, fmt.Errorf("%w: source schema %s is %T, not a bolt layout", migration.ErrMappingInference, source.Version(), source)
	}
	dst, ok := destination.(*Layout)
	if !ok {
		return nil, fmt.Errorf("%w: destination schema %s is %T, not a bolt layout", migration.ErrMappingInference, destination.Version(), destination)
	}
	return InferMapping(src, dst)
}

var _ migration.Catalog = (*Catalog)(nil)
