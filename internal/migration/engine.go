package migration

import "context"

// Schema is an engine-specific description of one version's structure.
// Implementations must be immutable.
type Schema interface {
	// Version is the version identifier the schema was resolved for
	Version() string

	// Fingerprint identifies the structure; stores built from the same
	// structure report the same fingerprint in their Metadata
	Fingerprint() string
}

// Mapping is an engine-specific transform from one schema to the next.
// Implementations must be immutable.
type Mapping interface {
	Name() string

	// Inferred reports whether the mapping was derived by comparing schemas
	Inferred() bool
}

// Metadata is what can be read from a store without opening it fully.
type Metadata struct {
	Path        string            `json:"path"`
	Engine      string            `json:"engine"`
	Fingerprint string            `json:"fingerprint"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Catalog resolves the schema and mapping descriptors an engine consumes.
type Catalog interface {
	// ResolveSchema returns the schema for version within family. Unknown
	// versions return an error wrapping ErrNotFound.
	ResolveSchema(ctx context.Context, family, version string) (Schema, error)

	// ResolveMapping returns the named mapping. Unknown names return an
	// error wrapping ErrNotFound.
	ResolveMapping(ctx context.Context, name string) (Mapping, error)

	// InferMapping derives a mapping by comparing two schemas.
	InferMapping(ctx context.Context, source, destination Schema) (Mapping, error)
}

// Engine performs the physical work of a migration for one store format.
type Engine interface {
	Name() string

	// Extension is appended to scratch file names, including the dot
	Extension() string

	// ReadMetadata reads the store's fingerprint without modifying it.
	// Failures are reported as *StoreError.
	ReadMetadata(ctx context.Context, path string) (*Metadata, error)

	// IsCompatible reports whether a store with metadata md conforms to schema
	IsCompatible(schema Schema, md *Metadata) bool

	// Migrate writes a new store at destinationPath conforming to
	// step.Destination, filled from the store at sourcePath through
	// step.Mapping. destinationPath must not exist. The source is only read.
	Migrate(ctx context.Context, step Step, sourcePath, destinationPath string) error

	// CheckpointWAL folds any write-ahead log into the main store file
	CheckpointWAL(ctx context.Context, path string) error

	// ReplaceStore atomically replaces the contents of originalPath with
	// those of replacementPath. replacementPath is left in place.
	ReplaceStore(ctx context.Context, originalPath, replacementPath string) error

	// DestroyStore removes a store and its auxiliary files. Missing stores
	// are not an error.
	DestroyStore(ctx context.Context, path string) error
}

// Step is one pairwise migration. Steps are never mutated after planning.
type Step struct {
	Index       int
	Source      Schema
	Destination Schema
	Mapping     Mapping
}

// ProgressFunc is called with (0, total) before the first step and with
// (i+1, total) after each completed step. A non-nil return stops the
// migration before the next step.
type ProgressFunc func(step, total int) error
