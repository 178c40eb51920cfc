// Package sqlitestore migrates SQLite store files. A version's schema is a
// DDL snapshot and a mapping is a per-table list of column expressions that
// copy rows out of the previous version's store.
package sqlitestore

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/lockplane/storemigrate/database/sqlite"
	"github.com/lockplane/storemigrate/internal/migration"
)

// EngineName is the name used for this engine in configuration.
const EngineName = "sqlite"

// Engine implements migration.Engine for SQLite files.
type Engine struct {
	driver *sqlite.Driver
	logger logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates a SQLite engine.
func New(opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		driver: sqlite.NewDriver(),
		logger: discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return EngineName }

func (e *Engine) Extension() string { return ".sqlite" }

// IsCompatible reports whether the store's introspected schema hashes to the
// same fingerprint as schema.
func (e *Engine) IsCompatible(schema migration.Schema, md *migration.Metadata) bool {
	if schema == nil || md == nil {
		return false
	}
	return schema.Fingerprint() == md.Fingerprint
}

var _ migration.Engine = (*Engine)(nil)
