// Package boltstore migrates bbolt files holding JSON records in buckets. A
// version's schema is a record layout and a mapping is a per-bucket table of
// field converters.
package boltstore

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/lockplane/storemigrate/internal/migration"
)

// EngineName is the name used for this engine in configuration.
const EngineName = "bolt"

var (
	metaBucket         = "_meta"
	keyFingerprint     = []byte("fingerprint")
	keyLayoutVersion   = []byte("layout_version")
	keyLayout          = []byte("layout")
	defaultLockTimeout = time.Second
)

// Engine implements migration.Engine for bbolt files.
type Engine struct {
	logger      logrus.FieldLogger
	lockTimeout time.Duration
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

// WithLockTimeout bounds how long opening a store waits for its file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) { e.lockTimeout = d }
}

// New creates a bolt engine.
func New(opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		logger:      discard,
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Name() string { return EngineName }

func (e *Engine) Extension() string { return ".bolt" }

func (e *Engine) IsCompatible(schema migration.Schema, md *migration.Metadata) bool {
	if schema == nil || md == nil {
		return false
	}
	return schema.Fingerprint() == md.Fingerprint
}

// CheckpointWAL does nothing: bbolt writes every commit to the main file.
func (e *Engine) CheckpointWAL(_ context.Context, _ string) error {
	return nil
}

func (e *Engine) readOnly() *bolt.Options {
	return &bolt.Options{ReadOnly: true, Timeout: e.lockTimeout}
}

func (e *Engine) readWrite() *bolt.Options {
	return &bolt.Options{Timeout: e.lockTimeout}
}

var _ migration.Engine = (*Engine)(nil)
