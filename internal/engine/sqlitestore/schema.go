package sqlitestore

import (
	"context"
	"fmt"

	"github.com/lockplane/storemigrate/database"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/schema"
)

// Schema is one version of a SQLite store: the DDL that creates it and the
// structure that DDL produces.
type Schema struct {
	version     string
	ddl         string
	tables      *database.Schema
	fingerprint string
}

// NewSchema loads ddl into an in-memory database to learn its structure.
func NewSchema(ctx context.Context, version, ddl string) (*Schema, error) {
	tables, err := schema.LoadSQLiteDDL(ctx, ddl)
	if err != nil {
		return nil, err
	}

	hash, err := schema.ComputeHash(tables)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema %s: %w", version, err)
	}

	return &Schema{
		version:     version,
		ddl:         ddl,
		tables:      tables,
		fingerprint: hash,
	}, nil
}

func (s *Schema) Version() string { return s.version }

func (s *Schema) Fingerprint() string { return s.fingerprint }

// DDL returns the statements that create the schema in an empty database.
func (s *Schema) DDL() string { return s.ddl }

// Tables returns the introspected structure.
func (s *Schema) Tables() *database.Schema { return s.tables }

var _ migration.Schema = (*Schema)(nil)
