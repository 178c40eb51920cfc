package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lockplane/storemigrate/database"
	"github.com/lockplane/storemigrate/internal/migration"
	"github.com/lockplane/storemigrate/internal/sqliteutil"
)

// sourceAlias is the schema name the source store is attached under.
const sourceAlias = "src"

// Migrate creates the destination schema in a new file at destinationPath and
// copies rows from the store at sourcePath through the step's mapping. All
// rows are copied in one transaction and foreign keys are checked before it
// commits.
func (e *Engine) Migrate(ctx context.Context, step migration.Step, sourcePath, destinationPath string) error {
	source, ok := step.Source.(*Schema)
	if !ok {
		return fmt.Errorf("source schema %s is %T, not a SQLite schema", step.Source.Version(), step.Source)
	}
	destination, ok := step.Destination.(*Schema)
	if !ok {
		return fmt.Errorf("destination schema %s is %T, not a SQLite schema", step.Destination.Version(), step.Destination)
	}
	mapping, ok := step.Mapping.(*Mapping)
	if !ok {
		return fmt.Errorf("mapping %s is %T, not a SQLite mapping", step.Mapping.Name(), step.Mapping)
	}

	if _, err := os.Stat(destinationPath); err == nil {
		return fmt.Errorf("%w: %s", migration.ErrDestinationExists, destinationPath)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat destination %s: %w", destinationPath, err)
	}

	statements, err := mapping.copyStatements(e.driver.Generator, sourceAlias, source, destination)
	if err != nil {
		return err
	}

	log := e.logger.WithFields(logrus.Fields{
		"source":      source.Version(),
		"destination": destination.Version(),
		"mapping":     mapping.Name(),
	})

	db, err := sql.Open("sqlite", sqliteutil.CreateDSN(destinationPath))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destinationPath, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	// ATTACH is per connection; everything below runs on this one.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", destinationPath, err)
	}
	defer func() { _ = conn.Close() }()

	if ddl := strings.TrimSpace(destination.DDL()); ddl != "" {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", destination.Version(), err)
		}
	}

	if _, err := conn.ExecContext(ctx, e.driver.AttachDatabase(sourcePath, sourceAlias)); err != nil {
		return fmt.Errorf("failed to attach source %s: %w", sourcePath, err)
	}

	if err := e.copyRows(ctx, conn, statements, log); err != nil {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), e.driver.DetachDatabase(sourceAlias))
		return err
	}

	if _, err := conn.ExecContext(ctx, e.driver.DetachDatabase(sourceAlias)); err != nil {
		return fmt.Errorf("failed to detach source: %w", err)
	}

	log.WithField("tables", len(statements)).Debug("Step complete")
	return nil
}

func (e *Engine) copyRows(ctx context.Context, conn *sql.Conn, statements []database.CopyStatement, log logrus.FieldLogger) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, stmt := range statements {
		res, err := tx.ExecContext(ctx, stmt.SQL)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s failed: %w", stmt.Description, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			log.WithField("rows", n).Debug(stmt.Description)
		}
	}

	if err := e.checkForeignKeys(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit copied rows: %w", err)
	}
	return nil
}

// checkForeignKeys fails if any copied row references a missing parent.
func (e *Engine) checkForeignKeys(ctx context.Context, tx *sql.Tx) error {
	violations, err := e.driver.ForeignKeyViolations(ctx, tx, "main")
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}
	msgs := make([]string, len(violations))
	for i, v := range violations {
		msgs[i] = v.String()
	}
	return fmt.Errorf("foreign key violations after copy: %s", strings.Join(msgs, "; "))
}
