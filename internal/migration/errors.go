package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrBadStore indicates the store's metadata could not be read
	ErrBadStore = errors.New("bad store")

	// ErrBadVersion indicates a declared version has no resolvable schema
	ErrBadVersion = errors.New("bad schema version")

	// ErrNoCompatibleVersionFound indicates the store matches none of the declared versions
	ErrNoCompatibleVersionFound = errors.New("no compatible version found")

	// ErrBadMappingModel indicates a declared mapping could not be resolved
	ErrBadMappingModel = errors.New("bad mapping model")

	// ErrMappingInference indicates the engine could not infer a mapping between two schemas
	ErrMappingInference = errors.New("mapping could not be inferred")

	// ErrStepExecutionFailed indicates a migration step failed
	ErrStepExecutionFailed = errors.New("step execution failed")

	// ErrCleanupFailed indicates a scratch store could not be removed
	ErrCleanupFailed = errors.New("cleanup failed")

	// ErrInvalidDescriptor indicates a StoreDescriptor violates its invariants
	ErrInvalidDescriptor = errors.New("invalid store descriptor")

	// ErrDestinationExists indicates a step was asked to write over an existing file
	ErrDestinationExists = errors.New("destination already exists")

	// ErrCancelled indicates the migration was stopped between steps
	ErrCancelled = errors.New("migration cancelled")

	// ErrMigrationInProgress indicates another migration of the store is recorded as active
	ErrMigrationInProgress = errors.New("migration already in progress")

	// ErrNotFound is returned by catalogs for unknown schemas and mappings
	ErrNotFound = errors.New("not found")
)

// StoreError reports a store whose metadata could not be read.
type StoreError struct {
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("bad store %s: %v", e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBadStore) hold for every StoreError.
func (e *StoreError) Is(target error) bool { return target == ErrBadStore }

// NewStoreError wraps err with the store path.
func NewStoreError(path string, err error) *StoreError {
	return &StoreError{Path: path, Err: err}
}

// VersionError reports a declared version whose schema could not be resolved.
type VersionError struct {
	Version string
	Err     error
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("bad schema version %q: %v", e.Version, e.Err)
}

func (e *VersionError) Unwrap() error { return e.Err }

func (e *VersionError) Is(target error) bool { return target == ErrBadVersion }

// MappingError reports a declared mapping that could not be resolved.
type MappingError struct {
	Name string
	Err  error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("bad mapping model %q: %v", e.Name, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

func (e *MappingError) Is(target error) bool { return target == ErrBadMappingModel }

// StepError reports a failed step. Err is the engine's error, unchanged.
// Cleanup holds any failure to remove scratch stores afterwards; it never
// replaces Err.
type StepError struct {
	Index       int
	Source      string
	Destination string
	Err         error
	Cleanup     error
}

func (e *StepError) Error() string {
	msg := fmt.Sprintf("step %d (%s -> %s) failed: %v", e.Index+1, e.Source, e.Destination, e.Err)
	if e.Cleanup != nil {
		msg += fmt.Sprintf(" (cleanup: %v)", e.Cleanup)
	}
	return msg
}

func (e *StepError) Unwrap() []error {
	if e.Cleanup == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cleanup}
}

func (e *StepError) Is(target error) bool { return target == ErrStepExecutionFailed }

// CleanupError reports a scratch store that could not be removed.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove scratch store %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }

func (e *CleanupError) Is(target error) bool { return target == ErrCleanupFailed }
