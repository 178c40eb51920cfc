package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/lockplane/storemigrate/internal/migration"
)

// FileSuffix is appended to a store path to name its journal.
const FileSuffix = ".migration.json"

const formatVersion = "1"

// PathFor returns the journal file of the store at storePath.
func PathFor(storePath string) string {
	return storePath + FileSuffix
}

// State is the content of a journal file.
type State struct {
	Version         string           `json:"version"` // State file format version
	ActiveMigration *ActiveMigration `json:"active_migration,omitempty"`
}

// ActiveMigration tracks a migration that has started and not yet ended.
type ActiveMigration struct {
	ID             string    `json:"id"`
	Store          string    `json:"store"`
	StorePath      string    `json:"store_path"`
	TotalSteps     int       `json:"total_steps"`
	CurrentStep    int       `json:"current_step"` // 0 = no step finished
	StepsCompleted []int     `json:"steps_completed"`
	ScratchFiles   []string  `json:"scratch_files"` // Scratch stores that may still exist
	StartedAt      time.Time `json:"started_at"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Load reads the journal at path.
// Returns empty state if the file doesn't exist
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{Version: formatVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse journal %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the state to path, or removes the file when no migration is
// active.
func (s *State) Save(path string) error {
	if s.ActiveMigration == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove journal: %w", err)
		}
		return nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal journal: %w", err)
	}

	// Write atomically (write to temp file, then rename)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write journal: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to save journal: %w", err)
	}
	return nil
}

// Journal persists the state of one store's migration after every change.
// It implements migration.Journal.
type Journal struct {
	path  string
	state *State
	now   func() time.Time
}

// Open loads the journal at path, creating an empty one in memory when the
// file does not exist yet.
func Open(path string) (*Journal, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Journal{path: path, state: s, now: time.Now}, nil
}

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// Active returns the recorded migration, or nil.
func (j *Journal) Active() *ActiveMigration { return j.state.ActiveMigration }

func (j *Journal) Begin(store, path string, totalSteps int) error {
	if active := j.state.ActiveMigration; active != nil {
		return fmt.Errorf("%w: %s (started %s, step %d of %d)",
			migration.ErrMigrationInProgress, active.ID,
			active.StartedAt.Format(time.RFC3339), active.CurrentStep, active.TotalSteps)
	}

	now := j.now()
	j.state.ActiveMigration = &ActiveMigration{
		ID:             uuid.NewString(),
		Store:          store,
		StorePath:      path,
		TotalSteps:     totalSteps,
		StepsCompleted: []int{},
		ScratchFiles:   []string{},
		StartedAt:      now,
		LastUpdated:    now,
	}
	return j.save()
}

func (j *Journal) Track(scratchPath string) error {
	active, err := j.active()
	if err != nil {
		return err
	}
	if !slices.Contains(active.ScratchFiles, scratchPath) {
		active.ScratchFiles = append(active.ScratchFiles, scratchPath)
	}
	return j.save()
}

func (j *Journal) Untrack(scratchPath string) error {
	active, err := j.active()
	if err != nil {
		return err
	}
	active.ScratchFiles = slices.DeleteFunc(active.ScratchFiles, func(p string) bool { return p == scratchPath })
	return j.save()
}

// Complete records step as finished. Steps are completed in order.
func (j *Journal) Complete(step int) error {
	active, err := j.active()
	if err != nil {
		return err
	}
	if step != active.CurrentStep+1 {
		return fmt.Errorf("cannot complete step %d: current step is %d", step, active.CurrentStep)
	}
	active.StepsCompleted = append(active.StepsCompleted, step)
	active.CurrentStep = step
	return j.save()
}

// End clears the active migration and removes the journal file.
func (j *Journal) End() error {
	j.state.ActiveMigration = nil
	return j.save()
}

func (j *Journal) active() (*ActiveMigration, error) {
	if j.state.ActiveMigration == nil {
		return nil, errors.New("no active migration")
	}
	return j.state.ActiveMigration, nil
}

func (j *Journal) save() error {
	if a := j.state.ActiveMigration; a != nil {
		a.LastUpdated = j.now()
	}
	return j.state.Save(j.path)
}

// Destroyer removes a scratch store. Every migration.Engine is one.
type Destroyer interface {
	DestroyStore(ctx context.Context, path string) error
}

// Recover removes the scratch stores of an interrupted migration and clears
// the journal. The store itself is never touched: a migration only replaces
// it after its last step. Returns the migration that was recovered, or nil
// when none was recorded. Scratch files that cannot be removed stay in the
// journal.
func Recover(ctx context.Context, j *Journal, d Destroyer) (*ActiveMigration, error) {
	active := j.Active()
	if active == nil {
		return nil, nil
	}
	recovered := *active
	recovered.ScratchFiles = slices.Clone(active.ScratchFiles)

	var errs []error
	for _, p := range recovered.ScratchFiles {
		if err := d.DestroyStore(ctx, p); err != nil {
			errs = append(errs, &migration.CleanupError{Path: p, Err: err})
			continue
		}
		if err := j.Untrack(p); err != nil {
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := j.End(); err != nil {
		return nil, err
	}
	return &recovered, nil
}

var _ migration.Journal = (*Journal)(nil)
