package migration

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Journal records an active migration and its live scratch stores so an
// interrupted run can be cleaned up later. Begin must fail with an error
// wrapping ErrMigrationInProgress when a migration of the same store is
// already recorded.
type Journal interface {
	Begin(store, path string, totalSteps int) error
	Track(scratchPath string) error
	Untrack(scratchPath string) error
	Complete(step int) error
	End() error
}

// Option configures planning and execution.
type Option func(*options)

type options struct {
	logger     logrus.FieldLogger
	scratchDir string
	journal    Journal
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithScratchDir sets the directory scratch stores are created in. The
// default is os.TempDir().
func WithScratchDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.scratchDir = dir
		}
	}
}

// WithJournal records the migration in j while it runs.
func WithJournal(j Journal) Option {
	return func(o *options) { o.journal = j }
}

func newOptions(opts []Option) options {
	o := options{
		logger:     discardLogger(),
		scratchDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
