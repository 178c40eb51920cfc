package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PerformMigration runs every step of the plan and replaces the original
// store with the result. The original is not modified unless every step
// succeeds, and every scratch store is removed on every exit path.
//
// Cancellation is coarse: ctx and the progress func are checked between
// steps, never during one. Calling PerformMigration on a nil plan is a no-op.
func (p *Plan) PerformMigration(ctx context.Context, progress ProgressFunc) error {
	if p == nil {
		return nil
	}

	run := &run{
		plan:     p,
		original: p.Descriptor.Path,
		total:    len(p.Steps),
		log: p.opts.logger.WithFields(logrus.Fields{
			"store":  p.Descriptor.Name,
			"engine": p.engine.Name(),
		}),
	}
	return run.perform(ctx, progress)
}

type run struct {
	plan     *Plan
	original string
	total    int
	log      logrus.FieldLogger

	// scratch stores created and not yet destroyed
	live []string
}

func (r *run) perform(ctx context.Context, progress ProgressFunc) error {
	journal := r.plan.opts.journal
	if journal != nil {
		if err := journal.Begin(r.plan.Descriptor.Name, r.original, r.total); err != nil {
			return err
		}
	}

	r.log.WithField("steps", r.total).Info("Starting migration")

	if err := r.plan.engine.CheckpointWAL(ctx, r.original); err != nil {
		return r.fail(ctx, fmt.Errorf("failed to checkpoint %s: %w", r.original, err))
	}

	if err := report(progress, 0, r.total); err != nil {
		return r.fail(ctx, err)
	}

	current := r.original
	for i, step := range r.plan.Steps {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, fmt.Errorf("%w before step %d: %w", ErrCancelled, i+1, err))
		}

		next, err := r.newScratch()
		if err != nil {
			return r.fail(ctx, err)
		}

		log := r.log.WithFields(logrus.Fields{
			"step":        i + 1,
			"source":      step.Source.Version(),
			"destination": step.Destination.Version(),
			"scratch":     next,
		})
		log.Debug("Running migration step")

		// Cancellation takes effect between steps, never inside one.
		if err := r.plan.engine.Migrate(context.WithoutCancel(ctx), step, current, next); err != nil {
			log.WithError(err).Error("Migration step failed")
			return r.fail(ctx, &StepError{
				Index:       i,
				Source:      step.Source.Version(),
				Destination: step.Destination.Version(),
				Err:         err,
			})
		}

		// The previous scratch store has been superseded. The original is
		// never removed here.
		if current != r.original {
			if err := r.destroy(ctx, current); err != nil {
				return r.fail(ctx, err)
			}
		}
		current = next

		if journal != nil {
			if err := journal.Complete(i + 1); err != nil {
				r.log.WithError(err).Warn("Failed to record step in journal")
			}
		}

		if err := report(progress, i+1, r.total); err != nil {
			return r.fail(ctx, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return r.fail(ctx, fmt.Errorf("%w before replacing store: %w", ErrCancelled, err))
	}

	// The replace is the commit point and is not interrupted by ctx.
	if err := r.plan.engine.ReplaceStore(context.WithoutCancel(ctx), r.original, current); err != nil {
		return r.fail(ctx, fmt.Errorf("failed to replace %s: %w", r.original, err))
	}
	r.log.WithField("version", r.plan.Descriptor.Latest()).Info("Store replaced with migrated copy")

	if err := r.destroy(ctx, current); err != nil {
		r.log.WithError(err).Error("Migration succeeded but scratch store could not be removed")
		return err
	}

	if journal != nil {
		if err := journal.End(); err != nil {
			r.log.WithError(err).Warn("Failed to clear migration journal")
		}
	}

	r.log.Info("Migration complete")
	return nil
}

func (r *run) newScratch() (string, error) {
	path := filepath.Join(r.plan.opts.scratchDir, uuid.NewString()+r.plan.engine.Extension())
	if journal := r.plan.opts.journal; journal != nil {
		if err := journal.Track(path); err != nil {
			return "", fmt.Errorf("failed to record scratch store %s: %w", path, err)
		}
	}
	r.live = append(r.live, path)
	return path, nil
}

func (r *run) destroy(ctx context.Context, path string) error {
	if err := r.plan.engine.DestroyStore(context.WithoutCancel(ctx), path); err != nil {
		return &CleanupError{Path: path, Err: err}
	}

	for i, p := range r.live {
		if p == path {
			r.live = append(r.live[:i], r.live[i+1:]...)
			break
		}
	}
	if journal := r.plan.opts.journal; journal != nil {
		if err := journal.Untrack(path); err != nil {
			r.log.WithError(err).WithField("scratch", path).Warn("Failed to update migration journal")
		}
	}
	return nil
}

// fail removes every live scratch store and returns primary. Cleanup
// failures are logged and attached to primary without replacing it.
func (r *run) fail(ctx context.Context, primary error) error {
	var cleanupErrs []error
	for _, path := range append([]string(nil), r.live...) {
		if err := r.destroy(ctx, path); err != nil {
			r.log.WithError(err).WithField("scratch", path).Error("Failed to remove scratch store")
			cleanupErrs = append(cleanupErrs, err)
		}
	}
	cleanupErr := errors.Join(cleanupErrs...)

	if journal := r.plan.opts.journal; journal != nil && cleanupErr == nil {
		if err := journal.End(); err != nil {
			r.log.WithError(err).Warn("Failed to clear migration journal")
		}
	}

	r.log.WithError(primary).Warn("Migration aborted, original store left untouched")

	if cleanupErr == nil {
		return primary
	}

	var stepErr *StepError
	if errors.As(primary, &stepErr) {
		stepErr.Cleanup = cleanupErr
		return stepErr
	}
	return errors.Join(primary, cleanupErr)
}

func report(progress ProgressFunc, step, total int) error {
	if progress == nil {
		return nil
	}
	if err := progress(step, total); err != nil {
		return fmt.Errorf("%w at step %d of %d: %w", ErrCancelled, step, total, err)
	}
	return nil
}
