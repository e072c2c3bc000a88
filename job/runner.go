package job

import (
	"context"
	"time"

	"github.com/oddsmith/arbiter/errors"
	"github.com/oddsmith/arbiter/logger"
)

// run executes one job: create the record (the serialization point),
// signal readiness, run the work unit with a checkpoint, and transition
// to a terminal status. Runs on its own goroutine; errors never reach the
// trigger caller, whose request has already returned.
func (c *Controller) run(kind Kind, source TriggerSource, unit WorkUnit, ready chan<- string) {
	defer c.wg.Done()

	rec, err := c.store.Create(kind, source)
	if err != nil {
		close(ready)
		if errors.IsConflictError(err) {
			// A concurrent trigger won the race; nothing to do.
			c.logger.Debugw("Runner lost creation race", "kind", kind)
			return
		}
		c.logger.Errorw("Failed to create job record", "kind", kind, "error", err)
		return
	}
	ready <- rec.ID

	log := logger.ChildLogger(c.logger, "kind", kind, "job_id", rec.ID, "source", source)
	log.Infow("Job started")
	c.notify(rec.ID)

	err = unit(c.parentCtx, c.checkpoint(rec.ID))
	switch {
	case err == nil:
		if terr := c.store.Transition(rec.ID, StatusCompleted); terr != nil {
			log.Errorw("Failed to mark job completed", "error", terr)
		} else {
			log.Infow("Job completed")
		}
	case isCancelled(err):
		// The control surface already stamped the cancelled status; the
		// runner just stops.
		log.Infow("Job stopped on cancellation")
	case c.parentCtx.Err() != nil:
		// Process shutdown. The record is left running; recovery of a
		// crashed or interrupted run is an external concern.
		log.Warnw("Job interrupted by shutdown", "error", err)
	default:
		if ferr := c.store.Fail(rec.ID, err); ferr != nil {
			log.Errorw("Failed to mark job failed", "error", ferr)
		}
		log.Errorw("Job failed", "error", err)
	}
	c.notify(rec.ID)
}

// checkpoint builds the Checkpoint closure for a record. It re-reads the
// persisted status: cancellation and pausing both travel through the
// store, so cancel commands from another process (CLI against the same
// database) are observed too.
func (c *Controller) checkpoint(id string) Checkpoint {
	return func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rec, err := c.store.Get(id)
			if err != nil {
				// Row gone (administrative purge): stop quietly. Any
				// other store error must surface so the runner marks
				// the job failed instead of leaving the row live.
				if errors.IsNotFoundError(err) {
					return ErrCancelled
				}
				return err
			}

			switch rec.Status {
			case StatusCancelled:
				return ErrCancelled
			case StatusPaused:
				// Block here until resumed or cancelled.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.pausePoll):
				}
			default:
				return nil
			}
		}
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
