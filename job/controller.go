package job

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/config"
	"github.com/oddsmith/arbiter/errors"
)

// WorkUnit is the externally supplied function performing the actual
// domain task for a job. It must call cp at safe points; cp returns
// ErrCancelled once an external cancel has been observed.
type WorkUnit func(ctx context.Context, cp Checkpoint) error

// Checkpoint is invoked by a work unit between units of work. It blocks
// while the job is paused, returns ErrCancelled when the job has been
// cancelled, and returns the context error on process shutdown.
type Checkpoint func(ctx context.Context) error

// ErrCancelled is returned by a Checkpoint once cancellation is observed.
// Work units propagate it to stop; the runner treats it as a clean stop,
// not a failure.
var ErrCancelled = errors.New("job cancelled")

// Broadcaster receives job record updates for push notification (WS).
type Broadcaster interface {
	BroadcastJobUpdate(rec *Record)
}

// Controller is the parameterized orchestration over Store and runners:
// one implementation for every job kind, specialized only by the kind's
// registered work unit and its pause capability.
type Controller struct {
	store       *Store
	logger      *zap.SugaredLogger
	triggerWait time.Duration
	pausePoll   time.Duration

	parentCtx context.Context

	mu          sync.RWMutex
	units       map[Kind]WorkUnit
	broadcaster Broadcaster

	wg sync.WaitGroup
}

// NewController creates a controller over the given database. parentCtx
// bounds all runners: cancelling it (process shutdown) stops work units
// at their next checkpoint.
func NewController(parentCtx context.Context, db *sql.DB, cfg config.JobsConfig, logger *zap.SugaredLogger) *Controller {
	triggerWait := time.Duration(cfg.TriggerWaitMs) * time.Millisecond
	if triggerWait <= 0 {
		triggerWait = 500 * time.Millisecond
	}
	pausePoll := time.Duration(cfg.PausePollMs) * time.Millisecond
	if pausePoll <= 0 {
		pausePoll = 250 * time.Millisecond
	}

	return &Controller{
		store:       NewStore(db),
		logger:      logger.Named("jobs"),
		triggerWait: triggerWait,
		pausePoll:   pausePoll,
		parentCtx:   parentCtx,
		units:       make(map[Kind]WorkUnit),
	}
}

// Register binds a work unit to a kind. Must be called before Trigger.
func (c *Controller) Register(kind Kind, unit WorkUnit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[kind] = unit
}

// SetBroadcaster wires an optional push channel for record updates.
func (c *Controller) SetBroadcaster(b Broadcaster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcaster = b
}

// Store exposes the underlying job store (status reads, CLI listing).
func (c *Controller) Store() *Store {
	return c.store
}

// Trigger starts a job of the given kind asynchronously. It returns the
// new record's id when the runner creates it within the trigger wait
// window, or an empty id when creation is slower. The id is advisory
// and callers must poll for it separately.
//
// Returns a ConflictError (marked errors.ErrConflict) naming the live
// job when one already exists for the kind.
func (c *Controller) Trigger(ctx context.Context, kind Kind, source TriggerSource) (string, error) {
	if !kind.Valid() {
		return "", errors.Mark(errors.Newf("unknown job kind: %s", kind), errors.ErrInvalidRequest)
	}

	c.mu.RLock()
	unit, ok := c.units[kind]
	c.mu.RUnlock()
	if !ok {
		return "", errors.Mark(errors.Newf("no work unit registered for kind: %s", kind), errors.ErrInvalidRequest)
	}

	// Advisory pre-check so a blocked trigger reports the live job's id
	// without paying for an insert. The store's unique index remains the
	// actual serialization point for concurrent triggers.
	if existing, err := c.store.FindActive(kind); err != nil {
		return "", errors.Wrapf(err, "failed to check active %s job", kind)
	} else if existing != nil {
		return "", errors.Mark(&ConflictError{Kind: kind, ExistingID: existing.ID}, errors.ErrConflict)
	}

	// The runner resolves ready the instant its record is written, so the
	// common case returns the id without sleeping a fixed grace period.
	ready := make(chan string, 1)

	c.wg.Add(1)
	go c.run(kind, source, unit, ready)

	select {
	case id, ok := <-ready:
		if !ok {
			// Runner lost the creation race to a concurrent trigger.
			if existing, ferr := c.store.FindActive(kind); ferr == nil && existing != nil {
				return "", errors.Mark(&ConflictError{Kind: kind, ExistingID: existing.ID}, errors.ErrConflict)
			}
			return "", errors.Mark(&ConflictError{Kind: kind}, errors.ErrConflict)
		}
		return id, nil
	case <-time.After(c.triggerWait):
		return "", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cancel marks the live record of the kind cancelled. The runner observes
// the flip at its next checkpoint; cancellation is cooperative, never a
// forced interrupt.
func (c *Controller) Cancel(ctx context.Context, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", errors.Mark(errors.Newf("unknown job kind: %s", kind), errors.ErrInvalidRequest)
	}

	rec, err := c.store.FindActive(kind)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find active %s job", kind)
	}
	if rec == nil {
		return "", errors.Mark(errors.Newf("no active %s job to cancel", kind), errors.ErrNotFound)
	}

	if err := c.store.Transition(rec.ID, StatusCancelled); err != nil {
		return "", err
	}

	c.logger.Infow("Job cancelled", "kind", kind, "job_id", rec.ID)
	c.notify(rec.ID)
	return rec.ID, nil
}

// Pause suspends the running record of a pause-capable kind. Kinds that
// do not support pausing reject the request rather than ignoring it.
func (c *Controller) Pause(ctx context.Context, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", errors.Mark(errors.Newf("unknown job kind: %s", kind), errors.ErrInvalidRequest)
	}
	if !kind.SupportsPause() {
		return "", errors.Mark(errors.Newf("%s jobs do not support pause", kind), errors.ErrUnsupported)
	}

	rec, err := c.store.FindRunning(kind)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find running %s job", kind)
	}
	if rec == nil {
		return "", errors.Mark(errors.Newf("no running %s job to pause", kind), errors.ErrNotFound)
	}

	if err := c.store.Transition(rec.ID, StatusPaused); err != nil {
		return "", err
	}

	c.logger.Infow("Job paused", "kind", kind, "job_id", rec.ID)
	c.notify(rec.ID)
	return rec.ID, nil
}

// Resume returns a paused record of the kind to running.
func (c *Controller) Resume(ctx context.Context, kind Kind) (string, error) {
	if !kind.Valid() {
		return "", errors.Mark(errors.Newf("unknown job kind: %s", kind), errors.ErrInvalidRequest)
	}
	if !kind.SupportsPause() {
		return "", errors.Mark(errors.Newf("%s jobs do not support resume", kind), errors.ErrUnsupported)
	}

	rec, err := c.store.FindPaused(kind)
	if err != nil {
		return "", errors.Wrapf(err, "failed to find paused %s job", kind)
	}
	if rec == nil {
		return "", errors.Mark(errors.Newf("no paused %s job to resume", kind), errors.ErrNotFound)
	}

	if err := c.store.Transition(rec.ID, StatusRunning); err != nil {
		return "", err
	}

	c.logger.Infow("Job resumed", "kind", kind, "job_id", rec.ID)
	c.notify(rec.ID)
	return rec.ID, nil
}

// Active returns the live record for the kind, or nil.
func (c *Controller) Active(kind Kind) (*Record, error) {
	return c.store.FindActive(kind)
}

// Wait blocks until all launched runners have returned. Used on shutdown
// after cancelling the parent context.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// notify re-reads the record and pushes it to the broadcaster, if any.
func (c *Controller) notify(id string) {
	c.mu.RLock()
	b := c.broadcaster
	c.mu.RUnlock()
	if b == nil {
		return
	}
	rec, err := c.store.Get(id)
	if err != nil {
		return
	}
	b.BroadcastJobUpdate(rec)
}
