package job

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/oddsmith/arbiter/errors"
)

// Store handles persistence of job records.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ConflictError reports the live job that blocked a new trigger. The
// caller is told which job is already running rather than simply "busy".
type ConflictError struct {
	Kind       Kind
	ExistingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a %s job is already active: %s", e.Kind, e.ExistingID)
}

const recordColumns = `id, kind, status, trigger_source, error, started_at, paused_at, completed_at, created_at, updated_at`

// Create inserts a new record with status running and startedAt = now.
//
// The jobs_one_live_per_kind unique index is the serialization point for
// concurrent triggers of the same kind: the loser of the race gets a
// constraint violation, which is mapped to a ConflictError carrying the
// winner's id.
func (s *Store) Create(kind Kind, source TriggerSource) (*Record, error) {
	if !kind.Valid() {
		return nil, errors.Mark(errors.Newf("unknown job kind: %s", kind), errors.ErrInvalidRequest)
	}

	now := time.Now().UTC()
	rec := &Record{
		ID:            "job_" + uuid.NewString(),
		Kind:          kind,
		Status:        StatusRunning,
		TriggerSource: source,
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		INSERT INTO jobs (id, kind, status, trigger_source, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		rec.ID, rec.Kind, rec.Status, rec.TriggerSource,
		rec.StartedAt, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, s.conflictFor(kind, err)
		}
		return nil, errors.Wrapf(err, "failed to create %s job", kind)
	}

	return rec, nil
}

// conflictFor builds the ConflictError for a kind whose live slot is taken.
// The live row can disappear between the failed insert and this read; the
// conflict still stands, just without an id to report.
func (s *Store) conflictFor(kind Kind, cause error) error {
	conflict := &ConflictError{Kind: kind}
	if existing, err := s.FindActive(kind); err == nil && existing != nil {
		conflict.ExistingID = existing.ID
	}
	return errors.Mark(errors.WithSecondaryError(conflict, cause), errors.ErrConflict)
}

// FindActive returns the unique live (running or paused) record for the
// kind, or nil when none exists. The partial unique index guarantees at
// most one such row.
func (s *Store) FindActive(kind Kind) (*Record, error) {
	return s.findByStatus(kind, []Status{StatusRunning, StatusPaused})
}

// FindRunning returns the record with status exactly running for the kind,
// or nil. Pause eligibility is status running, not merely live.
func (s *Store) FindRunning(kind Kind) (*Record, error) {
	return s.findByStatus(kind, []Status{StatusRunning})
}

// FindPaused returns the record with status exactly paused for the kind, or nil.
func (s *Store) FindPaused(kind Kind) (*Record, error) {
	return s.findByStatus(kind, []Status{StatusPaused})
}

func (s *Store) findByStatus(kind Kind, statuses []Status) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs WHERE kind = ? AND status IN (?`
	args := []interface{}{kind, statuses[0]}
	for _, st := range statuses[1:] {
		query += `, ?`
		args = append(args, st)
	}
	query += `) ORDER BY created_at DESC LIMIT 1`

	rec, err := s.scanOne(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // no active job is not an error
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to find active %s job", kind)
	}
	return rec, nil
}

// Get retrieves a record by ID.
func (s *Store) Get(id string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs WHERE id = ?`
	rec, err := s.scanOne(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Mark(errors.Newf("job not found: %s", id), errors.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}
	return rec, nil
}

// Transition updates a record's status and stamps the matching timestamp:
// paused_at on pause, completed_at on any terminal status, nothing on
// resume. Timestamps are stamped once and never reset.
//
// Succeeds silently when the row no longer exists (late-arriving cancel
// after a purge) and leaves terminal records untouched: a finished job
// cannot be revived and a cancelled job cannot be overwritten by the
// runner's own completion.
func (s *Store) Transition(id string, newStatus Status) error {
	now := time.Now().UTC()

	var query string
	var args []interface{}
	switch {
	case newStatus == StatusPaused:
		query = `UPDATE jobs SET status = ?, paused_at = COALESCE(paused_at, ?), updated_at = ?
		         WHERE id = ? AND status IN ('running', 'paused')`
		args = []interface{}{newStatus, now, now, id}
	case newStatus.Terminal():
		query = `UPDATE jobs SET status = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
		         WHERE id = ? AND status IN ('running', 'paused')`
		args = []interface{}{newStatus, now, now, id}
	case newStatus == StatusRunning:
		query = `UPDATE jobs SET status = ?, updated_at = ?
		         WHERE id = ? AND status IN ('running', 'paused')`
		args = []interface{}{newStatus, now, id}
	default:
		return errors.Mark(errors.Newf("invalid transition target: %s", newStatus), errors.ErrInvalidRequest)
	}

	_, err := s.db.Exec(query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to transition job %s to %s", id, newStatus)
	}
	return nil
}

// Fail marks a record failed and stores the work unit's error text.
// Guarded the same way as Transition.
func (s *Store) Fail(id string, jobErr error) error {
	now := time.Now().UTC()
	query := `UPDATE jobs SET status = ?, error = ?, completed_at = COALESCE(completed_at, ?), updated_at = ?
	          WHERE id = ? AND status IN ('running', 'paused')`
	if _, err := s.db.Exec(query, StatusFailed, jobErr.Error(), now, now, id); err != nil {
		return errors.Wrapf(err, "failed to mark job %s as failed", id)
	}
	return nil
}

// List returns records, optionally filtered by status, newest first.
func (s *Store) List(status *Status, limit int) ([]*Record, error) {
	var query string
	var args []interface{}

	base := `SELECT ` + recordColumns + ` FROM jobs`
	if status != nil {
		query = base + ` WHERE status = ? ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{*status, limit}
	} else {
		query = base + ` ORDER BY created_at DESC LIMIT ?`
		args = []interface{}{limit}
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}
	defer rows.Close()

	var recs []*Record
	for rows.Next() {
		rec, err := s.scanRecord(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating jobs")
	}
	return recs, nil
}

// CleanupOld removes terminal records older than the given duration and
// returns how many were deleted. Live records are never touched.
func (s *Store) CleanupOld(olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	query := `DELETE FROM jobs
	          WHERE status IN ('cancelled', 'completed', 'failed') AND updated_at < ?`
	result, err := s.db.Exec(query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to cleanup old jobs")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return int(rows), nil
}

type scanFunc func(dest ...interface{}) error

func (s *Store) scanOne(row *sql.Row) (*Record, error) {
	return s.scanRecord(row.Scan)
}

func (s *Store) scanRecord(scan scanFunc) (*Record, error) {
	var rec Record
	var errMsg sql.NullString
	var startedAt, pausedAt, completedAt sql.NullTime

	if err := scan(
		&rec.ID, &rec.Kind, &rec.Status, &rec.TriggerSource,
		&errMsg, &startedAt, &pausedAt, &completedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if errMsg.Valid {
		rec.Error = errMsg.String
	}
	if startedAt.Valid {
		rec.StartedAt = startedAt.Time
	}
	if pausedAt.Valid {
		rec.PausedAt = &pausedAt.Time
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
