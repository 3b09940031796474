package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/proctorhub/backend/internal/session"
)

const sessionColumns = `id, candidate_name, interviewer_name, status, start_time,
	end_time, duration, total_events, suspicious_events, focus_lost_count,
	face_absent_count, multiple_faces_count, phone_detected_count,
	book_detected_count, device_detected_count, drowsiness_count,
	integrity_score, focus_score`

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CandidateName, sess.InterviewerName, sess.Status.String(),
		toMillis(sess.StartTime), nullMillis(sess.EndTime), sess.Duration,
		sess.TotalEvents, sess.SuspiciousEvents, sess.FocusLostCount,
		sess.FaceAbsentCount, sess.MultipleFacesCount, sess.PhoneDetectedCount,
		sess.BookDetectedCount, sess.DeviceDetectedCount, sess.DrowsinessCount,
		sess.IntegrityScore, sess.FocusScore,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads one session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListFilter narrows and pages ListSessions results.
type ListFilter struct {
	Status    *session.Status
	Candidate string // substring match on candidate_name
	Page      int    // 1-based; 0 means first page
	Limit     int    // 0 means default of 10
}

func (f ListFilter) pageLimit() (offset, limit int) {
	limit = f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return (page - 1) * limit, limit
}

// ListSessions returns a page of sessions, newest first, plus the total
// count matching the filter.
func (s *Store) ListSessions(ctx context.Context, f ListFilter) ([]*session.Session, int, error) {
	var conds []string
	var args []any
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, f.Status.String())
	}
	if f.Candidate != "" {
		conds = append(conds, "candidate_name LIKE ?")
		args = append(args, "%"+f.Candidate+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	offset, limit := f.pageLimit()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions`+where+
			` ORDER BY start_time DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var result []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, sess)
	}
	return result, total, rows.Err()
}

// StopSession completes an active session, stamping end time and duration.
// A non-nil endEvent (the informational session_end record) is stored and
// folded into the counters inside the same transaction, so a stop either
// lands completely or not at all. Returns ErrNotFound for unknown ids and
// ErrInvalidState when the session is not active; an ingest or stop losing
// a race against a concurrent stop reports the same.
func (s *Store) StopSession(ctx context.Context, id string, now time.Time, endEvent *session.Event) (*session.Session, error) {
	return s.closeSession(ctx, id, now, session.StatusCompleted, endEvent)
}

// TerminateSession closes a session abnormally. Same preconditions as
// StopSession; status lands on terminated.
func (s *Store) TerminateSession(ctx context.Context, id string, now time.Time, endEvent *session.Event) (*session.Session, error) {
	return s.closeSession(ctx, id, now, session.StatusTerminated, endEvent)
}

func (s *Store) closeSession(ctx context.Context, id string, now time.Time, final session.Status, endEvent *session.Event) (*session.Session, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s is %s: %w", id, sess.Status, session.ErrInvalidState)
	}

	// Millisecond precision matches what the row stores, so the returned
	// snapshot equals a later re-read.
	end := now.UTC().Truncate(time.Millisecond)
	sess.EndTime = &end
	sess.Duration = int64(end.Sub(sess.StartTime).Seconds())
	if sess.Duration < 0 {
		sess.Duration = 0
	}
	sess.Status = final

	if endEvent != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (`+eventColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			endEvent.ID, id, endEvent.Kind.String(), endEvent.Severity.String(),
			toMillis(end), endEvent.Duration, endEvent.Confidence,
			endEvent.Description, nil, nil, endEvent.Resolved,
		); err != nil {
			return nil, fmt.Errorf("insert end event: %w", err)
		}
		sess.Apply(endEvent.Kind)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET
			status = ?, end_time = ?, duration = ?,
			total_events = ?, suspicious_events = ?, integrity_score = ?
		WHERE id = ?`,
		final.String(), toMillis(end), sess.Duration,
		sess.TotalEvents, sess.SuspiciousEvents, sess.IntegrityScore, id,
	); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

// SetScores applies a manual override of the focus and/or integrity score.
// Nil leaves a score untouched. This is the only write path that sets the
// integrity score to anything other than the derived value.
func (s *Store) SetScores(ctx context.Context, id string, focus, integrity *int) (*session.Session, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if focus != nil {
		sess.FocusScore = clampScore(*focus)
	}
	if integrity != nil {
		sess.IntegrityScore = clampScore(*integrity)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET focus_score = ?, integrity_score = ? WHERE id = ?`,
		sess.FocusScore, sess.IntegrityScore, id); err != nil {
		return nil, fmt.Errorf("update scores: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var sess session.Session
	var status string
	var start int64
	var end sql.NullInt64
	err := row.Scan(
		&sess.ID, &sess.CandidateName, &sess.InterviewerName, &status, &start,
		&end, &sess.Duration, &sess.TotalEvents, &sess.SuspiciousEvents,
		&sess.FocusLostCount, &sess.FaceAbsentCount, &sess.MultipleFacesCount,
		&sess.PhoneDetectedCount, &sess.BookDetectedCount,
		&sess.DeviceDetectedCount, &sess.DrowsinessCount,
		&sess.IntegrityScore, &sess.FocusScore,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", session.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if st, ok := session.ParseStatus(status); ok {
		sess.Status = st
	}
	sess.StartTime = fromMillis(start)
	if end.Valid {
		t := fromMillis(end.Int64)
		sess.EndTime = &t
	}
	return &sess, nil
}
