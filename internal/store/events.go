package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/proctorhub/backend/internal/session"
)

const eventColumns = `id, session_id, kind, severity, timestamp, duration,
	confidence, description, coord_x, coord_y, resolved`

// AppendEvent stores one event and folds it into the owning session's
// counters inside a single transaction. The write is all-or-nothing: a
// rejected event never moves a counter. Returns the updated session
// snapshot alongside nil error.
//
// Rejections: ErrNotFound for an unknown session, ErrInvalidState when the
// session is no longer active (including an ingest that loses a race
// against stop).
func (s *Store) AppendEvent(ctx context.Context, ev *session.Event) (*session.Session, error) {
	lock := s.lockFor(ev.SessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, ev.SessionID))
	if err != nil {
		return nil, err
	}
	if !sess.Active() {
		return nil, fmt.Errorf("session %s is %s: %w", ev.SessionID, sess.Status, session.ErrInvalidState)
	}

	var cx, cy any
	if ev.Coordinates != nil {
		cx, cy = ev.Coordinates.X, ev.Coordinates.Y
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Kind.String(), ev.Severity.String(),
		toMillis(ev.Timestamp), ev.Duration, ev.Confidence, ev.Description,
		cx, cy, ev.Resolved,
	); err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	sess.Apply(ev.Kind)
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET
			total_events = ?, suspicious_events = ?, focus_lost_count = ?,
			face_absent_count = ?, multiple_faces_count = ?,
			phone_detected_count = ?, book_detected_count = ?,
			device_detected_count = ?, drowsiness_count = ?, integrity_score = ?
		WHERE id = ?`,
		sess.TotalEvents, sess.SuspiciousEvents, sess.FocusLostCount,
		sess.FaceAbsentCount, sess.MultipleFacesCount, sess.PhoneDetectedCount,
		sess.BookDetectedCount, sess.DeviceDetectedCount, sess.DrowsinessCount,
		sess.IntegrityScore, sess.ID,
	); err != nil {
		return nil, fmt.Errorf("update counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sess, nil
}

// EventFilter narrows and pages SessionEvents results.
type EventFilter struct {
	Kind     *session.Kind
	Severity *session.Severity
	Page     int
	Limit    int
}

// SessionEvents returns a page of a session's events in ingestion order,
// plus the total count matching the filter. Unknown sessions yield
// ErrNotFound.
func (s *Store) SessionEvents(ctx context.Context, sessionID string, f EventFilter) ([]*session.Event, int, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return nil, 0, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, 0, fmt.Errorf("session %s: %w", sessionID, session.ErrNotFound)
	}

	conds := []string{"session_id = ?"}
	args := []any{sessionID}
	if f.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind.String())
	}
	if f.Severity != nil {
		conds = append(conds, "severity = ?")
		args = append(args, f.Severity.String())
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events`+where+
			` ORDER BY timestamp ASC, seq ASC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []*session.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, ev)
	}
	return result, total, rows.Err()
}

// KindStat is a per-kind roll-up of one session's events.
type KindStat struct {
	Kind          session.Kind `json:"type"`
	Count         int          `json:"count"`
	AvgConfidence float64      `json:"avgConfidence"`
}

// SeverityStat counts one session's events at one severity.
type SeverityStat struct {
	Severity session.Severity `json:"severity"`
	Count    int              `json:"count"`
}

// EventStats aggregates a session's events by kind and by severity.
type EventStats struct {
	ByType     []KindStat     `json:"byType"`
	BySeverity []SeverityStat `json:"bySeverity"`
}

// SessionEventStats rolls a session's events up per kind (with average
// confidence) and per severity. Unknown sessions yield ErrNotFound.
func (s *Store) SessionEventStats(ctx context.Context, sessionID string) (*EventStats, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, session.ErrNotFound)
	}

	stats := &EventStats{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*), AVG(confidence) FROM events
		WHERE session_id = ? GROUP BY kind ORDER BY kind`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query kind stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var st KindStat
		if err := rows.Scan(&name, &st.Count, &st.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scan kind stats: %w", err)
		}
		if k, ok := session.ParseKind(name); ok {
			st.Kind = k
		}
		stats.ByType = append(stats.ByType, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sevRows, err := s.db.QueryContext(ctx, `
		SELECT severity, COUNT(*) FROM events
		WHERE session_id = ? GROUP BY severity ORDER BY severity`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query severity stats: %w", err)
	}
	defer sevRows.Close()
	for sevRows.Next() {
		var name string
		var st SeverityStat
		if err := sevRows.Scan(&name, &st.Count); err != nil {
			return nil, fmt.Errorf("scan severity stats: %w", err)
		}
		if sv, ok := session.ParseSeverity(name); ok {
			st.Severity = sv
		}
		stats.BySeverity = append(stats.BySeverity, st)
	}
	return stats, sevRows.Err()
}

// AllSessionEvents returns a session's complete event history in ingestion
// order, with no page cap. Unknown sessions yield ErrNotFound.
func (s *Store) AllSessionEvents(ctx context.Context, sessionID string) ([]*session.Event, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("session %s: %w", sessionID, session.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE session_id = ? ORDER BY timestamp ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []*session.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// ResolveEvent marks an event reviewed. The flag is the only mutable field
// on a stored event.
func (s *Store) ResolveEvent(ctx context.Context, eventID string) (*session.Event, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET resolved = 1 WHERE id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolve event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, session.ErrNotFound)
	}
	return s.getEvent(ctx, eventID)
}

func (s *Store) getEvent(ctx context.Context, eventID string) (*session.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", eventID, session.ErrNotFound)
	}
	return ev, err
}

func scanEvent(row rowScanner) (*session.Event, error) {
	var ev session.Event
	var kind, severity string
	var ts int64
	var cx, cy sql.NullInt64
	err := row.Scan(
		&ev.ID, &ev.SessionID, &kind, &severity, &ts, &ev.Duration,
		&ev.Confidence, &ev.Description, &cx, &cy, &ev.Resolved,
	)
	if err != nil {
		return nil, err
	}
	if k, ok := session.ParseKind(kind); ok {
		ev.Kind = k
	}
	if sv, ok := session.ParseSeverity(severity); ok {
		ev.Severity = sv
	}
	ev.Timestamp = fromMillis(ts)
	if cx.Valid && cy.Valid {
		ev.Coordinates = &session.Coordinates{X: int(cx.Int64), Y: int(cy.Int64)}
	}
	return &ev, nil
}
