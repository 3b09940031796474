// Package proctor orchestrates session lifecycle and event ingestion over
// the store, and hands stored events to the alert fan-out.
package proctor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/proctorhub/backend/internal/metrics"
	"github.com/proctorhub/backend/internal/session"
	"github.com/proctorhub/backend/internal/store"
)

// AlertSink receives each successfully stored event for live fan-out.
// Publish must not block; failures are the sink's to log. The live stream
// is best-effort; the store remains the system of record.
type AlertSink interface {
	Publish(ev *session.Event)
}

// Service is the ingestion and lifecycle front for proctoring sessions.
type Service struct {
	store  *store.Store
	alerts AlertSink // nil disables live alerts
	now    func() time.Time

	mu       sync.Mutex
	dispatch map[string]*sync.Mutex // per-session publish ordering
}

func New(st *store.Store, alerts AlertSink) *Service {
	return &Service{
		store:    st,
		alerts:   alerts,
		now:      time.Now,
		dispatch: make(map[string]*sync.Mutex),
	}
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// dispatchLock serializes the append+publish pair for one session so the
// live stream sees events in ingestion order. Different sessions never
// contend.
func (s *Service) dispatchLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.dispatch[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.dispatch[sessionID] = l
	}
	return l
}

// StartSession opens a new active session and records its session_start
// event. candidateName is required.
func (s *Service) StartSession(ctx context.Context, candidateName, interviewerName string) (*session.Session, error) {
	if candidateName == "" {
		return nil, fmt.Errorf("candidate name is required: %w", session.ErrInvalidArgument)
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	sess := &session.Session{
		ID:              uuid.NewString(),
		CandidateName:   candidateName,
		InterviewerName: interviewerName,
		Status:          session.StatusActive,
		StartTime:       now,
		IntegrityScore:  100,
		FocusScore:      100,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	updated, err := s.store.AppendEvent(ctx, &session.Event{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Kind:        session.KindSessionStart,
		Severity:    session.SeverityLow,
		Timestamp:   now,
		Description: fmt.Sprintf("Proctoring session started for %s", candidateName),
	})
	if err != nil {
		return nil, fmt.Errorf("record session start: %w", err)
	}
	metrics.SessionsStarted.Inc()
	return updated, nil
}

// StopSession completes an active session, recording the session_end event
// atomically with the close. Unknown ids fail NotFound; a second stop (or
// one racing a concurrent stop) fails InvalidState.
func (s *Service) StopSession(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required: %w", session.ErrInvalidArgument)
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	stopped, err := s.store.StopSession(ctx, id, s.now(), &session.Event{
		ID:          uuid.NewString(),
		SessionID:   id,
		Kind:        session.KindSessionEnd,
		Severity:    session.SeverityLow,
		Description: fmt.Sprintf("Proctoring session completed for %s", sess.CandidateName),
	})
	if err != nil {
		return nil, err
	}
	metrics.SessionsClosed.WithLabelValues(session.StatusCompleted.String()).Inc()
	return stopped, nil
}

// TerminateSession closes a session abnormally (observer disconnect,
// operator kill). Same preconditions as StopSession.
func (s *Service) TerminateSession(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required: %w", session.ErrInvalidArgument)
	}
	sess, err := s.store.TerminateSession(ctx, id, s.now(), nil)
	if err != nil {
		return nil, err
	}
	metrics.SessionsClosed.WithLabelValues(session.StatusTerminated.String()).Inc()
	return sess, nil
}

// EventInput is a proposed event from a client or detector. SessionID and
// Kind are required; Severity defaults to the kind's severity when empty.
// Any client-supplied timestamp is ignored; the server clock is
// authoritative.
type EventInput struct {
	SessionID   string
	Kind        string
	Severity    string
	Duration    float64
	Confidence  float64
	Description string
	Coordinates *session.Coordinates
}

// LogEvent validates, stores, and fans out one event. The caller is
// answered as soon as the event is durably stored; alert dispatch failures
// are logged, never surfaced. A rejected call leaves the session's
// counters untouched.
func (s *Service) LogEvent(ctx context.Context, in EventInput) (*session.Event, error) {
	ev, err := s.buildEvent(in)
	if err != nil {
		metrics.EventsRejected.WithLabelValues("invalid_argument").Inc()
		return nil, err
	}

	lock := s.dispatchLock(in.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.AppendEvent(ctx, ev); err != nil {
		metrics.EventsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	metrics.EventsIngested.WithLabelValues(ev.Kind.String()).Inc()
	s.publish(ev)
	return ev, nil
}

func (s *Service) buildEvent(in EventInput) (*session.Event, error) {
	if in.SessionID == "" {
		return nil, fmt.Errorf("session id is required: %w", session.ErrInvalidArgument)
	}
	if in.Kind == "" {
		return nil, fmt.Errorf("event kind is required: %w", session.ErrInvalidArgument)
	}
	kind, ok := session.ParseKind(in.Kind)
	if !ok {
		return nil, fmt.Errorf("unrecognized event kind %q: %w", in.Kind, session.ErrInvalidArgument)
	}

	severity := kind.DefaultSeverity()
	if in.Severity != "" {
		sv, ok := session.ParseSeverity(in.Severity)
		if !ok {
			return nil, fmt.Errorf("unrecognized severity %q: %w", in.Severity, session.ErrInvalidArgument)
		}
		severity = sv
	}
	if in.Confidence < 0 || in.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range: %w", in.Confidence, session.ErrInvalidArgument)
	}

	return &session.Event{
		ID:          uuid.NewString(),
		SessionID:   in.SessionID,
		Kind:        kind,
		Severity:    severity,
		Timestamp:   s.now().UTC().Truncate(time.Millisecond),
		Duration:    in.Duration,
		Confidence:  in.Confidence,
		Description: in.Description,
		Coordinates: in.Coordinates,
	}, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "unknown_session"
	case errors.Is(err, session.ErrInvalidState):
		return "session_closed"
	default:
		return "storage"
	}
}

// publish hands a stored event to the alert sink. Isolated so a panicking
// sink can never fail an ingestion that already committed.
func (s *Service) publish(ev *session.Event) {
	if s.alerts == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alert dispatch panic for event %s: %v", ev.ID, r)
		}
	}()
	s.alerts.Publish(ev.Clone())
}

// GetSession returns a session with its full ordered event history.
func (s *Service) GetSession(ctx context.Context, id string) (*session.Session, []*session.Event, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.store.AllSessionEvents(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return sess, events, nil
}

// ListSessions pages through sessions, optionally filtered by status and
// candidate-name substring.
func (s *Service) ListSessions(ctx context.Context, f store.ListFilter) ([]*session.Session, int, error) {
	return s.store.ListSessions(ctx, f)
}

// EventStats rolls one session's events up by kind and severity.
func (s *Service) EventStats(ctx context.Context, sessionID string) (*store.EventStats, error) {
	return s.store.SessionEventStats(ctx, sessionID)
}

// SessionEvents pages through one session's events.
func (s *Service) SessionEvents(ctx context.Context, sessionID string, f store.EventFilter) ([]*session.Event, int, error) {
	return s.store.SessionEvents(ctx, sessionID, f)
}

// ResolveEvent marks an event reviewed.
func (s *Service) ResolveEvent(ctx context.Context, eventID string) (*session.Event, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required: %w", session.ErrInvalidArgument)
	}
	return s.store.ResolveEvent(ctx, eventID)
}

// SetScores applies a manual focus/integrity score override.
func (s *Service) SetScores(ctx context.Context, id string, focus, integrity *int) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required: %w", session.ErrInvalidArgument)
	}
	if focus == nil && integrity == nil {
		return nil, fmt.Errorf("no score provided: %w", session.ErrInvalidArgument)
	}
	return s.store.SetScores(ctx, id, focus, integrity)
}
