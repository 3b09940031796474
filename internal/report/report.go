package report

import (
	"math"
	"time"

	"github.com/proctorhub/backend/internal/session"
)

// Report is the integrity summary returned for a session. Counts come
// from the stored event history rather than the session counters so
// the breakdown always matches the listed events.
type Report struct {
	Session          *session.Session `json:"session"`
	TotalEvents      int              `json:"totalEvents"`
	SuspiciousEvents int              `json:"suspiciousEvents"`
	EventsByKind     map[string]int   `json:"eventsByType"`
	EventsBySeverity map[string]int   `json:"eventsBySeverity"`
	IntegrityScore   int              `json:"integrityScore"`
	IntegrityGrade   string           `json:"integrityGrade"`
	FocusPercentage  float64          `json:"focusPercentage"`
	Recommendations  []string         `json:"recommendations"`
	GeneratedAt      time.Time        `json:"generatedAt"`
}

const (
	recFocus         = "Consider improving focus during interviews - multiple instances of looking away detected"
	recPhone         = "Mobile phone usage detected - ensure no unauthorized devices are present"
	recBook          = "Books or notes detected - verify no unauthorized materials are being used"
	recMultipleFaces = "Multiple faces detected - ensure only the candidate is present during the interview"
	recDrowsiness    = "Drowsiness detected multiple times - consider scheduling interviews at optimal times"
	recClean         = "No significant issues detected - good interview conduct"
)

// Build assembles the report for a session and its full event history.
// now supplies the elapsed-time endpoint for sessions still in
// progress.
func Build(sess *session.Session, events []*session.Event, now time.Time) *Report {
	r := &Report{
		Session:          sess,
		EventsByKind:     make(map[string]int),
		EventsBySeverity: make(map[string]int),
		IntegrityScore:   sess.IntegrityScore,
		IntegrityGrade:   grade(sess.IntegrityScore),
		GeneratedAt:      now.UTC(),
	}

	var focusLostSeconds float64
	for _, ev := range events {
		r.TotalEvents++
		r.EventsByKind[ev.Kind.String()]++
		r.EventsBySeverity[ev.Severity.String()]++
		if ev.Kind.Suspicious() {
			r.SuspiciousEvents++
		}
		if ev.Kind == session.KindFocusLost {
			focusLostSeconds += ev.Duration
		}
	}

	r.FocusPercentage = focusPercentage(sess, focusLostSeconds, now)
	r.Recommendations = recommendations(sess)
	return r
}

// focusPercentage is the share of the session spent looking at the
// screen, derived from accumulated focus_lost durations.
func focusPercentage(sess *session.Session, focusLostSeconds float64, now time.Time) float64 {
	var elapsed float64
	if sess.EndTime != nil {
		elapsed = float64(sess.Duration)
	} else {
		elapsed = now.Sub(sess.StartTime).Seconds()
	}
	if elapsed <= 0 {
		return 100
	}
	pct := 100 - (focusLostSeconds/elapsed)*100
	if pct < 0 {
		pct = 0
	}
	return math.Round(pct*100) / 100
}

func recommendations(sess *session.Session) []string {
	var recs []string
	if sess.FocusLostCount > 5 {
		recs = append(recs, recFocus)
	}
	if sess.PhoneDetectedCount > 0 {
		recs = append(recs, recPhone)
	}
	if sess.BookDetectedCount > 0 {
		recs = append(recs, recBook)
	}
	if sess.MultipleFacesCount > 0 {
		recs = append(recs, recMultipleFaces)
	}
	if sess.DrowsinessCount > 3 {
		recs = append(recs, recDrowsiness)
	}
	if len(recs) == 0 {
		recs = append(recs, recClean)
	}
	return recs
}

// Summary is the per-session row in the reports listing.
type Summary struct {
	SessionID        string `json:"sessionId"`
	CandidateName    string `json:"candidateName"`
	Status           string `json:"status"`
	StartTime        string `json:"startTime"`
	DurationSeconds  int64  `json:"durationSeconds"`
	TotalEvents      int    `json:"totalEvents"`
	SuspiciousEvents int    `json:"suspiciousEvents"`
	IntegrityScore   int    `json:"integrityScore"`
	IntegrityGrade   string `json:"integrityGrade"`
	FocusScore       int    `json:"focusScore"`
}

// Summarize builds the listing row for one session.
func Summarize(sess *session.Session) Summary {
	return Summary{
		SessionID:        sess.ID,
		CandidateName:    sess.CandidateName,
		Status:           sess.Status.String(),
		StartTime:        sess.StartTime.UTC().Format(time.RFC3339),
		DurationSeconds:  sess.Duration,
		TotalEvents:      sess.TotalEvents,
		SuspiciousEvents: sess.SuspiciousEvents,
		IntegrityScore:   sess.IntegrityScore,
		IntegrityGrade:   grade(sess.IntegrityScore),
		FocusScore:       sess.FocusScore,
	}
}

func grade(score int) string {
	switch {
	case score >= 80:
		return "Good"
	case score >= 60:
		return "Fair"
	default:
		return "Poor"
	}
}
