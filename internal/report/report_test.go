package report

import (
	"strings"
	"testing"
	"time"

	"github.com/proctorhub/backend/internal/session"
)

func completedSession(durationSeconds int64) *session.Session {
	start := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Duration(durationSeconds) * time.Second)
	return &session.Session{
		ID:             "s1",
		CandidateName:  "Alice",
		Status:         session.StatusCompleted,
		StartTime:      start,
		EndTime:        &end,
		Duration:       durationSeconds,
		IntegrityScore: 100,
		FocusScore:     100,
	}
}

func ev(k session.Kind, duration float64) *session.Event {
	return &session.Event{
		ID:        "e-" + k.String(),
		SessionID: "s1",
		Kind:      k,
		Severity:  k.DefaultSeverity(),
		Timestamp: time.Date(2025, 6, 1, 9, 1, 0, 0, time.UTC),
		Duration:  duration,
	}
}

func TestBuildCounts(t *testing.T) {
	sess := completedSession(600)
	sess.IntegrityScore = 94
	events := []*session.Event{
		ev(session.KindSessionStart, 0),
		ev(session.KindPhoneDetected, 0),
		ev(session.KindFocusLost, 6),
		ev(session.KindFocusLost, 8),
		ev(session.KindSessionEnd, 0),
	}

	r := Build(sess, events, time.Now())

	if r.TotalEvents != 5 {
		t.Errorf("TotalEvents = %d, want 5", r.TotalEvents)
	}
	if r.SuspiciousEvents != 3 {
		t.Errorf("SuspiciousEvents = %d, want 3", r.SuspiciousEvents)
	}
	if r.EventsByKind["focus_lost"] != 2 {
		t.Errorf("EventsByKind[focus_lost] = %d, want 2", r.EventsByKind["focus_lost"])
	}
	if r.EventsBySeverity["high"] != 1 {
		t.Errorf("EventsBySeverity[high] = %d, want 1", r.EventsBySeverity["high"])
	}
	if r.IntegrityScore != 94 {
		t.Errorf("IntegrityScore = %d, want 94", r.IntegrityScore)
	}
	if r.IntegrityGrade != "Good" {
		t.Errorf("IntegrityGrade = %q, want Good", r.IntegrityGrade)
	}
}

func TestFocusPercentage(t *testing.T) {
	sess := completedSession(600)
	events := []*session.Event{
		ev(session.KindFocusLost, 45),
		ev(session.KindFocusLost, 15),
	}

	r := Build(sess, events, time.Now())
	if r.FocusPercentage != 90 {
		t.Errorf("FocusPercentage = %v, want 90", r.FocusPercentage)
	}
}

func TestFocusPercentageInProgress(t *testing.T) {
	sess := completedSession(0)
	sess.Status = session.StatusActive
	sess.EndTime = nil
	now := sess.StartTime.Add(200 * time.Second)

	r := Build(sess, []*session.Event{ev(session.KindFocusLost, 50)}, now)
	if r.FocusPercentage != 75 {
		t.Errorf("FocusPercentage = %v, want 75", r.FocusPercentage)
	}
}

func TestFocusPercentageFloor(t *testing.T) {
	sess := completedSession(10)
	r := Build(sess, []*session.Event{ev(session.KindFocusLost, 1000)}, time.Now())
	if r.FocusPercentage != 0 {
		t.Errorf("FocusPercentage = %v, want floor at 0", r.FocusPercentage)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Good"},
		{80, "Good"},
		{79, "Fair"},
		{60, "Fair"},
		{59, "Poor"},
		{0, "Poor"},
	}
	for _, tt := range tests {
		if got := grade(tt.score); got != tt.want {
			t.Errorf("grade(%d) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*session.Session)
		want  []string
	}{
		{
			"clean session",
			func(*session.Session) {},
			[]string{recClean},
		},
		{
			"frequent focus loss",
			func(s *session.Session) { s.FocusLostCount = 6 },
			[]string{recFocus},
		},
		{
			"five focus losses not enough",
			func(s *session.Session) { s.FocusLostCount = 5 },
			[]string{recClean},
		},
		{
			"phone and book",
			func(s *session.Session) {
				s.PhoneDetectedCount = 1
				s.BookDetectedCount = 2
			},
			[]string{recPhone, recBook},
		},
		{
			"multiple faces",
			func(s *session.Session) { s.MultipleFacesCount = 1 },
			[]string{recMultipleFaces},
		},
		{
			"repeated drowsiness",
			func(s *session.Session) { s.DrowsinessCount = 4 },
			[]string{recDrowsiness},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := completedSession(600)
			tt.setup(sess)
			got := recommendations(sess)
			if len(got) != len(tt.want) {
				t.Fatalf("recommendations = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("recommendations[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	sess := completedSession(600)
	sess.TotalEvents = 5
	sess.SuspiciousEvents = 3
	sess.IntegrityScore = 94

	sum := Summarize(sess)
	if sum.SessionID != "s1" || sum.CandidateName != "Alice" {
		t.Errorf("identity fields wrong: %+v", sum)
	}
	if sum.Status != "completed" {
		t.Errorf("Status = %q, want completed", sum.Status)
	}
	if sum.IntegrityGrade != "Good" {
		t.Errorf("IntegrityGrade = %q, want Good", sum.IntegrityGrade)
	}
	if sum.DurationSeconds != 600 || sum.SuspiciousEvents != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestWriteCSV(t *testing.T) {
	events := []*session.Event{
		{
			ID:          "e1",
			Kind:        session.KindPhoneDetected,
			Severity:    session.SeverityHigh,
			Timestamp:   time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC),
			Description: "Mobile phone detected in candidate's environment",
			Confidence:  0.5,
		},
	}

	var sb strings.Builder
	if err := WriteCSV(&sb, events); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header + 1 row:\n%s", len(lines), sb.String())
	}
	if lines[0] != "Timestamp,Event Type,Severity,Description,Confidence" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "phone_detected,high,Mobile phone detected in candidate's environment,0.5") {
		t.Errorf("row = %q", lines[1])
	}
}
