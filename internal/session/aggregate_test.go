package session

import (
	"testing"
	"time"
)

func TestIntegrityScore(t *testing.T) {
	tests := []struct {
		suspicious int
		want       int
	}{
		{0, 100},
		{1, 98},
		{3, 94},
		{50, 0},
		{51, 0},
		{1000, 0},
	}
	for _, tt := range tests {
		if got := IntegrityScore(tt.suspicious); got != tt.want {
			t.Errorf("IntegrityScore(%d) = %d, want %d", tt.suspicious, got, tt.want)
		}
	}
}

func TestApplySuspicious(t *testing.T) {
	s := &Session{IntegrityScore: 100}

	s.Apply(KindPhoneDetected)
	s.Apply(KindFocusLost)
	s.Apply(KindFocusLost)

	if s.TotalEvents != 3 {
		t.Errorf("TotalEvents = %d, want 3", s.TotalEvents)
	}
	if s.SuspiciousEvents != 3 {
		t.Errorf("SuspiciousEvents = %d, want 3", s.SuspiciousEvents)
	}
	if s.PhoneDetectedCount != 1 {
		t.Errorf("PhoneDetectedCount = %d, want 1", s.PhoneDetectedCount)
	}
	if s.FocusLostCount != 2 {
		t.Errorf("FocusLostCount = %d, want 2", s.FocusLostCount)
	}
	if s.IntegrityScore != 94 {
		t.Errorf("IntegrityScore = %d, want 94", s.IntegrityScore)
	}
}

func TestApplyInformational(t *testing.T) {
	s := &Session{IntegrityScore: 100}

	s.Apply(KindSessionStart)
	s.Apply(KindSessionEnd)

	if s.TotalEvents != 2 {
		t.Errorf("TotalEvents = %d, want 2", s.TotalEvents)
	}
	if s.SuspiciousEvents != 0 {
		t.Errorf("SuspiciousEvents = %d, want 0", s.SuspiciousEvents)
	}
	if s.IntegrityScore != 100 {
		t.Errorf("IntegrityScore = %d, want 100", s.IntegrityScore)
	}
}

func TestApplyFloorsAtZero(t *testing.T) {
	s := &Session{IntegrityScore: 100}
	for i := 0; i < 60; i++ {
		s.Apply(KindFaceAbsent)
	}
	if s.IntegrityScore != 0 {
		t.Errorf("IntegrityScore = %d, want 0", s.IntegrityScore)
	}
	if s.FaceAbsentCount != 60 {
		t.Errorf("FaceAbsentCount = %d, want 60", s.FaceAbsentCount)
	}
}

// Score must always match the counter, no matter the ingestion order.
func TestApplyScoreMatchesCounterAfterEveryStep(t *testing.T) {
	kinds := []Kind{
		KindFocusLost, KindSessionStart, KindPhoneDetected, KindBookDetected,
		KindDrowsinessDetected, KindMultipleFaces, KindSessionEnd,
		KindDeviceDetected, KindFaceAbsent, KindFocusLost,
	}
	s := &Session{IntegrityScore: 100}
	for i, k := range kinds {
		s.Apply(k)
		if s.IntegrityScore != IntegrityScore(s.SuspiciousEvents) {
			t.Fatalf("step %d (%v): score %d does not match counter %d",
				i, k, s.IntegrityScore, s.SuspiciousEvents)
		}
	}
}

func TestKindCount(t *testing.T) {
	s := &Session{}
	s.Apply(KindBookDetected)
	s.Apply(KindBookDetected)
	s.Apply(KindDeviceDetected)

	if got := s.KindCount(KindBookDetected); got != 2 {
		t.Errorf("KindCount(book_detected) = %d, want 2", got)
	}
	if got := s.KindCount(KindDeviceDetected); got != 1 {
		t.Errorf("KindCount(device_detected) = %d, want 1", got)
	}
	if got := s.KindCount(KindSessionStart); got != 0 {
		t.Errorf("KindCount(session_start) = %d, want 0", got)
	}
}

func TestSessionCloneIndependence(t *testing.T) {
	end := time.Now()
	s := &Session{ID: "a", CandidateName: "Alice", EndTime: &end}

	c := s.Clone()
	c.CandidateName = "Bob"
	*c.EndTime = end.Add(time.Hour)

	if s.CandidateName != "Alice" {
		t.Error("Clone did not copy value fields")
	}
	if !s.EndTime.Equal(end) {
		t.Error("Clone shared EndTime pointer with original")
	}
}
