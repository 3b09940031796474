package session

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a monitored interview.
type Status int

const (
	StatusActive Status = iota
	StatusCompleted
	StatusTerminated
)

var statusNames = map[Status]string{
	StatusActive:     "active",
	StatusCompleted:  "completed",
	StatusTerminated: "terminated",
}

var statusFromName = map[string]Status{
	"active":     StatusActive,
	"completed":  StatusCompleted,
	"terminated": StatusTerminated,
}

// ParseStatus maps a wire name to its Status.
func ParseStatus(name string) (Status, bool) {
	st, ok := statusFromName[name]
	return st, ok
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := statusFromName[n]; ok {
		*s = v
	}
	return nil
}

// Session is one monitored interview with its running counters and scores.
// Counters only move through Apply while the session is active; the
// integrity score is always re-derivable from SuspiciousEvents alone.
type Session struct {
	ID              string     `json:"id"`
	CandidateName   string     `json:"candidateName"`
	InterviewerName string     `json:"interviewerName,omitempty"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Duration        int64      `json:"duration,omitempty"` // seconds, set on stop

	TotalEvents      int `json:"totalEvents"`
	SuspiciousEvents int `json:"suspiciousEvents"`

	FocusLostCount      int `json:"focusLostCount"`
	FaceAbsentCount     int `json:"faceAbsentCount"`
	MultipleFacesCount  int `json:"multipleFacesCount"`
	PhoneDetectedCount  int `json:"phoneDetectedCount"`
	BookDetectedCount   int `json:"bookDetectedCount"`
	DeviceDetectedCount int `json:"deviceDetectedCount"`
	DrowsinessCount     int `json:"drowsinessCount"`

	IntegrityScore int `json:"integrityScore"`
	FocusScore     int `json:"focusScore"`
}

// Clone returns a deep copy of the Session, duplicating pointer fields so
// the copy can be mutated independently of the original.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	return &c
}

// Active reports whether the session still accepts events.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// KindCount returns the dedicated counter for a suspicious kind. Zero for
// informational kinds.
func (s *Session) KindCount(k Kind) int {
	switch k {
	case KindFocusLost:
		return s.FocusLostCount
	case KindFaceAbsent:
		return s.FaceAbsentCount
	case KindMultipleFaces:
		return s.MultipleFacesCount
	case KindPhoneDetected:
		return s.PhoneDetectedCount
	case KindBookDetected:
		return s.BookDetectedCount
	case KindDeviceDetected:
		return s.DeviceDetectedCount
	case KindDrowsinessDetected:
		return s.DrowsinessCount
	}
	return 0
}
