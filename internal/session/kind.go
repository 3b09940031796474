package session

import "encoding/json"

// Kind identifies what a proctoring event reports. Kinds are stable wire
// values; new kinds append at the end.
type Kind int

const (
	KindUnknown Kind = iota
	KindSessionStart
	KindSessionEnd
	KindFaceAbsent
	KindFocusLost
	KindMultipleFaces
	KindPhoneDetected
	KindBookDetected
	KindDeviceDetected
	KindDrowsinessDetected
)

var kindNames = map[Kind]string{
	KindSessionStart:       "session_start",
	KindSessionEnd:         "session_end",
	KindFaceAbsent:         "face_absent",
	KindFocusLost:          "focus_lost",
	KindMultipleFaces:      "multiple_faces",
	KindPhoneDetected:      "phone_detected",
	KindBookDetected:       "book_detected",
	KindDeviceDetected:     "device_detected",
	KindDrowsinessDetected: "drowsiness_detected",
}

var kindFromName = map[string]Kind{
	"session_start":       KindSessionStart,
	"session_end":         KindSessionEnd,
	"face_absent":         KindFaceAbsent,
	"focus_lost":          KindFocusLost,
	"multiple_faces":      KindMultipleFaces,
	"phone_detected":      KindPhoneDetected,
	"book_detected":       KindBookDetected,
	"device_detected":     KindDeviceDetected,
	"drowsiness_detected": KindDrowsinessDetected,
}

// ParseKind maps a wire name to its Kind. The second return is false for
// names outside the enum, including the empty string.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindFromName[name]
	return k, ok
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := kindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Suspicious reports whether events of this kind count against the
// integrity score. session_start and session_end are informational.
func (k Kind) Suspicious() bool {
	switch k {
	case KindFaceAbsent, KindFocusLost, KindMultipleFaces,
		KindPhoneDetected, KindBookDetected, KindDeviceDetected,
		KindDrowsinessDetected:
		return true
	}
	return false
}

// DefaultSeverity returns the severity assigned to detector-emitted events
// of this kind. Object detections and face absence rate high; gaze and
// drowsiness rate medium.
func (k Kind) DefaultSeverity() Severity {
	switch k {
	case KindFaceAbsent, KindPhoneDetected, KindBookDetected, KindDeviceDetected:
		return SeverityHigh
	case KindFocusLost, KindMultipleFaces, KindDrowsinessDetected:
		return SeverityMedium
	}
	return SeverityLow
}

// Kinds returns every recognized kind in wire order.
func Kinds() []Kind {
	return []Kind{
		KindSessionStart, KindSessionEnd, KindFaceAbsent, KindFocusLost,
		KindMultipleFaces, KindPhoneDetected, KindBookDetected,
		KindDeviceDetected, KindDrowsinessDetected,
	}
}

// Severity grades how serious an event is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

var severityFromName = map[string]Severity{
	"low":      SeverityLow,
	"medium":   SeverityMedium,
	"high":     SeverityHigh,
	"critical": SeverityCritical,
}

// ParseSeverity maps a wire name to its Severity.
func ParseSeverity(name string) (Severity, bool) {
	s, ok := severityFromName[name]
	return s, ok
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "low"
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := severityFromName[n]; ok {
		*s = v
	}
	return nil
}
