package session

// IntegrityPenalty is the score deduction per suspicious event.
const IntegrityPenalty = 2

// IntegrityScore computes the 0-100 score for a given suspicious-event
// count. Linear deduction, floor-clamped at zero. The score is a pure
// function of the counter so it can be recomputed after a crash or during
// a report run without replaying the event stream.
func IntegrityScore(suspicious int) int {
	score := 100 - IntegrityPenalty*suspicious
	if score < 0 {
		return 0
	}
	return score
}

// Apply folds one event kind into the session's counters and recomputes
// the integrity score. Informational kinds (session_start, session_end)
// bump TotalEvents only. Apply does not check lifecycle status; callers
// gate on Active() before mutating.
func (s *Session) Apply(k Kind) {
	s.TotalEvents++
	if !k.Suspicious() {
		return
	}
	switch k {
	case KindFocusLost:
		s.FocusLostCount++
	case KindFaceAbsent:
		s.FaceAbsentCount++
	case KindMultipleFaces:
		s.MultipleFacesCount++
	case KindPhoneDetected:
		s.PhoneDetectedCount++
	case KindBookDetected:
		s.BookDetectedCount++
	case KindDeviceDetected:
		s.DeviceDetectedCount++
	case KindDrowsinessDetected:
		s.DrowsinessCount++
	}
	s.SuspiciousEvents++
	s.IntegrityScore = IntegrityScore(s.SuspiciousEvents)
}
