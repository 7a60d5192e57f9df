package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Ganngann/form-act-sub001/internal/models"
)

// Deadlines driving the derived session status: participants are chased from
// J-15, logistics from 48 hours after booking, client edits lock at J-7.
const (
	participantsDeadlineDays = 15
	logisticsLockDays        = 7
	logisticsGrace           = 48 * time.Hour
)

// statusRule pairs a predicate with the status it yields. Rules are evaluated
// top-to-bottom and the first match wins, so ordering is the priority.
type statusRule struct {
	name    string
	matches func(session *models.TrainingSession, now time.Time) bool
	result  models.ComputedStatus
}

// The cascade resolves the overlap between the two deadlines: a session can
// simultaneously miss logistics and sit inside J-15, and participants win
// because collecting a roster has external lead time on the client side.
var statusRules = []statusRule{
	{
		name:    "cancelled is terminal",
		matches: func(s *models.TrainingSession, _ time.Time) bool { return s.Status == models.DBStatusCancelled },
		result:  models.StatusCancelled,
	},
	{
		name: "pre-confirmation branch",
		matches: func(s *models.TrainingSession, _ time.Time) bool {
			return s.Status == models.DBStatusPending ||
				s.Status == models.DBStatusPendingApproval ||
				s.Status == models.DBStatusOfferSent
		},
		result: models.StatusPending,
	},
	{
		name: "past and billed",
		matches: func(s *models.TrainingSession, now time.Time) bool {
			return isPastSession(s, now) && s.BilledAt != nil
		},
		result: models.StatusBilled,
	},
	{
		name: "past with proof, awaiting invoice",
		matches: func(s *models.TrainingSession, now time.Time) bool {
			return isPastSession(s, now) && hasProof(s)
		},
		result: models.StatusToBill,
	},
	{
		name:    "past without proof",
		matches: isPastSession,
		result:  models.StatusProofMissing,
	},
	{
		name: "logistics and participants complete",
		matches: func(s *models.TrainingSession, _ time.Time) bool {
			return hasLogistics(s) && hasParticipants(s)
		},
		result: models.StatusReady,
	},
	{
		name: "participants missing inside J-15",
		matches: func(s *models.TrainingSession, now time.Time) bool {
			return calendarDaysBetween(now, s.Date) <= participantsDeadlineDays && !hasParticipants(s)
		},
		result: models.StatusParticipantsMissing,
	},
	{
		name: "logistics missing past the 48h grace",
		matches: func(s *models.TrainingSession, now time.Time) bool {
			return !hasLogistics(s) && logisticsGraceExpired(s, now)
		},
		result: models.StatusLogisticsMissing,
	},
}

// ComputeStatus derives the display status of a session from its stored
// fields and the supplied clock. It is pure and total: every well-formed
// session maps to exactly one status.
func ComputeStatus(session *models.TrainingSession, now time.Time) models.ComputedStatus {
	for _, rule := range statusRules {
		if rule.matches(session, now) {
			return rule.result
		}
	}
	return models.StatusConfirmed
}

// IsLogisticsLocked reports whether client edits are frozen: from J-7 the
// session content is locked unless an admin flipped the override.
func IsLogisticsLocked(session *models.TrainingSession, now time.Time) bool {
	if session.IsLogisticsOpen {
		return false
	}
	return calendarDaysBetween(now, session.Date) <= logisticsLockDays
}

// isPastSession is slot-aware: a PM session is not "past" at noon of its day.
func isPastSession(session *models.TrainingSession, now time.Time) bool {
	return sessionEnd(session).Before(now)
}

// Delivery hours: AM runs 09:00-12:30, PM 13:30-17:00, full days 09:00-17:00.
func sessionEnd(session *models.TrainingSession) time.Time {
	day := session.Date
	switch session.Slot {
	case models.SlotAM:
		return time.Date(day.Year(), day.Month(), day.Day(), 12, 30, 0, 0, day.Location())
	case models.SlotPM, models.SlotAllDay:
		return time.Date(day.Year(), day.Month(), day.Day(), 17, 0, 0, 0, day.Location())
	default:
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
	}
}

// calendarDaysBetween is a midnight-normalized day difference, so "J-15"
// means 15 calendar days regardless of the time of day on either side.
func calendarDaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / (24 * time.Hour))
}

// logisticsGraceExpired: the booker gets 48 hours after creation to supply
// access details before being flagged. Strictly more than 48h triggers;
// exactly 48h does not. A missing creation timestamp counts as expired.
func logisticsGraceExpired(session *models.TrainingSession, now time.Time) bool {
	if session.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(session.CreatedAt) > logisticsGrace
}

func hasProof(session *models.TrainingSession) bool {
	return session.ProofURL != nil && strings.TrimSpace(*session.ProofURL) != ""
}

func hasLogistics(session *models.TrainingSession) bool {
	if session.Location == nil || strings.TrimSpace(*session.Location) == "" {
		return false
	}
	return jsonBlobPresent(session.Logistics, "{}")
}

func hasParticipants(session *models.TrainingSession) bool {
	return jsonBlobPresent(session.Participants, "[]")
}

// jsonBlobPresent decides whether a stored JSON text blob carries content.
// A blob that parses is judged on its parsed shape; a present-but-unparseable
// blob counts as content as long as the raw text is not structurally empty,
// so corrupt data is chased by a human instead of re-flagged as missing.
func jsonBlobPresent(raw *string, emptyLiteral string) bool {
	if raw == nil {
		return false
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || trimmed == emptyLiteral {
		return false
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return true
	}
	switch value := parsed.(type) {
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	case string:
		return strings.TrimSpace(value) != ""
	case nil:
		return false
	default:
		return true
	}
}

// ParticipantEntry is the expected roster shape. Rosters are validated on
// write and parsed defensively on read.
type ParticipantEntry struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// ParseParticipants deserializes a stored roster. The boolean reports whether
// the blob parsed; callers that only need presence should use ComputeStatus.
func ParseParticipants(raw *string) ([]ParticipantEntry, bool) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, true
	}
	var entries []ParticipantEntry
	if err := json.Unmarshal([]byte(*raw), &entries); err != nil {
		return nil, false
	}
	return entries, true
}
