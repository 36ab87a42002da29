package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is a provider's bookable clinic window on one calendar date.
// Sessions are written by the provider scheduling system; the booking
// core only reads them. The feed stores window times as clock strings
// in whichever convention the source system uses; NormalizeClocks
// resolves them to minute-of-day integers before any slot arithmetic.
type Session struct {
	ID                  uuid.UUID     `db:"id" json:"id"`
	ProviderID          uuid.UUID     `db:"provider_id" json:"provider_id"`
	Date                time.Time     `db:"session_date" json:"session_date"`
	StartTime           string        `db:"start_time" json:"start_time"`
	EndTime             string        `db:"end_time" json:"end_time"`
	StartMinute         int           `db:"-" json:"start_minute"`
	EndMinute           int           `db:"-" json:"end_minute"`
	AvgConsultationMins int           `db:"avg_consultation_mins" json:"avg_consultation_mins"`
	Status              SessionStatus `db:"status" json:"status"`
	AllowAfterHoursCall bool          `db:"allow_after_hours_call" json:"allow_after_hours_call"`
	Version             int           `db:"version" json:"version"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at" json:"updated_at"`
}

// NormalizeClocks parses the feed's clock strings into StartMinute and
// EndMinute. Sessions built in memory with minutes already set and no
// clock strings pass through unchanged.
func (s *Session) NormalizeClocks() error {
	if s.StartTime == "" && s.EndTime == "" {
		return nil
	}
	start, err := ParseClockMinute(s.StartTime)
	if err != nil {
		return fmt.Errorf("session %s start time: %w", s.ID, err)
	}
	end, err := ParseClockMinute(s.EndTime)
	if err != nil {
		return fmt.Errorf("session %s end time: %w", s.ID, err)
	}
	s.StartMinute = start
	s.EndMinute = end
	return nil
}

// Capacity is the number of discrete token slots the session window holds.
func (s *Session) Capacity() int {
	if s.AvgConsultationMins <= 0 || s.EndMinute <= s.StartMinute {
		return 0
	}
	return (s.EndMinute - s.StartMinute) / s.AvgConsultationMins
}

// SlotMinute returns the minute-of-day a 1-indexed token is scheduled at.
func (s *Session) SlotMinute(token int) int {
	return s.StartMinute + (token-1)*s.AvgConsultationMins
}

// SlotTime anchors a token's minute-of-day on the session's calendar date.
func (s *Session) SlotTime(token int) time.Time {
	day := s.Date.Truncate(24 * time.Hour)
	return day.Add(time.Duration(s.SlotMinute(token)) * time.Minute)
}

// EndedAt reports whether the session window is over at the given instant.
func (s *Session) EndedAt(now time.Time) bool {
	if s.Status == SessionStatusCompleted {
		return true
	}
	day := s.Date.Truncate(24 * time.Hour)
	end := day.Add(time.Duration(s.EndMinute) * time.Minute)
	return !now.Before(end)
}

// clockFormats covers both clock conventions the upstream schedule
// feeds use. Every format must normalize to the same minute-of-day.
var clockFormats = []string{
	"15:04",
	"3:04 PM",
	"3:04PM",
	"15:04:05",
}

// ParseClockMinute normalizes a time-of-day string ("09:00", "4:30 PM")
// to an integer minute of day. Slot arithmetic is done on these integers
// so the two clock conventions can never diverge.
func ParseClockMinute(value string) (int, error) {
	raw := strings.ToUpper(strings.TrimSpace(value))
	for _, layout := range clockFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized clock value %q", value)
}

// FormatClockMinute renders a minute-of-day back to 24-hour "HH:MM".
func FormatClockMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// TokenSlot is a derived, 1-indexed unit of session capacity. Slots are
// never persisted; they are recomputed from the session definition and
// the current booking count.
type TokenSlot struct {
	SlotNumber      int    `json:"slot_number"`
	ScheduledMinute int    `json:"scheduled_minute"`
	ScheduledClock  string `json:"scheduled_clock"`
	Booked          bool   `json:"booked"`
}

type AvailabilityReason string

const (
	ReasonOK               AvailabilityReason = "ok"
	ReasonNoSession        AvailabilityReason = "no_session"
	ReasonSessionCancelled AvailabilityReason = "session_cancelled"
	ReasonSessionEnded     AvailabilityReason = "session_ended"
	ReasonFullyBooked      AvailabilityReason = "fully_booked"
)

// Availability is the read-path snapshot handed to clients before the
// authoritative reserve step. It is advisory: a stale snapshot is
// acceptable because reservation re-checks inside its own transaction.
type Availability struct {
	Available      bool               `json:"available"`
	Reason         AvailabilityReason `json:"reason"`
	Capacity       int                `json:"capacity"`
	BookedCount    int                `json:"booked_count"`
	NextToken      *int               `json:"next_token,omitempty"`
	SessionID      *uuid.UUID         `json:"session_id,omitempty"`
	SessionVersion int                `json:"session_version,omitempty"`
	Session        *Session           `json:"-"`
}
