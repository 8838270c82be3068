package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is a single row of a dataset as exchanged with the remote store
// and kept in the offline cache. Field names follow the hosted schema
// (snake_case columns).
type Record map[string]any

// ID returns the row identifier, or "" if the record has none.
func (r Record) ID() string {
	return r.String("id")
}

// UserID returns the owning user's identifier.
func (r Record) UserID() string {
	return r.String("user_id")
}

// Date returns the calendar date (YYYY-MM-DD) the record belongs to.
func (r Record) Date() string {
	return r.String("date")
}

// GetDate implements streak.Dated.
func (r Record) GetDate() string {
	return r.Date()
}

// String returns a field rendered as a string. Numbers are formatted
// without a trailing ".0" so identifiers survive a JSON round trip.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a copy of r with every field of patch applied on top.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// DecodeRecords converts loosely typed records into typed rows.
func DecodeRecords[T any](records []Record) ([]T, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return out, nil
}

// EncodeRecord converts a typed row into a Record.
func EncodeRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Profile holds the user's goals and personal details.
type Profile struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id,omitempty"`
	Email           string  `json:"email"`
	FullName        string  `json:"full_name"`
	University      string  `json:"university,omitempty"`
	Major           string  `json:"major,omitempty"`
	Year            string  `json:"year,omitempty"`
	Location        string  `json:"location,omitempty"`
	DailyStudyGoal  float64 `json:"daily_study_goal"`
	SleepGoal       float64 `json:"sleep_goal"`
	WeeklyQuranGoal int     `json:"weekly_quran_goal"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// StudySession is one block of study time for a subject.
type StudySession struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Subject   string  `json:"subject"`
	Duration  float64 `json:"duration"` // hours
	Date      string  `json:"date"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func (s StudySession) GetDate() string { return s.Date }

// PrayerType classifies how a prayer was performed.
type PrayerType string

const (
	PrayerJamat      PrayerType = "jamat"
	PrayerIndividual PrayerType = "individual"
	PrayerKaza       PrayerType = "kaza"
)

// PrayerRecord logs a single prayer.
type PrayerRecord struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	PrayerName string     `json:"prayer_name"`
	PrayerType PrayerType `json:"prayer_type"`
	Date       string     `json:"date"`
	Time       string     `json:"time"`
	CreatedAt  string     `json:"created_at,omitempty"`
}

func (p PrayerRecord) GetDate() string { return p.Date }

// IsRegular reports whether the prayer counts toward daily totals.
// Kaza (make-up) prayers are tracked but excluded.
func (p PrayerRecord) IsRegular() bool {
	return p.PrayerType != PrayerKaza
}

// QuranReading logs pages read in one sitting.
type QuranReading struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Pages     int    `json:"pages"`
	Surah     string `json:"surah"`
	Verses    string `json:"verses"`
	Date      string `json:"date"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (q QuranReading) GetDate() string { return q.Date }

// HabitType distinguishes habits to build from habits to break.
type HabitType string

const (
	HabitGood HabitType = "good"
	HabitBad  HabitType = "bad"
)

// Habit carries its own running streak, maintained on toggle.
type Habit struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	Type          HabitType `json:"type"`
	Streak        int       `json:"streak"`
	LastCompleted string    `json:"last_completed"`
	Category      string    `json:"category"`
	CreatedAt     string    `json:"created_at,omitempty"`
}

// ClassSchedule is a recurring weekly class slot.
type ClassSchedule struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Subject    string `json:"subject"`
	Time       string `json:"time"`
	EndTime    string `json:"end_time"`
	Location   string `json:"location"`
	Instructor string `json:"instructor"`
	Day        string `json:"day"`
	Color      string `json:"color"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// AttendanceStatus is the outcome recorded for a class.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Attendance records presence at one class on one day.
type Attendance struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Subject   string           `json:"subject"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt string           `json:"created_at,omitempty"`
}

func (a Attendance) GetDate() string { return a.Date }

// SleepRecord logs one night of sleep.
type SleepRecord struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Bedtime   string  `json:"bedtime"`
	WakeTime  string  `json:"wake_time"`
	Duration  float64 `json:"duration"` // hours
	Quality   float64 `json:"quality"`  // 1-5
	Date      string  `json:"date"`
	Notes     string  `json:"notes,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func (s SleepRecord) GetDate() string { return s.Date }

// Exam is an upcoming exam with a preparation target.
type Exam struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Subject     string  `json:"subject"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Location    string  `json:"location"`
	Type        string  `json:"type"`
	StudyHours  float64 `json:"study_hours"`
	TargetHours float64 `json:"target_hours"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

func (e Exam) GetDate() string { return e.Date }
