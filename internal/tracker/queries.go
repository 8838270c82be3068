package tracker

import (
	"github.com/mmcdole/lifetrack/internal/domain"
)

// Cache is the read side of the offline snapshot cache.
type Cache interface {
	GetOfflineData(dataset string) ([]domain.Record, bool)
}

// Queries provides synchronous, cache-only reads.
type Queries struct {
	cache Cache
}

// NewQueries creates a new Queries instance.
func NewQueries(cache Cache) *Queries {
	return &Queries{cache: cache}
}

// Records returns the cached rows of a dataset.
func (q *Queries) Records(dataset string) ([]domain.Record, bool) {
	return q.cache.GetOfflineData(dataset)
}

// Load decodes the cached rows of a dataset into typed rows.
func Load[T any](q *Queries, dataset string) ([]T, error) {
	records, _ := q.cache.GetOfflineData(dataset)
	if len(records) == 0 {
		return nil, nil
	}
	return domain.DecodeRecords[T](records)
}

// Snapshot is every tracker's cached data at one point in time.
type Snapshot struct {
	Profile    *domain.Profile
	Study      []domain.StudySession
	Prayers    []domain.PrayerRecord
	Quran      []domain.QuranReading
	Habits     []domain.Habit
	Schedule   []domain.ClassSchedule
	Attendance []domain.Attendance
	Sleep      []domain.SleepRecord
	Exams      []domain.Exam
}

// Snapshot decodes every cached dataset.
func (q *Queries) Snapshot() (Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Study, err = Load[domain.StudySession](q, domain.DatasetStudySessions); err != nil {
		return s, err
	}
	if s.Prayers, err = Load[domain.PrayerRecord](q, domain.DatasetPrayerRecords); err != nil {
		return s, err
	}
	if s.Quran, err = Load[domain.QuranReading](q, domain.DatasetQuranReadings); err != nil {
		return s, err
	}
	if s.Habits, err = Load[domain.Habit](q, domain.DatasetHabits); err != nil {
		return s, err
	}
	if s.Schedule, err = Load[domain.ClassSchedule](q, domain.DatasetClassSchedules); err != nil {
		return s, err
	}
	if s.Attendance, err = Load[domain.Attendance](q, domain.DatasetAttendance); err != nil {
		return s, err
	}
	if s.Sleep, err = Load[domain.SleepRecord](q, domain.DatasetSleepRecords); err != nil {
		return s, err
	}
	if s.Exams, err = Load[domain.Exam](q, domain.DatasetExams); err != nil {
		return s, err
	}
	profiles, err := Load[domain.Profile](q, domain.DatasetProfiles)
	if err != nil {
		return s, err
	}
	if len(profiles) > 0 {
		s.Profile = &profiles[0]
	}
	return s, nil
}
