package domain

import "sort"

// Dataset names. Each is both a remote collection and an offline cache key.
const (
	DatasetStudySessions  = "study_sessions"
	DatasetPrayerRecords  = "prayer_records"
	DatasetQuranReadings  = "quran_readings"
	DatasetHabits         = "habits"
	DatasetAttendance     = "attendance_records"
	DatasetClassSchedules = "class_schedules"
	DatasetSleepRecords   = "sleep_records"
	DatasetExams          = "exams"
	DatasetProfiles       = "profiles"
)

// Dataset describes how a dataset is fetched from the remote store.
type Dataset struct {
	Name  string
	Order Order
}

var datasets = map[string]Dataset{
	DatasetStudySessions:  {Name: DatasetStudySessions, Order: Order{Column: "created_at", Descending: true}},
	DatasetPrayerRecords:  {Name: DatasetPrayerRecords, Order: Order{Column: "created_at", Descending: true}},
	DatasetQuranReadings:  {Name: DatasetQuranReadings, Order: Order{Column: "created_at", Descending: true}},
	DatasetHabits:         {Name: DatasetHabits, Order: Order{Column: "created_at", Descending: true}},
	DatasetAttendance:     {Name: DatasetAttendance, Order: Order{Column: "date", Descending: true}},
	DatasetClassSchedules: {Name: DatasetClassSchedules, Order: Order{Column: "time"}},
	DatasetSleepRecords:   {Name: DatasetSleepRecords, Order: Order{Column: "date", Descending: true}},
	DatasetExams:          {Name: DatasetExams, Order: Order{Column: "date"}},
	DatasetProfiles:       {Name: DatasetProfiles},
}

// LookupDataset returns the dataset with the given name.
func LookupDataset(name string) (Dataset, bool) {
	ds, ok := datasets[name]
	return ds, ok
}

// Datasets returns every known dataset, sorted by name.
func Datasets() []Dataset {
	out := make([]Dataset, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DatasetNames returns the sorted dataset names.
func DatasetNames() []string {
	all := Datasets()
	names := make([]string, len(all))
	for i, ds := range all {
		names[i] = ds.Name
	}
	return names
}
