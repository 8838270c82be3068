package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/lifetrack/internal/config"
	"github.com/mmcdole/lifetrack/internal/connectivity"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/log"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/remote/memory"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/store"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    domain.Record
		wantErr bool
	}{
		{
			name: "typed values",
			args: []string{"subject=Math", "duration=1.5", "done=true", "notes=null"},
			want: domain.Record{"subject": "Math", "duration": 1.5, "done": true, "notes": nil},
		},
		{
			name: "dates and times stay strings",
			args: []string{"date=2024-03-01", "time=09:30", "code=007"},
			want: domain.Record{"date": "2024-03-01", "time": "09:30", "code": "007"},
		},
		{
			name: "quoted values stay strings",
			args: []string{`pages="12"`, "zero=0", "fraction=0.5", "nan=NaN"},
			want: domain.Record{"pages": "12", "zero": 0.0, "fraction": 0.5, "nan": "NaN"},
		},
		{name: "missing equals", args: []string{"subject"}, wantErr: true},
		{name: "empty key", args: []string{"=x"}, wantErr: true},
		{name: "unsafe key", args: []string{"drop table=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFields(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRecord(t *testing.T) {
	rec := domain.Record{
		"id": "r1", "user_id": "u1", "created_at": "2024-03-01T00:00:00Z",
		"subject": "Linear Algebra", "duration": 2.0, "notes": "",
	}
	assert.Equal(t, `r1  duration=2  subject="Linear Algebra"`, formatRecord(rec))
}

func TestPrintPreload(t *testing.T) {
	var buf bytes.Buffer
	err := printPreload(&buf, false, []domain.RefreshResult{
		{Dataset: "habits", Count: 3},
		{Dataset: "exams", Count: 1, FromCache: true, Error: domain.ErrRemoteUnreachable},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Contains(t, buf.String(), "habits")
	assert.Contains(t, buf.String(), "cached: remote store is unreachable")
}

func TestPrintStats_Plain(t *testing.T) {
	var buf bytes.Buffer
	printStats(&buf, false, tracker.Stats{
		Study:  tracker.StudyStats{HoursToday: 3, GoalPercent: 50, Streak: 2},
		Prayer: tracker.PrayerStats{TodayCount: 5, TodayPercent: 100},
		Exams:  []tracker.ExamView{{Subject: "Physics", Date: "2024-04-01", DaysUntil: 19, Preparation: 40}},
	})
	out := buf.String()
	assert.Contains(t, out, "Study         50%")
	assert.Contains(t, out, "Prayers      100%")
	assert.Contains(t, out, "exam 2024-04-01 Physics in 19 day(s), 40% prepared")
	assert.NotContains(t, out, "█")
}

func TestGoalsFromConfig(t *testing.T) {
	g := goalsFromConfig(config.GoalsConfig{DailyStudyHours: 4, PrayersPerDay: 0})
	assert.Equal(t, 4.0, g.DailyStudyHours)
	assert.Equal(t, 5, g.PrayersPerDay)
	assert.Equal(t, 85.0, g.AttendanceTarget)
}

func TestPromptBackend(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, cfg *config.Config, out string)
	}{
		{
			name:  "postgrest with token",
			input: "\nhttps://xyz.example.co/\n\nanon-key\n" + token + "\n",
			check: func(t *testing.T, cfg *config.Config, out string) {
				assert.Equal(t, config.BackendPostgrest, cfg.Remote.Type)
				assert.Equal(t, "https://xyz.example.co", cfg.Remote.URL)
				assert.Equal(t, "anon-key", cfg.Remote.APIKey)
				assert.Equal(t, token, cfg.Remote.AccessToken)
				assert.Contains(t, out, "Signed in as user-42")
				assert.Contains(t, out, "cannot be empty")
			},
		},
		{
			name:  "retry unknown backend then postgres",
			input: "mysql\npostgres\npostgres://localhost/lifetrack\n",
			check: func(t *testing.T, cfg *config.Config, out string) {
				assert.Contains(t, out, `Unknown backend "mysql"`)
				assert.Equal(t, config.BackendPostgres, cfg.Remote.Type)
				assert.Equal(t, "postgres://localhost/lifetrack", cfg.Remote.DSN)
			},
		},
		{
			name:  "sqlite default path",
			input: "sqlite\n\n",
			check: func(t *testing.T, cfg *config.Config, out string) {
				assert.Equal(t, config.BackendSQLite, cfg.Remote.Type)
				assert.True(t, strings.HasSuffix(cfg.Remote.Path, "lifetrack-remote.db"))
				assert.True(t, cfg.IsConfigured())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			var out bytes.Buffer
			require.NoError(t, promptBackend(cfg, strings.NewReader(tt.input), &out))
			tt.check(t, cfg, out.String())
		})
	}

	t.Run("eof", func(t *testing.T) {
		err := promptBackend(config.DefaultConfig(), strings.NewReader("postgres\n"), &bytes.Buffer{})
		assert.Error(t, err)
	})
}

type testApp struct {
	*app
	src    *connectivity.Manual
	remote *memory.Store
	out    *bytes.Buffer
}

func newTestApp(t *testing.T, online bool) *testApp {
	t.Helper()
	kv, err := store.NewKVStore("")
	require.NoError(t, err)

	logger := log.NullLogger()
	src := connectivity.NewManual(online)
	monitor := connectivity.NewMonitor(src, logger)
	remote := memory.New()
	storage := offline.NewStorage(kv, logger)
	engine := offline.NewEngine(storage, remote, logger)
	manager := offline.NewManager(monitor, storage, engine, "u1", logger)
	t.Cleanup(func() {
		manager.Close()
		monitor.Close()
		kv.Close()
	})

	var out bytes.Buffer
	a := &app{
		cfg:      config.DefaultConfig(),
		logger:   logger,
		manager:  manager,
		commands: tracker.NewCommands(remote, manager, logger),
		queries:  tracker.NewQueries(manager),
		search:   search.NewService(manager, logger),
		goals:    tracker.DefaultGoals(),
		out:      &out,
	}
	return &testApp{app: a, src: src, remote: remote, out: &out}
}

func TestDispatch_OfflineAddThenSync(t *testing.T) {
	ta := newTestApp(t, false)
	ctx := context.Background()

	require.NoError(t, ta.dispatch(ctx, []string{"add", "study", "subject=Math", "duration=2", "date=2024-03-01"}))
	assert.Contains(t, ta.out.String(), "Added study_sessions")
	assert.Contains(t, ta.out.String(), "(offline, 1 pending)")
	assert.Empty(t, ta.remote.Rows(domain.DatasetStudySessions))

	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"status"}))
	assert.Contains(t, ta.out.String(), "online: false")
	assert.Contains(t, ta.out.String(), "pending: 1")
	assert.Contains(t, ta.out.String(), "insert study_sessions")

	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"list", "study", "-search", "mth", "-field", "subject"}))
	assert.Contains(t, ta.out.String(), "study_sessions: 1 match(es)")

	ta.src.Set(true)
	ta.manager.Wait()
	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"sync"}))
	assert.Len(t, ta.remote.Rows(domain.DatasetStudySessions), 1)
	assert.Empty(t, ta.manager.PendingSync())
}

func TestDispatch_OnlineListUpdateDelete(t *testing.T) {
	ta := newTestApp(t, true)
	ctx := context.Background()

	_, err := ta.remote.Insert(ctx, domain.DatasetExams, domain.Record{"id": "e1", "user_id": "u1", "subject": "Physics", "date": "2024-04-01"})
	require.NoError(t, err)

	require.NoError(t, ta.dispatch(ctx, []string{"list", "exams"}))
	assert.Contains(t, ta.out.String(), "exams (1)")
	assert.Contains(t, ta.out.String(), "e1  date=2024-04-01  subject=Physics")

	require.NoError(t, ta.dispatch(ctx, []string{"update", "exams", "e1", "location=Hall B"}))
	assert.Equal(t, "Hall B", ta.remote.Rows(domain.DatasetExams)[0]["location"])

	require.NoError(t, ta.dispatch(ctx, []string{"delete", "exams", "e1"}))
	assert.Empty(t, ta.remote.Rows(domain.DatasetExams))

	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"sync"}))
	assert.Equal(t, "Nothing to sync.\n", ta.out.String())
}

func TestDispatch_PreloadAndStats(t *testing.T) {
	ta := newTestApp(t, true)
	ctx := context.Background()
	today := time.Now().Format("2006-01-02")
	_, err := ta.remote.Insert(ctx, domain.DatasetStudySessions, domain.Record{"id": "s1", "user_id": "u1", "subject": "Math", "duration": 3.0, "date": today})
	require.NoError(t, err)

	require.NoError(t, ta.dispatch(ctx, []string{"preload"}))
	assert.Contains(t, ta.out.String(), "study_sessions")
	_, ok := ta.manager.PreloadedAt()
	assert.True(t, ok)

	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"stats"}))
	assert.Contains(t, ta.out.String(), "3.0h today")
}

func TestDispatch_UsageErrors(t *testing.T) {
	ta := newTestApp(t, true)
	ctx := context.Background()

	tests := [][]string{
		{"bogus"},
		{"add", "study"},
		{"update", "exams", "e1"},
		{"delete", "exams"},
		{"list"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			err := ta.dispatch(ctx, args)
			assert.True(t, errors.Is(err, errUsage), "got %v", err)
		})
	}

	err := ta.dispatch(ctx, []string{"add", "zzzz", "a=1"})
	assert.ErrorIs(t, err, domain.ErrUnknownDataset)
}

func TestDispatch_WritesNeedUnambiguousDataset(t *testing.T) {
	ta := newTestApp(t, true)
	ctx := context.Background()
	_, err := ta.remote.Insert(ctx, domain.DatasetSleepRecords, domain.Record{"id": "r1", "user_id": "u1", "date": "2024-03-01"})
	require.NoError(t, err)

	for _, args := range [][]string{
		{"delete", "s", "r1"},
		{"update", "se", "r1", "quality=4"},
		{"add", "s", "date=2024-03-02"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			err := ta.dispatch(ctx, args)
			assert.ErrorIs(t, err, domain.ErrUnknownDataset)
		})
	}
	assert.Len(t, ta.remote.Rows(domain.DatasetSleepRecords), 1)
	assert.Empty(t, ta.manager.PendingSync())

	// Reads still resolve loosely
	ta.out.Reset()
	require.NoError(t, ta.dispatch(ctx, []string{"list", "se"}))
	assert.Contains(t, ta.out.String(), "sleep_records (1)")
}
