package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/mmcdole/lifetrack/internal/auth"
	"github.com/mmcdole/lifetrack/internal/config"
	"github.com/mmcdole/lifetrack/internal/connectivity"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/log"
	"github.com/mmcdole/lifetrack/internal/offline"
	"github.com/mmcdole/lifetrack/internal/remote"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/store"
	"github.com/mmcdole/lifetrack/internal/tracker"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `Usage: lifetrack [flags] <command> [args]

Commands:
  status                              show connectivity and pending changes
  sync                                replay pending changes now
  add <dataset> key=value...          create a record
  update <dataset> <id> key=value...  update a record
  delete <dataset> <id>               delete a record
  list <dataset> [-search t -field f] list (or search) a dataset
  preload                             fetch every dataset into the offline cache
  stats                               show progress and streaks
  watch                               interactive status indicator
  serve                               run the local HTTP API

Flags:
`

func main() {
	var (
		showVersion bool
		forceOff    bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.BoolVar(&forceOff, "offline", false, "work offline: queue writes instead of sending them")
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Printf("lifetrack %s\n", Version)
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(configPath, forceOff, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *offline.Manager
	commands *tracker.Commands
	queries  *tracker.Queries
	search   *search.Service
	goals    tracker.Goals
	out      io.Writer
	styled   bool
}

func run(configPath string, forceOffline bool, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting lifetrack", "version", Version, "command", args[0])

	styled := term.IsTerminal(int(os.Stdout.Fd()))

	// Check if configured
	if !cfg.IsConfigured() {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no %s backend configured; run lifetrack interactively or edit the config file", cfg.Remote.Type)
		}
		if err := runSetupFlow(cfg, os.Stdin, os.Stdout); err != nil {
			return err
		}
	}

	kv, err := store.NewKVStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer kv.Close()

	client, err := remote.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create remote client: %w", err)
	}
	defer client.Close()

	var src domain.ConnectivitySource
	if forceOffline {
		src = connectivity.NewManual(false)
	} else {
		src = connectivity.NewInterfaceSource(cfg.Network.ProbeInterval, logger)
	}
	monitor := connectivity.NewMonitor(src, logger)
	defer monitor.Close()
	if cfg.Network.ForceOffline {
		monitor.SetForceOffline(true)
	}

	userID := auth.UserID(cfg.Remote.AccessToken)
	if userID == "" {
		logger.Warn("no signed-in session; pending changes are only replayed on manual sync")
	}

	storage := offline.NewStorage(kv, logger)
	engine := offline.NewEngine(storage, client, logger)
	manager := offline.NewManager(monitor, storage, engine, userID, logger)
	defer manager.Close()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		manager:  manager,
		commands: tracker.NewCommands(client, manager, logger),
		queries:  tracker.NewQueries(manager),
		search:   search.NewService(manager, logger),
		goals:    goalsFromConfig(cfg.Goals),
		out:      os.Stdout,
		styled:   styled,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.dispatch(ctx, args)
}

func goalsFromConfig(g config.GoalsConfig) tracker.Goals {
	goals := tracker.DefaultGoals()
	if g.DailyStudyHours > 0 {
		goals.DailyStudyHours = g.DailyStudyHours
	}
	if g.PrayersPerDay > 0 {
		goals.PrayersPerDay = g.PrayersPerDay
	}
	if g.DailyQuranPages > 0 {
		goals.DailyQuranPages = g.DailyQuranPages
	}
	if g.SleepHours > 0 {
		goals.SleepHours = g.SleepHours
	}
	if g.AttendanceTarget > 0 {
		goals.AttendanceTarget = g.AttendanceTarget
	}
	return goals
}
