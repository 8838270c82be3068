package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"

	"github.com/mmcdole/lifetrack/internal/api"
	"github.com/mmcdole/lifetrack/internal/config"
	"github.com/mmcdole/lifetrack/internal/domain"
	"github.com/mmcdole/lifetrack/internal/search"
	"github.com/mmcdole/lifetrack/internal/tracker"
	"github.com/mmcdole/lifetrack/internal/tui"
	"github.com/mmcdole/lifetrack/internal/tui/styles"
)

// clearSpinnerLine clears the spinner line from the terminal
const clearSpinnerLine = "\r                                            \r"

var errUsage = errors.New("invalid arguments")

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return a.status()
	case "sync":
		return a.sync(ctx)
	case "add":
		return a.add(ctx, rest)
	case "update":
		return a.update(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "list":
		return a.list(ctx, rest)
	case "preload":
		return a.preload(ctx)
	case "stats":
		return a.stats()
	case "watch":
		return a.watch(ctx)
	case "serve":
		return a.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// settle starts the manager and waits for the startup drain, so queued
// changes reach the remote store before anything newer.
func (a *app) settle(ctx context.Context) {
	a.manager.Start(ctx)
	a.manager.Wait()
}

// live starts the manager and follows force_offline edits to the config file.
func (a *app) live(ctx context.Context) {
	config.WatchForceOffline(func(force bool) {
		a.logger.Info("config changed", "force_offline", force)
		a.manager.SetForceOffline(force)
	})
	a.manager.Start(ctx)
}

func (a *app) status() error {
	printStatus(a.out, a.styled, a.manager)
	return nil
}

func (a *app) sync(ctx context.Context) error {
	pending := len(a.manager.PendingSync())
	if pending == 0 {
		fmt.Fprintln(a.out, "Nothing to sync.")
		return nil
	}
	n, err := a.manager.SyncPendingData(ctx)
	if err != nil {
		return fmt.Errorf("sync failed, %d change(s) still pending: %w", len(a.manager.PendingSync()), err)
	}
	fmt.Fprintf(a.out, "Synced %d change(s).\n", n)
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <dataset> key=value...", errUsage)
	}
	dataset, err := search.ResolveDatasetStrict(args[0])
	if err != nil {
		return err
	}
	rec, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	a.settle(ctx)
	created, err := a.commands.Create(ctx, dataset, rec)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s %s%s\n", dataset, created.ID(), a.queuedSuffix())
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: update <dataset> <id> key=value...", errUsage)
	}
	dataset, err := search.ResolveDatasetStrict(args[0])
	if err != nil {
		return err
	}
	patch, err := parseFields(args[2:])
	if err != nil {
		return err
	}

	a.settle(ctx)
	if _, err := a.commands.Update(ctx, dataset, args[1], patch); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s %s%s\n", dataset, args[1], a.queuedSuffix())
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: delete <dataset> <id>", errUsage)
	}
	dataset, err := search.ResolveDatasetStrict(args[0])
	if err != nil {
		return err
	}

	a.settle(ctx)
	if err := a.commands.Delete(ctx, dataset, args[1]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s %s%s\n", dataset, args[1], a.queuedSuffix())
	return nil
}

func (a *app) queuedSuffix() string {
	if a.manager.IsOnline() {
		return ""
	}
	return fmt.Sprintf(" (offline, %d pending)", len(a.manager.PendingSync()))
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	term := fs.String("search", "", "fuzzy filter term")
	field := fs.String("field", "", "field to search (default: every text field)")
	if len(args) == 0 {
		return fmt.Errorf("%w: list <dataset> [-search term] [-field name]", errUsage)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if *term != "" {
		dataset, results, err := a.search.FilterLocal(args[0], *field, *term)
		if err != nil {
			return err
		}
		printSearchResults(a.out, a.styled, dataset, results)
		return nil
	}

	dataset, err := search.ResolveDataset(args[0])
	if err != nil {
		return err
	}
	a.settle(ctx)
	records, result := a.commands.Refresh(ctx, dataset)
	if result.Error != nil {
		a.logger.Warn("showing cached data", "dataset", dataset, "error", result.Error)
	}
	printRecords(a.out, a.styled, dataset, records, result.FromCache)
	return nil
}

func (a *app) preload(ctx context.Context) error {
	a.settle(ctx)

	var (
		mu     sync.Mutex
		loaded int
		total  int
	)
	progress := func(l, t int) {
		mu.Lock()
		loaded, total = l, t
		mu.Unlock()
	}

	done := make(chan []domain.RefreshResult, 1)
	go func() {
		done <- a.commands.PreloadAll(ctx, progress)
	}()

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case results := <-done:
			if a.styled {
				fmt.Fprint(a.out, clearSpinnerLine)
			}
			return printPreload(a.out, a.styled, results)
		case <-ticker.C:
			if !a.styled {
				continue
			}
			mu.Lock()
			l, t := loaded, total
			mu.Unlock()
			frame++
			fmt.Fprintf(a.out, "\r%s Loading datasets %d/%d...",
				styles.SpinnerStyle.Render(styles.SpinnerFrames[frame%len(styles.SpinnerFrames)]), l, t)
		}
	}
}

func (a *app) stats() error {
	snap, err := a.queries.Snapshot()
	if err != nil {
		return err
	}
	printStats(a.out, a.styled, tracker.Compute(snap, a.goals, time.Now()))
	return nil
}

func (a *app) watch(ctx context.Context) error {
	a.live(ctx)

	model := tui.NewModel(a.manager, a.queries, a.goals)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	a.logger.Info("starting TUI")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	a.logger.Info("shutting down")
	return nil
}

func (a *app) serve(ctx context.Context) error {
	a.live(ctx)

	gin.SetMode(gin.ReleaseMode)
	srv := api.NewServer(a.manager, a.commands, a.queries, a.search, a.goals, a.logger)
	fmt.Fprintf(a.out, "Serving on http://%s\n", a.cfg.API.Addr)
	return srv.Run(ctx, a.cfg.API.Addr)
}
