package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/mmcdole/lifetrack/internal/auth"
	"github.com/mmcdole/lifetrack/internal/config"
)

// runSetupFlow handles the initial setup when no backend is configured
func runSetupFlow(cfg *config.Config, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Welcome to lifetrack!")
	fmt.Fprintln(out)

	if err := promptBackend(cfg, in, out); err != nil {
		return err
	}

	if err := config.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved!")
	fmt.Fprintln(out)
	return nil
}

// promptBackend fills in cfg.Remote from answers read from in.
func promptBackend(cfg *config.Config, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	for {
		answer, err := prompt(reader, out, fmt.Sprintf("Backend (postgrest, postgres, sqlite) [%s]: ", cfg.Remote.Type))
		if err != nil {
			return err
		}
		if answer == "" {
			answer = string(cfg.Remote.Type)
		}
		switch config.BackendType(answer) {
		case config.BackendPostgrest, config.BackendPostgres, config.BackendSQLite:
			cfg.Remote.Type = config.BackendType(answer)
		default:
			fmt.Fprintf(out, "Unknown backend %q. Please try again.\n", answer)
			continue
		}
		break
	}

	switch cfg.Remote.Type {
	case config.BackendPostgrest:
		url, err := promptRequired(reader, out, "Project URL (e.g., https://xyz.supabase.co): ")
		if err != nil {
			return err
		}
		cfg.Remote.URL = strings.TrimRight(url, "/")

		if cfg.Remote.APIKey, err = promptSecret(reader, in, out, "API key: ", true); err != nil {
			return err
		}
		if cfg.Remote.AccessToken, err = promptSecret(reader, in, out, "Access token (optional): ", false); err != nil {
			return err
		}
		if cfg.Remote.AccessToken != "" {
			session, err := auth.FromToken(cfg.Remote.AccessToken)
			if err != nil {
				fmt.Fprintf(out, "Warning: %v; changes will only sync manually.\n", err)
			} else {
				fmt.Fprintf(out, "✓ Signed in as %s\n", session.UserID)
			}
		}

	case config.BackendPostgres:
		dsn, err := promptRequired(reader, out, "Connection string (postgres://...): ")
		if err != nil {
			return err
		}
		cfg.Remote.DSN = dsn

	case config.BackendSQLite:
		path, err := prompt(reader, out, "Database file [lifetrack-remote.db in the data directory]: ")
		if err != nil {
			return err
		}
		if path == "" {
			path = filepath.Join(config.GetDataPath(), "lifetrack-remote.db")
		}
		cfg.Remote.Path = path
	}
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	input, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(input), nil
}

func promptRequired(reader *bufio.Reader, out io.Writer, question string) (string, error) {
	for {
		answer, err := prompt(reader, out, question)
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		fmt.Fprintln(out, "This value cannot be empty. Please try again.")
	}
}

// promptSecret reads without echo when in is a terminal.
func promptSecret(reader *bufio.Reader, in io.Reader, out io.Writer, question string, required bool) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		if required {
			return promptRequired(reader, out, question)
		}
		return prompt(reader, out, question)
	}

	for {
		fmt.Fprint(out, question)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		answer := strings.TrimSpace(string(b))
		if answer != "" || !required {
			return answer, nil
		}
		fmt.Fprintln(out, "This value cannot be empty. Please try again.")
	}
}
