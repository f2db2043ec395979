// Command publicvoice-cli signs in to the PublicVoice backend from a terminal. The bearer
// token is kept in a local SQLite file so later invocations stay signed in.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/publicvoice/portal/internal/adapters/backend"
	"github.com/publicvoice/portal/internal/adapters/sqlite"
	"github.com/publicvoice/portal/internal/bootstrap"
	"github.com/publicvoice/portal/internal/service"
)

const (
	dbPathEnv          = "PUBLICVOICE_DB"
	defaultDBDir       = ".publicvoice"
	defaultDBFile      = "session.db"
	initialWaitTimeout = 15 * time.Second
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx     context.Context
	Logger  *slog.Logger
	Session *service.Session
	Out     io.Writer
	Prompt  prompter
}

func main() {
	// Logs go to stderr so command output stays clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := runCommand(ctx, logger, cmd, os.Args[2:])
	stop()
	if err != nil {
		if writeErr := writef(os.Stderr, "%s: %v\n", cmdName, err); writeErr != nil {
			logger.Error("print command error failed", "error", writeErr)
		}
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func runCommand(ctx context.Context, logger *slog.Logger, cmd command, args []string) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	path, err := dbPath()
	if err != nil {
		return err
	}
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Warn("close token database failed", "error", cerr)
		}
	}()

	sess, err := service.NewSession(ctx, service.SessionOptions{
		Store: sqlite.NewTokenStore(db, logger),
		API: backend.NewClient(backend.Config{
			BaseURL: cfg.Backend.APIURL,
			Timeout: cfg.Backend.Timeout,
			Logger:  logger,
		}),
		Config: service.SessionConfig{BaseURL: cfg.Backend.APIURL, Logger: logger},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	// Settle the stored token first so every command sees a resolved state.
	waitCtx, cancel := context.WithTimeout(ctx, initialWaitTimeout)
	_, waitErr := sess.Wait(waitCtx)
	cancel()
	if waitErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	return cmd.run(&commandContext{
		Ctx:     ctx,
		Logger:  logger,
		Session: sess,
		Out:     os.Stdout,
		Prompt:  newTerminalPrompter(os.Stdin, os.Stderr),
	}, args)
}

// dbPath is PUBLICVOICE_DB or ~/.publicvoice/session.db; the parent directory is created.
func dbPath() (string, error) {
	path := os.Getenv(dbPathEnv)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("locate home directory (set %s): %w", dbPathEnv, err)
		}
		path = filepath.Join(home, defaultDBDir, defaultDBFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	return path, nil
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Log in with email and password",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create a citizen account and log in",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "Forget the stored token",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the signed-in account",
			run:         runWhoami,
		},
		"open": {
			name:        "open",
			description: "Show where the portal would send you for a page path",
			run:         runOpen,
		},
		"forgot-password": {
			name:        "forgot-password",
			description: "Request a password reset email",
			run:         runForgotPassword,
		},
		"reset-password": {
			name:        "reset-password",
			description: "Set a new password with the emailed reset token",
			run:         runResetPassword,
		},
		"profile": {
			name:        "profile",
			description: "Change your display name",
			run:         runProfile,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: publicvoice-cli <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return writef(w, "\nThe token is stored in $%s (default ~/%s/%s).\n", dbPathEnv, defaultDBDir, defaultDBFile)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

// resultError turns a failed credential Result into an error for the exit status.
func resultError(res service.Result) error {
	if res.OK {
		return nil
	}
	return errors.New(res.Error)
}
