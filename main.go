// lingua - a terminal client for language-learning chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/jeranaias/lingua/internal/completion"
	"github.com/jeranaias/lingua/internal/config"
	"github.com/jeranaias/lingua/internal/engine"
	"github.com/jeranaias/lingua/internal/log"
	"github.com/jeranaias/lingua/internal/model"
	"github.com/jeranaias/lingua/internal/quota"
	"github.com/jeranaias/lingua/internal/storage"
	"github.com/jeranaias/lingua/internal/translate"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.lingua/config.toml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lingua %s (%s)\n", Version, GitCommit)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := log.New(log.Config{Level: parseLevel(cfg.Log.Level), JSON: cfg.Log.JSON})

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	sessions := storage.NewSessionStore(store, cfg.Storage.MaxSessions, logger.With("component", "storage"))
	limiter := quota.NewDailyLimiter(cfg.Quota.DailyLimit, store, logger.With("component", "quota"))
	translator := translate.NewClient(translate.Config{
		Enabled:           cfg.Translation.Enabled,
		BaseURL:           cfg.Translation.BaseURL,
		Timeout:           cfg.TranslationTimeout(),
		RequestsPerSecond: cfg.Translation.RequestsPerSecond,
	}, logger.With("component", "translate"))
	client := completion.NewClient(&completion.ClientConfig{
		BaseURL: cfg.Completion.BaseURL,
		Timeout: cfg.CompletionTimeout(),
	}, logger.With("component", "completion"))

	eng := engine.New(client, sessions, limiter, translator, engine.Options{
		UserID:        cfg.Chat.UserID,
		Language:      cfg.Chat.Language,
		LearningLevel: cfg.Chat.LearningLevel,
		TranslateTo:   cfg.Translation.TargetLanguage,
		OnDelta: func(sessionID, delta string) {
			fmt.Print(delta)
		},
	}, logger.With("component", "engine"))

	return repl(eng, cfg)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// openStore creates the key-value backend selected by the config.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch strings.ToLower(cfg.Storage.Backend) {
	case "sqlite":
		return storage.NewSQLiteStore(filepath.Join(cfg.Storage.Dir, "lingua.db"), cfg.Storage.MaxBytes)
	default:
		return storage.NewFileStore(cfg.Storage.Dir, cfg.Storage.MaxBytes)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// REPL
// =============================================================================

// repl runs the interactive loop. Ctrl-C during a stream stops the current
// send (the partial reply is discarded); at the prompt it exits.
func repl(eng *engine.Engine, cfg *config.Config) error {
	// The signal goroutine reads the current session concurrently with /new.
	var current atomic.Pointer[model.Session]
	current.Store(eng.NewSession())

	fmt.Printf("lingua %s | learning %s (%s) | /help for commands\n",
		Version, cfg.Chat.Language, cfg.Chat.LearningLevel)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigs {
			eng.Stop(current.Load().ID)
		}
	}()
	defer signal.Stop(sigs)

	readLine, closeLine := lineReader()
	defer closeLine()
	for {
		text, err := readLine()
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return nil
			}
			return err
		}

		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			quit, err := handleCommand(eng, &current, strings.TrimSpace(text))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		sess := current.Load()
		msg, err := eng.Send(context.Background(), sess.ID, text)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		case eng.State(sess.ID) == engine.StateAborted:
			fmt.Println("\n(stopped)")
		case msg.Content != "":
			fmt.Println()
			if msg.Translation != "" {
				fmt.Printf("  ~ %s\n", msg.Translation)
			}
		}
	}
}

// handleCommand dispatches a slash command. Returns true when the REPL
// should exit.
func handleCommand(eng *engine.Engine, current *atomic.Pointer[model.Session], cmd string) (bool, error) {
	switch cmd {
	case "/new":
		current.Store(eng.NewSession())
		fmt.Println("started a new session")
	case "/clear":
		if err := eng.ClearSession(current.Load().ID); err != nil {
			return false, err
		}
		current.Store(eng.NewSession())
		fmt.Println("session cleared")
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Println("commands: /new  /clear  /quit")
	default:
		fmt.Printf("unknown command %q, try /help\n", cmd)
	}
	return false, nil
}

// lineReader returns a prompt function and its cleanup: liner when stdin is
// a terminal, a plain scanner otherwise (piped input).
func lineReader() (func() (string, error), func()) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		read := func() (string, error) {
			text, err := line.Prompt("you> ")
			if err == nil && strings.TrimSpace(text) != "" {
				line.AppendHistory(text)
			}
			return text, err
		}
		return read, func() { line.Close() }
	}

	scanner := bufio.NewScanner(os.Stdin)
	read := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return scanner.Text(), nil
	}
	return read, func() {}
}
