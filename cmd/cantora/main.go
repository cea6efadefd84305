// Command cantora scores recorded singing attempts against reference verses.
//
// It reads one attempt (or a JSON array of attempts) from a file or stdin,
// runs the scoring engine, and prints the combined report as JSON or as
// terminal tables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cantora-app/cantora/internal/config"
	"github.com/cantora-app/cantora/internal/engine"
	"github.com/cantora-app/cantora/internal/history"
	"github.com/cantora-app/cantora/internal/observe"
	"github.com/cantora-app/cantora/internal/score"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	attemptPath := flag.String("attempt", "-", "path to the attempt JSON (single object or array), \"-\" for stdin")
	modeFlag := flag.String("mode", "", "practice mode override: full, words, timing or pitch")
	format := flag.String("format", "table", "output format: table or json")
	historyPath := flag.String("history", "", "append scored attempts to this JSONL practice log")
	flag.Parse()

	if *format != "table" && *format != "json" {
		fmt.Fprintf(os.Stderr, "cantora: unknown format %q (want table or json)\n", *format)
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cantora: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cantora: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Engine.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "cantora"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Read attempts ─────────────────────────────────────────────────────────
	attempts, err := readAttempts(*attemptPath)
	if err != nil {
		slog.Error("failed to read attempts", "path", *attemptPath, "err", err)
		return 1
	}
	if len(attempts) == 0 {
		fmt.Fprintln(os.Stderr, "cantora: no attempts to score")
		return 1
	}
	if *modeFlag != "" {
		mode := score.Mode(*modeFlag)
		if !mode.IsValid() {
			fmt.Fprintf(os.Stderr, "cantora: unknown mode %q\n", *modeFlag)
			return 2
		}
		for i := range attempts {
			attempts[i].Mode = mode
		}
	}

	slog.Info("cantora starting",
		"config", *configPath,
		"attempts", len(attempts),
		"log_level", cfg.Engine.LogLevel,
	)

	// ── Score ─────────────────────────────────────────────────────────────────
	eng := engine.New(*cfg)

	outcomes, err := eng.ScoreBatch(ctx, attempts)
	if err != nil {
		slog.Error("scoring failed", "err", err)
		return 1
	}

	// ── Practice log ──────────────────────────────────────────────────────────
	if *historyPath != "" {
		store := history.NewFileStore(*historyPath)
		for _, out := range outcomes {
			if err := store.Append(out); err != nil {
				slog.Warn("failed to record practice log entry", "err", err)
				break
			}
		}
	}

	// ── Output ────────────────────────────────────────────────────────────────
	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(outcomes) == 1 {
			err = enc.Encode(outcomes[0])
		} else {
			err = enc.Encode(outcomes)
		}
		if err != nil {
			slog.Error("encode output", "err", err)
			return 1
		}
		return 0
	}

	for _, out := range outcomes {
		printOutcome(out)
	}
	return 0
}

// readAttempts decodes the attempt file: either a single attempt object or a
// JSON array of attempts. "-" reads stdin.
func readAttempts(path string) ([]engine.Attempt, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Peek at the first non-space byte to tell a batch from a single
	// attempt.
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			var batch []engine.Attempt
			if err := json.Unmarshal(data, &batch); err != nil {
				return nil, fmt.Errorf("decode attempt array: %w", err)
			}
			return batch, nil
		default:
			var att engine.Attempt
			if err := json.Unmarshal(data, &att); err != nil {
				return nil, fmt.Errorf("decode attempt: %w", err)
			}
			return []engine.Attempt{att}, nil
		}
	}
	return nil, errors.New("empty attempt input")
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
