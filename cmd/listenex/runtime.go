package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/listenex/internal/bundle"
	"github.com/felixgeelhaar/listenex/internal/config"
	"github.com/felixgeelhaar/listenex/internal/domain"
	"github.com/felixgeelhaar/listenex/internal/engine"
	"github.com/felixgeelhaar/listenex/internal/queue"
	"github.com/felixgeelhaar/listenex/internal/result"
	"github.com/felixgeelhaar/listenex/internal/storage/sqlite"
)

const (
	databaseFile = "listenex.db"
	exampleArg   = "example"
)

// runtime holds what playing commands share: config, logging, the result
// store and the completion event fan-out.
type runtime struct {
	dir        string
	cfg        *config.LocalConfig
	results    result.Store
	dispatcher *domain.EventDispatcher

	closers []func()
}

// newRuntime loads config and sets up logging. stderrLogs is false for
// commands that own the terminal.
func newRuntime(stderrLogs bool) (*runtime, error) {
	dir, err := config.EnsureListenexDir()
	if err != nil {
		return nil, fmt.Errorf("setup listenex directory: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logFile, err := setupLogging(dir, parseLogLevel(cfg.LogLevel), stderrLogs)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	rt := &runtime{
		dir:        dir,
		cfg:        cfg,
		dispatcher: domain.NewEventDispatcher(),
	}
	rt.onClose(func() { _ = logFile.Close() })
	return rt, nil
}

func (rt *runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Close releases everything in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// openResults opens the configured result backend.
func (rt *runtime) openResults(ctx context.Context) (result.Store, error) {
	if rt.results != nil {
		return rt.results, nil
	}

	switch rt.cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(filepath.Join(rt.dir, databaseFile))
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		rt.onClose(func() { _ = db.Close() })
		rt.results = sqlite.NewResultStore(db)
	default:
		store, err := result.NewJSONStore(rt.dir)
		if err != nil {
			return nil, err
		}
		rt.results = store
	}
	return rt.results, nil
}

// record saves every completion to the result store.
func (rt *runtime) record(ctx context.Context) error {
	store, err := rt.openResults(ctx)
	if err != nil {
		return err
	}
	result.NewRecorder(store, slog.Default()).Attach(rt.dispatcher)
	return nil
}

// report publishes completions over AMQP when reporting is enabled. A broker
// that cannot be reached disables reporting for this run.
func (rt *runtime) report() {
	amqpCfg := rt.cfg.Reporting.AMQP
	if !amqpCfg.Enabled {
		return
	}
	conn, err := queue.NewConnection(amqpCfg.URL)
	if err != nil {
		slog.Warn("result reporting disabled", "error", err)
		return
	}
	rt.onClose(func() { _ = conn.Close() })

	cfg := queue.DefaultReporterConfig()
	cfg.Logger = slog.Default()
	reporter := queue.NewReporter(conn, cfg)
	reporter.Attach(rt.dispatcher)
	rt.onClose(reporter.Close)
}

// engineOptions maps the player config onto engine options.
func (rt *runtime) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithDispatcher(rt.dispatcher),
		engine.WithReveal(engine.ParseRevealMode(rt.cfg.Player.Reveal), rt.cfg.Player.RevealDelay()),
	}
	if !rt.cfg.Player.Shuffle {
		opts = append(opts, engine.WithoutShuffle())
	}
	return opts
}

// loadExercise opens path, or builds the demo exercise when path is
// "example". The returned file system is nil for the demo.
func loadExercise(path string) (*domain.ExerciseDocument, fs.FS, func(), error) {
	if path == exampleArg {
		return bundle.Example(3, 2), nil, func() {}, nil
	}
	b, err := bundle.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	return b.Document, b.FS, func() { _ = b.Close() }, nil
}

// requireArgs fails with usage when fewer than n arguments were given.
func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: listenex %s", usage)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
