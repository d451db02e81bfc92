// Package logger wraps log/slog: a process-wide default logger plus
// helpers for deriving a request-scoped logger that carries a
// correlation id.
package logger

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	once   sync.Once
	global *slog.Logger
)

// Config selects the level and encoding of the global logger.
type Config struct {
	Level     string // DEBUG, INFO, WARN, ERROR
	Format    string // json, text
	AddSource bool
}

// Init initializes the global logger. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		global = build(cfg)
		slog.SetDefault(global)
	})
}

func build(cfg Config) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// Get returns the global logger, initializing a sane default if Init was
// never called.
func Get() *slog.Logger {
	if global == nil {
		Init(Config{Level: "INFO", Format: "json"})
	}
	return global
}

type txnIDKey struct{}

// WithTransactionNum returns a context carrying transactionNum for later
// retrieval by ForContext, and the derived logger for immediate use. Every
// operation within one transaction shares this logger so that log lines
// from a given request correlate.
func WithTransactionNum(ctx context.Context, transactionNum string) (context.Context, *slog.Logger) {
	ctx = context.WithValue(ctx, txnIDKey{}, transactionNum)
	return ctx, Get().With("transaction_num", transactionNum)
}

// ForContext returns a logger tagged with the transaction number stashed
// in ctx by WithTransactionNum, or the bare global logger if none was set.
func ForContext(ctx context.Context) *slog.Logger {
	if v, ok := ctx.Value(txnIDKey{}).(string); ok && v != "" {
		return Get().With("transaction_num", v)
	}
	return Get()
}
