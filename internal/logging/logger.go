// Package logging provides categorized structured logging for briefer.
// Every category shares one zap core; the category is attached as a field so
// pipeline, store and research output can be filtered after the fact.
// Until Initialize or Use is called all loggers are no-ops, which keeps tests quiet.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup, config loading
	CategoryPipeline   Category = "pipeline"   // Stage transitions, fallbacks
	CategoryPerception Category = "perception" // Text-generation backend calls
	CategoryResearch   Category = "research"   // Search and page fetching
	CategoryStore      Category = "store"      // History store, SQLite
	CategoryCheckpoint Category = "checkpoint" // Checkpoint sinks
	CategoryAPI        Category = "api"        // HTTP front end
)

// AllCategories lists every category known to the logger.
var AllCategories = []Category{
	CategoryBoot,
	CategoryPipeline,
	CategoryPerception,
	CategoryResearch,
	CategoryStore,
	CategoryCheckpoint,
	CategoryAPI,
}

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string          // debug, info, warn, error
	Format     string          // json, console
	File       string          // empty = stderr
	Categories map[string]bool // missing entries are enabled
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu       sync.RWMutex
	base     = zap.NewNop()
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	disabled = map[Category]bool{}
	loggers  = map[Category]*Logger{}
	logFile  *os.File
)

// Initialize builds the shared zap logger from opts.
func Initialize(opts Options) error {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)

	var sink zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	var file *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.AddSync(file)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "console", "text":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	off := map[Category]bool{}
	for name, enabled := range opts.Categories {
		if !enabled {
			off[Category(name)] = true
		}
	}

	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	disabled = off
	mu.Unlock()

	install(zap.New(zapcore.NewCore(enc, sink, level)))
	Get(CategoryBoot).Debug("logging initialized: level=%s format=%s file=%q", lvl, opts.Format, opts.File)
	return nil
}

// Use installs an externally built zap logger (the CLI builds one from flags).
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l)
}

func install(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
	loggers = map[Category]*Logger{}
}

// SetLevel changes the minimum level at runtime.
func SetLevel(s string) error {
	lvl, err := parseLevel(s)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the current minimum level.
func Level() string {
	return level.Level().String()
}

// AtomicLevel exposes the shared level so externally built loggers can follow SetLevel.
func AtomicLevel() zap.AtomicLevel {
	return level
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

// Sync flushes buffered entries and closes the log file, if any.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Get returns (or creates) the logger for a category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	zl := base
	if disabled[category] {
		zl = zap.NewNop()
	}
	l := &Logger{
		category: category,
		sugar:    zl.With(zap.String("cat", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// With returns a child logger carrying extra key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }

// Pipeline logs to the pipeline category
func Pipeline(format string, args ...interface{}) { Get(CategoryPipeline).Info(format, args...) }

// PipelineDebug logs debug to the pipeline category
func PipelineDebug(format string, args ...interface{}) {
	Get(CategoryPipeline).Debug(format, args...)
}

// PipelineWarn logs a warning to the pipeline category
func PipelineWarn(format string, args ...interface{}) { Get(CategoryPipeline).Warn(format, args...) }

// Perception logs to the perception category
func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }

// PerceptionDebug logs debug to the perception category
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// PerceptionError logs an error to the perception category
func PerceptionError(format string, args ...interface{}) {
	Get(CategoryPerception).Error(format, args...)
}

// Research logs to the research category
func Research(format string, args ...interface{}) { Get(CategoryResearch).Info(format, args...) }

// ResearchDebug logs debug to the research category
func ResearchDebug(format string, args ...interface{}) {
	Get(CategoryResearch).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// CheckpointDebug logs debug to the checkpoint category
func CheckpointDebug(format string, args ...interface{}) {
	Get(CategoryCheckpoint).Debug(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) { Get(CategoryAPI).Info(format, args...) }

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }

// =============================================================================
// TIMERS
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
