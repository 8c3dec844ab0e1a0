// Package logging provides config-driven categorized logging for expectkit.
// Every subsystem logs through a category logger obtained with Get. Logging is
// controlled by debug_mode in the logging config - when false, every category
// logger is a no-op.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot       Category = "boot"       // Initialization, config
	CategoryTypes      Category = "types"      // Type registry, classification
	CategoryAssertions Category = "assertions" // Signature parsing and resolution
	CategoryDispatch   Category = "dispatch"   // Dispatch core, failures
	CategoryHooks      Category = "hooks"      // Hook chain composition
	CategoryInstance   Category = "instance"   // clone/child/freeze/export
	CategoryDiff       Category = "diff"       // Equality and diff engines
	CategoryPromise    Category = "promise"    // Deferred computations
	CategoryStore      Category = "store"      // Run history store
	CategoryCLI        Category = "cli"        // Command line front-end
)

// Config mirrors config.LoggingConfig to avoid circular imports
type Config struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
	JSONFormat bool
	File       string
}

// Logger is a category-scoped sugared zap logger
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	base      = zap.NewNop()
	config    Config
	configMu  sync.RWMutex
)

// Initialize builds the zap backend from cfg. With DebugMode off every
// category logger stays a no-op.
func Initialize(cfg Config) error {
	if !cfg.DebugMode {
		InitializeWith(zap.NewNop(), cfg)
		return nil
	}

	var zc zap.Config
	if cfg.JSONFormat {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.File != "" {
		zc.OutputPaths = []string{cfg.File}
	} else {
		zc.OutputPaths = []string{"stderr"}
	}

	l, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	InitializeWith(l, cfg)

	Get(CategoryBoot).Info("logging initialized (level=%s, json=%v)", level, cfg.JSONFormat)
	return nil
}

// InitializeWith installs an existing zap logger as the backend.
func InitializeWith(l *zap.Logger, cfg Config) {
	configMu.Lock()
	config = cfg
	if l == nil {
		l = zap.NewNop()
	}
	base = l
	configMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	configMu.RLock()
	backend := base
	configMu.RUnlock()

	l := &Logger{
		category: category,
		sugar:    backend.Named(string(category)).Sugar(),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(kv...)}
}

// Sync flushes the backend. Call at shutdown.
func Sync() {
	configMu.RLock()
	backend := base
	configMu.RUnlock()
	_ = backend.Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// TypesDebug logs debug to the types category
func TypesDebug(format string, args ...interface{}) {
	Get(CategoryTypes).Debug(format, args...)
}

// TypesWarn logs a warning to the types category
func TypesWarn(format string, args ...interface{}) {
	Get(CategoryTypes).Warn(format, args...)
}

// AssertionsDebug logs debug to the assertions category
func AssertionsDebug(format string, args ...interface{}) {
	Get(CategoryAssertions).Debug(format, args...)
}

// Dispatch logs to the dispatch category
func Dispatch(format string, args ...interface{}) {
	Get(CategoryDispatch).Info(format, args...)
}

// DispatchDebug logs debug to the dispatch category
func DispatchDebug(format string, args ...interface{}) {
	Get(CategoryDispatch).Debug(format, args...)
}

// HooksDebug logs debug to the hooks category
func HooksDebug(format string, args ...interface{}) {
	Get(CategoryHooks).Debug(format, args...)
}

// InstanceWarn logs a warning to the instance category
func InstanceWarn(format string, args ...interface{}) {
	Get(CategoryInstance).Warn(format, args...)
}

// DiffDebug logs debug to the diff category
func DiffDebug(format string, args ...interface{}) {
	Get(CategoryDiff).Debug(format, args...)
}

// PromiseDebug logs debug to the promise category
func PromiseDebug(format string, args ...interface{}) {
	Get(CategoryPromise).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreError logs an error to the store category
func StoreError(format string, args ...interface{}) {
	Get(CategoryStore).Error(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// CLI logs to the cli category
func CLI(format string, args ...interface{}) {
	Get(CategoryCLI).Info(format, args...)
}

// CLIDebug logs debug to the cli category
func CLIDebug(format string, args ...interface{}) {
	Get(CategoryCLI).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
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
