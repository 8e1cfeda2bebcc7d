// Package logging provides categorized file-based logging for tribune.
// Logs are written to <data>/logs/ with separate date-stamped files per
// category. Logging is controlled by the debug flag passed to Initialize;
// when false, no log files are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem
type Category string

const (
	// Core lifecycle categories
	CategoryBoot      Category = "boot"      // Process startup and wiring
	CategoryScheduler Category = "scheduler" // Job scheduling and supervision
	CategoryServer    Category = "server"    // Dashboard HTTP API

	// Decision loop categories
	CategorySelector  Category = "selector"  // Action selection decisions
	CategoryBandit    Category = "bandit"    // Thompson sampling and rewards
	CategoryGenerator Category = "generator" // Content drafting and gates
	CategoryCrisis    Category = "crisis"    // Crisis signal and pause state

	// I/O categories
	CategoryPublish    Category = "publish"    // Platform adapters and multiplexer
	CategoryPerception Category = "perception" // Ingest, cursors, sensed events
	CategoryLLM        Category = "llm"        // LLM chat calls and budget

	// State categories
	CategoryPersona   Category = "persona"   // Persona versions and hot reload
	CategoryStore     Category = "store"     // SQLite store operations
	CategoryAnalytics Category = "analytics" // Metrics, KPIs, J-scores
)

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	debugMode bool
	logLevel  int // 0=debug, 1=info, 2=warn, 3=error
	stateMu   sync.RWMutex
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory. Should be called once at startup
// with the data directory. When debug is false this is a silent no-op and all
// loggers degrade to no-ops.
func Initialize(dataDir string, debug bool, level string) error {
	stateMu.Lock()
	debugMode = debug
	switch level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	stateMu.Unlock()

	if !debug {
		return nil
	}
	if dataDir == "" {
		return fmt.Errorf("data directory required")
	}

	stateMu.Lock()
	logsDir = filepath.Join(dataDir, "logs")
	stateMu.Unlock()

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== tribune logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Log level: %s", level)
	return nil
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return debugMode
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled.
func Get(category Category) *Logger {
	stateMu.RLock()
	enabled := debugMode && logsDir != ""
	dir := logsDir
	stateMu.RUnlock()

	if !enabled {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if debug mode is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// Scheduler logs to the scheduler category
func Scheduler(format string, args ...interface{}) {
	Get(CategoryScheduler).Info(format, args...)
}

// SchedulerDebug logs debug to the scheduler category
func SchedulerDebug(format string, args ...interface{}) {
	Get(CategoryScheduler).Debug(format, args...)
}

// Selector logs to the selector category
func Selector(format string, args ...interface{}) {
	Get(CategorySelector).Info(format, args...)
}

// SelectorDebug logs debug to the selector category
func SelectorDebug(format string, args ...interface{}) {
	Get(CategorySelector).Debug(format, args...)
}

// Bandit logs to the bandit category
func Bandit(format string, args ...interface{}) {
	Get(CategoryBandit).Info(format, args...)
}

// BanditDebug logs debug to the bandit category
func BanditDebug(format string, args ...interface{}) {
	Get(CategoryBandit).Debug(format, args...)
}

// Generator logs to the generator category
func Generator(format string, args ...interface{}) {
	Get(CategoryGenerator).Info(format, args...)
}

// GeneratorDebug logs debug to the generator category
func GeneratorDebug(format string, args ...interface{}) {
	Get(CategoryGenerator).Debug(format, args...)
}

// Crisis logs to the crisis category
func Crisis(format string, args ...interface{}) {
	Get(CategoryCrisis).Info(format, args...)
}

// CrisisWarn logs warning to the crisis category
func CrisisWarn(format string, args ...interface{}) {
	Get(CategoryCrisis).Warn(format, args...)
}

// Publish logs to the publish category
func Publish(format string, args ...interface{}) {
	Get(CategoryPublish).Info(format, args...)
}

// PublishDebug logs debug to the publish category
func PublishDebug(format string, args ...interface{}) {
	Get(CategoryPublish).Debug(format, args...)
}

// Perception logs to the perception category
func Perception(format string, args ...interface{}) {
	Get(CategoryPerception).Info(format, args...)
}

// PerceptionDebug logs debug to the perception category
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}

// LLM logs to the llm category
func LLM(format string, args ...interface{}) {
	Get(CategoryLLM).Info(format, args...)
}

// LLMDebug logs debug to the llm category
func LLMDebug(format string, args ...interface{}) {
	Get(CategoryLLM).Debug(format, args...)
}

// Persona logs to the persona category
func Persona(format string, args ...interface{}) {
	Get(CategoryPersona).Info(format, args...)
}

// PersonaWarn logs warning to the persona category
func PersonaWarn(format string, args ...interface{}) {
	Get(CategoryPersona).Warn(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Analytics logs to the analytics category
func Analytics(format string, args ...interface{}) {
	Get(CategoryAnalytics).Info(format, args...)
}

// AnalyticsDebug logs debug to the analytics category
func AnalyticsDebug(format string, args ...interface{}) {
	Get(CategoryAnalytics).Debug(format, args...)
}

// Server logs to the server category
func Server(format string, args ...interface{}) {
	Get(CategoryServer).Info(format, args...)
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
