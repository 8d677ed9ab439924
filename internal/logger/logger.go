// Package logger configures structured JSON logging for trialmatch
// binaries. Warnings and errors are sampled; their counters are not.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Level is slog.Level with trace and fatal added
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate atomic.Int32
	programLevel    = new(slog.LevelVar)
	exit            = os.Exit
)

// Counters are incremented regardless of sampling
var (
	TotalErrors      atomic.Int64
	TotalWarnings    atomic.Int64
	Total4xxErrors   atomic.Int64
	Total5xxErrors   atomic.Int64
	UnmappableTrials atomic.Int64
	MatchRuns        atomic.Int64
)

func init() {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = LevelInfo
	}
	programLevel.Set(level)

	// ERROR_SAMPLE_RATE=N logs one out of every N warnings and errors
	errorSampleRate.Store(1)
	if sampleStr := os.Getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			errorSampleRate.Store(int32(rate))
		}
	}

	Setup(os.Stdout)
}

// Setup sends JSON logs to w. Command line tools log to stderr so that
// stdout carries their output.
func Setup(w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// SetSampleRate logs one out of every rate warnings and errors. Rates
// below 1 log everything.
func SetSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	errorSampleRate.Store(int32(rate))
}

// ParseLevel converts a level name to a slog.Level. An empty name is INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs a trace-level message
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug-level message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info-level message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a sampled warning
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error logs a sampled error
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs msg and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	exit(1)
}

// HTTPStatus counts a failed HTTP response by class
func HTTPStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
		TotalErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
		TotalWarnings.Add(1)
	}
}

// Stats is a snapshot of the counters
type Stats struct {
	Errors           int64 `json:"errors"`
	Warnings         int64 `json:"warnings"`
	HTTP4xx          int64 `json:"http4xx"`
	HTTP5xx          int64 `json:"http5xx"`
	UnmappableTrials int64 `json:"unmappableTrials"`
	MatchRuns        int64 `json:"matchRuns"`
}

// Snapshot returns the current counter values
func Snapshot() Stats {
	return Stats{
		Errors:           TotalErrors.Load(),
		Warnings:         TotalWarnings.Load(),
		HTTP4xx:          Total4xxErrors.Load(),
		HTTP5xx:          Total5xxErrors.Load(),
		UnmappableTrials: UnmappableTrials.Load(),
		MatchRuns:        MatchRuns.Load(),
	}
}
