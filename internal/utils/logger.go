package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Log levels
const (
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
	DEBUG = "DEBUG"
)

var (
	instance *Logger
	once     sync.Once
)

// Logger writes leveled lines to the log file and stdout. A scoped logger
// from With prefixes every message with its scope, such as a session id.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	scope       string
}

// getDefaultLogFilePath returns the default log file path
func getDefaultLogFilePath() string {
	logDir, err := DefaultDataDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %v", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}
	return filepath.Join(logDir, "blockdeque.log")
}

// NewLogger creates the process-wide logger. Later calls return the first
// instance unchanged.
func NewLogger(logFilePath string, debugMode bool) *Logger {
	once.Do(func() {
		if logFilePath == "" {
			logFilePath = getDefaultLogFilePath()
		}

		file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}

		// Log to both the file and console; debug lines reach the console
		// only in debug mode.
		multiWriter := io.MultiWriter(file, os.Stdout)
		var debugWriter io.Writer = file
		if debugMode {
			debugWriter = multiWriter
		}
		instance = newLogger(multiWriter, debugWriter)
	})
	return instance
}

func newLogger(out, debugOut io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(out, "["+INFO+"] ", log.Ldate|log.Ltime),
		warnLogger:  log.New(out, "["+WARN+"] ", log.Ldate|log.Ltime),
		errorLogger: log.New(out, "["+ERROR+"] ", log.Ldate|log.Ltime),
		debugLogger: log.New(debugOut, "["+DEBUG+"] ", log.Ldate|log.Ltime),
	}
}

// GetLogger retrieves the singleton logger instance
func GetLogger() *Logger {
	if instance == nil {
		log.Fatalf("Logger has not been initialized. Call NewLogger() first.")
	}
	return instance
}

// With returns a logger sharing l's outputs whose messages start with
// "[scope] ". Scopes nest: With("a").With("b") writes "[a] [b] ".
func (l *Logger) With(scope string) *Logger {
	scoped := *l
	scoped.scope = l.scope + "[" + scope + "] "
	return &scoped
}

// Logging methods
func (l *Logger) Info(message string) {
	l.infoLogger.Println(l.scope + message)
}

func (l *Logger) Warn(message string) {
	l.warnLogger.Println(l.scope + message)
}

func (l *Logger) Error(message string) {
	l.errorLogger.Println(l.scope + message)
}

func (l *Logger) Debug(message string) {
	l.debugLogger.Println(l.scope + message)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}
