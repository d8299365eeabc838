package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/speedrun-hq/speedrun-settlement/pkg/chains"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	ErrorLevel
)

var levelPrefixes = map[Level]string{
	DebugLevel:  "[DEBUG]  ",
	InfoLevel:   "[INFO]   ",
	NoticeLevel: "[NOTICE] ",
	ErrorLevel:  "[ERROR]  ",
}

var chainColors = map[int]color.Attribute{
	1:        color.FgHiGreen,
	56:       color.FgYellow,
	137:      color.FgMagenta,
	42161:    color.FgHiBlue,
	43114:    color.FgRed,
	8453:     color.FgBlue,
	7000:     color.FgGreen,
	11155111: color.FgHiCyan,
	84532:    color.FgCyan,
}

// ParseLevel converts a config value into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "notice":
		return NoticeLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level: %s", s)
}

// Logger is a simple interface for logging messages.
// The WithChain variants prefix the message with the chain name.
type Logger interface {
	Info(format string, args ...interface{})
	InfoWithChain(chainID int, format string, args ...interface{})

	Error(format string, args ...interface{})
	ErrorWithChain(chainID int, format string, args ...interface{})

	Debug(format string, args ...interface{})
	DebugWithChain(chainID int, format string, args ...interface{})

	Notice(format string, args ...interface{})
	NoticeWithChain(chainID int, format string, args ...interface{})
}

// EmptyLogger discards everything; used in tests.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Info(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) InfoWithChain(_ int, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) ErrorWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Debug(_ string, _ ...interface{})                  {}
func (l *EmptyLogger) DebugWithChain(_ int, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                 {}
func (l *EmptyLogger) NoticeWithChain(_ int, _ string, _ ...interface{}) {}

// StdLogger writes through the standard log package with level and chain prefixes.
type StdLogger struct {
	enableColoring bool
	level          Level
	output         *log.Logger
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
		output:         log.Default(),
	}
}

// chainPrefix renders e.g. "[BASE] " padded so messages line up
func (l *StdLogger) chainPrefix(chainID int) string {
	if chainID == 0 {
		return ""
	}
	name := chains.GetChainName(chainID)
	if name == "" {
		name = fmt.Sprintf("%d", chainID)
	}
	prefix := fmt.Sprintf("%-8s", "["+name+"]") + " "
	if l.enableColoring {
		attr, ok := chainColors[chainID]
		if !ok {
			attr = color.FgWhite
		}
		prefix = color.New(attr).Sprint(prefix)
	}
	return prefix
}

func (l *StdLogger) formatMessage(level Level, chainID int, format string) string {
	return levelPrefixes[level] + l.chainPrefix(chainID) + format
}

func (l *StdLogger) logf(level Level, chainID int, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Printf(l.formatMessage(level, chainID, format), args...)
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, 0, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID int, format string, args ...interface{}) {
	l.logf(InfoLevel, chainID, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, 0, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID int, format string, args ...interface{}) {
	l.logf(ErrorLevel, chainID, format, args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, 0, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID int, format string, args ...interface{}) {
	l.logf(DebugLevel, chainID, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, 0, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID int, format string, args ...interface{}) {
	l.logf(NoticeLevel, chainID, format, args...)
}
