package log

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Level represents log severity levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, case insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
}

// Logger interface defines structured logging methods. Args are key/value
// pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level Level)
	SetJSONOutput(enabled bool)
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level      Level
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// DefaultLogger writes text or JSON lines to stderr.
type DefaultLogger struct {
	// mu, level and jsonOutput are shared with the loggers made by With.
	mu         *sync.Mutex
	level      *Level
	jsonOutput *bool
	stdout     io.Writer
	stderr     io.Writer
	colors     bool
	fields     []interface{}
	now        func() time.Time
}

var (
	defaultLogger *DefaultLogger
	once          sync.Once
)

// New creates a new logger with the given configuration
func New(cfg LoggerConfig) *DefaultLogger {
	level, jsonOutput := cfg.Level, cfg.JSONOutput
	l := &DefaultLogger{
		mu:         &sync.Mutex{},
		level:      &level,
		jsonOutput: &jsonOutput,
		stdout:     cfg.Stdout,
		stderr:     cfg.Stderr,
		now:        time.Now,
	}
	if l.stdout == nil {
		l.stdout = os.Stdout
	}
	if l.stderr == nil {
		l.stderr = os.Stderr
	}
	l.colors = IsTerminal(l.stderr)
	return l
}

// Default returns the default logger instance
func Default() *DefaultLogger {
	once.Do(func() {
		defaultLogger = New(LoggerConfig{Level: InfoLevel})
	})
	return defaultLogger
}

// IsTerminal reports if w is a terminal that accepts color codes.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// With returns a logger that adds the key/value pairs to every message.
// The returned logger shares its output and level with l.
func (l *DefaultLogger) With(args ...interface{}) *DefaultLogger {
	c := *l
	c.fields = append(append([]interface{}(nil), l.fields...), args...)
	return &c
}

// pairs splits args into keys and values. A leading odd value is kept
// under the key "arg".
func pairs(args []interface{}) ([]string, []interface{}) {
	if len(args)%2 != 0 {
		args = append([]interface{}{"arg"}, args...)
	}
	keys := make([]string, 0, len(args)/2)
	vals := make([]interface{}, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		keys = append(keys, key)
		vals = append(vals, args[i+1])
	}
	return keys, vals
}

// formatMessage renders msg followed by key=value pairs.
func formatMessage(msg string, args ...interface{}) string {
	if len(args) == 0 {
		return msg
	}
	var sb strings.Builder
	sb.WriteString(msg)
	keys, vals := pairs(args)
	for i, key := range keys {
		fmt.Fprintf(&sb, " %s=%v", key, vals[i])
	}
	return sb.String()
}

func getColor(level Level) string {
	switch level {
	case DebugLevel:
		return "\033[36m"
	case InfoLevel:
		return "\033[32m"
	case WarnLevel:
		return "\033[33m"
	case ErrorLevel:
		return "\033[31m"
	default:
		return ""
	}
}

func (l *DefaultLogger) log(level Level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < *l.level {
		return
	}
	if len(l.fields) > 0 {
		args = append(append([]interface{}(nil), l.fields...), args...)
	}
	timestamp := l.now().Format("2006-01-02 15:04:05")

	if *l.jsonOutput {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"message":   msg,
		}
		keys, vals := pairs(args)
		for i, key := range keys {
			if err, ok := vals[i].(error); ok {
				entry[key] = err.Error()
				continue
			}
			entry[key] = vals[i]
		}
		data, err := json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(l.stderr, "[%s] %s: %s\n", timestamp, level, formatMessage(msg, args...))
			return
		}
		fmt.Fprintln(l.stderr, string(data))
		return
	}

	text := formatMessage(msg, args...)
	if l.colors {
		text = getColor(level) + text + "\033[0m"
	}
	fmt.Fprintf(l.stderr, "[%s] %s: %s\n", timestamp, level, text)
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...interface{}) { l.log(DebugLevel, msg, args) }

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...interface{}) { l.log(InfoLevel, msg, args) }

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, args ...interface{}) { l.log(WarnLevel, msg, args) }

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...interface{}) { l.log(ErrorLevel, msg, args) }

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.level = level
}

// SetJSONOutput enables or disables JSON output
func (l *DefaultLogger) SetJSONOutput(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.jsonOutput = enabled
}

type ctxKey struct{}

// WithLogger returns a context carrying l.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger of ctx, or the default logger.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return Default()
}

// Spinner shows a message with an animated glyph while a long operation runs.
type Spinner struct {
	mu      sync.Mutex
	message string
	frames  []string
	writer  io.Writer
	colors  bool
	done    chan struct{}
	stopped sync.WaitGroup
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		message: message,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		writer:  w,
		colors:  IsTerminal(w),
	}
}

// Start begins the animation. Start on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped.Add(1)
	go s.animate(s.done)
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	s.stopped.Wait()
	fmt.Fprint(s.writer, "\r\033[K")
}

// Message updates the spinner message
func (s *Spinner) Message(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

func (s *Spinner) animate(done <-chan struct{}) {
	defer s.stopped.Done()
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := s.frames[i%len(s.frames)]
			if s.colors {
				fmt.Fprintf(s.writer, "\r\033[36m%s\033[0m %s", frame, s.message)
			} else {
				fmt.Fprintf(s.writer, "\r%s %s", frame, s.message)
			}
			s.mu.Unlock()
		}
	}
}
