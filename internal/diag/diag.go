package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Level is the severity of a log entry (higher value = higher severity)
type Level int

const (
	LevelDebug Level = iota // Decoder and correlator detail (verbose only)
	LevelInfo               // Progress narration (verbose only)
	LevelWarn               // Nothing to format, skipped inputs (always shown)
	LevelError              // I/O and configuration failures (always shown)
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// MarshalText renders the level by name in JSON and YAML dumps
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText reads a level name
func (l *Level) UnmarshalText(text []byte) error {
	for lv := LevelDebug; lv <= LevelError; lv++ {
		if string(text) == lv.String() {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", text)
}

// Category is the stage that produced an entry
type Category string

const (
	CatScan      Category = "scan"
	CatDecode    Category = "decode"
	CatCorrelate Category = "correlate"
	CatFormat    Category = "format"
	CatPolicy    Category = "policy"
	CatIO        Category = "io"
	CatConfig    Category = "config"
)

// Entry is one retained log line
type Entry struct {
	Level    Level    `json:"level" yaml:"level"`
	Category Category `json:"category" yaml:"category"`
	Message  string   `json:"message" yaml:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s:%s] %s", e.Level, e.Category, e.Message)
}

// ANSI colour codes for terminal output
const (
	colorGray   = "\x1b[90m"
	colorYellow = "\x1b[93m"
	colorRed    = "\x1b[91m"
	colorReset  = "\x1b[0m"
)

// Logger retains every entry of a run and mirrors it to a writer. Debug and
// info entries are only mirrored in verbose mode.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	color   bool
	entries []Entry
	parent  *Logger
}

// New creates a logger writing to out
func New(out io.Writer, verbose bool) *Logger {
	return &Logger{
		out:     out,
		verbose: verbose,
		color:   supportsColor(out),
	}
}

// Discard creates a logger that only retains entries
func Discard() *Logger {
	return &Logger{}
}

// Child returns a logger that retains its own entries and forwards every
// entry to l. Each text unit logs to its own child.
func (l *Logger) Child() *Logger {
	return &Logger{parent: l}
}

// supportsColor checks if w is a terminal that supports colour output
func supportsColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	// Respect NO_COLOR (https://no-color.org/)
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// SetVerbose toggles mirroring of debug and info entries
func (l *Logger) SetVerbose(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = v
}

// Log records an entry and mirrors it when its level is shown
func (l *Logger) Log(level Level, cat Category, format string, args ...any) {
	l.emit(Entry{Level: level, Category: cat, Message: fmt.Sprintf(format, args...)})
}

func (l *Logger) emit(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()

	if l.parent != nil {
		l.parent.emit(e)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil || (e.Level < LevelWarn && !l.verbose) {
		return
	}
	if !l.color {
		_, _ = fmt.Fprintln(l.out, e.String())
		return
	}
	c := colorGray
	switch e.Level {
	case LevelWarn:
		c = colorYellow
	case LevelError:
		c = colorRed
	}
	_, _ = fmt.Fprintf(l.out, "%s%s%s\n", c, e.String(), colorReset)
}

func (l *Logger) Debugf(cat Category, format string, args ...any) {
	l.Log(LevelDebug, cat, format, args...)
}

func (l *Logger) Infof(cat Category, format string, args ...any) {
	l.Log(LevelInfo, cat, format, args...)
}

func (l *Logger) Warnf(cat Category, format string, args ...any) {
	l.Log(LevelWarn, cat, format, args...)
}

func (l *Logger) Errorf(cat Category, format string, args ...any) {
	l.Log(LevelError, cat, format, args...)
}

// Entries returns a copy of everything logged so far
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Count returns how many entries were logged at the given level
func (l *Logger) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
