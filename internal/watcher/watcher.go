// internal/watcher/watcher.go
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/xkilldash9x/hindsight/internal/coroner"
)

// DefaultQuietPeriod is how long a traceback may go without a new line
// before it is considered complete.
const DefaultQuietPeriod = 100 * time.Millisecond

// Incident is one traceback observed in a watched log.
type Incident struct {
	ID         string
	DetectedAt time.Time
	Trace      string
}

// Watcher tails a log file and reports every Python traceback written to it
// after the watch started.
type Watcher struct {
	logger    *zap.Logger
	logPath   string
	incidents chan<- Incident
	quiet     time.Duration
	now       func() time.Time
	done      chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.quiet = d
		}
	}
}

// NewWatcher creates a watcher for logPath that sends incidents on the given
// channel. The channel is never closed by the watcher.
func NewWatcher(logger *zap.Logger, logPath string, incidents chan<- Incident, opts ...Option) (*Watcher, error) {
	if logPath == "" {
		return nil, errors.New("a log file to watch is required")
	}
	if incidents == nil {
		return nil, errors.New("an incident channel is required")
	}

	w := &Watcher{
		logger:    logger.Named("watcher"),
		logPath:   logPath,
		incidents: incidents,
		quiet:     DefaultQuietPeriod,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins tailing the log from its current end. Lines already in the
// file are ignored, and the file is reopened if it is rotated. Monitoring
// stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting log watcher.", zap.String("log_file", w.logPath))

	t, err := tail.TailFile(w.logPath, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail log file: %w", err)
	}

	go w.monitorLoop(ctx, t)
	return nil
}

// Done is closed once the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// monitorLoop feeds tailed lines to the assembler and emits every traceback
// it completes, or that goes quiet for the configured period.
func (w *Watcher) monitorLoop(ctx context.Context, t *tail.Tail) {
	defer close(w.done)
	defer func() {
		if err := t.Stop(); err != nil {
			w.logger.Debug("Tailer stopped with error.", zap.Error(err))
		}
		t.Cleanup()
	}()

	var asm assembler
	quiet := time.NewTimer(w.quiet)
	if !quiet.Stop() {
		<-quiet.C
	}
	stopQuiet := func() {
		if !quiet.Stop() {
			select {
			case <-quiet.C:
			default:
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			stopQuiet()
			w.emit(ctx, asm.flush())
			w.logger.Info("Stopping log watcher.")
			return

		case line, ok := <-t.Lines:
			if !ok {
				stopQuiet()
				w.emit(ctx, asm.flush())
				w.logger.Info("Log tailer channel closed.")
				return
			}
			if line.Err != nil {
				w.logger.Warn("Error reading from log file.", zap.Error(line.Err))
				continue
			}

			for _, trace := range asm.feed(line.Text) {
				w.emit(ctx, trace)
			}
			stopQuiet()
			if asm.pending() {
				quiet.Reset(w.quiet)
			}

		case <-quiet.C:
			w.emit(ctx, asm.flush())
		}
	}
}

func (w *Watcher) emit(ctx context.Context, trace string) {
	if trace == "" {
		return
	}
	incident := Incident{
		ID:         uuid.New().String(),
		DetectedAt: w.now(),
		Trace:      trace,
	}
	w.logger.Info("Traceback detected.", zap.String("incident_id", incident.ID))

	select {
	case w.incidents <- incident:
	case <-ctx.Done():
		w.logger.Warn("Context cancelled while sending incident.", zap.String("incident_id", incident.ID))
	}
}

// assembler groups log lines into complete tracebacks. A traceback starts at
// its header and ends with the first unindented line after the header,
// which is the error line.
type assembler struct {
	lines []string
}

// feed consumes one line and returns any tracebacks it completed.
func (a *assembler) feed(line string) []string {
	line = strings.TrimRight(line, "\r")
	var completed []string

	if idx := strings.Index(line, coroner.TracebackHeader); idx >= 0 {
		if trace := a.flush(); trace != "" {
			completed = append(completed, trace)
		}
		a.lines = append(a.lines, line[idx:])
		return completed
	}

	if !a.pending() {
		return nil
	}
	a.lines = append(a.lines, line)
	if isErrorLine(line) {
		completed = append(completed, a.flush())
	}
	return completed
}

func (a *assembler) pending() bool {
	return len(a.lines) > 0
}

// flush returns the buffered traceback, if any, and resets the buffer.
func (a *assembler) flush() string {
	if len(a.lines) == 0 {
		return ""
	}
	trace := strings.Join(a.lines, "\n")
	a.lines = nil
	return trace
}

func isErrorLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	return line[0] != ' ' && line[0] != '\t'
}
