// Package trace implements the per-run append-only trace sink.
//
// One NDJSON stream per stage plus a cumulative debug stream, all keyed
// by the run's slug. Appends are atomic per record (single write of one
// line under a per-stream mutex) and strictly ordered within a run.
// A failed append never fails the pipeline; it is reported to the
// operational logger instead.
package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentfoundry/agentfactory/internal/app"
	"github.com/agentfoundry/agentfactory/internal/application/port/output"
)

// debugStream is the cumulative stream that receives every record
const debugStream = "debug"

// Logger is a TraceWriter writing NDJSON streams under one run's
// workspace directory
type Logger struct {
	dir    string
	logger app.Logger

	mu      sync.Mutex
	streams map[string]*os.File
}

// Factory creates per-run trace loggers rooted in the workspaces dir
type Factory struct {
	workspacesDir string
	logger        app.Logger
}

// NewFactory creates a trace writer factory
func NewFactory(workspacesDir string, logger app.Logger) *Factory {
	if logger == nil {
		logger = app.GetLogger()
	}
	return &Factory{workspacesDir: workspacesDir, logger: logger}
}

// ForRun opens the trace sink for one run's slug
func (f *Factory) ForRun(slug string) output.TraceWriter {
	return &Logger{
		dir:     filepath.Join(f.workspacesDir, slug),
		logger:  f.logger,
		streams: map[string]*os.File{},
	}
}

// Record appends one entry to the stage stream and the debug stream.
// Errors are returned for observability but callers may ignore them;
// they are already reported to the operational logger here.
func (l *Logger) Record(ctx context.Context, rec *output.TraceRecord) error {
	if rec.TS == "" {
		rec.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		l.logger.Warn("trace: marshal record: %v", err)
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	stream := streamName(rec.Stage)
	if err := l.append(stream, line); err != nil {
		l.logger.Warn("trace: append %s: %v", stream, err)
		return err
	}
	if err := l.append(debugStream, line); err != nil {
		l.logger.Warn("trace: append %s: %v", debugStream, err)
		return err
	}
	return nil
}

// append writes one full line to a stream with O_APPEND, so the record
// is never observable partially written
func (l *Logger) append(stream string, line []byte) error {
	f, ok := l.streams[stream]
	if !ok {
		if err := os.MkdirAll(l.dir, 0o755); err != nil {
			return err
		}
		name := fmt.Sprintf("trace_%s.ndjson", stream)
		if stream == debugStream {
			name = "debug.log"
		}
		var err error
		f, err = os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		l.streams[stream] = f
	}

	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

// Close flushes and closes all open streams
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for name, f := range l.streams {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.streams, name)
	}
	return firstErr
}

func streamName(stage string) string {
	s := strings.ToLower(stage)
	if s == "" {
		return "run"
	}
	return s
}
