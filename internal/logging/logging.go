// Package logging builds the listener's slog logger.
//
// Every record is written to the console and appended to a log file. The
// default "line" format renders
//
//	[2024-05-01T12:00:00.000Z] Received push to main by octocat commits=3
//
// and the "json" format uses slog's JSON handler. Writes to the log file are
// best effort: a failing file never blocks or fails a request, and only the
// first failure is reported on stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"updatehook/internal/security"
)

const (
	FormatLine = "line"
	FormatJSON = "json"
)

// Options configures New and Open. Zero values select the line format,
// slog.LevelInfo, os.Stdout and os.Stderr.
type Options struct {
	Format string
	Level  slog.Leveler
	Stdout io.Writer
	Stderr io.Writer
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatLine
	}
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	return o
}

// New returns a logger writing to the console and to file. file may be nil
// for console-only logging.
func New(file io.Writer, opts Options) *slog.Logger {
	opts = opts.withDefaults()

	out, errOut := opts.Stdout, opts.Stderr
	if file != nil {
		sink := &bestEffortWriter{w: file, report: opts.Stderr}
		// MultiWriter stops at the first error; the sink never returns one.
		out = io.MultiWriter(sink, out)
		errOut = io.MultiWriter(sink, errOut)
	}

	if opts.Format == FormatJSON {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	}
	return slog.New(NewLineHandler(out, errOut, opts.Level))
}

// Open creates the log directory if needed, opens path for appending and
// returns a logger writing to it. The caller must close the returned file.
func Open(path string, opts Options) (*slog.Logger, io.Closer, error) {
	if err := security.CreateSecureDir(filepath.Dir(path), security.PermDirectory); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := security.OpenAppendFile(path, security.PermLogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return New(file, opts), file, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// bestEffortWriter swallows write errors so a broken log file cannot take
// down request handling.
type bestEffortWriter struct {
	w      io.Writer
	report io.Writer
	once   sync.Once
}

func (b *bestEffortWriter) Write(p []byte) (int, error) {
	if _, err := b.w.Write(p); err != nil {
		b.once.Do(func() {
			fmt.Fprintf(b.report, "logging: write to log file failed, further errors suppressed: %v\n", err)
		})
	}
	return len(p), nil
}
