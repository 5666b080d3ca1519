package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bitdiag/bitdiag/agent/internal/config"
	"github.com/bitdiag/bitdiag/agent/internal/fswatch"
)

type fileReader struct {
	src config.Source
}

// Read loads the whole file at src.Path.
func (r *fileReader) Read(ctx context.Context) (*ReadResult, error) {
	res := newResult(r.src)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.src.Path)
	if err != nil {
		res.Err = fmt.Errorf("file source %q: %w", r.src.ID, err)
		slog.Warn("source: file read failed", "source", r.src.ID, "path", r.src.Path, "err", err)
		return res, nil
	}
	res.Text = string(data)
	return res, nil
}

type inlineReader struct {
	src config.Source
}

// Read returns the literal data from the config.
func (r *inlineReader) Read(context.Context) (*ReadResult, error) {
	res := newResult(r.src)
	res.Text = r.src.Data
	return res, nil
}

// WatchFile calls onChange whenever the input file of a watched file source
// changes. It blocks until ctx is cancelled.
func WatchFile(ctx context.Context, src config.Source, onChange func()) error {
	if src.Type != config.TypeFile || !src.Watch {
		return fmt.Errorf("source %q: not a watched file source", src.ID)
	}
	slog.Info("source: watching input file", "source", src.ID, "path", src.Path)
	return fswatch.Watch(ctx, src.Path, 50*time.Millisecond, onChange)
}
