// Package export saves attendee exports downloaded by the attendees slice.
// It watches the slice's container and writes every new payload to disk,
// then clears the slot.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kirinyoku/ticksy/internal/slice/attendees"
	"github.com/kirinyoku/ticksy/internal/state"
)

var ErrEmptyFilename = errors.New("export has no filename")

// Source is the part of the attendees slice the handler needs.
type Source interface {
	Container() *state.Container[attendees.State]
	ClearExport(seq uint64)
}

// Result describes one handled export.
type Result struct {
	Seq  uint64
	Path string
	Err  error
}

type Option func(*Handler)

// WithNotify registers fn to receive the outcome of every handled export.
func WithNotify(fn func(Result)) Option {
	return func(h *Handler) {
		h.notify = fn
	}
}

type Handler struct {
	dir    string
	logger *slog.Logger
	notify func(Result)

	mu   sync.Mutex
	last uint64
}

func New(dir string, logger *slog.Logger, opts ...Option) *Handler {
	if dir == "" {
		dir = "."
	}

	h := &Handler{dir: dir, logger: logger}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Attach subscribes the handler to src. The returned function detaches it.
func (h *Handler) Attach(src Source) (detach func()) {
	return src.Container().Subscribe(func(st attendees.State) {
		ready := st.Export
		if ready == nil {
			return
		}

		h.mu.Lock()
		if ready.Seq <= h.last {
			h.mu.Unlock()
			return
		}
		h.last = ready.Seq
		h.mu.Unlock()

		path, err := h.write(ready)
		if err != nil {
			h.logger.Error("attendee export not saved",
				"event_id", ready.EventID, "format", ready.Format, "error", err)
		} else {
			h.logger.Info("attendee export saved",
				"event_id", ready.EventID, "path", path, "bytes", len(ready.Payload))
		}

		src.ClearExport(ready.Seq)

		if h.notify != nil {
			h.notify(Result{Seq: ready.Seq, Path: path, Err: err})
		}
	})
}

func (h *Handler) write(ready *attendees.ExportReady) (string, error) {
	const op = "export.Handler.write"

	name := filepath.Base(ready.Filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyFilename)
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	path := filepath.Join(h.dir, name)
	if err := os.WriteFile(path, ready.Payload, 0o644); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return path, nil
}
