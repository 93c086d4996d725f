package app

import (
	"io"
	"log/slog"

	"github.com/kirinyoku/ticksy/internal/config"
)

func NewLogger(mode config.Mode, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if mode == config.ModeDevelopment {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
