package config

import (
	"io"
	"log/slog"
)

// NewLogger builds the process logger. The returned LevelVar can be changed
// at runtime, e.g. by Watch.
func NewLogger(w io.Writer, lc LogConfig) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	if l, err := ParseLevel(lc.Level); err == nil {
		level.Set(l)
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), level
	}
	return slog.New(slog.NewTextHandler(w, opts)), level
}
