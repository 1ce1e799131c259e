// Package logutil configures log/slog for mimic binaries.
package logutil

import (
	"io"
	"log/slog"
	"path/filepath"
)

// LevelTrace is below slog.LevelDebug and logs per-batch detail.
const LevelTrace slog.Level = -8

// NewLogger returns a text logger at level. Source locations are added at
// debug and below, trimmed to the file's base name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}
