package server

import (
	"fmt"
	log "log/slog"
	"strings"
)

// slogBackend feeds go-pkgz/rest middleware logs into slog.
type slogBackend struct{}

func (slogBackend) Logf(format string, args ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	switch {
	case strings.HasPrefix(msg, "[DEBUG]"):
		log.Debug(strings.TrimSpace(strings.TrimPrefix(msg, "[DEBUG]")))
	case strings.HasPrefix(msg, "[WARN]"), strings.HasPrefix(msg, "[ERROR]"):
		log.Warn(msg)
	default:
		log.Info(msg)
	}
}
