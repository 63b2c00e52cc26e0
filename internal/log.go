package internal

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// InitSlog installs the process-wide JSON logger at the given level.
func InitSlog(level string) {
	InitSlogTo(os.Stderr, level)
}

// InitSlogTo is InitSlog with a custom sink. It returns the level variable so
// callers can change verbosity at runtime.
func InitSlogTo(w io.Writer, level string) *slog.LevelVar {
	var programLevel slog.Level
	if err := (&programLevel).UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v, using info\n", level, err)
		programLevel = slog.LevelInfo
	}

	leveler := &slog.LevelVar{}
	leveler.Set(programLevel)

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     leveler,
	})
	slog.SetDefault(slog.New(h))

	return leveler
}

// GetRequestLogger returns a logger annotated with the client details Vox
// cares about when deciding a verification request.
func GetRequestLogger(r *http.Request) *slog.Logger {
	return slog.With(
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"content_type", r.Header.Get("Content-Type"),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	)
}

// ErrorLogFilter is used to suppress "context canceled" logs from the http server when a request is canceled (e.g., when a client disconnects mid-upload).
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (n int, err error) {
	logMessage := string(p)
	if strings.Contains(logMessage, "context canceled") {
		return len(p), nil
	}
	if elf.Unwrap != nil {
		return elf.Unwrap.Writer().Write(p)
	}
	return len(p), nil
}

func GetFilteredHTTPLogger() *log.Logger {
	stdErrLogger := log.New(os.Stderr, "", log.LstdFlags)
	return log.New(&ErrorLogFilter{Unwrap: stdErrLogger}, "", 0)
}
