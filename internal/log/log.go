// Package log holds the process-wide structured logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/motemen/go-loghttp"
)

// Logger is the global logger instance
var Logger *slog.Logger

var level = new(slog.LevelVar)

func init() {
	Init(os.Stderr, "info")
}

// Init points the global logger at w with the given level name
// (debug, info, warn, error). Unknown names fall back to info.
func Init(w io.Writer, levelName string) {
	lv, err := ParseLevel(levelName)
	if err != nil {
		lv = slog.LevelInfo
	}
	level.Set(lv)
	Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(Logger)
}

func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Transport returns the round tripper used for outgoing fetches. At debug
// level every request and response is logged.
func Transport() http.RoundTripper {
	if level.Level() > slog.LevelDebug {
		return http.DefaultTransport
	}
	return &loghttp.Transport{
		Transport: http.DefaultTransport,
		LogRequest: func(req *http.Request) {
			Debug("HTTP request",
				"method", req.Method,
				"url", req.URL.String(),
			)
		},
		LogResponse: func(resp *http.Response) {
			Debug("HTTP response",
				"method", resp.Request.Method,
				"url", resp.Request.URL.String(),
				"status_code", resp.StatusCode,
				"content_length", resp.ContentLength,
			)
		},
	}
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}
