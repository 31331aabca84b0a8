package httpapi

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger installed for the HTTP layer. Falls back
// to the standard logger when unset (e.g. in unit tests that build a mux
// directly without going through cmd/nmtd's startup).
var zlog *zerolog.Logger

// SetLogger installs the process-wide structured logger.
func SetLogger(l zerolog.Logger) { zlog = &l }

// LogLevel controls per-request access-log verbosity.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

var defaultLogLevel = parseLevel(os.Getenv("LOG_LEVEL"))

func requestLogLevel(r *http.Request) LogLevel {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// includeText reports whether this request's translation input/output
// should be logged verbatim, per LOG_INCLUDE_TEXT — off by default since
// translation payloads can carry sensitive text.
var includeText bool

// SetIncludeText configures whether logTranslateDebug attaches request and
// response text.
func SetIncludeText(v bool) { includeText = v }

func logRequestEnd(r *http.Request, status int, err error) {
	lvl := requestLogLevel(r)
	if lvl < LevelInfo {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if zlog != nil {
		ev := zlog.Info().Str("path", r.URL.Path).Int("status", status)
		if rid != "" {
			ev = ev.Str("request_id", rid)
		}
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("request end")
		return
	}
	log.Printf("path=%s status=%d request_id=%s err=%v", r.URL.Path, status, rid, err)
}

// logTranslateDebug attaches the request's source texts and translated
// output to the debug log, gated by both the per-request level and
// LOG_INCLUDE_TEXT so payload text is never logged by default.
func logTranslateDebug(r *http.Request, texts, translated []string) {
	if !includeText || requestLogLevel(r) < LevelDebug {
		return
	}
	rid := middleware.GetReqID(r.Context())
	if zlog != nil {
		ev := zlog.Debug().Str("path", r.URL.Path).Strs("text", texts).Strs("translated", translated)
		if rid != "" {
			ev = ev.Str("request_id", rid)
		}
		ev.Msg("translate payload")
		return
	}
	log.Printf("path=%s request_id=%s text=%v translated=%v", r.URL.Path, rid, texts, translated)
}
