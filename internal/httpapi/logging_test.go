package httpapi

import (
	"net/http/httptest"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_QueryOverride(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
}

func TestRequestLogLevel_HeaderOverride(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestRequestLogLevel_DefaultsWhenNoHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/x", nil)
	if got := requestLogLevel(r); got != defaultLogLevel {
		t.Fatalf("expected default level %v, got %v", defaultLogLevel, got)
	}
}

func TestLogRequestEndDoesNotPanicWithoutLogger(t *testing.T) {
	zlog = nil
	r := httptest.NewRequest("GET", "/translate", nil)
	r.Header.Set("X-Log-Level", "debug")
	logRequestEnd(r, 200, nil)
}

func TestLogTranslateDebugNoopWhenIncludeTextDisabled(t *testing.T) {
	SetIncludeText(false)
	r := httptest.NewRequest("GET", "/translate", nil)
	r.Header.Set("X-Log-Level", "debug")
	logTranslateDebug(r, []string{"hi"}, []string{"hallo"})
}

func TestLogTranslateDebugDoesNotPanicWhenEnabled(t *testing.T) {
	SetIncludeText(true)
	defer SetIncludeText(false)
	r := httptest.NewRequest("GET", "/translate", nil)
	r.Header.Set("X-Log-Level", "debug")
	logTranslateDebug(r, []string{"hi"}, []string{"hallo"})
}
