package app

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStripANSI(t *testing.T) {
	t.Parallel()

	in := ansiBlue + "INFO" + ansiReset + " plain " + ansiRed + "ERR" + ansiReset
	got := stripANSI(in)
	want := "INFO plain ERR"
	if got != want {
		t.Fatalf("stripANSI()=%q want=%q", got, want)
	}
}

func TestPrettyHandler_ColoredFieldsStripClean(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true))
	log.Info("http.request", "method", "get", "path", "/session", "status", 200, "duration_ms", int64(1200), "status_class", "2xx")

	raw := buf.String()
	if !strings.Contains(raw, ansiReset) {
		t.Fatalf("expected ANSI sequences in colored output: %q", raw)
	}

	plain := stripANSI(raw)
	for _, want := range []string{"method=GET", "path=/session", "status=200", "duration=1200ms", "class=2xx"} {
		if !strings.Contains(plain, want) {
			t.Fatalf("missing %q in %q", want, plain)
		}
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).With("component", "session").WithGroup("renewal")
	log.Info("session.renewal.fail", "kind", "transport", slog.Group("http", "status", 503))

	out := buf.String()
	for _, want := range []string{"component=session", "renewal.kind=transport", "renewal.http.status=503"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          `""`,
		"plain":     "plain",
		"two words": `"two words"`,
		"a=b":       `"a=b"`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}
