package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewWithWriter_TagsRecords(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "api", "debug")
	log.Info("order created", slog.String("order_id", "ORD-20261018-0001"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not json: %v (%s)", err, buf.String())
	}
	if rec["service"] != "api" {
		t.Fatalf("missing service attr: %v", rec)
	}
	if rec["order_id"] != "ORD-20261018-0001" {
		t.Fatalf("missing order_id attr: %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
