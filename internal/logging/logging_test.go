package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLoggerTo(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		format  Format
		logFn   func()
		want    string
		wantOut bool
	}{
		{
			name:    "Info level JSON format",
			level:   LevelInfo,
			format:  FormatJSON,
			logFn:   func() { Info("hello", "key", "value") },
			want:    `"msg":"hello"`,
			wantOut: true,
		},
		{
			name:    "Debug filtered at Info level",
			level:   LevelInfo,
			format:  FormatJSON,
			logFn:   func() { Debug("hidden") },
			wantOut: false,
		},
		{
			name:    "Text format",
			level:   LevelDebug,
			format:  FormatText,
			logFn:   func() { Debug("visible", "key", "value") },
			want:    "msg=visible key=value",
			wantOut: true,
		},
		{
			name:    "Error level drops warnings",
			level:   LevelError,
			format:  FormatText,
			logFn:   func() { Warn("dropped") },
			wantOut: false,
		},
		{
			name:    "Default level (invalid value)",
			level:   Level(999),
			format:  FormatJSON,
			logFn:   func() { Info("info still logged") },
			want:    "info still logged",
			wantOut: true,
		},
	}

	defer InitLogger(LevelInfo, FormatText)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitLoggerTo(&buf, tt.level, tt.format)
			tt.logFn()

			out := buf.String()
			if !tt.wantOut {
				if out != "" {
					t.Errorf("expected no output, got %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want it to contain %q", out, tt.want)
			}
			if GetLogger() == nil {
				t.Error("Expected logger to be non-nil")
			}
		})
	}
}

func TestTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	InitLoggerTo(&buf, LevelInfo, FormatJSON)
	defer InitLogger(LevelInfo, FormatText)

	Info("stamp")
	out := buf.String()
	start := strings.Index(out, `"time":"`)
	if start < 0 {
		t.Fatalf("no time field in %q", out)
	}
	stamp := out[start+len(`"time":"`):]
	stamp = stamp[:strings.IndexByte(stamp, '"')]
	if _, err := time.Parse(time.RFC3339, stamp); err != nil {
		t.Errorf("time %q is not RFC3339: %v", stamp, err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("TEXT"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(TEXT) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestGetSource(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "Context with source",
			ctx:      WithSource(context.Background(), "family.ged"),
			expected: "family.ged",
		},
		{
			name:     "Context without source",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "Context with wrong type value",
			ctx:      context.WithValue(context.Background(), SourceKey, 12345),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := GetSource(tt.ctx); result != tt.expected {
				t.Errorf("GetSource() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestContextLoggingFunctions(t *testing.T) {
	ctx := WithSource(context.Background(), "tree.ged")

	tests := []struct {
		name string
		fn   func()
	}{
		{"DebugContext", func() { DebugContext(ctx, "debug message", "key", "value") }},
		{"InfoContext", func() { InfoContext(ctx, "info message", "key", "value") }},
		{"WarnContext", func() { WarnContext(ctx, "warning message", "key", "value") }},
		{"ErrorContext", func() { ErrorContext(ctx, "error message", "key", "value") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			if !strings.Contains(output, `"source":"tree.ged"`) {
				t.Errorf("output = %q, want source attribute", output)
			}
		})
	}
}

func TestParseSummary(t *testing.T) {
	output := captureLogOutput(func() {
		ParseSummary(context.Background(), 12, 7, 3, 2, 1500*time.Millisecond, "strict", true)
	})

	for _, want := range []string{
		`"msg":"parse_summary"`,
		`"records":12`,
		`"individuals":7`,
		`"unions":3`,
		`"issues":2`,
		`"duration_ms":1500`,
		`"strict":true`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output = %q, want it to contain %s", output, want)
		}
	}
}

func TestIssueRecorded(t *testing.T) {
	output := captureLogOutput(func() {
		IssueRecorded(context.Background(), "dangling-pointer", "warning", "I1", 7, "FAMS @F9@ does not resolve")
	})
	for _, want := range []string{`"level":"DEBUG"`, `"kind":"dangling-pointer"`, `"entity_id":"I1"`, `"line":7`} {
		if !strings.Contains(output, want) {
			t.Errorf("output = %q, want it to contain %s", output, want)
		}
	}
}

func TestSnapshotSaved(t *testing.T) {
	output := captureLogOutput(func() {
		SnapshotSaved(context.Background(), "0b6c", "family", "ab12", true)
	})
	for _, want := range []string{`"msg":"snapshot_saved"`, `"snapshot_id":"0b6c"`, `"label":"family"`, `"created":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("output = %q, want it to contain %s", output, want)
		}
	}
}

func TestOperationError(t *testing.T) {
	output := captureLogOutput(func() {
		OperationError(context.Background(), "export", errors.New("unknown exporter"), "format", "csv")
	})
	for _, want := range []string{`"level":"ERROR"`, `"operation":"export"`, `"error":"unknown exporter"`, `"format":"csv"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output = %q, want it to contain %s", output, want)
		}
	}
}
