package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFiringAuditLoggerWritesFile(t *testing.T) {
	l := &FiringAuditLogger{enabled: true}
	path := filepath.Join(t.TempDir(), "firings.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&FiringLog{
		Flow:         "flow-1",
		TriggerID:    "trig-1",
		SyncName:     "OrderPaid",
		InvocationID: "inv-1",
		Concept:      "Notification",
		Action:       "send",
		DurationMs:   5,
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "OrderPaid") {
		t.Fatalf("expected sync name in log output, got %q", data)
	}
	if !strings.Contains(string(data), "inv-1") {
		t.Fatalf("expected invocation id in log output, got %q", data)
	}
}

func TestFiringAuditLoggerDisabledSkipsWrite(t *testing.T) {
	l := &FiringAuditLogger{enabled: false}
	path := filepath.Join(t.TempDir(), "firings.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&FiringLog{SyncName: "ShouldNotAppear"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no output when disabled, got %q", data)
	}
}
