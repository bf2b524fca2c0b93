package logger

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestSetDebugMode(t *testing.T) {
	// Arrange
	originalMode := IsDebugMode()
	defer SetDebugMode(originalMode) // 테스트 후 복원

	// Act & Assert
	SetDebugMode(true)
	if !IsDebugMode() {
		t.Error("Expected debug mode to be enabled")
	}

	SetDebugMode(false)
	if IsDebugMode() {
		t.Error("Expected debug mode to be disabled")
	}
}

func TestDebug_WhenDisabled(t *testing.T) {
	// Arrange
	SetDebugMode(false)
	buf := captureOutput(t)

	// Act
	Debug("test message")

	// Assert
	if buf.Len() > 0 {
		t.Error("Expected no output when debug mode is disabled")
	}
}

func TestDebug_WhenEnabled(t *testing.T) {
	// Arrange
	SetDebugMode(true)
	defer SetDebugMode(false)
	buf := captureOutput(t)

	// Act
	Debug("test message: %s", "hello")

	// Assert
	output := buf.String()
	if !strings.Contains(output, "logger_test.go") {
		t.Errorf("Expected output to contain caller file name, got: %s", output)
	}
	if !strings.Contains(output, "test message: hello") {
		t.Errorf("Expected output to contain formatted message, got: %s", output)
	}
}

func TestDebugFunc_WhenDisabled(t *testing.T) {
	// Arrange
	SetDebugMode(false)
	buf := captureOutput(t)

	// Act
	cleanup := DebugFunc("TestFunction")
	cleanup()

	// Assert
	if buf.Len() > 0 {
		t.Error("Expected no output when debug mode is disabled")
	}
}

func TestDebugFunc_WhenEnabled(t *testing.T) {
	// Arrange
	SetDebugMode(true)
	defer SetDebugMode(false)
	buf := captureOutput(t)

	// Act
	cleanup := DebugFunc("TestFunction")
	cleanup()

	// Assert
	output := buf.String()
	if !strings.Contains(output, "→ TestFunction()") {
		t.Errorf("Expected entry log, got: %s", output)
	}
	if !strings.Contains(output, "← TestFunction()") {
		t.Errorf("Expected exit log, got: %s", output)
	}
}

func TestInfoWarnError_Attributes(t *testing.T) {
	// Arrange
	SetDebugMode(false)
	buf := captureOutput(t)

	// Act
	Info("session persisted", "session_id", "sess-42")
	Warn("index update failed", "frames", 3)
	Error("submit failed", "kind", "timeout")

	// Assert
	output := buf.String()
	for _, want := range []string{"session persisted", "session_id=sess-42", "frames=3", "kind=timeout"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, got: %s", want, output)
		}
	}
}
