package debug_test

import (
	"testing"

	"github.com/jskov/backup/internal/debug"
)

func BenchmarkLogStatic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		debug.Log("Static string")
	}
}

func BenchmarkLogArgs(b *testing.B) {
	for i := 0; i < b.N; i++ {
		debug.Log("element %v: %d bytes, xxh3 %016x", "dirA", 1234, uint64(i))
	}
}

func TestLogToStderr(t *testing.T) {
	if !debug.TestLogToStderr(t) {
		t.Skip("debug log already configured")
	}
	defer debug.TestDisableLog(t)

	if !debug.Enabled() {
		t.Fatal("debug log not enabled after TestLogToStderr")
	}
	debug.Log("hello from %v", t.Name())
}
