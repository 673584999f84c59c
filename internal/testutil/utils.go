package testutil

import (
	"bytes"
	"log"
	"testing"
)

// TestLogger returns a logger that buffers output and replays it through
// t.Log when the test fails, keeping passing runs quiet.
func TestLogger(t *testing.T) *log.Logger {
	var buf bytes.Buffer
	logger := log.New(&buf, "[test] ", log.LstdFlags)
	t.Cleanup(func() {
		if t.Failed() && buf.Len() > 0 {
			t.Log(buf.String())
		}
	})
	return logger
}
