package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func TestCSVLogHeaderAndBuffering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	c, err := NewCSVLog(path, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	c.OnLogLine([]string{"0", "1", "1", "1", "0", "5", "10", "Limit", "5"})
	c.OnLogLine([]string{"1", "1", "3", "1", "0", "5", "10", "Limit", "5"})

	// Below the threshold: nothing but the header on disk yet.
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("lines on disk = %d, want header only", len(lines))
	}

	// Third line hits the threshold and flushes.
	c.OnLogLine([]string{"2", "2", "1", "2", "1", "3", "10", "Limit", "3"})
	if lines := readLines(t, path); len(lines) != 4 {
		t.Fatalf("lines on disk = %d, want 4 after threshold flush", len(lines))
	}

	c.OnLogLine([]string{"3", "2", "3", "2", "1", "3", "10", "Limit", "3"})
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 5 {
		t.Fatalf("lines on disk = %d, want 5 after close", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Time,Agent ID,Message,") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[4] != "3,2,3,2,1,3,10,Limit,3" {
		t.Errorf("last line = %q", lines[4])
	}
}

func TestCSVLogFlushIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	c, err := NewCSVLog(path, 100, nil)
	if err != nil {
		t.Fatal(err)
	}
	c.OnLogLine([]string{"0", "1", "1", "1", "0", "5", "10", "Limit", "5"})

	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := c.Flush(); err != nil {
		t.Fatal(err)
	}
	if lines := readLines(t, path); len(lines) != 2 {
		t.Fatalf("lines on disk = %d, want 2 (no duplicate flushes)", len(lines))
	}
	c.Close()
}
