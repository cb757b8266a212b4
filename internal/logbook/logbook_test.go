package logbook

import (
	"os"
	"strings"
	"testing"
)

func TestAppendAndTail(t *testing.T) {
	dir := t.TempDir()
	book, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	book.Info("sweep %s started", "glasses-dog")
	book.Error("train exited with code %d", 1)

	lines := book.Tail(10)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "INFO") || !strings.Contains(lines[0], "glasses-dog") {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "ERROR") {
		t.Fatalf("unexpected second line: %s", lines[1])
	}
}

func TestTailLimitsToMostRecent(t *testing.T) {
	dir := t.TempDir()
	book, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry %d", i)
	}
	lines := book.Tail(2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "entry 4") {
		t.Fatalf("expected most recent entry last, got %s", lines[1])
	}
}

func TestJobLogCarriesRunName(t *testing.T) {
	dir := t.TempDir()
	book, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	job := book.Job("dog2_sds_dir_True_dcl_1500.0_bigglasses_lrs_3000_0.8_400")
	job.Info("Starting Training...")

	data, err := os.ReadFile(book.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[dog2_sds_dir_True_dcl_1500.0_bigglasses_lrs_3000_0.8_400] Starting Training...") {
		t.Fatalf("run name missing from entry: %s", data)
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("no-op")
	if got := book.Tail(5); got != nil {
		t.Fatalf("expected nil tail, got %v", got)
	}
	if book.Path() != "" {
		t.Fatal("nil logbook should have empty path")
	}
}
