package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/voxsweep/voxsweep/internal/runspec"
)

func sampleRecord(runName string, finished time.Time) Record {
	spec := runspec.Spec{
		Scene:   "dog2",
		Prompt:  "a cute light grey dog wearing big sunglasses",
		LogName: "bigglasses",
	}
	spec.ApplyDefaults()
	exit := 0
	return Record{
		RunName:    runName,
		Sweep:      "glasses-dog",
		GPU:        1,
		Spec:       spec,
		Status:     "succeeded",
		StartedAt:  finished.Add(-time.Hour),
		FinishedAt: finished,
		TrainExit:  &exit,
		RenderExit: &exit,
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "runs"))
	rec := sampleRecord("run-a", time.Now().UTC().Truncate(time.Second))
	if err := store.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load("run-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Sweep != rec.Sweep || got.GPU != rec.GPU || got.Status != rec.Status {
		t.Fatalf("record mismatch: got %+v", got)
	}
	if got.Spec.Prompt != rec.Spec.Prompt {
		t.Fatalf("spec not preserved: %+v", got.Spec)
	}
	if got.TrainExit == nil || *got.TrainExit != 0 {
		t.Fatalf("train exit not preserved: %v", got.TrainExit)
	}
}

func TestSaveRejectsMissingRunName(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(Record{}); err == nil {
		t.Fatal("expected error for record without run name")
	}
}

func TestListOrdersByFinishTime(t *testing.T) {
	store := NewStore(t.TempDir())
	base := time.Now().UTC()
	for i, name := range []string{"old", "mid", "new"} {
		if err := store.Save(sampleRecord(name, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatal(err)
		}
	}
	records, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].RunName != "new" || records[2].RunName != "old" {
		t.Fatalf("wrong order: %s, %s, %s", records[0].RunName, records[1].RunName, records[2].RunName)
	}
}

func TestListMissingDirMeansEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "never-created"))
	records, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if records != nil {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
