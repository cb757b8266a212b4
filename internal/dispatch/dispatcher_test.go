package dispatch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/history"
	"github.com/voxsweep/voxsweep/internal/runspec"
	"github.com/voxsweep/voxsweep/internal/sweep"
)

// fakeCommander records every invocation and simulates the trainer by
// touching the expected checkpoint file unless told not to.
type fakeCommander struct {
	cfg            *config.Config
	invocations    []Invocation
	exitCodes      map[Step]int
	skipCheckpoint bool
}

func (f *fakeCommander) Run(_ context.Context, inv Invocation) (int, error) {
	f.invocations = append(f.invocations, inv)
	if inv.Step == StepTrain && !f.skipCheckpoint {
		ckpt := filepath.Join(f.cfg.ProjectDir, flagValue(inv.Args, "-o"))
		name := "model_final.pth"
		if strings.Contains(inv.Args[0], "edit_pretrained") && flagValue(inv.Args, "--index_to_attn") == "" {
			name = "model_final_refined.pth"
		}
		dir := filepath.Join(ckpt, "saved_models")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte("ckpt"), 0o644); err != nil {
			return 0, err
		}
	}
	return f.exitCodes[inv.Step], nil
}

func testSweep() sweep.Sweep {
	s := sweep.Sweep{
		Name: "unit",
		Specs: []runspec.Spec{
			{Scene: "dog2", Prompt: "a dog", LogName: "one"},
			{Scene: "dog2", Prompt: "a dog in a hat", LogName: "parked", Skip: true},
			{Scene: "pineapple", Prompt: "a pineapple", LogName: "two"},
		},
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

func newTestDispatcher(t *testing.T, opts Options) (*Dispatcher, *fakeCommander, *bytes.Buffer) {
	t.Helper()
	cfg := testConfig(t)
	fake := &fakeCommander{cfg: cfg, exitCodes: map[Step]int{}}
	var out bytes.Buffer
	opts.Commander = fake
	opts.Stdout = &out
	opts.Stderr = &out
	if opts.Env == nil {
		opts.Env = []string{"PATH=/usr/bin"}
	}
	return New(cfg, opts), fake, &out
}

func TestRunSweepDispatchesActiveSpecsInOrder(t *testing.T) {
	d, fake, out := newTestDispatcher(t, Options{})
	summary, err := d.RunSweep(context.Background(), testSweep())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected 2 jobs (skipped spec excluded), got %d", len(summary.Results))
	}
	// One train followed by one render per job, in source order.
	if len(fake.invocations) != 4 {
		t.Fatalf("expected 4 invocations, got %d", len(fake.invocations))
	}
	wantSteps := []Step{StepTrain, StepRender, StepTrain, StepRender}
	for i, inv := range fake.invocations {
		if inv.Step != wantSteps[i] {
			t.Fatalf("invocation %d: got step %s want %s", i, inv.Step, wantSteps[i])
		}
	}
	if !strings.Contains(flagValue(fake.invocations[0].Args, "-o"), "_one_") {
		t.Fatalf("first job out of order: %v", fake.invocations[0].Args)
	}
	if !strings.Contains(flagValue(fake.invocations[2].Args, "-o"), "_two_") {
		t.Fatalf("second job out of order: %v", fake.invocations[2].Args)
	}
	for _, inv := range fake.invocations {
		if strings.Contains(flagValue(inv.Args, "-o"), "parked") {
			t.Fatal("skipped spec was dispatched")
		}
	}
	banners := strings.Count(out.String(), "Starting Training...")
	if banners != 2 {
		t.Fatalf("expected 2 training banners, got %d", banners)
	}
	if summary.Err() != nil {
		t.Fatalf("unexpected sweep failure: %v", summary.Err())
	}
}

func TestChildEnvCarriesGPUIndex(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, Options{GPU: 3})
	if _, err := d.RunSweep(context.Background(), testSweep()); err != nil {
		t.Fatal(err)
	}
	for _, inv := range fake.invocations {
		found := false
		for _, kv := range inv.Env {
			if kv == "CUDA_VISIBLE_DEVICES=3" {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s step missing device variable: %v", inv.Step, inv.Env)
		}
	}
}

func TestChildEnvDefaultsToGPUZero(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, Options{})
	if _, err := d.RunSweep(context.Background(), testSweep()); err != nil {
		t.Fatal(err)
	}
	for _, kv := range fake.invocations[0].Env {
		if kv == "CUDA_VISIBLE_DEVICES=0" {
			return
		}
	}
	t.Fatalf("expected CUDA_VISIBLE_DEVICES=0 by default, env: %v", fake.invocations[0].Env)
}

func TestTrainFailureIsRecordedAndSweepContinues(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, Options{})
	fake.exitCodes[StepTrain] = 1
	summary, err := d.RunSweep(context.Background(), testSweep())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("sweep must continue past failures, got %d results", len(summary.Results))
	}
	for _, r := range summary.Results {
		if r.Status != StatusFailed {
			t.Fatalf("expected failed status, got %s", r.Status)
		}
		if r.Train == nil || r.Train.ExitCode != 1 {
			t.Fatalf("train exit code not recorded: %+v", r.Train)
		}
		// Checkpoint exists (the fake still writes it), so rendering was
		// attempted and its exit code recorded.
		if r.Render == nil {
			t.Fatal("render step should still run when the checkpoint exists")
		}
	}
	if summary.Err() == nil {
		t.Fatal("summary must report failed jobs")
	}
}

func TestMissingCheckpointSkipsRender(t *testing.T) {
	d, fake, out := newTestDispatcher(t, Options{})
	fake.skipCheckpoint = true
	summary, err := d.RunSweep(context.Background(), testSweep())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	for _, inv := range fake.invocations {
		if inv.Step == StepRender {
			t.Fatal("render must not run without a checkpoint")
		}
	}
	for _, r := range summary.Results {
		if r.Status != StatusFailed {
			t.Fatalf("expected failure, got %s", r.Status)
		}
		if r.Err == nil || !strings.Contains(r.Err.Error(), "not produced") {
			t.Fatalf("expected a named checkpoint error, got %v", r.Err)
		}
	}
	if strings.Contains(out.String(), "Starting Rendering...") {
		t.Fatal("rendering banner printed for a skipped render")
	}
}

func TestDryRunPrintsInvocationsWithoutExecuting(t *testing.T) {
	d, fake, out := newTestDispatcher(t, Options{DryRun: true})
	summary, err := d.RunSweep(context.Background(), testSweep())
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(fake.invocations) != 0 {
		t.Fatalf("dry run must not execute, got %d invocations", len(fake.invocations))
	}
	for _, r := range summary.Results {
		if r.Status != StatusDryRun {
			t.Fatalf("expected dry-run status, got %s", r.Status)
		}
	}
	text := out.String()
	if !strings.Contains(text, "run_sds_on_high_res_model.py") || !strings.Contains(text, "render_sh_based_voxel_grid.py") {
		t.Fatalf("dry run should print both invocations:\n%s", text)
	}
}

func TestRunSweepWritesManifests(t *testing.T) {
	store := history.NewStore(filepath.Join(t.TempDir(), "runs"))
	d, _, _ := newTestDispatcher(t, Options{History: store, GPU: 2})
	summary, err := d.RunSweep(context.Background(), testSweep())
	if err != nil {
		t.Fatal(err)
	}
	records, err := store.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != len(summary.Results) {
		t.Fatalf("expected %d manifests, got %d", len(summary.Results), len(records))
	}
	for _, rec := range records {
		if rec.GPU != 2 || rec.Sweep != "unit" {
			t.Fatalf("manifest fields wrong: %+v", rec)
		}
		if rec.TrainExit == nil || rec.RenderExit == nil {
			t.Fatalf("manifest missing exit codes: %+v", rec)
		}
	}
}

func TestCancelledContextStopsBeforeNextJob(t *testing.T) {
	d, fake, _ := newTestDispatcher(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.RunSweep(ctx, testSweep())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(fake.invocations) != 0 {
		t.Fatalf("no invocations expected after cancellation, got %d", len(fake.invocations))
	}
}

func TestEventsAreEmittedInOrder(t *testing.T) {
	events := make(chan Event, 64)
	d, _, _ := newTestDispatcher(t, Options{Events: events})
	if _, err := d.RunSweep(context.Background(), testSweep()); err != nil {
		t.Fatal(err)
	}
	close(events)
	var kinds []string
	for ev := range events {
		switch ev.(type) {
		case SweepStarted:
			kinds = append(kinds, "sweep-start")
		case JobStarted:
			kinds = append(kinds, "job-start")
		case StepStarted:
			kinds = append(kinds, "step-start")
		case StepFinished:
			kinds = append(kinds, "step-finish")
		case JobFinished:
			kinds = append(kinds, "job-finish")
		case SweepFinished:
			kinds = append(kinds, "sweep-finish")
		}
	}
	want := []string{
		"sweep-start",
		"job-start", "step-start", "step-finish", "step-start", "step-finish", "job-finish",
		"job-start", "step-start", "step-finish", "step-start", "step-finish", "job-finish",
		"sweep-finish",
	}
	if len(kinds) != len(want) {
		t.Fatalf("event count: got %d want %d (%v)", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, kinds[i], want[i])
		}
	}
}
