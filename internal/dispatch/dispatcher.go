package dispatch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/history"
	"github.com/voxsweep/voxsweep/internal/logbook"
	"github.com/voxsweep/voxsweep/internal/runspec"
	"github.com/voxsweep/voxsweep/internal/sweep"
)

// Status is the terminal state of one job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusDryRun    Status = "dry-run"
)

// StepResult records one external-program execution.
type StepResult struct {
	Step     Step
	ExitCode int
	Started  time.Time
	Finished time.Time
}

// JobResult records the outcome of one run specification: the train step,
// the render step, and the job-level verdict.
type JobResult struct {
	Index   int
	RunName string
	Spec    runspec.Spec
	Status  Status
	Train   *StepResult
	Render  *StepResult

	// Err carries the dispatcher's own complaint (missing checkpoint,
	// unstartable program), never the external program's failure; those
	// are visible only as exit codes, matching the external contract.
	Err error
}

// Summary is the outcome of a whole sweep.
type Summary struct {
	Sweep   string
	GPU     int
	Results []JobResult
}

// Failed returns the jobs that did not succeed.
func (s Summary) Failed() []JobResult {
	var failed []JobResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err reports the sweep-level verdict for callers that need an exit status.
func (s Summary) Err() error {
	if n := len(s.Failed()); n > 0 {
		return fmt.Errorf("dispatch: %d of %d jobs failed", n, len(s.Results))
	}
	return nil
}

// Event is delivered to the TUI while a sweep runs.
type Event interface{ event() }

// SweepStarted announces the job count before the first job begins.
type SweepStarted struct {
	Sweep string
	Jobs  int
}

// JobStarted announces one job beginning.
type JobStarted struct {
	Index   int
	Total   int
	RunName string
}

// StepStarted announces a train or render step beginning.
type StepStarted struct {
	Index   int
	RunName string
	Step    Step
}

// StepFinished carries a step's exit code.
type StepFinished struct {
	Index    int
	RunName  string
	Step     Step
	ExitCode int
}

// JobFinished carries a completed job's result.
type JobFinished struct {
	Result JobResult
}

// SweepFinished carries the final summary.
type SweepFinished struct {
	Summary Summary
}

func (SweepStarted) event()  {}
func (JobStarted) event()    {}
func (StepStarted) event()   {}
func (StepFinished) event()  {}
func (JobFinished) event()   {}
func (SweepFinished) event() {}

// Options configures a Dispatcher. The zero value is usable: GPU 0,
// executing for real, writing to the process's stdout and stderr.
type Options struct {
	// GPU is the device index exported as CUDA_VISIBLE_DEVICES.
	GPU int

	// DryRun prints the derived invocations instead of executing them.
	DryRun bool

	Stdout io.Writer
	Stderr io.Writer

	// Commander defaults to ExecCommander.
	Commander Commander

	// Events receives progress events when non-nil. Sends are blocking;
	// the TUI drains the channel for the lifetime of the sweep.
	Events chan<- Event

	// Book and History are optional sinks for the logbook and run
	// manifests.
	Book    *logbook.Logbook
	History *history.Store

	// Env is the base child environment, defaulting to os.Environ().
	Env []string
}

// Dispatcher executes sweeps one job at a time on a single GPU.
type Dispatcher struct {
	cfg  *config.Config
	opts Options
}

// New returns a dispatcher for the given project configuration.
func New(cfg *config.Config, opts Options) *Dispatcher {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Commander == nil {
		opts.Commander = ExecCommander{}
	}
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	return &Dispatcher{cfg: cfg, opts: opts}
}

// RunSweep executes every active spec in order. External-program failures
// are recorded per job and do not stop the sweep; the returned error is
// reserved for cancellation and dispatcher-level faults.
func (d *Dispatcher) RunSweep(ctx context.Context, sw sweep.Sweep) (Summary, error) {
	active := sw.Active()
	summary := Summary{Sweep: sw.Name, GPU: d.opts.GPU}

	d.opts.Book.Info("sweep %s: dispatching %d jobs on GPU %d", sw.Name, len(active), d.opts.GPU)
	d.emit(SweepStarted{Sweep: sw.Name, Jobs: len(active)})

	for i, spec := range active {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("dispatch: sweep %s cancelled: %w", sw.Name, err)
		}
		result, err := d.runJob(ctx, sw.Name, i, len(active), spec)
		summary.Results = append(summary.Results, result)
		d.emit(JobFinished{Result: result})
		d.saveManifest(sw.Name, result)
		if err != nil {
			// Cancellation mid-job; the partial summary still reports
			// what ran.
			return summary, err
		}
	}

	d.opts.Book.Info("sweep %s: done, %d failed", sw.Name, len(summary.Failed()))
	d.emit(SweepFinished{Summary: summary})
	return summary, nil
}

func (d *Dispatcher) runJob(ctx context.Context, sweepName string, index, total int, spec runspec.Spec) (JobResult, error) {
	runName := spec.RunName()
	book := d.opts.Book.Job(runName)
	result := JobResult{Index: index, RunName: runName, Spec: spec}

	d.emit(JobStarted{Index: index, Total: total, RunName: runName})
	book.Info("job %d/%d starting", index+1, total)

	trainInv := TrainInvocation(d.cfg, sweepName, spec)
	renderInv := RenderInvocation(d.cfg, sweepName, spec)

	if d.opts.DryRun {
		fmt.Fprintln(d.opts.Stdout, "Starting Training...")
		fmt.Fprintln(d.opts.Stdout, trainInv.String())
		fmt.Fprintln(d.opts.Stdout, "Starting Rendering...")
		fmt.Fprintln(d.opts.Stdout, renderInv.String())
		result.Status = StatusDryRun
		return result, nil
	}

	fmt.Fprintln(d.opts.Stdout, "Starting Training...")
	train, err := d.runStep(ctx, index, runName, trainInv)
	result.Train = train
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		book.Error("train step: %v", err)
		if ctx.Err() != nil {
			return result, err
		}
		return result, nil
	}
	if train.ExitCode != 0 {
		book.Error("train exited with code %d", train.ExitCode)
	}

	// The trainer reports success only through the checkpoint it leaves
	// behind. Rendering a missing checkpoint just moves the failure into
	// the render program's stack trace, so skip it with a named error.
	ckpt := spec.CheckpointPath()
	if _, statErr := os.Stat(filepath.Join(d.cfg.ProjectDir, ckpt)); statErr != nil {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("dispatch: checkpoint %s not produced by training", ckpt)
		book.Error("%v", result.Err)
		return result, nil
	}

	fmt.Fprintln(d.opts.Stdout, "Starting Rendering...")
	render, err := d.runStep(ctx, index, runName, renderInv)
	result.Render = render
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		book.Error("render step: %v", err)
		if ctx.Err() != nil {
			return result, err
		}
		return result, nil
	}

	if train.ExitCode != 0 || render.ExitCode != 0 {
		result.Status = StatusFailed
	} else {
		result.Status = StatusSucceeded
	}
	book.Info("job finished: %s", result.Status)
	return result, nil
}

func (d *Dispatcher) runStep(ctx context.Context, index int, runName string, inv Invocation) (*StepResult, error) {
	inv.Env = append(append([]string{}, d.opts.Env...), GPUEnv(d.opts.GPU))
	inv.Stdout = d.opts.Stdout
	inv.Stderr = d.opts.Stderr

	d.emit(StepStarted{Index: index, RunName: runName, Step: inv.Step})
	step := &StepResult{Step: inv.Step, Started: time.Now()}
	exit, err := d.opts.Commander.Run(ctx, inv)
	step.Finished = time.Now()
	if err != nil {
		return step, err
	}
	step.ExitCode = exit
	d.emit(StepFinished{Index: index, RunName: runName, Step: inv.Step, ExitCode: exit})
	return step, nil
}

func (d *Dispatcher) emit(ev Event) {
	if d.opts.Events != nil {
		d.opts.Events <- ev
	}
}

func (d *Dispatcher) saveManifest(sweepName string, result JobResult) {
	if d.opts.History == nil || result.Status == StatusDryRun {
		return
	}
	rec := history.Record{
		RunName:    result.RunName,
		Sweep:      sweepName,
		GPU:        d.opts.GPU,
		Spec:       result.Spec,
		Status:     string(result.Status),
		FinishedAt: time.Now().UTC(),
	}
	if result.Train != nil {
		rec.StartedAt = result.Train.Started.UTC()
		code := result.Train.ExitCode
		rec.TrainExit = &code
	}
	if result.Render != nil {
		code := result.Render.ExitCode
		rec.RenderExit = &code
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if err := d.opts.History.Save(rec); err != nil {
		d.opts.Book.Warn("manifest for %s: %v", result.RunName, err)
	}
}
