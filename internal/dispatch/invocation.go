// Package dispatch turns run specifications into external-program
// invocations and executes them strictly in sequence: one training step,
// one rendering step, next job. The training and rendering programs are
// opaque; the dispatcher owns only the argument vectors, the device
// environment variable, and the per-job bookkeeping.
package dispatch

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/runspec"
)

// Step identifies which half of a job an invocation belongs to.
type Step string

const (
	StepTrain  Step = "train"
	StepRender Step = "render"
)

// Invocation is a fully assembled external-program call.
type Invocation struct {
	Step    Step
	Program string
	Args    []string
	Dir     string
	Env     []string

	// Child output streams straight through; the external programs write
	// their own progress lines.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the invocation as a copy-pasteable command line for
// dry-run output and the logbook.
func (inv Invocation) String() string {
	parts := append([]string{inv.Program}, inv.Args...)
	for i, p := range parts {
		if strings.ContainsAny(p, " \t") {
			parts[i] = strconv.Quote(p)
		}
	}
	return strings.Join(parts, " ")
}

// GPUEnvVar is the single environment variable the dispatcher owns.
const GPUEnvVar = "CUDA_VISIBLE_DEVICES"

// GPUEnv renders the device-selection variable for a GPU index.
func GPUEnv(gpu int) string {
	return fmt.Sprintf("%s=%d", GPUEnvVar, gpu)
}

// TrainInvocation builds the training step's call: the generate program for
// fresh runs, the edit program when a reference checkpoint is consumed.
// All paths are relative to the project root, which is the invocation's
// working directory.
func TrainInvocation(cfg *config.Config, sweepName string, spec runspec.Spec) Invocation {
	script := cfg.Scripts().Train
	if spec.UsesReference() {
		script = cfg.Scripts().Edit
	}
	args := []string{
		script,
		"-d", runspec.DataDir(cfg.DataRoot(), spec.Scene),
		"-o", spec.TrainOutputDir(),
		"-p", spec.Prompt,
	}
	if spec.UsesReference() {
		args = append(args, "-i", runspec.RefCheckpointPath(sweepName, spec.Scene))
	}
	args = append(args,
		"--directional_dataset", runspec.BoolLiteral(spec.Directional),
		"--density_correlation_weight", runspec.FloatLiteral(spec.DensityCorrelationWeight),
		"--lr_decay_start", strconv.Itoa(spec.LRDecayStart),
		"--lr_gamma", runspec.FloatLiteral(spec.LRGamma),
		"--lr_freq", strconv.Itoa(spec.LRFreq),
		"--sds_t_start", strconv.Itoa(spec.SDSTStart),
		"--sds_t_freq", strconv.Itoa(spec.SDSTFreq),
		"--sds_t_gamma", runspec.FloatLiteral(spec.SDSTGamma),
		"--num_iterations_per_stage", strconv.Itoa(spec.NumIterations),
		"--sh_degree", strconv.Itoa(spec.SHDegree),
	)
	if spec.Kind == runspec.KindEdit {
		args = append(args, "--index_to_attn", strconv.Itoa(spec.EditIndex))
	}
	return Invocation{
		Step:    StepTrain,
		Program: cfg.Python(),
		Args:    args,
		Dir:     cfg.ProjectDir,
	}
}

// RenderInvocation builds the rendering step's call. Its -i argument is the
// checkpoint path derived by the same functions that produced the training
// step's -o argument, so the two cannot disagree.
func RenderInvocation(cfg *config.Config, sweepName string, spec runspec.Spec) Invocation {
	args := []string{
		cfg.Scripts().Render,
		"-i", spec.CheckpointPath(),
		"-o", spec.RenderOutputDir(),
	}
	if spec.UsesReference() {
		args = append(args, "-r", runspec.RefCheckpointPath(sweepName, spec.Scene))
	}
	args = append(args,
		"--sds_prompt", spec.Prompt,
		"--save_freq", strconv.Itoa(spec.SaveFreq),
	)
	return Invocation{
		Step:    StepRender,
		Program: cfg.Python(),
		Args:    args,
		Dir:     cfg.ProjectDir,
	}
}
