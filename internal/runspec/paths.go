package runspec

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Filesystem layout shared with the external programs. The trainer writes
// its checkpoint under the directory we pass with -o; the renderer reads the
// checkpoint path we pass with -i. Both strings come from the same
// derivation below, so the two invocations cannot drift apart.
const (
	logsRoot       = "logs/rf"
	rendersRoot    = "output_renders"
	savedModelsDir = "saved_models"
	finalModel     = "model_final.pth"
	refinedModel   = "model_final_refined.pth"
)

// RunName derives the canonical name for this run. The shape is fixed by
// the external programs' on-disk convention:
//
//	<scene>_sds_dir_<True|False>_dcl_<weight>_<log>_lrs_<start>_<gamma>_<freq>
//
// Floats render as Python literals (1500.0, 0.8) because the training
// program built these names with str() and existing checkpoints on disk use
// that spelling.
func (s Spec) RunName() string {
	return fmt.Sprintf("%s_sds_dir_%s_dcl_%s_%s_lrs_%d_%s_%d",
		s.Scene,
		BoolLiteral(s.Directional),
		FloatLiteral(s.DensityCorrelationWeight),
		s.LogName,
		s.LRDecayStart,
		FloatLiteral(s.LRGamma),
		s.LRFreq,
	)
}

// TrainOutputDir is the -o argument of the training invocation, relative to
// the project root.
func (s Spec) TrainOutputDir() string {
	return path.Join(logsRoot, s.RunName())
}

// CheckpointPath is where the trainer leaves its final model, and therefore
// the -i argument of the rendering invocation. Refine runs save under a
// distinct name so the reference model they started from is not clobbered.
func (s Spec) CheckpointPath() string {
	name := finalModel
	if s.Kind == KindRefine {
		name = refinedModel
	}
	return path.Join(s.TrainOutputDir(), savedModelsDir, name)
}

// RenderOutputDir is the -o argument of the rendering invocation.
func (s Spec) RenderOutputDir() string {
	return path.Join(rendersRoot, s.RunName())
}

// RefCheckpointPath locates the reference model an edit or refine run reads
// as input: the final checkpoint of an earlier generate run for the same
// scene under the named sweep.
func RefCheckpointPath(sweepName, scene string) string {
	return path.Join(logsRoot, scene+"_"+sweepName, savedModelsDir, finalModel)
}

// DataDir is the scene's posed-images dataset directory under the
// configured data root.
func DataDir(dataRoot, scene string) string {
	return path.Join(dataRoot, scene)
}

// FloatLiteral formats a float the way Python's str() does for the values
// that appear in run names and on the external CLIs: shortest decimal form,
// always with a decimal point.
func FloatLiteral(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// BoolLiteral renders a bool as the Python literal the external programs'
// click.BOOL options parse.
func BoolLiteral(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
