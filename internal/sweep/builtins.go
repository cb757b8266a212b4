package sweep

import "github.com/voxsweep/voxsweep/internal/runspec"

// builtins returns the source-coded sweeps. These mirror the run lists the
// project accumulated over time; parked combinations keep Skip set instead
// of being deleted, so they stay on record and can be revived by flipping
// the flag.
func builtins() []Sweep {
	sweeps := []Sweep{
		{
			Name: "glasses-dog",
			Specs: []runspec.Spec{
				{
					Scene:       "dog2",
					Prompt:      "a cute light grey dog wearing big sunglasses",
					Directional: true,
					LogName:     "bigglasses",
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1500.0,
						LRDecayStart:             3000,
					},
				},
				{
					Scene:       "dog2",
					Prompt:      "a cute light grey dog wearing round red glasses",
					Directional: true,
					LogName:     "redglasses",
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1500.0,
						LRDecayStart:             3000,
					},
				},
				{
					Scene:       "dog2",
					Prompt:      "a cute light grey dog wearing a top hat",
					Directional: true,
					LogName:     "tophat",
					Skip:        true,
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 2000.0,
						LRDecayStart:             3000,
					},
				},
			},
		},
		{
			Name: "pineapple-hats",
			Specs: []runspec.Spec{
				{
					Scene:       "pineapple",
					Prompt:      "a ripe pineapple wearing a tiny party hat",
					Directional: true,
					LogName:     "partyhat",
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1000.0,
					},
				},
				{
					Scene:   "pineapple",
					Prompt:  "a golden pineapple made of metal",
					LogName: "golden",
					Skip:    true,
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1000.0,
					},
				},
			},
		},
		{
			Name: "dog-edits",
			Specs: []runspec.Spec{
				{
					Scene:       "dog2",
					Prompt:      "a cute light grey dog wearing big sunglasses",
					Directional: true,
					LogName:     "bigglasses-edit",
					Kind:        runspec.KindEdit,
					EditIndex:   11,
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1500.0,
						LRDecayStart:             3000,
						NumIterations:            1000,
					},
				},
				{
					Scene:       "dog2",
					Prompt:      "a cute light grey dog wearing big sunglasses",
					Directional: true,
					LogName:     "bigglasses-refine",
					Kind:        runspec.KindRefine,
					Hyperparams: runspec.Hyperparams{
						DensityCorrelationWeight: 1500.0,
						LRDecayStart:             3000,
						NumIterations:            500,
					},
				},
			},
		},
	}
	for i := range sweeps {
		// Built-ins must always be dispatchable; a bad entry here is a
		// programming error, not user input.
		if err := sweeps[i].Validate(); err != nil {
			panic(err)
		}
	}
	return sweeps
}
