// cmd/voxsweep/main.go
//
// Entry point for the voxsweep TUI: initialize the .voxsweep workspace in
// the current project, load built-in and project sweeps, and hand control
// to the bubbletea app.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/sweep"
	"github.com/voxsweep/voxsweep/internal/tui"
)

func main() {
	gpu := flag.Int("g", 0, "GPU index exported as CUDA_VISIBLE_DEVICES")
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitWorkspace(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .voxsweep directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	reg := sweep.NewRegistry()
	if err := sweep.LoadInto(reg, cfg.SweepsDir()); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading sweep files: %v\n", err)
		os.Exit(1)
	}

	app, err := tui.NewApp(cfg, reg, tui.WithGPU(*gpu))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building TUI: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
