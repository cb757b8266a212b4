// sweep-runner dispatches a sweep of text-to-3D runs without the TUI:
// parse flags, pick a sweep, run train+render per spec back to back on one
// GPU, and exit non-zero if any job failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/voxsweep/voxsweep/internal/config"
	"github.com/voxsweep/voxsweep/internal/dispatch"
	"github.com/voxsweep/voxsweep/internal/history"
	"github.com/voxsweep/voxsweep/internal/logbook"
	"github.com/voxsweep/voxsweep/internal/sweep"
)

func main() {
	gpu := flag.Int("g", 0, "GPU index exported as CUDA_VISIBLE_DEVICES")
	sweepName := flag.String("d", "", "sweep name (overrides the configured default)")
	projectDir := flag.String("project", "", "path to the project directory (defaults to cwd)")
	sweepFile := flag.String("sweep-file", "", "path to a one-off YAML sweep file")
	dryRun := flag.Bool("dry-run", false, "print the derived invocations without executing")
	listSweeps := flag.Bool("list", false, "list known sweeps and exit")
	flag.Parse()

	project := *projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.InitWorkspace(absoluteProject); err != nil {
		die("init workspace: %v", err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}

	reg := sweep.NewRegistry()
	if err := sweep.LoadInto(reg, cfg.SweepsDir()); err != nil {
		die("load sweep files: %v", err)
	}

	name := cfg.DefaultSweep()
	if strings.TrimSpace(*sweepName) != "" {
		name = strings.TrimSpace(*sweepName)
	}
	if strings.TrimSpace(*sweepFile) != "" {
		f, err := sweep.LoadFile(*sweepFile)
		if err != nil {
			die("load sweep file: %v", err)
		}
		if err := reg.Register(f.Sweep); err != nil {
			die("register sweep file: %v", err)
		}
		name = f.Sweep.Name
	}

	if *listSweeps {
		for _, n := range reg.Names() {
			fmt.Println(n)
		}
		return
	}

	sw, err := reg.Resolve(name)
	if err != nil {
		die("resolve sweep: %v", err)
	}

	book, err := logbook.New(cfg.LogsDir())
	if err != nil {
		die("open logbook: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := dispatch.New(cfg, dispatch.Options{
		GPU:     *gpu,
		DryRun:  *dryRun,
		Book:    book,
		History: history.NewStore(cfg.RunsDir()),
	})
	summary, err := d.RunSweep(ctx, sw)
	if err != nil {
		die("run sweep: %v", err)
	}

	for _, r := range summary.Results {
		fmt.Printf("%-9s %s\n", r.Status, r.RunName)
	}
	if err := summary.Err(); err != nil {
		die("%v", err)
	}
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
