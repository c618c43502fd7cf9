// Package main provides the flowcore demo CLI: it builds a small pipeline,
// runs it on the worker pool, and prints the persisted graph document.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/flowcore/flowcore/pkg/flowcore"
)

// Version information set during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("flowcore %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Optional .env for local overrides; absence is fine.
	_ = godotenv.Load()

	settings := flowcore.SettingsFromEnv(flowcore.Settings{MaxThreads: 2})
	if err := run(logger, settings); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, settings flowcore.Settings) error {
	env, err := flowcore.NewEnv(settings)
	if err != nil {
		return err
	}
	defer env.Stop()

	logger.Info("environment ready",
		"workers", env.Workers(),
		"modules", len(env.Modules().Loaded()),
	)

	g := env.NewGraph("demo")
	g.OnError(func(f flowcore.NodeFault) {
		logger.Error("node fault", "node", f.NodeID, "error", f.Err)
	})

	src, err := g.AddNodeOf("const.int", "five")
	if err != nil {
		return err
	}
	dbl, err := g.AddNodeOf("math.double", "doubler")
	if err != nil {
		return err
	}
	if _, err := g.ConnectNodes(src.ID(), flowcore.Intern("value"), dbl.ID(), flowcore.Intern("input")); err != nil {
		return err
	}
	if err := src.SetInputData(flowcore.Intern("value"), flowcore.NewInt(5), false); err != nil {
		return err
	}

	g.Run()
	env.Wait()

	out, err := dbl.OutputData(flowcore.Intern("output"))
	if err != nil {
		return err
	}
	logger.Info("pipeline finished", "input", 5, "output", out.String())

	store := flowcore.NewMemorySnapshotStore()
	snap := flowcore.NewSnapshot(g)
	if err := store.Save(context.Background(), snap); err != nil {
		return err
	}
	logger.Info("snapshot saved", "id", snap.ID)

	data, err := g.SaveJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
