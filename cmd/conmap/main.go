package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	runVerb := flag.String("run", "", "Run a single verb (create, start, stop, remove, startup, shutdown, restart, update) and exit")
	mapName := flag.String("map", "", "Container map name for -run")
	container := flag.String("container", "", "Container configuration name for -run")
	instances := flag.String("instances", "", "Comma-separated instance names for -run")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("conmap %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}

	// Setup logger
	logger := SetupLogger(cfg)
	logger.Info("starting conmap",
		"version", Version,
		"config", *configPath,
	)

	// Create server
	server, err := NewServer(cfg, logger)
	if err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("failed to create server",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("failed to create server", "error", err)
		return ExitConfigError
	}

	ctx := context.Background()

	// One-shot mode
	if *runVerb != "" {
		if *mapName == "" || *container == "" {
			fmt.Fprintln(os.Stderr, "-run requires -map and -container")
			return ExitConfigError
		}
		var names []string
		if *instances != "" {
			names = strings.Split(*instances, ",")
		}
		if err := server.RunOnce(ctx, *runVerb, *mapName, *container, names); err != nil {
			if sErr, ok := err.(*ServerError); ok {
				logger.Error("action failed",
					"error", sErr.Err,
					"verb", *runVerb,
				)
				return sErr.ExitCode
			}
			logger.Error("action failed", "error", err)
			return ExitMapError
		}
		return ExitSuccess
	}

	// Start server
	if err := server.Start(ctx); err != nil {
		if sErr, ok := err.(*ServerError); ok {
			logger.Error("server error",
				"error", sErr.Err,
				"operation", sErr.Op,
			)
			return sErr.ExitCode
		}
		logger.Error("server error", "error", err)
		return ExitConfigError
	}

	return ExitSuccess
}
