package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/conmap/conmap/internal/core/cmap"
	"github.com/conmap/conmap/internal/core/compose"
	"github.com/conmap/conmap/internal/core/mapfile"
	"github.com/conmap/conmap/internal/core/policy"
	"github.com/conmap/conmap/internal/shell/api"
	"github.com/conmap/conmap/internal/shell/docker"
	"github.com/conmap/conmap/internal/shell/journal"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitMapError        = 3
	ExitHTTPServerError = 4
)

// =============================================================================
// Server
// =============================================================================

// Server represents the conmap application server.
type Server struct {
	config     *Config
	httpServer *http.Server
	journal    *journal.Journal
	policy     *policy.Policy
	runner     policy.ActionRunner
	logger     *slog.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, logger *slog.Logger) (*Server, error) {
	// Load container maps from configured sources
	maps, err := loadMaps(cfg, logger)
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitMapError,
		}
	}

	// Build the Docker client registry
	clients := docker.BuildRegistry(cfg.Clients)

	// Create the policy over maps and clients
	p, err := policy.New(maps, clients, policy.BuilderConfig{
		CoreImage: cfg.Builder.CoreImage,
		BaseImage: cfg.Builder.BaseImage,
	})
	if err != nil {
		return nil, &ServerError{
			Op:       "NewServer",
			Err:      err,
			ExitCode: ExitMapError,
		}
	}

	// Open the action journal
	var j *journal.Journal
	if cfg.Journal.DSN != "" {
		j, err = journal.New(cfg.Journal.DSN)
		if err != nil {
			return nil, &ServerError{
				Op:       "NewServer",
				Err:      err,
				ExitCode: ExitDatabaseError,
			}
		}
	}

	// Create the action runner
	var recorder docker.Recorder
	if j != nil {
		recorder = j
	}
	runner := docker.NewRunner(p, logger, recorder)

	// Create HTTP handler
	handler := api.NewHandler(p, runner, j, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		journal:    j,
		policy:     p,
		runner:     runner,
		logger:     logger,
	}, nil
}

// RunOnce executes a single lifecycle verb and returns without serving.
func (s *Server) RunOnce(ctx context.Context, verb, mapName, config string, instances []string) error {
	results, err := policy.RunVerb(ctx, s.runner, policy.Verb(verb), mapName, config, instances, nil)
	if err != nil {
		return &ServerError{
			Op:       "RunOnce",
			Err:      err,
			ExitCode: ExitMapError,
		}
	}
	for _, res := range results {
		s.logger.Info("action complete",
			"verb", verb,
			"map", mapName,
			"container", config,
			"client", res.Client,
			"result", res.Value,
		)
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Error("journal close error", "error", err)
		}
	}
	return nil
}

// loadMaps reads all configured container map sources.
func loadMaps(cfg *Config, logger *slog.Logger) (map[string]*cmap.ContainerMap, error) {
	maps := make(map[string]*cmap.ContainerMap)

	for _, file := range cfg.Maps.Files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		m, err := mapfile.Parse(mapNameFromFile(file), content)
		if err != nil {
			return nil, err
		}
		maps[m.Name] = m
		logger.Info("loaded container map",
			"map", m.Name,
			"file", file,
			"containers", len(m.Containers),
		)
	}

	for _, file := range cfg.Maps.Compose {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		m, err := compose.ImportProject(mapNameFromFile(file), string(content))
		if err != nil {
			return nil, err
		}
		maps[m.Name] = m
		logger.Info("imported compose project",
			"map", m.Name,
			"file", file,
			"containers", len(m.Containers),
		)
	}

	return maps, nil
}

// mapNameFromFile derives a map name from a source file path.
func mapNameFromFile(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Start starts the server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", s.config.Server.Address())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		s.logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		return &ServerError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Error("journal close error", "error", err)
		}
	}

	s.logger.Info("shutdown complete")
	return nil
}

// =============================================================================
// Server Error
// =============================================================================

// ServerError represents an error during server operation.
type ServerError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *ServerError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error {
	return e.Err
}
