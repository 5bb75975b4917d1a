// Package mcp provides an MCP (Model Context Protocol) server exposing
// dataset generation, schema inspection and validation to agents.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/battsim/internal/config"
	"github.com/nvandessel/battsim/internal/pipeline"
	"github.com/nvandessel/battsim/internal/ratelimit"
	"github.com/nvandessel/battsim/internal/store"
)

// Server wraps the MCP SDK server.
type Server struct {
	server   *sdk.Server
	cfg      *config.Config
	root     string
	catalog  store.RunCatalog
	audit    *AuditLogger
	limiters ratelimit.ToolLimiters
	logger   *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name, e.g. "battsim"
	Version string
	Root    string // Project root; every file the tools touch stays inside it

	// Settings is the loaded battsim configuration used as the base of
	// every generate call.
	Settings *config.Config

	// Logger receives operational logs. It must not write to stdout,
	// which carries the protocol.
	Logger *slog.Logger
}

// NewServer creates a server with the battsim tools registered.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var catalog store.RunCatalog
	if cfg.Settings.Catalog.Enabled {
		c, err := store.NewSQLiteRunCatalog(ctx, cfg.Settings.CatalogPath(cfg.Root))
		if err != nil {
			return nil, fmt.Errorf("failed to open run catalog: %w", err)
		}
		catalog = c
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		cfg:      cfg.Settings,
		root:     cfg.Root,
		catalog:  catalog,
		audit:    NewAuditLogger(cfg.Root),
		limiters: ratelimit.NewToolLimiters(),
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until the client disconnects, ctx is cancelled,
// or the process receives an interrupt.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the catalog and audit log.
func (s *Server) Close() error {
	var firstErr error
	if s.catalog != nil {
		if err := s.catalog.Close(); err != nil {
			firstErr = err
		}
		s.catalog = nil
	}
	if err := s.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Server) runnerOptions() []pipeline.Option {
	opts := []pipeline.Option{
		pipeline.WithLogger(s.logger),
		pipeline.WithObserver(pipeline.LogObserver{Logger: s.logger}),
	}
	if s.catalog != nil {
		opts = append(opts, pipeline.WithCatalog(s.catalog))
	}
	return opts
}
