// Command manifoldmcp runs the manifest platform's MCP server.
//
// It communicates over stdio using JSON-RPC 2.0 (MCP protocol) and
// persists all manifest state to a local sqlite database.
//
// Optional environment variables:
//
//	MANIFOLDMCP_CONFIG        - path to a TOML config file
//	MANIFOLDMCP_STORE_PATH    - sqlite database path (default: manifold.db)
//	MANIFOLDMCP_LOG_LEVEL     - debug, info, warn, error (default: info)
//	MANIFOLDMCP_DEFAULT_ORG_ID - org_id that every request runs under
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifold-platform/manifoldmcp/internal/config"
	"github.com/manifold-platform/manifoldmcp/internal/content"
	"github.com/manifold-platform/manifoldmcp/internal/mcp"
	"github.com/manifold-platform/manifoldmcp/internal/registry"
	"github.com/manifold-platform/manifoldmcp/internal/store"
	"github.com/manifold-platform/manifoldmcp/internal/tenant"
	manifesttools "github.com/manifold-platform/manifoldmcp/internal/tools/manifest"
	moduletools "github.com/manifold-platform/manifoldmcp/internal/tools/module"
	recordtools "github.com/manifold-platform/manifoldmcp/internal/tools/records"
	ruletools "github.com/manifold-platform/manifoldmcp/internal/tools/rules"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "manifoldmcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Set up structured logging to stderr (stdout is for MCP protocol)
	logLevel := parseLogLevel(cfg.Log.Level)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	logger.Info("starting manifoldmcp",
		"version", version,
		"store_path", cfg.Store.Path,
	)

	// Set up signal handling
	baseCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stdio has no per-request auth layer to derive a tenant from, so every
	// request in this process runs under the configured default org.
	ctx := tenant.WithOrgID(baseCtx, cfg.Tenant.DefaultOrgID)

	manifestStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening manifest store: %w", err)
	}
	defer manifestStore.Close()

	moduleRegistry := registry.New(manifestStore)

	mcpRegistry := mcp.NewRegistry()

	// Manifest tools
	mcpRegistry.Register(manifesttools.NewPreviewPatch(manifestStore))
	mcpRegistry.Register(manifesttools.NewApplyPatch(manifestStore))
	mcpRegistry.Register(manifesttools.NewGetSnapshot(manifestStore))
	mcpRegistry.Register(manifesttools.NewListSnapshots(manifestStore))
	mcpRegistry.Register(manifesttools.NewListHistory(manifestStore))
	mcpRegistry.Register(manifesttools.NewRollback(manifestStore))

	// Module tools
	mcpRegistry.Register(moduletools.NewRegister(moduleRegistry))
	mcpRegistry.Register(moduletools.NewInstall(moduleRegistry))
	mcpRegistry.Register(moduletools.NewUpgrade(moduleRegistry))
	mcpRegistry.Register(moduletools.NewRollback(moduleRegistry))
	mcpRegistry.Register(moduletools.NewSetEnabled(moduleRegistry))
	mcpRegistry.Register(moduletools.NewList(moduleRegistry))
	mcpRegistry.Register(moduletools.NewGet(moduleRegistry))
	mcpRegistry.Register(moduletools.NewListVersions(moduleRegistry))
	mcpRegistry.Register(moduletools.NewSetIcon(moduleRegistry))
	mcpRegistry.Register(moduletools.NewClearIcon(moduleRegistry))
	mcpRegistry.Register(moduletools.NewSetDisplayOrder(moduleRegistry))

	// Rule tools
	mcpRegistry.Register(ruletools.NewEvalCondition())
	mcpRegistry.Register(ruletools.NewEvalExpression())
	mcpRegistry.Register(ruletools.NewPlanWorkflowStep())
	mcpRegistry.Register(ruletools.NewValidateManifest())
	mcpRegistry.Register(ruletools.NewNormalizeManifest())

	// Record tools
	mcpRegistry.Register(recordtools.NewValidatePayload())
	mcpRegistry.Register(recordtools.NewValidateLookups(moduleRegistry, manifestStore))
	mcpRegistry.Register(recordtools.NewFindEntity(moduleRegistry, manifestStore))

	// Prompts
	mcpRegistry.RegisterPrompt(&content.AuthorModulePrompt{})
	mcpRegistry.RegisterPrompt(&content.ProposePatchPrompt{})

	// Resources
	mcpRegistry.RegisterResource(&content.ManifestModelResource{})
	mcpRegistry.RegisterResource(&content.ErrorTaxonomyResource{})
	mcpRegistry.RegisterResource(&content.ToolReferenceResource{})

	server := mcp.NewServer(mcpRegistry, mcp.ServerInfo{
		Name:    cfg.Server.Name,
		Version: version,
	}, logger)

	return server.Run(ctx)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
