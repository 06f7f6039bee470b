// Command dynmcp runs the Dynamic Dispatch, Validation, and Execution Engine.
//
// It communicates over stdio (default) or Streamable HTTP using JSON-RPC
// 2.0 (MCP protocol), and stores its own tool/resource/prompt/macro catalog
// in a database rather than shipping it as compiled-in code.
//
// Configuration is read from a TOML file (see internal/config) overlaid
// with DYNMCP_* environment variables; --config points at an explicit
// file when the default search path isn't right.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dynmcp/dynmcp/internal/artifact"
	"github.com/dynmcp/dynmcp/internal/audit"
	"github.com/dynmcp/dynmcp/internal/config"
	"github.com/dynmcp/dynmcp/internal/datasession"
	"github.com/dynmcp/dynmcp/internal/dbdriver"
	"github.com/dynmcp/dynmcp/internal/dispatcher"
	"github.com/dynmcp/dynmcp/internal/mcp"
	"github.com/dynmcp/dynmcp/internal/metatools"
	"github.com/dynmcp/dynmcp/internal/registry"
	"github.com/dynmcp/dynmcp/internal/scriptexec"
	"github.com/dynmcp/dynmcp/internal/seed"
	"github.com/dynmcp/dynmcp/internal/sqlexec"
	"github.com/dynmcp/dynmcp/internal/template"
	"github.com/dynmcp/dynmcp/internal/validator"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dynmcp",
		Short:         "Dynamic Dispatch, Validation, and Execution Engine (MCP server)",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to dynmcp.toml (default: $DYNMCP_CONFIG, ./dynmcp.toml, ~/.config/dynmcp/dynmcp.toml)")

	root.AddCommand(newInfoCmd(), newVersionCmd(), newUpgradeCmd(), newRollbackCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dynmcp version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(Version)
			return nil
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	logOut, closeLog, err := openLogOutput(cfg.Log.Dir)
	if err != nil {
		return fmt.Errorf("opening log output: %w", err)
	}
	defer closeLog()
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: logLevel}))

	version := cfg.Server.Version
	if Version != "dev" {
		version = Version
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting dynmcp", "version", version, "transport", cfg.Transport.Mode, "metadata_url", cfg.Metadata.URL)

	db, _, err := dbdriver.Open(cfg.Metadata.URL)
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	defer db.Close()

	names := registry.NameMapper{Prefix: cfg.Schema.Prefix, Overrides: cfg.Schema.TableOverrides}

	artifacts := artifact.NewStore(db, names.Table("artifacts"))
	if err := artifacts.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring artifact schema: %w", err)
	}

	reg := registry.New(db, names, artifacts)
	if err := reg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring registry schema: %w", err)
	}

	aud := audit.New(db, names)
	if err := aud.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring audit schema: %w", err)
	}

	temp := registry.NewTempRegistry()

	pool := datasession.NewPool(cfg.Data.URL, cfg.Data.MaxRetries, cfg.Data.LongOutageIntervalMins, cfg.Data.LongOutageThreshold)
	if err := pool.Connect(ctx); err != nil {
		logger.Warn("data session unavailable at startup, continuing in offline mode", "error", err)
	}
	go pool.RunHealthLoop(ctx, logger)

	policies, err := reg.ActivePolicies(ctx)
	if err != nil {
		return fmt.Errorf("loading security policies: %w", err)
	}
	val := validator.New(policies)

	tmplEngine := template.New()
	sqlExec := sqlexec.New(tmplEngine, val, pool)
	scriptExec := scriptexec.New(val)

	disp := dispatcher.New(dispatcher.Config{
		Registry:     reg,
		Temp:         temp,
		Artifacts:    artifacts,
		SQLExec:      sqlExec,
		ScriptExec:   scriptExec,
		Audit:        aud,
		Pool:         pool,
		DashboardDir: cfg.Dashboard.StorageDir,
		MetaSession:  db,
		Logger:       logger,
	})

	seeded, err := seed.EnsureSeeded(ctx, seed.Store{Registry: reg, Artifacts: artifacts}, seed.Builtin)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if seeded {
		logger.Info("seeded builtin catalog", "tools", len(seed.Builtin.Tools))
	}

	metaRegistry := mcp.NewRegistry()
	metaDeps := &metatools.Deps{
		Registry:     reg,
		Temp:         temp,
		Artifacts:    artifacts,
		Validator:    val,
		Pool:         pool,
		Audit:        aud,
		Dispatcher:   disp,
		DashboardDir: cfg.Dashboard.StorageDir,
	}
	metatools.RegisterAll(metaRegistry, metaDeps)
	metatools.RegisterBuiltins(metaRegistry, metaDeps)

	server := mcp.NewServer(metaRegistry, disp, mcp.ServerInfo{Name: cfg.Server.Name, Version: version}, logger)

	switch cfg.Transport.Mode {
	case "sse":
		return runHTTP(ctx, server, cfg, logger)
	default:
		return server.Run(ctx)
	}
}

func runHTTP(ctx context.Context, server *mcp.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := mcp.NewHTTPServer(server, cfg.Transport.CORSOrigins, logger)
	addr := fmt.Sprintf("%s:%s", cfg.Transport.Host, cfg.Transport.Port)

	httpSrv := &http.Server{
		Addr:    addr,
		Handler: httpServer.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dynmcp listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

func openLogOutput(dir string) (*os.File, func(), error) {
	if dir == "" {
		return os.Stderr, func() {}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log dir: %w", err)
	}
	path := fmt.Sprintf("%s/dynmcp.log", dir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, func() { f.Close() }, nil
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
