package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aldergrove/arbor/internal"
	"github.com/aldergrove/arbor/internal/articleservice"
	"github.com/aldergrove/arbor/internal/garden"
	"github.com/aldergrove/arbor/internal/gitsync"
	"github.com/aldergrove/arbor/internal/index"
	"github.com/aldergrove/arbor/internal/mcpserver"
	"github.com/aldergrove/arbor/internal/render"
	"github.com/aldergrove/arbor/internal/storage"
	pkgconfig "github.com/aldergrove/arbor/pkg/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

// reindex rebuilds the SQLite index and search index from the content tree
// without starting the server.
func reindex(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.Data.DatabasePath())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	dirty := index.NewFileDirtyStore(cfg.Data.DirtyFlagPath())
	coord, err := index.NewCoordinator(index.ModeDeferred, db, store, dirty, logger)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	res, err := coord.Reconcile(ctx, true)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	fmt.Printf("indexed %d articles (%d failed)\n", res.Indexed, res.Failed)
	return nil
}

// mcpServe runs the MCP server over stdio so editors and agents can work
// with the garden without the HTTP API.
func mcpServe(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Logs go to stderr; stdout carries the MCP protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	store, err := storage.NewFS(cfg.Content.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.Data.DatabasePath())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	coord, err := index.NewCoordinator(index.ModeImmediate, db, store, nil, logger)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	resolver := index.NewResolver(db)
	renderer := render.New(resolver, store, logger)
	gardens := garden.NewManager(cfg.Content.Path)
	git, err := gitsync.Open(cfg.Content.Path, logger)
	if err != nil {
		logger.Warn("git open failed, continuing without git", slog.String("error", err.Error()))
		git = nil
	}

	svc := articleservice.NewService(store, db, coord, resolver, renderer, gardens, git, logger)
	return mcpserver.New(svc).ServeStdio()
}

// stats prints index statistics as JSON.
func stats(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := index.Open(cfg.Data.DatabasePath())
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	st, err := db.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("ARBOR_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:   "arbor",
		Usage:  "Digital garden server with Markdown storage, wiki links, and full-text search",
		Flags:  []cli.Flag{configFlag},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serve,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the metadata and search indexes from the content tree",
				Action: reindex,
			},
			{
				Name:   "stats",
				Usage:  "Print index statistics",
				Action: stats,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the Model Context Protocol interface over stdio",
				Action: mcpServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
