package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aleksaelezovic/sparqlgraph/internal/storage"
	"github.com/aleksaelezovic/sparqlgraph/pkg/cache"
	"github.com/aleksaelezovic/sparqlgraph/pkg/config"
	"github.com/aleksaelezovic/sparqlgraph/pkg/metrics"
	"github.com/aleksaelezovic/sparqlgraph/pkg/server"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/results"
	"github.com/aleksaelezovic/sparqlgraph/pkg/sparql/scanner"
	"github.com/aleksaelezovic/sparqlgraph/pkg/transform"
)

func usage() {
	fmt.Println("Usage: sparqlgraph <command> [args]")
	fmt.Println("Commands:")
	fmt.Println("  transform <config> <results> [query-file] - Transform SPARQL results into a graph")
	fmt.Println("  scan <query-file>                          - Show prefixes, triple patterns and VALUES of a query")
	fmt.Println("  serve [addr]                               - Start HTTP endpoint (default: localhost:8080)")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLevel(os.Getenv(config.EnvLogLevel)),
	}))

	var err error
	switch command := os.Args[1]; command {
	case "transform":
		if len(os.Args) < 4 {
			fmt.Println("Usage: sparqlgraph transform <config> <results> [query-file]")
			os.Exit(1)
		}
		query := ""
		if len(os.Args) >= 5 {
			query = os.Args[4]
		}
		err = runTransform(logger, os.Args[2], os.Args[3], query)
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: sparqlgraph scan <query-file>")
			os.Exit(1)
		}
		err = runScan(os.Args[2])
	case "serve":
		addr := ""
		if len(os.Args) >= 3 {
			addr = os.Args[2]
		}
		err = runServer(addr)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runTransform(logger *slog.Logger, configPath, resultsPath, queryPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	query := ""
	if queryPath != "" {
		data, err := os.ReadFile(queryPath) // #nosec G304 - path is supplied by the operator
		if err != nil {
			return fmt.Errorf("failed to read query: %w", err)
		}
		query = string(data)
	}

	contentType, err := results.ContentTypeForFile(resultsPath)
	if err != nil {
		return err
	}
	f, err := os.Open(resultsPath) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()
	res, err := results.Decode(f, contentType)
	if err != nil {
		return fmt.Errorf("failed to decode results: %w", err)
	}

	t, err := transform.New(cfg, query, transform.WithLogger(logger))
	if err != nil {
		return err
	}

	start := time.Now()
	g, err := t.Transform(context.Background(), res.Rows())
	if err != nil {
		return err
	}
	logger.Info("transformation complete",
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"duration", time.Since(start),
	)
	return printJSON(g)
}

func runScan(queryPath string) error {
	data, err := os.ReadFile(queryPath) // #nosec G304 - path is supplied by the operator
	if err != nil {
		return fmt.Errorf("failed to read query: %w", err)
	}
	result, err := scanner.Scan(string(data))
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runServer(addr string) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	logger.Info("opening graph cache", "dir", cfg.CacheDir, "in_memory", cfg.CacheDir == "")
	s, err := storage.Open(storage.Options{
		Path:     cfg.CacheDir,
		InMemory: cfg.CacheDir == "",
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer s.Close()

	c := cache.New(s, cfg.CacheTTL)
	if removed, err := c.Purge(); err != nil {
		logger.Warn("failed to purge cache", "error", err)
	} else if removed > 0 {
		logger.Info("purged stale cache entries", "removed", removed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg,
		server.WithCache(c),
		server.WithMetrics(metrics.DefaultRegistry()),
		server.WithLogger(logger),
	)
	return srv.Start(ctx)
}
