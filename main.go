// Command quotestore provisions and loads the quote and indicator tables and
// serves read queries over HTTP.
//
//	quotestore migrate
//	quotestore import -table <table> -path <file-or-dir> [-replace] [-on-reject skip|abort]
//	quotestore serve [-addr :8080]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/observability"
	"github.com/shupiange/mephisto-quant/repository"
	"github.com/shupiange/mephisto-quant/services"
)

const usage = `usage: quotestore <command> [flags]

commands:
  migrate   create the tables and indexes (idempotent)
  import    load CSV files into a table
  serve     serve read queries over HTTP
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var cmd func(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error
	switch args[0] {
	case "migrate":
		cmd = runMigrate
	case "import":
		cmd = runImport
	case "serve":
		cmd = runServe
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "warning: failed to read .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	observability.InitLoggerWithOptions(cfg.Log.LogOptions())
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, cfg, args[1:], stdout); err != nil {
		observability.Error(args[0]+" failed", "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// connect opens the store, retrying while the database is unreachable
func connect(ctx context.Context, cfg *config.Config) (*repository.Repository, error) {
	if !cfg.HasDatabase() {
		return nil, fmt.Errorf("DATABASE_URL is not set: %w", repository.ErrConnectionFailure)
	}

	opts := repository.Options{
		URL:              cfg.Database.URL,
		StatementTimeout: cfg.Database.StatementTimeout(),
		MaxConns:         int32(cfg.Database.MaxConns),
	}
	retry := services.DefaultRetryConfig
	retry.MaxRetries = cfg.Database.ConnectRetries

	var repo *repository.Repository
	err := services.WithRetry(ctx, retry, func() error {
		var err error
		repo, err = repository.NewRepository(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}
