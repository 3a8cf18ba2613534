package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/dataset"
	"github.com/shupiange/mephisto-quant/internal/api"
	"github.com/shupiange/mephisto-quant/internal/app"
	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
)

// runMigrate provisions every table. Any failure, including a schema
// conflict with an existing table, is fatal.
func runMigrate(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.CreateSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "schema ready: %d tables\n", len(models.Tables))
	return nil
}

// importFlags holds the parsed flags of the import command
type importFlags struct {
	table    models.Table
	path     string
	options  dataset.Options
	tableArg string
	policy   string
}

func parseImportFlags(cfg *config.Config, args []string) (*importFlags, error) {
	f := &importFlags{}
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.StringVar(&f.tableArg, "table", "", "target table (stock_data_1_day, stock_data_30_minute, stock_indicators_1_day or daily, minute, indicators)")
	fs.StringVar(&f.path, "path", "", "CSV file or directory of CSV files")
	fs.BoolVar(&f.options.Replace, "replace", false, "upsert on the natural key instead of rejecting duplicates")
	fs.BoolVar(&f.options.Round, "round", false, "round over-precise values to the column scale instead of rejecting them")
	fs.StringVar(&f.policy, "on-reject", string(dataset.RejectSkip), "skip or abort when a row is rejected")
	fs.StringVar(&f.options.Encoding, "encoding", cfg.Import.Encoding, "CSV encoding: utf-8, gbk or gb18030")
	fs.StringVar(&f.options.ArchiveDir, "archive-dir", cfg.Import.ArchiveDir, "directory, relative to each file, receiving imported files")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if f.tableArg == "" || f.path == "" {
		return nil, errors.New("-table and -path are required")
	}
	table, err := models.ParseTable(f.tableArg)
	if err != nil {
		return nil, err
	}
	f.table = table

	policy, err := dataset.ParseRejectPolicy(f.policy)
	if err != nil {
		return nil, err
	}
	f.options.OnReject = policy
	return f, nil
}

// runImport loads CSV files into one table and prints a summary
func runImport(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	f, err := parseImportFlags(cfg, args)
	if err != nil {
		return err
	}

	repo, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	report, err := dataset.NewImporter(repo, f.options).ImportPath(ctx, f.table, f.path)
	printReport(stdout, report)
	return err
}

func printReport(w io.Writer, report *dataset.Report) {
	if report == nil {
		return
	}
	for _, file := range report.Files {
		fmt.Fprintf(w, "%s: %d rows, %d written, %d rejected\n", file.Path, file.Rows, file.Written, len(file.Rejected))
		for _, rej := range file.Rejected {
			fmt.Fprintf(w, "  line %d (%s): %v\n", rej.Line, rej.Key, rej.Err)
		}
	}
	fmt.Fprintf(w, "run %s: %d written, %d rejected into %s\n", report.RunID, report.Written(), report.RejectedCount(), report.Table)
}

// runServe serves the read API until ctx is cancelled. Without a reachable
// database it still serves health and metrics.
func runServe(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", cfg.HTTP.Addr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var store app.Store
	repo, err := connect(ctx, cfg)
	if err != nil {
		observability.Warn("running without database, queries will fail", "error", err)
	} else {
		defer repo.Close()
		store = repo
	}

	application := app.New(cfg, store)
	router := api.NewRouter(api.NewHandler(application, cfg), cfg)

	server := &http.Server{
		Addr:              *addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Info("starting server", "addr", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	observability.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
