package wrapper

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/observability"
	"github.com/shupiange/mephisto-quant/services"
)

// Main is the body of the wrapper commands. It loads configuration from the
// environment (and .env when present), then delegates to Run.
func Main(kind services.UpdateKind, args []string) int {
	if len(args) < 4 {
		fmt.Fprint(os.Stderr, Usage(kind))
		return ExitFailure
	}

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return ExitFailure
	}
	if !cfg.HasUpdateScript() {
		fmt.Fprintln(os.Stderr, "configuration error: UPDATE_PYTHON and UPDATE_SCRIPT must be set")
		return ExitFailure
	}
	observability.InitLoggerWithOptions(cfg.Log.LogOptions())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Run(ctx, kind, args, cfg.Update.StagingPath, os.Stdout, os.Stderr, services.NewUpdateService(cfg.Update))
}
