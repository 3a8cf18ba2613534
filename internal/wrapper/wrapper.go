// Package wrapper implements the update-daily and update-minute command lines
// around the external update process.
package wrapper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shupiange/mephisto-quant/services"
)

const (
	ExitOK      = 0
	ExitFailure = 1
)

// Usage returns the usage line for a wrapper of the given kind
func Usage(kind services.UpdateKind) string {
	if kind == services.UpdateMinute {
		return "usage: update-minute <start_date> <end_date> <adjust_factor> <frequency>\n" +
			"  e.g. update-minute 2024-01-02 2024-01-31 3 30m\n"
	}
	return "usage: update-daily <start_date> <end_date> <adjust_factor> <fix>\n" +
		"  e.g. update-daily 2024-01-02 2024-01-31 3 false\n"
}

// Parse turns the positional arguments into an update request. Extra
// arguments are ignored.
func Parse(kind services.UpdateKind, args []string, path string) (services.UpdateRequest, error) {
	if len(args) < 4 {
		return services.UpdateRequest{}, fmt.Errorf("expected 4 arguments, got %d", len(args))
	}

	req := services.UpdateRequest{
		Kind:         kind,
		StartDate:    args[0],
		EndDate:      args[1],
		AdjustFactor: args[2],
		Path:         path,
	}

	switch kind {
	case services.UpdateDaily:
		fix, err := strconv.ParseBool(args[3])
		if err != nil {
			return req, fmt.Errorf("fix must be true or false, got %q", args[3])
		}
		req.Fix = fix
		req.Frequency = services.DefaultDailyFrequency
	case services.UpdateMinute:
		req.Frequency = strings.ToLower(args[3])
		if _, err := strconv.Atoi(req.Frequency); err == nil {
			req.Frequency += "m"
		}
	default:
		return req, fmt.Errorf("unknown update kind %q", kind)
	}

	return req, req.Validate()
}

// Run executes one wrapper invocation and returns the process exit status.
// Fewer than four arguments print usage and exit 1 before anything runs.
// Otherwise the status is that of the update process.
func Run(ctx context.Context, kind services.UpdateKind, args []string, path string, stdout, stderr io.Writer, runner services.UpdateRunner) int {
	if len(args) < 4 {
		fmt.Fprint(stderr, Usage(kind))
		return ExitFailure
	}

	req, err := Parse(kind, args, path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprint(stderr, Usage(kind))
		return ExitFailure
	}

	fmt.Fprintf(stdout, "==> %s update %s .. %s (adjust factor %s, frequency %s, fix %t)\n",
		req.Kind, req.StartDate, req.EndDate, req.AdjustFactor, req.Frequency, req.Fix)

	result, err := runner.Run(ctx, req)

	var exitErr *services.ExitError
	switch {
	case err == nil:
		fmt.Fprintf(stdout, "==> %s update succeeded in %s\n", req.Kind, result.Duration.Round(time.Millisecond))
		return ExitOK
	case errors.As(err, &exitErr):
		fmt.Fprintf(stderr, "==> %s update FAILED with exit status %d\n", req.Kind, exitErr.Code)
		if exitErr.Code == 0 {
			return ExitFailure
		}
		return exitErr.Code
	default:
		fmt.Fprintf(stderr, "==> %s update FAILED: %v\n", req.Kind, err)
		return ExitFailure
	}
}
