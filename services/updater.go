package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
)

// UpdateKind selects which dataset an update run refreshes
type UpdateKind string

const (
	UpdateDaily  UpdateKind = "daily"
	UpdateMinute UpdateKind = "minute"
)

// DefaultDailyFrequency is passed to the update process for daily runs
const DefaultDailyFrequency = "1d"

// ErrInvalidRequest is returned when an update request fails validation
var ErrInvalidRequest = errors.New("invalid update request")

// UpdateRequest carries the options understood by the external update process
type UpdateRequest struct {
	Kind         UpdateKind
	StartDate    string
	EndDate      string
	AdjustFactor string // 1 backward, 2 forward, 3 unadjusted
	Fix          bool
	Frequency    string // e.g. 1d, 30m, 5m
	Path         string
}

// Validate checks the request before any process is started
func (r UpdateRequest) Validate() error {
	if r.Kind != UpdateDaily && r.Kind != UpdateMinute {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	start, err := time.Parse(models.DateLayout, r.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidRequest, r.StartDate)
	}
	end, err := time.Parse(models.DateLayout, r.EndDate)
	if err != nil {
		return fmt.Errorf("%w: end date %q is not YYYY-MM-DD", ErrInvalidRequest, r.EndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest, r.EndDate, r.StartDate)
	}
	switch r.AdjustFactor {
	case "1", "2", "3":
	default:
		return fmt.Errorf("%w: adjust factor %q must be 1, 2 or 3", ErrInvalidRequest, r.AdjustFactor)
	}
	if err := checkFrequency(r.Frequency); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// checkFrequency accepts a positive count followed by m, d or w
func checkFrequency(f string) error {
	if len(f) < 2 {
		return fmt.Errorf("frequency %q must look like 1d or 30m", f)
	}
	unit := f[len(f)-1]
	n, err := strconv.Atoi(f[:len(f)-1])
	if err != nil || n <= 0 || !strings.ContainsRune("mdw", rune(unit)) {
		return fmt.Errorf("frequency %q must look like 1d or 30m", f)
	}
	return nil
}

// Args renders the request as command-line options for the update process
func (r UpdateRequest) Args() []string {
	args := []string{
		"--start-date", r.StartDate,
		"--end-date", r.EndDate,
		"--adjust-factor", r.AdjustFactor,
		"--frequency", r.Frequency,
	}
	// The process treats any non-empty --fix value as true
	if r.Fix {
		args = append(args, "--fix", "True")
	}
	if r.Path != "" {
		args = append(args, "--path", r.Path)
	}
	return args
}

// UpdateResult describes a finished update run
type UpdateResult struct {
	RunID    string
	ExitCode int
	Duration time.Duration
}

// ExitError reports an update process that ran but exited unsuccessfully
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("update process exited with status %d", e.Code)
}

// UpdateService runs the external update process
type UpdateService struct {
	Python  string
	Script  string
	WorkDir string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewUpdateService creates an UpdateService from configuration, streaming the
// process output to the current stdout and stderr
func NewUpdateService(cfg config.UpdateConfig) *UpdateService {
	return &UpdateService{
		Python:  cfg.Python,
		Script:  cfg.Script,
		WorkDir: cfg.WorkDir,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Run executes the update process and waits for it to finish. A process that
// exits non-zero yields a result together with an *ExitError; a process that
// cannot be started yields only an error.
func (s *UpdateService) Run(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &UpdateResult{RunID: uuid.New().String()}
	logger := observability.WithRunID(result.RunID).With("kind", string(req.Kind))
	args := append([]string{s.Script}, req.Args()...)

	cmd := exec.CommandContext(ctx, s.Python, args...)
	cmd.Dir = s.WorkDir
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	logger.Info("update started", "command", s.Python, "args", args)
	timer := observability.GetMetrics().NewTimer()
	err := cmd.Run()
	result.Duration = timer.Duration()

	if err == nil {
		timer.ObserveUpdate(string(req.Kind), "success")
		logger.Info("update finished", "duration", result.Duration)
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		if result.ExitCode < 0 {
			// killed by a signal, usually context cancellation
			result.ExitCode = 1
		}
		timer.ObserveUpdate(string(req.Kind), "failed")
		logger.Error("update failed", "exit_code", result.ExitCode, "duration", result.Duration)
		return result, &ExitError{Code: result.ExitCode}
	}

	timer.ObserveUpdate(string(req.Kind), "error")
	logger.Error("update could not start", "error", err)
	return nil, fmt.Errorf("failed to start update process: %w", err)
}
