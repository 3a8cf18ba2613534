// Package dataset loads staged CSV datasets into the quote and indicator tables.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
	"github.com/shupiange/mephisto-quant/repository"
)

// Writer is the subset of the store the importer writes through
type Writer interface {
	UpsertDailyQuote(ctx context.Context, q *models.DailyQuote) error
	InsertDailyQuote(ctx context.Context, q *models.DailyQuote) error
	UpsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error
	InsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error
	UpsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error
	InsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error
}

// RejectPolicy decides what happens after a record is rejected
type RejectPolicy string

const (
	RejectSkip  RejectPolicy = "skip"
	RejectAbort RejectPolicy = "abort"
)

// ParseRejectPolicy accepts "skip" or "abort"
func ParseRejectPolicy(s string) (RejectPolicy, error) {
	switch RejectPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case RejectSkip, "":
		return RejectSkip, nil
	case RejectAbort:
		return RejectAbort, nil
	default:
		return "", fmt.Errorf("unknown reject policy %q (want skip or abort)", s)
	}
}

var (
	// ErrInvalidPath is returned when the import path is neither a CSV file nor a directory
	ErrInvalidPath = errors.New("not a CSV file or directory")

	// ErrAborted is returned when a rejected record stops an import under RejectAbort
	ErrAborted = errors.New("import aborted")
)

// Options configures an Importer
type Options struct {
	// Encoding of the CSV files: utf-8 (default), gbk or gb18030
	Encoding string

	// ArchiveDir receives fully processed files, relative to each file's directory
	ArchiveDir string

	// Replace upserts on the natural key; otherwise duplicates are rejected
	Replace bool

	// Round brings over-precise values to the column scale instead of rejecting them
	Round bool

	OnReject RejectPolicy
}

// Importer loads CSV files into one table at a time
type Importer struct {
	writer Writer
	opts   Options
}

// NewImporter creates an Importer writing through w
func NewImporter(w Writer, opts Options) *Importer {
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = "archived"
	}
	if opts.OnReject == "" {
		opts.OnReject = RejectSkip
	}
	return &Importer{writer: w, opts: opts}
}

// ImportPath imports a single .csv file, or every .csv file directly inside a
// directory in lexical order. Files are archived once fully processed. The
// returned report covers everything processed before any error.
func (im *Importer) ImportPath(ctx context.Context, table models.Table, path string) (*Report, error) {
	report := &Report{RunID: uuid.New().String(), Table: table}
	logger := observability.WithRunID(report.RunID).With("table", string(table))

	files, err := csvFiles(path)
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		logger.Warn("no CSV files found", "path", path)
		return report, nil
	}

	logger.Info("import started", "path", path, "files", len(files), "replace", im.opts.Replace)
	for _, file := range files {
		fr, err := im.importFile(ctx, table, file)
		report.Files = append(report.Files, *fr)
		if err != nil {
			observability.GetMetrics().RecordImportFile(string(table), "failed")
			logger.Error("import failed", "file", file, "error", err)
			return report, err
		}
		observability.GetMetrics().RecordImportFile(string(table), "imported")
		logger.Info("file imported", "file", file, "written", fr.Written, "rejected", len(fr.Rejected), "archived", fr.Archived)
	}
	logger.Info("import finished", "written", report.Written(), "rejected", report.RejectedCount())

	return report, nil
}

func csvFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	if !info.IsDir() {
		if !isCSV(path) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && isCSV(e.Name()) {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	return files, nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

func (im *Importer) decoder(r io.Reader) (io.Reader, error) {
	switch strings.ToLower(im.opts.Encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "gbk":
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder()), nil
	case "gb18030":
		return transform.NewReader(r, simplifiedchinese.GB18030.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", im.opts.Encoding)
	}
}

func (im *Importer) importFile(ctx context.Context, table models.Table, path string) (*FileReport, error) {
	fr := &FileReport{Path: path}

	header, records, err := im.readFile(path)
	if err != nil {
		return fr, err
	}
	fr.Rows = len(records)

	// Line 1 is the header
	rows, err := im.convert(table, header, records, 2)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", path, err)
	}

	metrics := observability.GetMetrics()
	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return fr, err
		}

		err := p.err
		if err != nil {
			err = &repository.RejectedWriteError{Table: table, Key: p.key, Kind: repository.ErrValidation, Err: err}
		} else {
			err = p.write(ctx)
		}
		if err == nil {
			fr.Written++
			metrics.RecordImportRow(string(table), "written")
			continue
		}

		var rejected *repository.RejectedWriteError
		if !errors.As(err, &rejected) ||
			errors.Is(err, repository.ErrConnectionFailure) || errors.Is(err, repository.ErrQueryTimeout) {
			return fr, fmt.Errorf("%s line %d: %w", path, p.line, err)
		}

		fr.Rejected = append(fr.Rejected, Rejection{Line: p.line, Key: p.key, Err: err})
		metrics.RecordImportRow(string(table), "rejected")
		if im.opts.OnReject == RejectAbort {
			return fr, fmt.Errorf("%w: %s line %d: %v", ErrAborted, path, p.line, err)
		}
	}

	archived, err := im.archive(path)
	if err != nil {
		return fr, err
	}
	fr.Archived = archived
	return fr, nil
}

func (im *Importer) readFile(path string) (header, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r, err := im.decoder(f)
	if err != nil {
		return nil, nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return parseHeader(first), records, nil
}

// archive moves a processed file into the archive directory next to it
func (im *Importer) archive(path string) (string, error) {
	dir := filepath.Join(filepath.Dir(path), im.opts.ArchiveDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return dest, nil
}
