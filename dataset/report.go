package dataset

import (
	"github.com/shupiange/mephisto-quant/models"
)

// Rejection records a CSV row the store refused
type Rejection struct {
	Line int
	Key  string
	Err  error
}

// FileReport summarises one imported file
type FileReport struct {
	Path     string
	Rows     int
	Written  int
	Rejected []Rejection
	Archived string // empty when the file was not archived
}

// Report summarises an import run
type Report struct {
	RunID string
	Table models.Table
	Files []FileReport
}

// Written returns the number of rows written across all files
func (r *Report) Written() int {
	n := 0
	for _, f := range r.Files {
		n += f.Written
	}
	return n
}

// RejectedCount returns the number of rows rejected across all files
func (r *Report) RejectedCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Rejected)
	}
	return n
}
