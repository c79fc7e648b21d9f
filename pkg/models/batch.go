package models

import (
	"fmt"
	"strings"
	"time"
)

// ImportStage identifies the pipeline stage an event belongs to.
type ImportStage string

// Pipeline stages in execution order.
const (
	StageLoading       ImportStage = "loading"
	StageParsing       ImportStage = "parsing"
	StageValidation    ImportStage = "validation"
	StageSanitization  ImportStage = "sanitization"
	StageDeduplication ImportStage = "deduplication"
	StageStorage       ImportStage = "storage"
)

// String returns the string representation of an ImportStage.
func (s ImportStage) String() string {
	return string(s)
}

// ImportError records one entry- or file-level failure. Failures are
// collected per item; a batch is never aborted by them.
type ImportError struct {
	EntryID  string      `json:"entry_id,omitempty"`
	FileName string      `json:"file_name,omitempty"`
	Stage    ImportStage `json:"stage"`
	Message  string      `json:"message"`
}

// Error implements the error interface.
func (e ImportError) Error() string {
	subject := e.EntryID
	if subject == "" {
		subject = e.FileName
	}
	if subject == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, subject, e.Message)
}

// Progress is a snapshot passed to the progress callback. CurrentItem
// counts within the current stage; CurrentFile is set when the item
// carries a file name.
type Progress struct {
	CurrentItem int
	TotalItems  int
	Stage       ImportStage
	CurrentFile string
}

// Percentage returns stage-local completion as 0-100.
func (p Progress) Percentage() float64 {
	if p.TotalItems == 0 {
		return 0
	}
	return float64(p.CurrentItem) / float64(p.TotalItems) * 100
}

// ProgressFunc receives progress snapshots. Invoked synchronously on
// the importing goroutine; implementations must not block.
type ProgressFunc func(Progress)

// ImportResult is the outcome of a batch import.
type ImportResult struct {
	TotalFiles   int           `json:"total_files"`
	Imported     int           `json:"imported"`
	Deduplicated int           `json:"deduplicated"`
	Rejected     int           `json:"rejected"` // always len(Errors)
	Errors       []ImportError `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration"`
	SuccessRate  float64       `json:"success_rate"` // Imported/TotalFiles*100, 0 when TotalFiles==0
	DedupeStats  *DedupeStats  `json:"dedupe_stats,omitempty"`
}

// summaryErrorLimit caps how many errors Summary lists before
// collapsing the rest into a count.
const summaryErrorLimit = 3

// Summary renders a short human-readable digest of the result.
func (r *ImportResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "imported %d of %d (%.1f%%), %d rejected, %d duplicates removed in %s",
		r.Imported, r.TotalFiles, r.SuccessRate, r.Rejected, r.Deduplicated, r.Duration.Round(time.Millisecond))
	if len(r.Errors) > 0 {
		b.WriteString("\nerrors:")
		for i, e := range r.Errors {
			if i == summaryErrorLimit {
				fmt.Fprintf(&b, "\n  ... and %d more errors", len(r.Errors)-summaryErrorLimit)
				break
			}
			fmt.Fprintf(&b, "\n  - %s", e.Error())
		}
	}
	return b.String()
}
