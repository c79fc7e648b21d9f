// Package loader reads knowledge entry batches from external sources.
package loader

import (
	"context"
	"fmt"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// Loader stage names reported in FileError. The ingestion pipeline maps
// these onto its own stage vocabulary.
const (
	StageReading    = "reading"
	StageParsing    = "parsing"
	StageValidating = "validating"
	StageStoring    = "storing"
	StageComplete   = "complete"
)

// FileError describes a failure while loading a single file. The batch
// continues past it.
type FileError struct {
	FileName string
	Stage    string
	Message  string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.FileName, e.Message)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// LoadResult carries the entries a batch produced alongside the
// per-file failures it collected.
type LoadResult struct {
	Entries []*models.KnowledgeEntry
	Errors  []FileError
}

// Loader turns a set of source paths into knowledge entries. Per-file
// failures are collected in the result; the returned error is reserved
// for wholesale failures such as context cancellation.
type Loader interface {
	ImportBatch(ctx context.Context, paths []string) (*LoadResult, error)
}
