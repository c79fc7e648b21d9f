package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// fileLoader reads entry documents from JSON and YAML files. A file
// holds either a single entry document or a list of them.
type fileLoader struct {
	logger *zap.Logger
}

var _ Loader = (*fileLoader)(nil)

// NewFileLoader creates a loader for .json, .yaml and .yml files.
func NewFileLoader(logger *zap.Logger) Loader {
	return &fileLoader{
		logger: logger.Named("file-loader"),
	}
}

func (l *fileLoader) ImportBatch(ctx context.Context, paths []string) (*LoadResult, error) {
	result := &LoadResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entries, fileErr := l.loadFile(path)
		if fileErr != nil {
			l.logger.Warn("failed to load file",
				zap.String("file", fileErr.FileName),
				zap.String("stage", fileErr.Stage),
				zap.String("message", fileErr.Message))
			result.Errors = append(result.Errors, *fileErr)
			continue
		}

		result.Entries = append(result.Entries, entries...)
		l.logger.Debug("loaded file",
			zap.String("file", filepath.Base(path)),
			zap.Int("entries", len(entries)))
	}

	return result, nil
}

func (l *fileLoader) loadFile(path string) ([]*models.KnowledgeEntry, *FileError) {
	fileName := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileError{
			FileName: fileName,
			Stage:    StageReading,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Err:      err,
		}
	}

	var (
		entries  []*models.KnowledgeEntry
		parseErr error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		entries, parseErr = parseJSON(data)
	case ".yaml", ".yml":
		entries, parseErr = parseYAML(data)
	default:
		return nil, &FileError{
			FileName: fileName,
			Stage:    StageReading,
			Message:  fmt.Sprintf("unsupported file type %q", filepath.Ext(path)),
		}
	}
	if parseErr != nil {
		return nil, &FileError{
			FileName: fileName,
			Stage:    StageParsing,
			Message:  fmt.Sprintf("failed to parse file: %v", parseErr),
			Err:      parseErr,
		}
	}

	for _, entry := range entries {
		fillDefaults(entry, fileName)
	}
	return entries, nil
}

// parseJSON decodes a single entry object or a top-level array of them.
func parseJSON(data []byte) ([]*models.KnowledgeEntry, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	if trimmed[0] == '[' {
		var entries []*models.KnowledgeEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var entry models.KnowledgeEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return []*models.KnowledgeEntry{&entry}, nil
}

// parseYAML decodes a single entry document or a top-level sequence.
func parseYAML(data []byte) ([]*models.KnowledgeEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var entries []*models.KnowledgeEntry
		if err := root.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var entry models.KnowledgeEntry
	if err := root.Decode(&entry); err != nil {
		return nil, err
	}
	return []*models.KnowledgeEntry{&entry}, nil
}

// fillDefaults stamps loader-provided fields on a freshly decoded
// entry: generated ID, pending status, load time, and source file name.
func fillDefaults(entry *models.KnowledgeEntry, fileName string) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.StatusPending
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string)
	}
	if _, ok := entry.Metadata[models.MetaFileName]; !ok {
		entry.Metadata[models.MetaFileName] = fileName
	}
}
