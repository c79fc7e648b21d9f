// Package validate checks entry documents against structural rules
// before they enter the ingestion pipeline.
package validate

import (
	"context"
	"fmt"

	"github.com/mnemos-ai/mnemos-engine/pkg/models"
)

// Mode selects how demanding validation is.
type Mode string

const (
	// ModeLenient checks the structural invariants every stored entry
	// must satisfy.
	ModeLenient Mode = "lenient"
	// ModeStrict additionally requires the original submission text and
	// a known content type.
	ModeStrict Mode = "strict"
)

// FieldError pinpoints a single rule violation by document path.
type FieldError struct {
	Path    string
	Message string
}

// Result is the outcome of validating one document.
type Result struct {
	Valid  bool
	Errors []FieldError
}

// Validator checks a decoded entry document. The error return is
// reserved for infrastructure failures; rule violations land in Result.
type Validator interface {
	Validate(ctx context.Context, doc map[string]any, mode Mode) (*Result, error)
}

// knownContentTypes is the closed set strict mode accepts. Rule sets
// beyond this live with the caller, not here.
var knownContentTypes = map[string]struct{}{
	"text":     {},
	"markdown": {},
	"html":     {},
	"json":     {},
	"fact":     {},
}

type schemaValidator struct{}

var _ Validator = (*schemaValidator)(nil)

// NewSchemaValidator creates a validator for the entry document shape.
func NewSchemaValidator() Validator {
	return &schemaValidator{}
}

func (v *schemaValidator) Validate(ctx context.Context, doc map[string]any, mode Mode) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	if doc == nil {
		result.addError("", "document is empty")
		return result.finish(), nil
	}

	result.requireNonEmptyString(doc, "id")
	result.requireNonEmptyString(doc, "domain_id")
	result.checkStatus(doc)
	result.checkMappedData(doc, mode)
	result.checkMetadata(doc)

	if mode == ModeStrict {
		result.requireNonEmptyString(doc, "original_submission")
	}

	return result.finish(), nil
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	return r
}

func (r *Result) addError(path, message string) {
	r.Errors = append(r.Errors, FieldError{Path: path, Message: message})
}

func (r *Result) requireNonEmptyString(doc map[string]any, key string) {
	value, ok := doc[key]
	if !ok || value == nil {
		r.addError(key, "is required")
		return
	}
	s, ok := value.(string)
	if !ok {
		r.addError(key, "must be a string")
		return
	}
	if s == "" {
		r.addError(key, "must not be empty")
	}
}

func (r *Result) checkStatus(doc map[string]any) {
	value, ok := doc["status"]
	if !ok || value == nil {
		r.addError("status", "is required")
		return
	}
	s, ok := value.(string)
	if !ok {
		r.addError("status", "must be a string")
		return
	}
	if !models.EntryStatus(s).IsValid() {
		r.addError("status", fmt.Sprintf("unknown status %q", s))
	}
}

func (r *Result) checkMappedData(doc map[string]any, mode Mode) {
	value, ok := doc["mapped_data"]
	if !ok || value == nil {
		if mode == ModeStrict {
			r.addError("mapped_data", "is required")
		}
		return
	}

	mapped, ok := value.(map[string]any)
	if !ok {
		r.addError("mapped_data", "must be an object")
		return
	}

	contentType := ""
	if raw, ok := mapped["type"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			r.addError("mapped_data.type", "must be a string")
		} else {
			contentType = s
		}
	}
	if raw, ok := mapped["content"]; ok && raw != nil {
		if _, ok := raw.(string); !ok {
			r.addError("mapped_data.content", "must be a string")
		}
	}
	if raw, ok := mapped["parsed_json"]; ok && raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			r.addError("mapped_data.parsed_json", "must be an object")
		}
	}
	if raw, ok := mapped["extracted_entities"]; ok && raw != nil {
		if _, ok := raw.([]any); !ok {
			r.addError("mapped_data.extracted_entities", "must be a list")
		}
	}

	if mode == ModeStrict {
		if contentType == "" {
			r.addError("mapped_data.type", "is required")
		} else if _, known := knownContentTypes[contentType]; !known {
			r.addError("mapped_data.type", fmt.Sprintf("unknown content type %q", contentType))
		}
	}
}

func (r *Result) checkMetadata(doc map[string]any) {
	value, ok := doc["metadata"]
	if !ok || value == nil {
		return
	}
	metadata, ok := value.(map[string]any)
	if !ok {
		r.addError("metadata", "must be an object")
		return
	}
	for key, raw := range metadata {
		if raw == nil {
			continue
		}
		if _, ok := raw.(string); !ok {
			r.addError("metadata."+key, "must be a string")
		}
	}
}
