package models

import (
	"strings"
	"testing"
	"time"
)

func TestProgress_Percentage(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"zero total", Progress{CurrentItem: 0, TotalItems: 0}, 0},
		{"halfway", Progress{CurrentItem: 5, TotalItems: 10}, 50},
		{"complete", Progress{CurrentItem: 4, TotalItems: 4}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Percentage(); got != tt.want {
				t.Errorf("Percentage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestImportError_Error(t *testing.T) {
	e := ImportError{EntryID: "e1", Stage: StageValidation, Message: "missing domain"}
	if got := e.Error(); got != "validation: e1: missing domain" {
		t.Errorf("Error() = %q", got)
	}

	e = ImportError{FileName: "a.json", Stage: StageLoading, Message: "no such file"}
	if got := e.Error(); got != "loading: a.json: no such file" {
		t.Errorf("Error() = %q", got)
	}

	e = ImportError{Stage: StageStorage, Message: "connection refused"}
	if got := e.Error(); got != "storage: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestImportResult_Summary_TruncatesErrors(t *testing.T) {
	r := &ImportResult{
		TotalFiles:  10,
		Imported:    5,
		Rejected:    5,
		Duration:    1500 * time.Millisecond,
		SuccessRate: 50,
		Errors: []ImportError{
			{EntryID: "e1", Stage: StageValidation, Message: "bad"},
			{EntryID: "e2", Stage: StageValidation, Message: "bad"},
			{EntryID: "e3", Stage: StageSanitization, Message: "bad"},
			{EntryID: "e4", Stage: StageStorage, Message: "bad"},
			{EntryID: "e5", Stage: StageStorage, Message: "bad"},
		},
	}

	s := r.Summary()
	if !strings.Contains(s, "imported 5 of 10") {
		t.Errorf("Summary missing counts: %s", s)
	}
	if !strings.Contains(s, "e3") {
		t.Errorf("Summary should list first %d errors: %s", summaryErrorLimit, s)
	}
	if strings.Contains(s, "e4") {
		t.Errorf("Summary should truncate after %d errors: %s", summaryErrorLimit, s)
	}
	if !strings.Contains(s, "and 2 more errors") {
		t.Errorf("Summary missing truncation suffix: %s", s)
	}
}

func TestImportResult_Summary_NoErrors(t *testing.T) {
	r := &ImportResult{TotalFiles: 2, Imported: 2, SuccessRate: 100, Duration: time.Second}
	if s := r.Summary(); strings.Contains(s, "errors") {
		t.Errorf("Summary should omit error section when clean: %s", s)
	}
}
