//go:build integration

package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-engine/pkg/testhelpers"
)

// Test_001_KnowledgeEntries verifies migration 001 creates the entries table correctly
func Test_001_KnowledgeEntries(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	for _, col := range []struct {
		name     string
		dataType string
	}{
		{"id", "text"},
		{"domain_id", "text"},
		{"mapped_data", "jsonb"},
		{"schema_version", "integer"},
		{"entry_timestamp", "timestamp with time zone"},
		{"status", "text"},
		{"metadata", "jsonb"},
	} {
		var dataType string
		err := testDB.DB.Pool.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = 'knowledge_entries'
			AND column_name = $1
		`, col.name).Scan(&dataType)

		require.NoError(t, err, "Failed to query column %s", col.name)
		assert.Equal(t, col.dataType, dataType, "column %s should be %s", col.name, col.dataType)
	}

	// Verify the lookup indexes exist
	for _, index := range []string{
		"idx_knowledge_entries_domain_id",
		"idx_knowledge_entries_entry_timestamp",
		"idx_knowledge_entries_status",
	} {
		var indexExists bool
		err := testDB.DB.Pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM pg_indexes
				WHERE tablename = 'knowledge_entries'
				AND indexname = $1
			)
		`, index).Scan(&indexExists)

		require.NoError(t, err, "Failed to query index information")
		assert.True(t, indexExists, "%s index should exist", index)
	}
}

// Test_001_StatusConstraint verifies the status check constraint rejects unknown values
func Test_001_StatusConstraint(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	defer func() {
		_, _ = testDB.DB.Pool.Exec(ctx, "DELETE FROM knowledge_entries WHERE id = 'constraint-check'")
	}()

	_, err := testDB.DB.Pool.Exec(ctx, `
		INSERT INTO knowledge_entries (id, domain_id, entry_timestamp, status)
		VALUES ('constraint-check', 'docs', now(), 'bogus')
	`)
	require.Error(t, err, "Unknown status should violate the check constraint")
	assert.Contains(t, err.Error(), "knowledge_entries_status_check")

	_, err = testDB.DB.Pool.Exec(ctx, `
		INSERT INTO knowledge_entries (id, domain_id, entry_timestamp, status)
		VALUES ('constraint-check', 'docs', now(), 'success')
	`)
	require.NoError(t, err, "Known status should insert cleanly")
}
