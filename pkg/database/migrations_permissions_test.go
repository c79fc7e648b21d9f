//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mnemos-ai/mnemos-engine/pkg/database"
	"github.com/mnemos-ai/mnemos-engine/pkg/testhelpers"
)

// TestRunMigrations_RequiresCreatePrivilege verifies that a migration run
// under a role lacking CREATE on the target schema fails cleanly instead of
// leaving a partially applied schema behind, and succeeds once the role is
// granted the privilege.
func TestRunMigrations_RequiresCreatePrivilege(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()
	admin := testDB.DB.Pool

	// Fresh database so the shared container's migrated schema stays untouched.
	_, err := admin.Exec(ctx, "DROP DATABASE IF EXISTS migration_perms_test WITH (FORCE)")
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE DATABASE migration_perms_test")
	require.NoError(t, err)

	_, err = admin.Exec(ctx, "DROP ROLE IF EXISTS limited_migrator")
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE ROLE limited_migrator LOGIN PASSWORD 'limited_pw'")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = admin.Exec(ctx, "DROP DATABASE IF EXISTS migration_perms_test WITH (FORCE)")
		_, _ = admin.Exec(ctx, "DROP ROLE IF EXISTS limited_migrator")
	})

	limitedDB, err := sql.Open("pgx", rewriteConnStr(t, testDB.ConnStr, "limited_migrator", "limited_pw", "migration_perms_test"))
	require.NoError(t, err)
	defer limitedDB.Close()

	adminDB, err := sql.Open("pgx", rewriteConnStr(t, testDB.ConnStr, "", "", "migration_perms_test"))
	require.NoError(t, err)
	defer adminDB.Close()

	migrationsPath, err := database.LocateMigrations()
	require.NoError(t, err)

	// New roles get no CREATE on schema public, so the run is rejected at
	// its first statement.
	err = database.RunMigrations(limitedDB, migrationsPath, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, strings.ToLower(err.Error()), "permission denied")

	var tables int
	err = adminDB.QueryRow("SELECT count(*) FROM pg_tables WHERE schemaname = 'public'").Scan(&tables)
	require.NoError(t, err)
	assert.Zero(t, tables, "rejected run must not leave tables behind")

	_, err = adminDB.Exec("GRANT ALL ON SCHEMA public TO limited_migrator")
	require.NoError(t, err)

	require.NoError(t, database.RunMigrations(limitedDB, migrationsPath, zap.NewNop()))

	var exists bool
	err = adminDB.QueryRow(
		"SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'knowledge_entries')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "knowledge_entries should exist after migration")

	var dirty bool
	err = adminDB.QueryRow("SELECT dirty FROM schema_migrations").Scan(&dirty)
	require.NoError(t, err)
	assert.False(t, dirty, "migration state should be clean")

	// A repeat run is a no-op, not an error.
	require.NoError(t, database.RunMigrations(limitedDB, migrationsPath, zap.NewNop()))
}

// rewriteConnStr swaps the credentials and database name of a connection
// string. Empty user keeps the original credentials.
func rewriteConnStr(t *testing.T, base, user, password, dbname string) string {
	t.Helper()

	u, err := url.Parse(base)
	require.NoError(t, err)
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	u.Path = "/" + dbname
	return u.String()
}
