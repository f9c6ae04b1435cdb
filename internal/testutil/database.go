package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quillblog/db"
	"quillblog/internal/config"
)

// SetupTestDatabase opens a fresh schema-initialised SQLite file that is
// removed when the test ends.
func SetupTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	testDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=10000&_foreign_keys=on")
	require.NoError(t, err)
	t.Cleanup(func() { testDB.Close() })

	err = db.InitializeSchema(testDB)
	require.NoError(t, err)

	return testDB
}

func SetupTestRepositoryFactory(t *testing.T) *db.RepositoryFactory {
	return db.NewRepositoryFactory(SetupTestDatabase(t))
}

func GetTestConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		SQLitePath:    ":memory:",
		SessionSecret: []byte("test_session_secret_for_testing_only"),
		SessionMaxAge: 3600,
		BcryptCost:    bcrypt.MinCost,
		LogLevel:      "disabled",
		LogFormat:     "json",
	}
}
