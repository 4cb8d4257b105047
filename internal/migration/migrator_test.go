package migration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BaSui01/agentweaver/agent/persistence"
	"github.com/BaSui01/agentweaver/config"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// --- 辅助函数测试 ---

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", DatabaseTypePostgres, false},
		{"postgresql", DatabaseTypePostgres, false},
		{"pg", DatabaseTypePostgres, false},
		{"mysql", DatabaseTypeMySQL, false},
		{"mariadb", DatabaseTypeMySQL, false},
		{"sqlite", DatabaseTypeSQLite, false},
		{"sqlite3", DatabaseTypeSQLite, false},
		{"POSTGRES", DatabaseTypePostgres, false},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMigrationsPath(t *testing.T) {
	assert.Equal(t, "migrations/postgres", MigrationsPath(DatabaseTypePostgres))
	assert.Equal(t, "migrations/mysql", MigrationsPath(DatabaseTypeMySQL))
	assert.Equal(t, "migrations/sqlite", MigrationsPath(DatabaseTypeSQLite))
}

func TestAvailableMigrations(t *testing.T) {
	for _, dbType := range []DatabaseType{DatabaseTypePostgres, DatabaseTypeMySQL, DatabaseTypeSQLite} {
		t.Run(string(dbType), func(t *testing.T) {
			files, err := AvailableMigrations(dbType)
			require.NoError(t, err)
			require.NotEmpty(t, files)
			assert.Equal(t, MigrationFile{Version: 1, Name: "create_checkpoints"}, files[0])
			for i := 1; i < len(files); i++ {
				assert.Greater(t, files[i].Version, files[i-1].Version)
			}
		})
	}

	_, err := AvailableMigrations("oracle")
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	mysqlCfg := config.DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "weaver"}
	assert.Equal(t, "u:p@tcp(db:3306)/weaver?parseTime=true&multiStatements=true", DatabaseURL(mysqlCfg))

	sqliteCfg := config.DatabaseConfig{Driver: "sqlite", Name: "/tmp/weaver.db"}
	assert.Equal(t, "/tmp/weaver.db", DatabaseURL(sqliteCfg))
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is required")

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypeSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is required")

	_, err = NewMigrator(&Config{DatabaseType: "oracle", DatabaseURL: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database type")

	_, err = NewMigratorFromDatabaseConfig(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

// --- SQLite 集成测试 ---

func TestMigrator_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weaver.db")
	ctx := context.Background()

	migrator, err := NewMigratorFromDatabaseConfig(config.DatabaseConfig{Driver: "sqlite", Name: dbPath})
	require.NoError(t, err)
	defer migrator.Close()

	version, dirty, err := migrator.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Up(ctx))

	info, err := migrator.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), info.CurrentVersion)
	assert.Equal(t, info.TotalMigrations, info.AppliedMigrations)
	assert.Zero(t, info.PendingMigrations)

	statuses, err := migrator.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)

	// 迁移后的表可直接被 SQL 检查点存储使用
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	store, err := persistence.NewSQLCheckpointStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, "workflow:t1", []byte(`{"status":"completed"}`)))
	data, err := store.Load(ctx, "workflow:t1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed"}`, string(data))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	require.NoError(t, migrator.Down(ctx))
	version, _, err = migrator.Version(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestMigrator_CancelledContextSkipsMigration(t *testing.T) {
	migrator, err := NewMigratorFromURL("sqlite", filepath.Join(t.TempDir(), "weaver.db"))
	require.NoError(t, err)
	defer migrator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = migrator.Up(ctx)
	require.ErrorIs(t, err, context.Canceled)

	version, _, err := migrator.Version(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version)
}

// --- CLI 测试 ---

type stubMigrator struct {
	version uint
	dirty   bool
	upErr   error
	forced  int
}

func (s *stubMigrator) Up(context.Context) error {
	if s.upErr != nil {
		return s.upErr
	}
	s.version = 1
	return nil
}

func (s *stubMigrator) Down(context.Context) error {
	s.version = 0
	return nil
}

func (s *stubMigrator) DownAll(context.Context) error {
	s.version = 0
	return nil
}

func (s *stubMigrator) Steps(context.Context, int) error { return nil }

func (s *stubMigrator) Goto(_ context.Context, v uint) error {
	s.version = v
	return nil
}

func (s *stubMigrator) Force(_ context.Context, v int) error {
	s.forced = v
	return nil
}

func (s *stubMigrator) Version(context.Context) (uint, bool, error) {
	return s.version, s.dirty, nil
}

func (s *stubMigrator) Status(context.Context) ([]MigrationStatus, error) {
	return []MigrationStatus{
		{Version: 1, Name: "create_checkpoints", Applied: s.version >= 1, Dirty: s.dirty && s.version == 1},
		{Version: 2, Name: "next", Applied: s.version >= 2},
	}, nil
}

func (s *stubMigrator) Info(context.Context) (*MigrationInfo, error) {
	return &MigrationInfo{CurrentVersion: s.version, Dirty: s.dirty, TotalMigrations: 2}, nil
}

func (s *stubMigrator) Close() error { return nil }

func newTestCLI(m Migrator) (*CLI, *bytes.Buffer) {
	var buf bytes.Buffer
	cli := NewCLI(m)
	cli.SetOutput(&buf)
	return cli, &buf
}

func TestCLI_Version(t *testing.T) {
	m := &stubMigrator{}
	cli, buf := newTestCLI(m)

	require.NoError(t, cli.RunVersion(context.Background()))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	buf.Reset()
	m.version, m.dirty = 1, true
	require.NoError(t, cli.RunVersion(context.Background()))
	assert.Equal(t, "Current version: 1 (dirty)\n", buf.String())
}

func TestCLI_UpAndStatus(t *testing.T) {
	m := &stubMigrator{}
	cli, buf := newTestCLI(m)

	require.NoError(t, cli.RunUp(context.Background()))
	assert.Contains(t, buf.String(), "Migrations complete. Current version: 1")

	buf.Reset()
	require.NoError(t, cli.RunStatus(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "000001   create_checkpoints  Applied")
	assert.Contains(t, out, "000002   next"+strings.Repeat(" ", 16)+"Pending")
	assert.Contains(t, out, "Total: 2, Applied: 1, Pending: 1")
}

func TestCLI_UpFailure(t *testing.T) {
	cli, _ := newTestCLI(&stubMigrator{upErr: errors.New("locked")})

	err := cli.RunUp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestCLI_Force(t *testing.T) {
	m := &stubMigrator{}
	cli, buf := newTestCLI(m)

	require.NoError(t, cli.RunForce(context.Background(), 3))
	assert.Equal(t, 3, m.forced)
	assert.Contains(t, buf.String(), "Version forced to 3")
}

func TestCLI_GotoAndReset(t *testing.T) {
	m := &stubMigrator{}
	cli, buf := newTestCLI(m)

	require.NoError(t, cli.RunGoto(context.Background(), 2))
	assert.Contains(t, buf.String(), "Migration complete. Current version: 2")

	buf.Reset()
	require.NoError(t, cli.RunDownAll(context.Background()))
	assert.Zero(t, m.version)
	assert.Contains(t, buf.String(), "Schema reset.")
}

func TestCLI_StepsZeroIsNoop(t *testing.T) {
	cli, buf := newTestCLI(&stubMigrator{})

	require.NoError(t, cli.RunSteps(context.Background(), 0))
	assert.Equal(t, "Nothing to do.\n", buf.String())
}

func TestCLI_Info(t *testing.T) {
	cli, buf := newTestCLI(&stubMigrator{version: 1})

	require.NoError(t, cli.RunInfo(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "Checkpoint schema:")
	assert.Contains(t, out, "current version: 1")
	assert.Contains(t, out, "total:           2")
}
