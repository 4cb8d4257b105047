package migration

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// =============================================================================
// 内嵌迁移文件
// =============================================================================

//go:embed migrations
var migrationsFS embed.FS

// DefaultTableName 版本表名
const DefaultTableName = "agentweaver_schema_migrations"

// =============================================================================
// 类型定义
// =============================================================================

// DatabaseType 数据库方言
type DatabaseType string

const (
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
)

// dialect 方言对应的 database/sql 驱动名与 golang-migrate 驱动构造
type dialect struct {
	sqlDriver string
	open      func(db *sql.DB, table string) (database.Driver, error)
}

// sqlite 使用纯 Go 驱动，与 gorm 侧的 glebarez/sqlite 一致
var dialects = map[DatabaseType]dialect{
	DatabaseTypePostgres: {"postgres", func(db *sql.DB, table string) (database.Driver, error) {
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	}},
	DatabaseTypeMySQL: {"mysql", func(db *sql.DB, table string) (database.Driver, error) {
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: table})
	}},
	DatabaseTypeSQLite: {"sqlite", func(db *sql.DB, table string) (database.Driver, error) {
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
	}},
}

func dialectFor(t DatabaseType) (dialect, error) {
	d, ok := dialects[t]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database type: %s", t)
	}
	return d, nil
}

// MigrationStatus 单个迁移的状态
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo 迁移摘要
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Config 迁移器配置
type Config struct {
	// DatabaseType 数据库方言
	DatabaseType DatabaseType

	// DatabaseURL 连接串，格式随方言:
	// - PostgreSQL: host=... port=... user=... dbname=... 或 postgres:// URL
	// - MySQL: user:password@tcp(host:port)/dbname?multiStatements=true
	// - SQLite: 文件路径
	DatabaseURL string

	// TableName 版本表名，默认 DefaultTableName
	TableName string

	// LockTimeout 获取迁移锁的超时
	LockTimeout time.Duration
}

// Migrator 数据库迁移接口
type Migrator interface {
	// Up 应用全部未执行的迁移
	Up(ctx context.Context) error

	// Down 回滚最近一次迁移
	Down(ctx context.Context) error

	// DownAll 回滚全部迁移
	DownAll(ctx context.Context) error

	// Steps 正数前进 n 步，负数回滚 n 步
	Steps(ctx context.Context, n int) error

	// Goto 迁移到指定版本
	Goto(ctx context.Context, version uint) error

	// Force 只设置版本号，不执行迁移
	Force(ctx context.Context, version int) error

	// Version 当前版本与 dirty 标记，未迁移时为 0
	Version(ctx context.Context) (uint, bool, error)

	// Status 所有迁移的状态
	Status(ctx context.Context) ([]MigrationStatus, error)

	// Info 迁移摘要
	Info(ctx context.Context) (*MigrationInfo, error)

	Close() error
}

// =============================================================================
// 默认实现
// =============================================================================

// DefaultMigrator 基于 golang-migrate 的 Migrator
type DefaultMigrator struct {
	config  *Config
	migrate *migrate.Migrate
	db      *sql.DB
}

// NewMigrator 创建迁移器，打开独立连接
func NewMigrator(cfg *Config) (*DefaultMigrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required")
	}
	if cfg.TableName == "" {
		cfg.TableName = DefaultTableName
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = 15 * time.Second
	}

	m := &DefaultMigrator{config: cfg}
	if err := m.init(); err != nil {
		if m.db != nil {
			m.db.Close()
		}
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	return m, nil
}

func (m *DefaultMigrator) init() error {
	d, err := dialectFor(m.config.DatabaseType)
	if err != nil {
		return err
	}

	if m.db, err = sql.Open(d.sqlDriver, m.config.DatabaseURL); err != nil {
		return fmt.Errorf("open %s: %w", d.sqlDriver, err)
	}
	if err := m.db.Ping(); err != nil {
		return fmt.Errorf("ping %s: %w", d.sqlDriver, err)
	}

	dbDriver, err := d.open(m.db, m.config.TableName)
	if err != nil {
		return fmt.Errorf("database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, MigrationsPath(m.config.DatabaseType))
	if err != nil {
		return fmt.Errorf("embedded migrations: %w", err)
	}

	if m.migrate, err = migrate.NewWithInstance("iofs", src, string(m.config.DatabaseType), dbDriver); err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	m.migrate.LockTimeout = m.config.LockTimeout
	return nil
}

// run 执行一次迁移操作；ctx 取消时请求 golang-migrate 在当前迁移结束后停止
// 已是目标版本不算错误
func (m *DefaultMigrator) run(ctx context.Context, op string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migration %s: %w", op, err)
	}
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.migrate.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	if err := fn(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", op, err)
	}
	return nil
}

// Up implements Migrator.
func (m *DefaultMigrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", m.migrate.Up)
}

// Down implements Migrator.
func (m *DefaultMigrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", func() error { return m.migrate.Steps(-1) })
}

// DownAll implements Migrator.
func (m *DefaultMigrator) DownAll(ctx context.Context) error {
	return m.run(ctx, "down all", m.migrate.Down)
}

// Steps implements Migrator.
func (m *DefaultMigrator) Steps(ctx context.Context, n int) error {
	return m.run(ctx, "steps", func() error { return m.migrate.Steps(n) })
}

// Goto implements Migrator.
func (m *DefaultMigrator) Goto(ctx context.Context, version uint) error {
	return m.run(ctx, "goto", func() error { return m.migrate.Migrate(version) })
}

// Force implements Migrator.
func (m *DefaultMigrator) Force(ctx context.Context, version int) error {
	return m.run(ctx, "force", func() error { return m.migrate.Force(version) })
}

// Version implements Migrator.
func (m *DefaultMigrator) Version(_ context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status implements Migrator.
func (m *DefaultMigrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	return m.statusAt(current, dirty)
}

func (m *DefaultMigrator) statusAt(current uint, dirty bool) ([]MigrationStatus, error) {
	files, err := AvailableMigrations(m.config.DatabaseType)
	if err != nil {
		return nil, err
	}
	statuses := make([]MigrationStatus, len(files))
	for i, f := range files {
		statuses[i] = MigrationStatus{
			Version: f.Version,
			Name:    f.Name,
			Applied: f.Version <= current,
			Dirty:   dirty && f.Version == current,
		}
	}
	return statuses, nil
}

// Info implements Migrator.
func (m *DefaultMigrator) Info(ctx context.Context) (*MigrationInfo, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := m.statusAt(current, dirty)
	if err != nil {
		return nil, err
	}

	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalMigrations: len(statuses)}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info, nil
}

// Close 关闭 migrate 实例及其连接
func (m *DefaultMigrator) Close() error {
	if m.migrate == nil {
		return nil
	}
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

// =============================================================================
// 迁移文件
// =============================================================================

// MigrationFile 内嵌迁移文件描述
type MigrationFile struct {
	Version uint
	Name    string
}

// AvailableMigrations 列出方言的全部迁移，按版本升序
// 文件名形如 000001_create_checkpoints.up.sql
func AvailableMigrations(dbType DatabaseType) ([]MigrationFile, error) {
	if _, err := dialectFor(dbType); err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(migrationsFS, MigrationsPath(dbType))
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	seen := make(map[uint]bool)
	var files []MigrationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		versionPart, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.ParseUint(versionPart, 10, 32)
		if err != nil || seen[uint(version)] {
			continue
		}
		seen[uint(version)] = true
		files = append(files, MigrationFile{
			Version: uint(version),
			Name:    strings.TrimSuffix(rest, ".up.sql"),
		})
	}

	slices.SortFunc(files, func(a, b MigrationFile) int { return cmp.Compare(a.Version, b.Version) })
	return files, nil
}

// =============================================================================
// 辅助函数
// =============================================================================

// ParseDatabaseType 解析方言名称
func ParseDatabaseType(s string) (DatabaseType, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DatabaseTypePostgres, nil
	case "mysql", "mariadb":
		return DatabaseTypeMySQL, nil
	case "sqlite", "sqlite3":
		return DatabaseTypeSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", s)
	}
}

// MigrationsPath 方言在内嵌文件系统中的目录
func MigrationsPath(dbType DatabaseType) string {
	return path.Join("migrations", string(dbType))
}
