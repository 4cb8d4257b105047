package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/BaSui01/agentweaver/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// migrateAction 在已创建的 CLI 上执行一个子命令
type migrateAction func(ctx context.Context, cli *migration.CLI, args []string) error

var migrateActions = map[string]migrateAction{
	"up": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunUp(ctx)
	},
	"down": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunDown(ctx)
	},
	"reset": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunDownAll(ctx)
	},
	"status": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunStatus(ctx)
	},
	"info": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunInfo(ctx)
	},
	"version": func(ctx context.Context, cli *migration.CLI, _ []string) error {
		return cli.RunVersion(ctx)
	},
	"goto": func(ctx context.Context, cli *migration.CLI, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("usage: agentweaver migrate goto <version>")
		}
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return cli.RunGoto(ctx, uint(v))
	},
	"force": func(ctx context.Context, cli *migration.CLI, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("usage: agentweaver migrate force <version>")
		}
		v, err := strconv.ParseInt(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		return cli.RunForce(ctx, int(v))
	},
}

// runMigrate 解析 migrate 子命令
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage()
		return
	}

	if err := migrate(args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func migrate(subcommand string, args []string) error {
	action, ok := migrateActions[subcommand]
	if !ok {
		return fmt.Errorf("unknown migrate subcommand: %s", subcommand)
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer migrator.Close()

	return action(context.Background(), migration.NewCLI(migrator), fs.Args())
}

// createMigrator 优先使用 --db-type/--db-url，否则读取配置的数据库段
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage() {
	fmt.Println(`Checkpoint table migrations

Usage:
  agentweaver migrate <subcommand> [options] [version]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  reset     Rollback all migrations
  status    Show migration status
  info      Show migration summary
  version   Show current migration version
  goto      Migrate to a specific version
  force     Force set migration version (use with caution)

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  agentweaver migrate up --config /etc/agentweaver/config.yaml
  agentweaver migrate status --db-type sqlite --db-url ./data/agentweaver.db
  agentweaver migrate goto --db-type sqlite --db-url ./data/agentweaver.db 1`)
}
