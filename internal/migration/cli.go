package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI 把 Migrator 的操作翻译成终端输出，供 agentweaver migrate 子命令使用
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// NewCLI 默认写到 stdout
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, out: os.Stdout}
}

// SetOutput 替换输出目标，测试里写入 buffer
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// step 描述一次会改变 schema 版本的操作
type step struct {
	banner  string // 执行前输出
	failure string // 错误前缀
	done    string // 完成后输出，为空时不回报版本
	run     func(ctx context.Context) error
}

// apply 执行操作并在成功后回报当前版本
func (c *CLI) apply(ctx context.Context, s step) error {
	fmt.Fprintln(c.out, s.banner)
	if err := s.run(ctx); err != nil {
		return fmt.Errorf("%s: %w", s.failure, err)
	}
	if s.done == "" {
		return nil
	}
	version, _, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(c.out, "%s Current version: %d\n", s.done, version)
	return nil
}

// RunUp 应用所有待执行迁移
func (c *CLI) RunUp(ctx context.Context) error {
	return c.apply(ctx, step{
		banner:  "Applying pending checkpoint schema migrations...",
		failure: "migrate up",
		done:    "Migrations complete.",
		run:     c.migrator.Up,
	})
}

// RunDown 回滚一步
func (c *CLI) RunDown(ctx context.Context) error {
	return c.apply(ctx, step{
		banner:  "Reverting the latest migration...",
		failure: "migrate down",
		done:    "Rollback complete.",
		run:     c.migrator.Down,
	})
}

// RunDownAll 清空 schema，checkpoint 表一并删除
func (c *CLI) RunDownAll(ctx context.Context) error {
	if err := c.apply(ctx, step{
		banner:  "Reverting every migration, checkpoint tables will be dropped...",
		failure: "migrate reset",
		run:     c.migrator.DownAll,
	}); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Schema reset.")
	return nil
}

// RunSteps n > 0 前进 n 步，n < 0 回滚 |n| 步
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n == 0 {
		fmt.Fprintln(c.out, "Nothing to do.")
		return nil
	}
	banner := fmt.Sprintf("Applying %d migration(s)...", n)
	if n < 0 {
		banner = fmt.Sprintf("Reverting %d migration(s)...", -n)
	}
	return c.apply(ctx, step{
		banner:  banner,
		failure: "migrate steps",
		done:    "Steps complete.",
		run:     func(ctx context.Context) error { return c.migrator.Steps(ctx, n) },
	})
}

// RunGoto 迁移到目标版本，方向由当前版本决定
func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.apply(ctx, step{
		banner:  fmt.Sprintf("Migrating to version %d...", version),
		failure: "migrate goto",
		done:    "Migration complete.",
		run:     func(ctx context.Context) error { return c.migrator.Goto(ctx, version) },
	})
}

// RunForce 只改写版本记录并清除 dirty 标记，不执行 SQL
func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.apply(ctx, step{
		banner:  fmt.Sprintf("Forcing version %d without running migrations...", version),
		failure: "migrate force",
		run:     func(ctx context.Context) error { return c.migrator.Force(ctx, version) },
	}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Version forced to %d\n", version)
	return nil
}

// RunVersion 输出当前版本，dirty 时附加标记
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case version == 0:
		fmt.Fprintln(c.out, "No migrations applied yet.")
	case dirty:
		fmt.Fprintf(c.out, "Current version: %d (dirty)\n", version)
	default:
		fmt.Fprintf(c.out, "Current version: %d\n", version)
	}
	return nil
}

func statusLabel(s MigrationStatus) string {
	if s.Dirty {
		return "Dirty"
	}
	if s.Applied {
		return "Applied"
	}
	return "Pending"
}

// RunStatus 每个迁移一行，末尾给出合计
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	applied := 0
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		if s.Applied {
			applied++
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n",
		len(statuses), applied, len(statuses)-applied)
	return nil
}

// RunInfo 输出版本与计数摘要
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("read migration info: %w", err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 1, ' ', 0)
	fmt.Fprintln(tw, "Checkpoint schema:")
	for _, row := range []struct {
		key   string
		value any
	}{
		{"current version", info.CurrentVersion},
		{"dirty", info.Dirty},
		{"total", info.TotalMigrations},
		{"applied", info.AppliedMigrations},
		{"pending", info.PendingMigrations},
	} {
		fmt.Fprintf(tw, "  %s:\t%v\n", row.key, row.value)
	}
	return tw.Flush()
}
