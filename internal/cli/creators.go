package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/store"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出所有创作者",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			creators := a.reg.List()
			if len(creators) == 0 {
				fmt.Fprintln(out, "没有配置创作者")
				fmt.Fprintln(out, "\n添加创作者:\n  cortex add <名称> <平台> <ID> [间隔]")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "名称\t平台\tID\t间隔\t状态\t上次检查")
			for _, c := range creators {
				status := "✓ 启用"
				if !c.IsEnabled() {
					status = "✗ 禁用"
				}
				last := c.LastCheck
				if last == "" {
					last = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%dh\t%s\t%s\n",
					c.Name, c.Platform, engine.TruncateRunes(c.ID, 20, "..."),
					int(c.Interval().Hours()), status, last)
			}
			return w.Flush()
		},
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <name> <platform> <id> [interval_hours]",
		Short:   "添加创作者",
		Args:    cobra.RangeArgs(3, 4),
		Example: "  cortex add 九栢米电商 douyin MS4wLjABAAAA... 48",
		RunE: func(cmd *cobra.Command, args []string) error {
			interval := registry.DefaultIntervalHours
			if len(args) == 4 {
				n, err := strconv.Atoi(args[3])
				if err != nil || n <= 0 {
					return fmt.Errorf("interval must be a positive number of hours, got %q", args[3])
				}
				interval = n
			}
			if !platform.Supported(args[1]) {
				return fmt.Errorf("platform %q: %w (supported: %v)", args[1], engine.ErrUnsupportedPlatform, platform.Names())
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			c, err := a.reg.Add(args[0], args[1], args[2], interval)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ 已添加创作者: %s\n", c.Name)
			fmt.Fprintf(out, "  平台: %s\n  ID: %s\n  间隔: %dh\n  目录: %s\n",
				c.Platform, c.ID, c.IntervalHours, a.reg.Dir(c))
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "删除创作者 (已下载的内容保留)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			if _, err := a.reg.Get(args[0]); err != nil {
				return err
			}
			if err := a.reg.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ 已删除创作者: %s\n", args[0])
			return nil
		},
	}
}

func newEnableCmd(enable bool) *cobra.Command {
	use, short, done := "enable <name>", "启用创作者", "✓ 已启用: %s\n"
	if !enable {
		use, short, done = "disable <name>", "禁用创作者 (调度和手动运行都跳过)", "✓ 已禁用: %s\n"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			if err := a.reg.SetEnabled(args[0], enable); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), done, args[0])
			return nil
		},
	}
}

func newVideosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "videos [name]",
		Short: "查看已处理视频",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				dir, err := a.reg.ResolveDirectory(args[0])
				if err != nil {
					return err
				}
				st, err := store.Open(dir)
				if err != nil {
					return err
				}
				videos, err := st.ListVideos()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%s - %d 个视频\n\n", args[0], len(videos))
				for _, v := range videos {
					mark := " "
					if v.Transcribed {
						mark = "✎"
					}
					fmt.Fprintf(out, "  %s %s\n    %s | %s\n", mark, engine.TruncateRunes(v.Title, 50, "…"), v.VideoID, v.CreateTime)
				}
				return nil
			}

			entries, err := os.ReadDir(a.cfg.DataDir)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			total := 0
			for _, e := range entries {
				if !e.IsDir() || e.Name()[0] == '.' {
					continue
				}
				st, err := store.Open(filepath.Join(a.cfg.DataDir, e.Name()))
				if err != nil {
					continue
				}
				videos, err := st.ListVideos()
				if err != nil {
					continue
				}
				total += len(videos)
				fmt.Fprintf(out, "  %s: %d 个视频\n", e.Name(), len(videos))
			}
			fmt.Fprintf(out, "\n  总计: %d 个视频\n", total)
			return nil
		},
	}
}
