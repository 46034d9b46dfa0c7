package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/ingest"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/scheduler"
	"github.com/spf13/cobra"
)

// schedulerState is published by a running `start` so `stop` and `status`
// in other processes can find it.
type schedulerState struct {
	PID       int                 `json:"pid"`
	StartedAt string              `json:"started_at"`
	Jobs      []scheduler.JobInfo `json:"jobs"`
}

func writeState(path string, s schedulerState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return engine.WriteFileAtomic(path, data, 0o644)
}

// readState returns ok=false when no state file exists.
func readState(path string) (schedulerState, bool, error) {
	var s schedulerState
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, false, fmt.Errorf("scheduler state %s: %w", path, err)
	}
	return s, true, nil
}

// processAlive probes pid with signal 0.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

// liveState returns the state of a running scheduler, removing a stale file.
func liveState(path string) (schedulerState, bool, error) {
	s, ok, err := readState(path)
	if err != nil || !ok {
		return s, false, err
	}
	if !processAlive(s.PID) {
		_ = os.Remove(path)
		return s, false, nil
	}
	return s, true, nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "启动定时监控 (前台运行，Ctrl+C 停止)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			a, err := openApp()
			if err != nil {
				return err
			}
			statePath := a.cfg.SchedulerStatePath()
			if s, alive, err := liveState(statePath); err == nil && alive {
				return fmt.Errorf("scheduler already running (pid %d)", s.PID)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.withHistory(ctx)
			defer a.close()

			eng, err := a.newEngine(false)
			if err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			started := time.Now()
			publish := func() {
				s := schedulerState{PID: os.Getpid(), StartedAt: started.Format(engine.ISOTimeLayout), Jobs: sched.Jobs()}
				if err := writeState(statePath, s); err != nil {
					slog.Warn("scheduler state not written", slog.Any("error", err))
				}
			}
			sched = scheduler.New(a.reg, func(ctx context.Context, c registry.Creator) error {
				defer publish()
				_, err := eng.ProcessCreator(ctx, c, ingest.Options{})
				return err
			})

			if err := a.reg.Reload(); err != nil {
				return err
			}
			sched.Start(ctx)
			publish()
			defer os.Remove(statePath)

			printJobs(out, sched.Jobs())
			fmt.Fprintln(out, "\n按 Ctrl+C 停止")

			<-ctx.Done()
			fmt.Fprintln(out, "\n正在停止，等待进行中的任务完成...")
			sched.Stop()
			sched.Wait()
			fmt.Fprintln(out, "✓ 调度器已停止")
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "停止监控",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			s, alive, err := liveState(engine.Cfg.SchedulerStatePath())
			if err != nil {
				return err
			}
			if !alive {
				fmt.Fprintln(out, "调度器未运行")
				return nil
			}
			p, err := os.FindProcess(s.PID)
			if err != nil {
				return err
			}
			if err := p.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("signal scheduler pid %d: %w", s.PID, err)
			}
			fmt.Fprintf(out, "✓ 已通知调度器停止 (pid %d)，进行中的任务会先完成\n", s.PID)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "查看状态",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			a, err := openApp()
			if err != nil {
				return err
			}
			a.withHistory(ctx)
			defer a.close()

			s, alive, err := liveState(a.cfg.SchedulerStatePath())
			if err != nil {
				return err
			}
			if alive {
				fmt.Fprintf(out, "调度器运行中 (pid %d, 启动于 %s)\n\n", s.PID, s.StartedAt)
				printJobs(out, s.Jobs)
			} else {
				fmt.Fprintln(out, "调度器未运行")
			}

			enabled := a.reg.ListEnabled()
			fmt.Fprintf(out, "\n创作者: %d 个 (启用 %d)\n", len(a.reg.List()), len(enabled))

			if a.hist == nil {
				return nil
			}
			runs, err := a.hist.Recent(ctx, "", limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "\n暂无运行记录")
				return nil
			}
			fmt.Fprintln(out, "\n最近运行:")
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  时间\t创作者\t模式\t新视频\t保存\t转录\t失败\t耗时\t错误")
			for _, r := range runs {
				fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04"), r.Creator, r.Mode,
					r.New, r.Ingested, r.Transcribed, r.Failed,
					r.Duration().Round(time.Second), engine.TruncateRunes(r.Error, 40, "…"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "显示的运行记录条数")
	return cmd
}

func printJobs(w io.Writer, jobs []scheduler.JobInfo) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "没有计划任务 (没有启用的创作者)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  创作者\t间隔\t下次运行\t上次运行\t运行中")
	for _, j := range jobs {
		last := "-"
		if !j.LastRun.IsZero() {
			last = j.LastRun.Local().Format("2006-01-02 15:04")
		}
		running := ""
		if j.Running {
			running = "●"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", j.Creator, j.Interval,
			j.NextRun.Local().Format("2006-01-02 15:04"), last, running)
	}
	_ = tw.Flush()
}
