package cli

import (
	"fmt"
	"io"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/ingest"
	"github.com/anatolykoptev/go_cortex/internal/knowledge"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var skip bool
	cmd := &cobra.Command{
		Use:   "run [name]",
		Short: "运行一次（手动执行所有启用的创作者，或指定创作者）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp()
			if err != nil {
				return err
			}
			a.withHistory(ctx)
			defer a.close()
			eng, err := a.newEngine(skip)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			opts := ingest.Options{SkipTranscribe: skip, OnOutcome: outcomePrinter(out)}

			if len(args) == 1 {
				r, err := eng.RunCreator(ctx, args[0], opts)
				printReport(out, r)
				return err
			}
			reports := eng.RunAll(ctx, opts)
			for _, r := range reports {
				printReport(out, r)
			}
			if len(reports) == 0 {
				fmt.Fprintln(out, "没有启用的创作者")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skip, "skip-transcribe", false, "只下载，不转录")
	return cmd
}

func newTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe",
		Short: "给已下载但未转录的视频补充转录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp()
			if err != nil {
				return err
			}
			a.withHistory(ctx)
			defer a.close()
			eng, err := a.newEngine(false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range eng.BackfillAll(ctx, ingest.Options{OnOutcome: outcomePrinter(out)}) {
				printReport(out, r)
			}
			return nil
		},
	}
}

func newKnowledgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "knowledge",
		Short: "生成知识报告",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "🧠 AI 知识提炼")
			rep, err := knowledge.New(engine.Cfg).Extract(cmd.Context())
			if err != nil {
				return err
			}
			if rep.Transcripts == 0 {
				fmt.Fprintln(out, "没有转录文本可用")
				return nil
			}
			fmt.Fprintf(out, "  收集到 %d 个转录文本\n", rep.Transcripts)
			fmt.Fprintf(out, "✓ 知识报告已保存: %s\n", rep.Path)
			return nil
		},
	}
}

// outcomePrinter renders one status line per video.
func outcomePrinter(w io.Writer) func(ingest.Outcome) {
	return func(o ingest.Outcome) {
		title := engine.TruncateRunes(o.Title, 40, "…")
		switch o.Status {
		case ingest.StatusIngested:
			if o.Transcribed {
				fmt.Fprintf(w, "  ✓ %s [+%d字]\n", title, o.TranscriptChars)
				return
			}
			fmt.Fprintf(w, "  ✓ %s\n", title)
		case ingest.StatusTranscribed:
			fmt.Fprintf(w, "  ✓ %s (转录 %d 字)\n", title, o.TranscriptChars)
		case ingest.StatusDownloadFailed:
			fmt.Fprintf(w, "  ✗ %s 下载失败: %v\n", title, o.Err)
		case ingest.StatusTranscribeFailed:
			fmt.Fprintf(w, "  ⚠ %s 转录失败: %v\n", title, o.Err)
		default:
			fmt.Fprintf(w, "  ✗ %s 保存失败: %v\n", title, o.Err)
		}
	}
}

func printReport(w io.Writer, r ingest.CycleReport) {
	if r.Err != nil {
		fmt.Fprintf(w, "[%s] ✗ %v\n", r.Creator, r.Err)
		return
	}
	if r.Mode == history.ModeBackfill {
		fmt.Fprintf(w, "[%s] 待转录 %d, 已转录 %d, 失败 %d\n", r.Creator, r.New, r.Transcribed, r.Failed)
		return
	}
	fmt.Fprintf(w, "[%s] 获取 %d, 新视频 %d, 已保存 %d, 已转录 %d, 失败 %d\n",
		r.Creator, r.Fetched, r.New, r.Ingested, r.Transcribed, r.Failed)
}
