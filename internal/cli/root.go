// Package cli is the cortex command line: creator management, manual runs,
// the foreground scheduler and the MCP server.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the full command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "cortex",
		Short: "Cortex - 内容智能采集系统",
		Long: `Cortex monitors content creators, downloads their new videos,
transcribes them and distills the transcripts into knowledge reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newListCmd(),
		newAddCmd(),
		newRemoveCmd(),
		newEnableCmd(true),
		newEnableCmd(false),
		newVideosCmd(),
		newRunCmd(),
		newTranscribeCmd(),
		newKnowledgeCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newServeCmd(version),
	)
	return root
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
