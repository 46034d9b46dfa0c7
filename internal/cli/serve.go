package cli

import (
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_cortex/internal/cortexserver"
	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/knowledge"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "以 MCP HTTP 服务运行",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			a.withHistory(cmd.Context())
			defer a.close()
			eng, err := a.newEngine(false)
			if err != nil {
				return err
			}

			server := mcp.NewServer(&mcp.Implementation{
				Name:    "go_cortex",
				Version: version,
			}, nil)
			cortexserver.RegisterTools(server, &cortexserver.Service{
				Registry:  a.reg,
				Engine:    eng,
				Knowledge: knowledge.New(a.cfg),
				History:   a.hist,
			})
			slog.Info("starting go_cortex",
				slog.String("port", a.cfg.MCPPort),
				slog.Int("tools", cortexserver.ToolCount),
			)

			return mcpserver.Run(server, mcpserver.Config{
				Name:         "go_cortex",
				Version:      version,
				Port:         a.cfg.MCPPort,
				WriteTimeout: 600 * time.Second,
				Metrics:      engine.FormatMetrics,
			})
		},
	}
}
