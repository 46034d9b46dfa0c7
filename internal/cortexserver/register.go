// Package cortexserver exposes creators, stored videos, ingestion and
// knowledge extraction as MCP tools.
package cortexserver

import (
	"context"
	"errors"
	"strings"

	"github.com/anatolykoptev/go_cortex/internal/history"
	"github.com/anatolykoptev/go_cortex/internal/ingest"
	"github.com/anatolykoptev/go_cortex/internal/knowledge"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolCount is the number of tools RegisterTools adds.
const ToolCount = 8

// Service holds what the tools act on. History and Knowledge may be nil.
type Service struct {
	Registry  *registry.Registry
	Engine    *ingest.Engine
	Knowledge *knowledge.Extractor
	History   history.Recorder
}

// RegisterTools registers every cortex tool on the given MCP server:
// creator_list, creator_add, creator_remove, video_list, ingest_run,
// transcribe_backfill, knowledge_extract, run_history.
func RegisterTools(server *mcp.Server, s *Service) {
	registerCreatorList(server, s)
	registerCreatorAdd(server, s)
	registerCreatorRemove(server, s)
	registerVideoList(server, s)
	registerIngestRun(server, s)
	registerTranscribeBackfill(server, s)
	registerKnowledgeExtract(server, s)
	registerRunHistory(server, s)
}

// handler adapts a Service method to the SDK's typed tool signature.
func handler[In, Out any](fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		out, err := fn(ctx, in)
		if err != nil {
			var zero Out
			return nil, zero, err
		}
		return nil, out, nil
	}
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New(field + " is required")
	}
	return nil
}
