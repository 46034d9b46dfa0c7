package cortexserver

import (
	"context"
	"fmt"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/anatolykoptev/go_cortex/internal/platform"
	"github.com/anatolykoptev/go_cortex/internal/registry"
	"github.com/anatolykoptev/go_cortex/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type CreatorListInput struct {
	EnabledOnly bool `json:"enabled_only,omitempty" jsonschema:"Only list creators the scheduler picks up"`
}

type CreatorInfo struct {
	Name          string `json:"name"`
	Platform      string `json:"platform"`
	ID            string `json:"id"`
	IntervalHours int    `json:"interval_hours"`
	Enabled       bool   `json:"enabled"`
	LastCheck     string `json:"last_check,omitempty"`
	Directory     string `json:"directory"`
}

type CreatorListOutput struct {
	Creators []CreatorInfo `json:"creators"`
}

type CreatorAddInput struct {
	Name          string `json:"name" jsonschema:"Display name, unique across the registry"`
	Platform      string `json:"platform" jsonschema:"Content platform, e.g. douyin"`
	ID            string `json:"id" jsonschema:"Platform account id (douyin sec_user_id)"`
	IntervalHours int    `json:"interval_hours,omitempty" jsonschema:"Polling interval in hours (default 48)"`
}

type CreatorRemoveInput struct {
	Name string `json:"name" jsonschema:"Creator name to deregister. Stored videos are kept."`
}

type CreatorRemoveOutput struct {
	Removed string `json:"removed"`
}

type VideoListInput struct {
	Name  string `json:"name" jsonschema:"Creator name"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max videos, newest first (default 20)"`
}

type VideoListOutput struct {
	Creator string                 `json:"creator"`
	Total   int                    `json:"total"`
	Videos  []engine.VideoMetadata `json:"videos"`
}

func creatorInfo(c registry.Creator) CreatorInfo {
	return CreatorInfo{
		Name:          c.Name,
		Platform:      c.Platform,
		ID:            c.ID,
		IntervalHours: c.IntervalHours,
		Enabled:       c.IsEnabled(),
		LastCheck:     c.LastCheck,
		Directory:     c.Directory,
	}
}

func (s *Service) CreatorList(_ context.Context, in CreatorListInput) (CreatorListOutput, error) {
	if err := s.Registry.Reload(); err != nil {
		return CreatorListOutput{}, err
	}
	list := s.Registry.List()
	if in.EnabledOnly {
		list = s.Registry.ListEnabled()
	}
	out := CreatorListOutput{Creators: make([]CreatorInfo, 0, len(list))}
	for _, c := range list {
		out.Creators = append(out.Creators, creatorInfo(c))
	}
	return out, nil
}

func (s *Service) CreatorAdd(_ context.Context, in CreatorAddInput) (CreatorInfo, error) {
	for _, f := range [][2]string{{"name", in.Name}, {"platform", in.Platform}, {"id", in.ID}} {
		if err := required(f[0], f[1]); err != nil {
			return CreatorInfo{}, err
		}
	}
	if !platform.Supported(in.Platform) {
		return CreatorInfo{}, fmt.Errorf("platform %q: %w (known: %v)", in.Platform, engine.ErrUnsupportedPlatform, platform.Names())
	}
	c, err := s.Registry.Add(in.Name, in.Platform, in.ID, in.IntervalHours)
	if err != nil {
		return CreatorInfo{}, err
	}
	return creatorInfo(c), nil
}

func (s *Service) CreatorRemove(_ context.Context, in CreatorRemoveInput) (CreatorRemoveOutput, error) {
	if err := required("name", in.Name); err != nil {
		return CreatorRemoveOutput{}, err
	}
	if _, err := s.Registry.Get(in.Name); err != nil {
		return CreatorRemoveOutput{}, err
	}
	if err := s.Registry.Remove(in.Name); err != nil {
		return CreatorRemoveOutput{}, err
	}
	return CreatorRemoveOutput{Removed: in.Name}, nil
}

func (s *Service) VideoList(_ context.Context, in VideoListInput) (VideoListOutput, error) {
	if err := required("name", in.Name); err != nil {
		return VideoListOutput{}, err
	}
	dir, err := s.Registry.ResolveDirectory(in.Name)
	if err != nil {
		return VideoListOutput{}, err
	}
	st, err := store.Open(dir)
	if err != nil {
		return VideoListOutput{}, err
	}
	videos, err := st.ListVideos()
	if err != nil {
		return VideoListOutput{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	out := VideoListOutput{Creator: in.Name, Total: len(videos), Videos: videos}
	if len(out.Videos) > limit {
		out.Videos = out.Videos[:limit]
	}
	if out.Videos == nil {
		out.Videos = []engine.VideoMetadata{}
	}
	return out, nil
}

func registerCreatorList(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "creator_list",
		Description: "List monitored creators with platform, account id, polling interval, enabled flag and last check time.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handler(s.CreatorList))
}

func registerCreatorAdd(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "creator_add",
		Description: "Register a creator for monitoring. Names must be unique. The scheduler picks it up on its next start.",
	}, handler(s.CreatorAdd))
}

func registerCreatorRemove(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "creator_remove",
		Description: "Deregister a creator by name. Already stored videos, transcripts and metadata stay on disk.",
	}, handler(s.CreatorRemove))
}

func registerVideoList(server *mcp.Server, s *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "video_list",
		Description: "List a creator's stored videos (metadata records), newest first: title, creation time, statistics, transcription state.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, handler(s.VideoList))
}
