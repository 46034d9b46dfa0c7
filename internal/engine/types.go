package engine

// Statistics holds the engagement counters reported by a platform.
type Statistics struct {
	DiggCount    int64 `json:"digg_count"`
	CommentCount int64 `json:"comment_count"`
	ShareCount   int64 `json:"share_count"`
	PlayCount    int64 `json:"play_count"`
}

// Video is one candidate video returned by a platform adapter.
// CreateTime is ISO-8601 local time without zone, e.g. 2025-12-22T17:41:07.
type Video struct {
	VideoID    string     `json:"video_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	CreateTime string     `json:"create_time"`
	VideoURL   string     `json:"video_url"`
	ShareURL   string     `json:"share_url"`
	Statistics Statistics `json:"statistics"`
	Platform   string     `json:"platform"`
}

// VideoMetadata is the canonical per-video record persisted next to the artifacts.
type VideoMetadata struct {
	VideoID      string     `json:"video_id"`
	Title        string     `json:"title"`
	Author       string     `json:"author"`
	CreateTime   string     `json:"create_time"`
	Platform     string     `json:"platform"`
	ShareURL     string     `json:"share_url"`
	Statistics   Statistics `json:"statistics"`
	DownloadedAt string     `json:"downloaded_at"`
	FileSize     int64      `json:"file_size"`
	Transcribed  bool       `json:"transcribed"`
}

// NewVideoMetadata copies the Video fields into a metadata record.
func NewVideoMetadata(v Video) VideoMetadata {
	return VideoMetadata{
		VideoID:    v.VideoID,
		Title:      v.Title,
		Author:     v.Author,
		CreateTime: v.CreateTime,
		Platform:   v.Platform,
		ShareURL:   v.ShareURL,
		Statistics: v.Statistics,
	}
}

// ISOTimeLayout is the local-time layout used for create_time, downloaded_at and last_check.
const ISOTimeLayout = "2006-01-02T15:04:05"
