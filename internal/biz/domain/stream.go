package domain

import (
	"fmt"
	"time"
)

// StreamKind identifies where a stream's events come from
type StreamKind string

const (
	StreamKindXMentions  StreamKind = "x_mentions"
	StreamKindXTimeline  StreamKind = "x_timeline"
	StreamKindNews       StreamKind = "news"
	StreamKindFeishuChat StreamKind = "feishu_chat"
)

// Platform is an outbound target
type Platform string

const (
	PlatformX      Platform = "x"
	PlatformFeishu Platform = "feishu"
)

// Stream is a named, independently watermarked source of events
type Stream struct {
	Name     string
	Kind     StreamKind
	Account  string // x_timeline: user id or username to watch
	Query    string // news: search query
	ChatID   string // feishu_chat: chat to watch
	PageSize int
}

// DefaultTarget returns the platform a stream's reactions go to when the job
// does not name one
func (s Stream) DefaultTarget() Platform {
	if s.Kind == StreamKindFeishuChat {
		return PlatformFeishu
	}
	return PlatformX
}

// Watermark is the persisted boundary of one stream
type Watermark struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatermarkKey builds the store key for a stream: "<agentPrefix>:<streamName>"
func WatermarkKey(prefix, stream string) string {
	return fmt.Sprintf("%s:%s", prefix, stream)
}
