package data

import (
	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/infra/feishu"
	"github.com/DevRickLin/social-reactor/internal/infra/news"
	"github.com/DevRickLin/social-reactor/internal/infra/openai"
	"github.com/DevRickLin/social-reactor/internal/infra/x"
)

// Clients holds the platform clients. A nil client leaves its streams and
// outbound target unconfigured.
type Clients struct {
	X      *x.Client
	News   *news.Client
	Feishu *feishu.Client
	LLM    *openai.Client
}

// GeneratorOptions configures content generation
type GeneratorOptions struct {
	SystemPrompt string
	LastLineOnly bool
}

// Repositories contains all repositories
type Repositories struct {
	Watermarks repo.WatermarkRepo
	Feeds      map[domain.StreamKind]repo.FeedRepo
	Outbound   map[domain.Platform]repo.OutboundRepo
	Generator  repo.GeneratorRepo
}

// NewRepositories creates all repositories
func NewRepositories(clients Clients, watermarkDBPath, feishuChatID string, gen GeneratorOptions) (*Repositories, error) {
	watermarks, err := NewWatermarkRepo(watermarkDBPath)
	if err != nil {
		return nil, err
	}

	repos := &Repositories{
		Watermarks: watermarks,
		Feeds:      make(map[domain.StreamKind]repo.FeedRepo),
		Outbound:   make(map[domain.Platform]repo.OutboundRepo),
	}

	if clients.X != nil {
		feed := NewXFeedRepo(clients.X)
		repos.Feeds[domain.StreamKindXMentions] = feed
		repos.Feeds[domain.StreamKindXTimeline] = feed
		repos.Outbound[domain.PlatformX] = NewXOutboundRepo(clients.X)
	}
	if clients.News != nil {
		repos.Feeds[domain.StreamKindNews] = NewNewsFeedRepo(clients.News)
	}
	if clients.Feishu != nil {
		repos.Feeds[domain.StreamKindFeishuChat] = NewFeishuFeedRepo(clients.Feishu)
		repos.Outbound[domain.PlatformFeishu] = NewFeishuOutboundRepo(clients.Feishu, feishuChatID)
	}
	if clients.LLM != nil {
		repos.Generator = NewGeneratorRepo(clients.LLM, gen.SystemPrompt, gen.LastLineOnly)
	}

	return repos, nil
}

// Close releases the repositories
func (r *Repositories) Close() error {
	return r.Watermarks.Close()
}
