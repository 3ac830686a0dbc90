package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/logging"
)

// AgentConfig is the agent file: which streams to watch and how to react
type AgentConfig struct {
	Prefix    string            `yaml:"prefix"`
	Generator GeneratorConfig   `yaml:"generator"`
	Prompts   map[string]string `yaml:"prompts"`
	Jobs      []JobConfig       `yaml:"jobs"`
}

// GeneratorConfig shapes generated content
type GeneratorConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	LastLineOnly *bool  `yaml:"last_line_only"`
}

// JobConfig is one periodic job
type JobConfig struct {
	Name     string        `yaml:"name"`
	Interval time.Duration `yaml:"interval"`
	Stream   StreamConfig  `yaml:"stream"`
	Action   string        `yaml:"action"`
	Target   string        `yaml:"target"` // x or feishu, defaults to the stream's platform
	Prompt   string        `yaml:"prompt"` // Name of an entry in prompts, or an inline template
	Like     bool          `yaml:"like"`
}

// StreamConfig is the stream a job owns
type StreamConfig struct {
	Name     string `yaml:"name"` // Defaults to the job name
	Kind     string `yaml:"kind"`
	Account  string `yaml:"account"`
	Query    string `yaml:"query"`
	ChatID   string `yaml:"chat_id"`
	PageSize int    `yaml:"page_size"`
}

// LoadAgentConfig loads the agent configuration from a YAML file
func LoadAgentConfig(configPath string) (*AgentConfig, error) {
	// Try multiple paths
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/agent.yaml",
			"/etc/social-reactor/agent.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "agent.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data = b
			loadedPath = p
			break
		}
	}

	if data == nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read agent config %s", configPath)
		}
		logging.Info().Msg("[Config] No agent.yaml found, using defaults")
		return DefaultAgentConfig(), nil
	}

	logging.Info().Str("path", loadedPath).Msg("[Config] Loading agent config")
	return ParseAgentConfig(data)
}

// ParseAgentConfig parses YAML and fills in defaults
func ParseAgentConfig(data []byte) (*AgentConfig, error) {
	var config AgentConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse agent.yaml: %w", err)
	}
	config.fillDefaults()
	return &config, nil
}

// fillDefaults fills in default values for empty fields
func (c *AgentConfig) fillDefaults() {
	defaults := DefaultAgentConfig()

	if c.Prefix == "" {
		c.Prefix = defaults.Prefix
	}
	if c.Generator.SystemPrompt == "" {
		c.Generator.SystemPrompt = defaults.Generator.SystemPrompt
	}
	if c.Generator.LastLineOnly == nil {
		c.Generator.LastLineOnly = defaults.Generator.LastLineOnly
	}
	if c.Prompts == nil {
		c.Prompts = make(map[string]string)
	}
	for name, text := range defaults.Prompts {
		if _, ok := c.Prompts[name]; !ok {
			c.Prompts[name] = text
		}
	}
	if c.Jobs == nil {
		c.Jobs = defaults.Jobs
	}
}

// LastLineOnly reports whether generated content is cut to its last line
func (c *AgentConfig) LastLineOnly() bool {
	return c.Generator.LastLineOnly != nil && *c.Generator.LastLineOnly
}

func (j JobConfig) streamName() string {
	if j.Stream.Name != "" {
		return j.Stream.Name
	}
	return j.Name
}

func (j JobConfig) target() domain.Platform {
	if j.Target != "" {
		return domain.Platform(strings.ToLower(j.Target))
	}
	return domain.Stream{Kind: domain.StreamKind(j.Stream.Kind)}.DefaultTarget()
}

// BuildJobSpecs validates the jobs and turns them into domain job specs.
// Job names and stream names must be unique: a stream has exactly one owner,
// so its watermark has exactly one writer.
func (c *AgentConfig) BuildJobSpecs() ([]domain.JobSpec, error) {
	if c.Prefix == "" {
		return nil, &ConfigError{Field: "prefix", Message: "required"}
	}

	jobNames := make(map[string]bool)
	streamOwners := make(map[string]string)
	specs := make([]domain.JobSpec, 0, len(c.Jobs))

	for i, job := range c.Jobs {
		field := fmt.Sprintf("jobs[%d]", i)
		if job.Name == "" {
			return nil, &ConfigError{Field: field + ".name", Message: "required"}
		}
		field = fmt.Sprintf("jobs[%s]", job.Name)

		if jobNames[job.Name] {
			return nil, &ConfigError{Field: field + ".name", Message: "duplicate job name"}
		}
		jobNames[job.Name] = true

		if job.Interval <= 0 {
			return nil, &ConfigError{Field: field + ".interval", Message: "must be positive"}
		}

		stream, err := job.buildStream(field)
		if err != nil {
			return nil, err
		}
		if owner, ok := streamOwners[stream.Name]; ok {
			return nil, &ConfigError{Field: field + ".stream.name", Message: fmt.Sprintf("stream %s already owned by job %s", stream.Name, owner)}
		}
		streamOwners[stream.Name] = job.Name

		reaction, err := c.buildReaction(field, job, stream)
		if err != nil {
			return nil, err
		}

		specs = append(specs, domain.JobSpec{
			Name:     job.Name,
			Interval: job.Interval,
			Stream:   stream,
			Reaction: reaction,
		})
	}

	return specs, nil
}

func (j JobConfig) buildStream(field string) (domain.Stream, error) {
	s := domain.Stream{
		Name:     j.streamName(),
		Kind:     domain.StreamKind(j.Stream.Kind),
		Account:  j.Stream.Account,
		Query:    j.Stream.Query,
		ChatID:   j.Stream.ChatID,
		PageSize: j.Stream.PageSize,
	}
	if strings.Contains(s.Name, ":") {
		return s, &ConfigError{Field: field + ".stream.name", Message: "must not contain ':'"}
	}

	switch s.Kind {
	case domain.StreamKindXMentions:
	case domain.StreamKindXTimeline:
		if s.Account == "" {
			return s, &ConfigError{Field: field + ".stream.account", Message: "required for x_timeline"}
		}
	case domain.StreamKindNews:
		if s.Query == "" {
			return s, &ConfigError{Field: field + ".stream.query", Message: "required for news"}
		}
	case domain.StreamKindFeishuChat:
		if s.ChatID == "" {
			return s, &ConfigError{Field: field + ".stream.chat_id", Message: "required for feishu_chat"}
		}
	default:
		return s, &ConfigError{Field: field + ".stream.kind", Message: fmt.Sprintf("unknown kind %q", j.Stream.Kind)}
	}
	return s, nil
}

func (c *AgentConfig) buildReaction(field string, job JobConfig, stream domain.Stream) (domain.ReactionSpec, error) {
	spec := domain.ReactionSpec{
		Stream: stream.Name,
		Action: domain.Action(strings.ToLower(job.Action)),
		Target: job.target(),
		Like:   job.Like,
	}

	switch spec.Action {
	case domain.ActionReply, domain.ActionPost, domain.ActionQuote:
	case "":
		return spec, &ConfigError{Field: field + ".action", Message: "required"}
	default:
		return spec, &ConfigError{Field: field + ".action", Message: fmt.Sprintf("unknown action %q", job.Action)}
	}

	switch spec.Target {
	case domain.PlatformX, domain.PlatformFeishu:
	default:
		return spec, &ConfigError{Field: field + ".target", Message: fmt.Sprintf("unknown target %q", job.Target)}
	}

	if spec.Target == domain.PlatformFeishu && spec.Action == domain.ActionQuote {
		return spec, &ConfigError{Field: field + ".action", Message: "feishu cannot quote"}
	}
	// Replies and likes address the event on its own platform
	if spec.Action != domain.ActionPost && spec.Target != stream.DefaultTarget() {
		return spec, &ConfigError{Field: field + ".target", Message: fmt.Sprintf("%s needs the event's own platform %s", spec.Action, stream.DefaultTarget())}
	}
	if spec.Like && spec.Target != stream.DefaultTarget() {
		return spec, &ConfigError{Field: field + ".like", Message: "events can only be liked on their own platform"}
	}
	if stream.Kind == domain.StreamKindNews && spec.Action != domain.ActionPost {
		return spec, &ConfigError{Field: field + ".action", Message: "news events can only be reacted to with post"}
	}

	text := job.Prompt
	if named, ok := c.Prompts[job.Prompt]; ok {
		text = named
	}
	if strings.TrimSpace(text) == "" {
		return spec, &ConfigError{Field: field + ".prompt", Message: "required"}
	}
	tmpl, err := template.New(job.Name).Option("missingkey=error").Parse(text)
	if err != nil {
		return spec, &ConfigError{Field: field + ".prompt", Message: err.Error()}
	}
	spec.Prompt = tmpl

	return spec, nil
}

// DefaultAgentConfig returns the default agent: reply to mentions and post
// about BTC headlines
func DefaultAgentConfig() *AgentConfig {
	lastLineOnly := true
	return &AgentConfig{
		Prefix: "agent",
		Generator: GeneratorConfig{
			SystemPrompt: `You write short posts for a crypto-focused social media account.
Output only the text to publish, without quotes, preamble or links.
Keep it under 280 characters.`,
			LastLineOnly: &lastLineOnly,
		},
		Prompts: map[string]string{
			"reply": `Create a detailed professional short response that answers to this tweet
If it's just usernames, say hello. Don't add any links in the response.
Tweet: {{.Text}}`,
			"comment": `leave a nice comment or stating opinion
If it's just usernames, say hello. Don't add any links in the response.
Tweet: {{.Text}}`,
			"news": `Write a short opinion post about this headline for your followers.
Don't add any links in the response.
Headline: {{.Text}}`,
		},
		Jobs: []JobConfig{
			{
				Name:     "mentions",
				Interval: 15 * time.Minute,
				Stream:   StreamConfig{Kind: string(domain.StreamKindXMentions), PageSize: 10},
				Action:   string(domain.ActionReply),
				Prompt:   "reply",
			},
			{
				Name:     "btc-news",
				Interval: time.Hour,
				Stream:   StreamConfig{Kind: string(domain.StreamKindNews), Query: "btc", PageSize: 10},
				Action:   string(domain.ActionPost),
				Target:   string(domain.PlatformX),
				Prompt:   "news",
			},
		},
	}
}
