package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/service"
)

// Backend is the agent surface the tools call into. *Client implements it.
type Backend interface {
	Tweet(ctx context.Context, text string) (*TweetResult, error)
	Quote(ctx context.Context, id, comment string) (*TweetResult, error)
	Like(ctx context.Context, id string) error
	Retweet(ctx context.Context, id string) error
	GetJobs(ctx context.Context) ([]service.JobStatus, error)
	RunJob(ctx context.Context, name string) (bool, error)
	GetWatermarks(ctx context.Context) ([]domain.Watermark, error)
}

// Handler handles MCP tool calls against the agent daemon
type Handler struct {
	backend Backend
}

// NewHandler creates a new MCP handler
func NewHandler(backend Backend) *Handler {
	return &Handler{backend: backend}
}

// NewServer creates the MCP server with every agent tool registered
func NewServer(h *Handler, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "social-reactor",
		Version: version,
	}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "x_post_tweet",
		Description: "Publish a standalone tweet from the agent's account.",
	}, h.handlePostTweet)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "x_quote_tweet",
		Description: "Quote-tweet an existing tweet with a comment.",
	}, h.handleQuoteTweet)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "x_like_tweet",
		Description: "Like a tweet by id.",
	}, h.handleLikeTweet)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "x_retweet",
		Description: "Retweet a tweet by id.",
	}, h.handleRetweet)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_list_jobs",
		Description: "List the scheduled reaction jobs with their state and last firing.",
	}, h.handleListJobs)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_run_job",
		Description: "Fire a reaction job now. Does nothing if the job is already running.",
	}, h.handleRunJob)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "agent_list_watermarks",
		Description: "List the newest processed event id of every stream.",
	}, h.handleListWatermarks)

	return server
}

// ============ X Tools ============

// PostTweetInput is the input for x_post_tweet
type PostTweetInput struct {
	Text string `json:"text" jsonschema:"the tweet text"`
}

// QuoteTweetInput is the input for x_quote_tweet
type QuoteTweetInput struct {
	TweetID string `json:"tweet_id" jsonschema:"the id of the tweet to quote"`
	Comment string `json:"comment" jsonschema:"the comment to publish with the quote"`
}

// TweetIDInput is the input for tools acting on one tweet
type TweetIDInput struct {
	TweetID string `json:"tweet_id" jsonschema:"the tweet id"`
}

// TweetOutput is the output of tools that publish a tweet
type TweetOutput struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActionOutput is the output of tools without a result
type ActionOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (h *Handler) handlePostTweet(ctx context.Context, req *mcpsdk.CallToolRequest, input PostTweetInput) (*mcpsdk.CallToolResult, TweetOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, TweetOutput{Error: "text is required"}, nil
	}

	tweet, err := h.backend.Tweet(ctx, input.Text)
	if err != nil {
		logging.Error().Err(err).Msg("[MCP] x_post_tweet failed")
		return nil, TweetOutput{Error: err.Error()}, nil
	}
	return nil, TweetOutput{Success: true, ID: tweet.ID}, nil
}

func (h *Handler) handleQuoteTweet(ctx context.Context, req *mcpsdk.CallToolRequest, input QuoteTweetInput) (*mcpsdk.CallToolResult, TweetOutput, error) {
	if input.TweetID == "" || strings.TrimSpace(input.Comment) == "" {
		return nil, TweetOutput{Error: "tweet_id and comment are required"}, nil
	}

	tweet, err := h.backend.Quote(ctx, input.TweetID, input.Comment)
	if err != nil {
		logging.Error().Err(err).Str("tweet_id", input.TweetID).Msg("[MCP] x_quote_tweet failed")
		return nil, TweetOutput{Error: err.Error()}, nil
	}
	return nil, TweetOutput{Success: true, ID: tweet.ID}, nil
}

func (h *Handler) handleLikeTweet(ctx context.Context, req *mcpsdk.CallToolRequest, input TweetIDInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return nil, h.tweetAction(ctx, "like", input.TweetID, h.backend.Like), nil
}

func (h *Handler) handleRetweet(ctx context.Context, req *mcpsdk.CallToolRequest, input TweetIDInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	return nil, h.tweetAction(ctx, "retweet", input.TweetID, h.backend.Retweet), nil
}

func (h *Handler) tweetAction(ctx context.Context, name, id string, fn func(context.Context, string) error) ActionOutput {
	if id == "" {
		return ActionOutput{Error: "tweet_id is required"}
	}
	if err := fn(ctx, id); err != nil {
		logging.Error().Err(err).Str("tweet_id", id).Msgf("[MCP] %s failed", name)
		return ActionOutput{Error: err.Error()}
	}
	return ActionOutput{Success: true}
}

// ============ Agent Tools ============

// ListJobsInput is empty - no input needed
type ListJobsInput struct{}

// JobView is a job as tools report it
type JobView struct {
	Name         string `json:"name"`
	Interval     string `json:"interval"`
	State        string `json:"state"`
	Firings      int64  `json:"firings"`
	SkippedTicks int64  `json:"skipped_ticks"`
	LastStart    string `json:"last_start,omitempty"`
	LastDuration string `json:"last_duration,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// ListJobsOutput contains the scheduled jobs
type ListJobsOutput struct {
	Jobs  []JobView `json:"jobs"`
	Error string    `json:"error,omitempty"`
}

// RunJobInput names the job to fire
type RunJobInput struct {
	Name string `json:"name" jsonschema:"the job name as shown by agent_list_jobs"`
}

// RunJobOutput reports whether a firing started
type RunJobOutput struct {
	Started bool   `json:"started"`
	Note    string `json:"note,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ListWatermarksInput is empty - no input needed
type ListWatermarksInput struct{}

// WatermarkView is a stored watermark as tools report it
type WatermarkView struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ListWatermarksOutput contains the stored watermarks
type ListWatermarksOutput struct {
	Watermarks []WatermarkView `json:"watermarks"`
	Error      string          `json:"error,omitempty"`
}

func jobViews(jobs []service.JobStatus) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		v := JobView{
			Name:         j.Name,
			Interval:     j.Interval.String(),
			State:        string(j.State),
			Firings:      j.Firings,
			SkippedTicks: j.SkippedTicks,
			LastError:    j.LastError,
		}
		if !j.LastStart.IsZero() {
			v.LastStart = j.LastStart.Format(time.RFC3339)
			v.LastDuration = j.LastDuration.String()
		}
		views = append(views, v)
	}
	return views
}

func watermarkViews(marks []domain.Watermark) []WatermarkView {
	views := make([]WatermarkView, 0, len(marks))
	for _, m := range marks {
		v := WatermarkView{Key: m.Key, Value: m.Value}
		if !m.UpdatedAt.IsZero() {
			v.UpdatedAt = m.UpdatedAt.Format(time.RFC3339)
		}
		views = append(views, v)
	}
	return views
}

func (h *Handler) handleListJobs(ctx context.Context, req *mcpsdk.CallToolRequest, input ListJobsInput) (*mcpsdk.CallToolResult, ListJobsOutput, error) {
	jobs, err := h.backend.GetJobs(ctx)
	if err != nil {
		return nil, ListJobsOutput{Jobs: []JobView{}, Error: err.Error()}, nil
	}
	return nil, ListJobsOutput{Jobs: jobViews(jobs)}, nil
}

func (h *Handler) handleRunJob(ctx context.Context, req *mcpsdk.CallToolRequest, input RunJobInput) (*mcpsdk.CallToolResult, RunJobOutput, error) {
	if input.Name == "" {
		return nil, RunJobOutput{Error: "name is required"}, nil
	}

	started, err := h.backend.RunJob(ctx, input.Name)
	if err != nil {
		return nil, RunJobOutput{Error: err.Error()}, nil
	}
	if !started {
		return nil, RunJobOutput{Note: fmt.Sprintf("job %s is already running", input.Name)}, nil
	}
	logging.Info().Str("job", input.Name).Msg("[MCP] Job triggered")
	return nil, RunJobOutput{Started: true}, nil
}

func (h *Handler) handleListWatermarks(ctx context.Context, req *mcpsdk.CallToolRequest, input ListWatermarksInput) (*mcpsdk.CallToolResult, ListWatermarksOutput, error) {
	marks, err := h.backend.GetWatermarks(ctx)
	if err != nil {
		return nil, ListWatermarksOutput{Watermarks: []WatermarkView{}, Error: err.Error()}, nil
	}
	return nil, ListWatermarksOutput{Watermarks: watermarkViews(marks)}, nil
}
