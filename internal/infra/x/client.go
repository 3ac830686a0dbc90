// Package x is a small client for the X API v2 endpoints the agent uses:
// mentions and user timelines for reading, tweets, likes and retweets for
// writing.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/social-reactor/internal/infra/breaker"
	"github.com/DevRickLin/social-reactor/internal/logging"
)

const (
	defaultBaseURL  = "https://api.x.com"
	defaultTokenURL = "https://api.x.com/2/oauth2/token"

	MinPageSize = 5
	MaxPageSize = 100
)

// Config holds X credentials. With ClientID and RefreshToken set, the access
// token is refreshed automatically; otherwise AccessToken is used as is.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	UserID       string // Optional, skips the users/me lookup

	RequestsPerMinute int // 0 disables client side limiting
	Timeout           time.Duration
}

// Tweet is a post returned by the API
type Tweet struct {
	ID             string
	Text           string
	AuthorID       string
	AuthorUsername string
	CreatedAt      time.Time
}

// URL returns the public link of the tweet
func (t Tweet) URL() string {
	user := t.AuthorUsername
	if user == "" {
		user = "i/web"
	}
	return "https://x.com/" + user + "/status/" + t.ID
}

// TweetRequest is the body of a new tweet. ReplyTo and QuoteOf are mutually
// exclusive.
type TweetRequest struct {
	Text    string
	ReplyTo string
	QuoteOf string
}

// APIError is a non-2xx response
type APIError struct {
	Status int
	Title  string
	Detail string
}

// IsRequestRejected reports whether err is a 4xx answer about the request
// itself (forbidden reply, duplicate content, deleted tweet). 429 is not: it
// means the platform is pushing back.
func IsRequestRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("x api: %d %s: %s", e.Status, e.Title, e.Detail)
	}
	return fmt.Sprintf("x api: %d %s", e.Status, e.Title)
}

// Client is the X API client
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter

	// Reads and writes fail independently; a rejected reply must not stop
	// the feeds
	readBreaker  *breaker.Breaker
	writeBreaker *breaker.Breaker

	mu      sync.Mutex
	userID  string
	userIDs map[string]string // username -> id
}

// NewClient creates a new X client
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	hc := oauth2.NewClient(context.Background(), tokenSource(cfg))
	hc.Timeout = timeout

	return &Client{
		baseURL:      baseURL,
		http:         hc,
		limiter:      rate.NewLimiter(limit, 1),
		readBreaker:  breaker.New("x-api-read", 2*time.Minute, breaker.WithExcluded(IsRequestRejected)),
		writeBreaker: breaker.New("x-api-write", 2*time.Minute, breaker.WithExcluded(IsRequestRejected)),
		userID:       cfg.UserID,
		userIDs:      make(map[string]string),
	}
}

func tokenSource(cfg Config) oauth2.TokenSource {
	token := &oauth2.Token{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken}
	if cfg.ClientID == "" || cfg.RefreshToken == "" {
		return oauth2.StaticTokenSource(token)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
	}
	// Force a refresh on first use; stored access tokens expire after two hours
	token.Expiry = time.Now()
	return oc.TokenSource(context.Background(), token)
}

type tweetPayload struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type timelineResponse struct {
	Data     []tweetPayload `json:"data"`
	Includes struct {
		Users []userPayload `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
	} `json:"meta"`
}

// Me returns the authenticated user's id
func (c *Client) Me(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.userID
	c.mu.Unlock()
	if id != "" {
		return id, nil
	}

	var resp struct {
		Data userPayload `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, &resp); err != nil {
		return "", fmt.Errorf("users/me: %w", err)
	}

	c.mu.Lock()
	c.userID = resp.Data.ID
	c.mu.Unlock()
	logging.Info().Str("user_id", resp.Data.ID).Str("username", resp.Data.Username).Msg("[X] Authenticated")
	return resp.Data.ID, nil
}

// UserID resolves an account to its id. Numeric accounts are ids already;
// anything else is looked up as a username.
func (c *Client) UserID(ctx context.Context, account string) (string, error) {
	if _, err := strconv.ParseUint(account, 10, 64); err == nil {
		return account, nil
	}

	c.mu.Lock()
	id, ok := c.userIDs[account]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var resp struct {
		Data userPayload `json:"data"`
	}
	path := "/2/users/by/username/" + url.PathEscape(account)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("lookup %s: %w", account, err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("lookup %s: user not found", account)
	}

	c.mu.Lock()
	c.userIDs[account] = resp.Data.ID
	c.mu.Unlock()
	return resp.Data.ID, nil
}

// Mentions returns the most recent mentions of the authenticated user,
// newest first
func (c *Client) Mentions(ctx context.Context, maxResults int) ([]Tweet, error) {
	me, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	return c.timeline(ctx, "/2/users/"+me+"/mentions", maxResults, nil)
}

// UserTweets returns the most recent original tweets of a user, newest first.
// Replies and retweets are excluded.
func (c *Client) UserTweets(ctx context.Context, userID string, maxResults int) ([]Tweet, error) {
	extra := url.Values{"exclude": {"replies,retweets"}}
	return c.timeline(ctx, "/2/users/"+url.PathEscape(userID)+"/tweets", maxResults, extra)
}

func (c *Client) timeline(ctx context.Context, path string, maxResults int, extra url.Values) ([]Tweet, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(ClampPageSize(maxResults)))
	q.Set("expansions", "author_id")
	q.Set("tweet.fields", "created_at,author_id")
	q.Set("user.fields", "username")
	for k, v := range extra {
		q[k] = v
	}

	var resp timelineResponse
	if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	usernames := make(map[string]string, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		usernames[u.ID] = u.Username
	}

	tweets := make([]Tweet, 0, len(resp.Data))
	for _, p := range resp.Data {
		t := Tweet{
			ID:             p.ID,
			Text:           p.Text,
			AuthorID:       p.AuthorID,
			AuthorUsername: usernames[p.AuthorID],
		}
		if p.CreatedAt != "" {
			t.CreatedAt, _ = time.Parse(time.RFC3339, p.CreatedAt)
		}
		tweets = append(tweets, t)
	}
	return tweets, nil
}

// CreateTweet posts a tweet and returns its id
func (c *Client) CreateTweet(ctx context.Context, req TweetRequest) (string, error) {
	body := map[string]interface{}{"text": req.Text}
	if req.ReplyTo != "" {
		body["reply"] = map[string]string{"in_reply_to_tweet_id": req.ReplyTo}
	}
	if req.QuoteOf != "" {
		body["quote_tweet_id"] = req.QuoteOf
	}

	var resp struct {
		Data tweetPayload `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/2/tweets", body, &resp); err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}

	logging.Info().Str("tweet_id", resp.Data.ID).Str("reply_to", req.ReplyTo).Str("quote_of", req.QuoteOf).Msg("[X] Tweet posted")
	return resp.Data.ID, nil
}

// Like likes a tweet as the authenticated user
func (c *Client) Like(ctx context.Context, tweetID string) error {
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	body := map[string]string{"tweet_id": tweetID}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+me+"/likes", body, nil); err != nil {
		return fmt.Errorf("like %s: %w", tweetID, err)
	}
	return nil
}

// Retweet retweets a tweet as the authenticated user
func (c *Client) Retweet(ctx context.Context, tweetID string) error {
	me, err := c.Me(ctx)
	if err != nil {
		return err
	}
	body := map[string]string{"tweet_id": tweetID}
	if err := c.do(ctx, http.MethodPost, "/2/users/"+me+"/retweets", body, nil); err != nil {
		return fmt.Errorf("retweet %s: %w", tweetID, err)
	}
	return nil
}

// do sends one request through the limiter and the breaker and decodes the
// JSON response into out when out is non-nil
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	b := c.writeBreaker
	if method == http.MethodGet {
		b = c.readBreaker
	}
	_, err := breaker.Do(b, func() (struct{}, error) {
		return struct{}{}, c.send(ctx, method, path, body, out)
	})
	return err
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &problem) == nil {
			if problem.Title != "" {
				apiErr.Title = problem.Title
			}
			apiErr.Detail = problem.Detail
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ClampPageSize keeps n within the bounds the timeline endpoints accept
func ClampPageSize(n int) int {
	if n <= 0 {
		return 20
	}
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
