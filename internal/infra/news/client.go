// Package news reads headlines from newsapi.org
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/DevRickLin/social-reactor/internal/infra/breaker"
)

const (
	defaultBaseURL = "https://newsapi.org"

	MaxPageSize = 100
)

// Article is one headline
type Article struct {
	Source      string
	Author      string
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
}

// Client is the newsapi client
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *breaker.Breaker
}

// NewClient creates a news client. The free plan allows 100 requests a day,
// so requests are spaced at least a minute apart.
func NewClient(baseURL, apiKey, language string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		language: language,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Minute), 1),
		breaker:  breaker.New("newsapi", 10*time.Minute),
	}
}

type articlesResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string    `json:"author"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"publishedAt"`
	} `json:"articles"`
}

// Everything searches all articles for query, newest first
func (c *Client) Everything(ctx context.Context, query string, pageSize int) ([]Article, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return breaker.Do(c.breaker, func() ([]Article, error) {
		return c.everything(ctx, query, pageSize)
	})
}

func (c *Client) everything(ctx context.Context, query string, pageSize int) ([]Article, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sortBy", "publishedAt")
	q.Set("pageSize", strconv.Itoa(ClampPageSize(pageSize)))
	if c.language != "" {
		q.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var parsed articlesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || parsed.Status != "ok" {
		return nil, fmt.Errorf("newsapi: %d %s: %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	articles := make([]Article, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		// Removed articles come back as placeholders
		if a.Title == "" || a.Title == "[Removed]" {
			continue
		}
		articles = append(articles, Article{
			Source:      a.Source.Name,
			Author:      a.Author,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}
	return articles, nil
}

// ClampPageSize keeps n within 1..100
func ClampPageSize(n int) int {
	if n <= 0 {
		return 20
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
