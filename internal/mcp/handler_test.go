package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/service"
)

func newAgentAPI(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var calls []string
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tweet", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"tweet":   map[string]string{"id": "900", "text": body.Text},
		})
	})
	mux.HandleFunc("POST /like/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("id") == "403" {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": "outbound action failed: forbidden"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	mux.HandleFunc("GET /api/jobs", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jobs": []service.JobStatus{{Name: "mentions", State: service.JobIdle}},
		})
	})
	mux.HandleFunc("POST /api/jobs/{name}/run", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("name") == "busy" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{"started": false})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{"started": true})
	})
	mux.HandleFunc("GET /api/watermarks", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"watermarks": []domain.Watermark{{Key: "agent:mentions", Value: "1002"}},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func TestClient_Actions(t *testing.T) {
	server, calls := newAgentAPI(t)
	client := NewClient(server.URL)
	ctx := context.Background()

	tweet, err := client.Tweet(ctx, "gm")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if tweet.ID != "900" || tweet.Text != "gm" {
		t.Errorf("Unexpected tweet: %+v", tweet)
	}

	if err := client.Like(ctx, "1"); err != nil {
		t.Errorf("Unexpected like error: %v", err)
	}

	err = client.Like(ctx, "403")
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.Status != http.StatusInternalServerError {
		t.Fatalf("Expected HTTPError 500, got %v", err)
	}
	if herr.Error() != "HTTP 500: outbound action failed: forbidden" {
		t.Errorf("Unexpected error text: %s", herr.Error())
	}

	if len(*calls) != 3 {
		t.Errorf("Expected 3 calls, got %v", *calls)
	}
}

func TestClient_RunJob(t *testing.T) {
	server, _ := newAgentAPI(t)
	client := NewClient(server.URL)

	started, err := client.RunJob(context.Background(), "mentions")
	if err != nil || !started {
		t.Errorf("Expected started, got %v (%v)", started, err)
	}

	started, err = client.RunJob(context.Background(), "busy")
	if err != nil || started {
		t.Errorf("Expected not started without error, got %v (%v)", started, err)
	}
}

// MockBackend implements Backend
type MockBackend struct {
	liked []string
	err   error
}

func (m *MockBackend) Tweet(ctx context.Context, text string) (*TweetResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &TweetResult{ID: "1", Text: text}, nil
}

func (m *MockBackend) Quote(ctx context.Context, id, comment string) (*TweetResult, error) {
	return &TweetResult{ID: "2", Text: comment}, m.err
}

func (m *MockBackend) Like(ctx context.Context, id string) error {
	m.liked = append(m.liked, id)
	return m.err
}

func (m *MockBackend) Retweet(ctx context.Context, id string) error {
	return m.err
}

func (m *MockBackend) GetJobs(ctx context.Context) ([]service.JobStatus, error) {
	return []service.JobStatus{{Name: "mentions"}}, m.err
}

func (m *MockBackend) RunJob(ctx context.Context, name string) (bool, error) {
	return name != "busy", m.err
}

func (m *MockBackend) GetWatermarks(ctx context.Context) ([]domain.Watermark, error) {
	return nil, m.err
}

func TestHandler_PostTweet(t *testing.T) {
	backend := &MockBackend{}
	h := NewHandler(backend)
	ctx := context.Background()

	_, out, err := h.handlePostTweet(ctx, nil, PostTweetInput{Text: "hello"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !out.Success || out.ID != "1" {
		t.Errorf("Unexpected output: %+v", out)
	}

	_, out, _ = h.handlePostTweet(ctx, nil, PostTweetInput{Text: " "})
	if out.Success || out.Error == "" {
		t.Errorf("Expected validation error, got %+v", out)
	}

	backend.err = errors.New("boom")
	_, out, _ = h.handlePostTweet(ctx, nil, PostTweetInput{Text: "hello"})
	if out.Success || out.Error != "boom" {
		t.Errorf("Expected backend error in output, got %+v", out)
	}
}

func TestHandler_LikeRequiresID(t *testing.T) {
	backend := &MockBackend{}
	h := NewHandler(backend)

	_, out, _ := h.handleLikeTweet(context.Background(), nil, TweetIDInput{})
	if out.Success {
		t.Error("Expected failure without tweet_id")
	}
	if len(backend.liked) != 0 {
		t.Errorf("Expected no backend call, got %v", backend.liked)
	}

	_, out, _ = h.handleLikeTweet(context.Background(), nil, TweetIDInput{TweetID: "7"})
	if !out.Success || len(backend.liked) != 1 {
		t.Errorf("Expected like of 7, got %+v %v", out, backend.liked)
	}
}

func TestHandler_RunJob(t *testing.T) {
	h := NewHandler(&MockBackend{})

	_, out, _ := h.handleRunJob(context.Background(), nil, RunJobInput{Name: "busy"})
	if out.Started || out.Note == "" {
		t.Errorf("Expected a note for a running job, got %+v", out)
	}

	_, out, _ = h.handleRunJob(context.Background(), nil, RunJobInput{Name: "mentions"})
	if !out.Started {
		t.Errorf("Expected started, got %+v", out)
	}
}

func TestHandler_ListWatermarksNeverNull(t *testing.T) {
	h := NewHandler(&MockBackend{err: errors.New("down")})

	_, out, _ := h.handleListWatermarks(context.Background(), nil, ListWatermarksInput{})
	if out.Watermarks == nil || out.Error != "down" {
		t.Errorf("Expected empty list with error, got %+v", out)
	}
}

func TestNewServer_RegistersTools(t *testing.T) {
	if NewServer(NewHandler(&MockBackend{}), "test") == nil {
		t.Fatal("Expected server")
	}
}

func TestHandler_ListJobs(t *testing.T) {
	h := NewHandler(&MockBackend{})

	_, out, _ := h.handleListJobs(context.Background(), nil, ListJobsInput{})
	if len(out.Jobs) != 1 || out.Jobs[0].Name != "mentions" {
		t.Fatalf("Unexpected jobs: %+v", out.Jobs)
	}
	if out.Jobs[0].LastStart != "" {
		t.Errorf("Expected no last start for a job that never fired, got %s", out.Jobs[0].LastStart)
	}
}
