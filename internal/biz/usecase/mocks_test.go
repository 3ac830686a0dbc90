package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"text/template"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
)

// Mock implementations

type mockWatermarkRepo struct {
	values   map[string]string
	getErr   error
	setErr   error
	advances int
	mu       sync.Mutex
}

func newMockWatermarkRepo() *mockWatermarkRepo {
	return &mockWatermarkRepo{values: make(map[string]string)}
}

func (m *mockWatermarkRepo) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *mockWatermarkRepo) Advance(ctx context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return false, m.setErr
	}
	m.advances++
	if cur, ok := m.values[key]; ok && domain.CompareIDs(value, cur) <= 0 {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *mockWatermarkRepo) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockWatermarkRepo) List(ctx context.Context, prefix string) ([]domain.Watermark, error) {
	return nil, nil
}

func (m *mockWatermarkRepo) Close() error {
	return nil
}

type mockFeedRepo struct {
	page  []domain.Event
	err   error
	calls int
}

func (m *mockFeedRepo) FetchRecent(ctx context.Context, stream domain.Stream) ([]domain.Event, error) {
	m.calls++
	return m.page, m.err
}

// mockGenerator answers "reply to <id>" unless the prompt mentions a failing id
type mockGenerator struct {
	failIDs  map[string]bool
	emptyIDs map[string]bool
	prompts  []string
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	id := strings.TrimPrefix(prompt, "event:")
	if m.failIDs[id] {
		return "", errors.New("model overloaded")
	}
	if m.emptyIDs[id] {
		return "   ", nil
	}
	return "reply to " + id, nil
}

type outboundCall struct {
	action  string
	content string
	target  string
}

type mockOutbound struct {
	calls   []outboundCall
	failFor map[string]bool
	likeErr error
}

func (m *mockOutbound) record(action, content, target string) error {
	m.calls = append(m.calls, outboundCall{action: action, content: content, target: target})
	if m.failFor[target] {
		return errors.New("403 forbidden")
	}
	return nil
}

func (m *mockOutbound) Post(ctx context.Context, content string) (string, error) {
	return "new", m.record("post", content, "")
}

func (m *mockOutbound) Reply(ctx context.Context, content, targetID string) (string, error) {
	return "new", m.record("reply", content, targetID)
}

func (m *mockOutbound) Quote(ctx context.Context, content, targetID string) (string, error) {
	return "new", m.record("quote", content, targetID)
}

func (m *mockOutbound) Like(ctx context.Context, targetID string) error {
	m.calls = append(m.calls, outboundCall{action: "like", target: targetID})
	return m.likeErr
}

func (m *mockOutbound) Retweet(ctx context.Context, targetID string) error {
	return m.record("retweet", "", targetID)
}

func (m *mockOutbound) actions(action string) []outboundCall {
	var out []outboundCall
	for _, c := range m.calls {
		if c.action == action {
			out = append(out, c)
		}
	}
	return out
}

func testPrompt() *template.Template {
	return template.Must(template.New("test").Parse("event:{{.ID}}"))
}
