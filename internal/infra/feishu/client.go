package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"

	"github.com/DevRickLin/social-reactor/internal/logging"
)

// MaxPageSize is the largest page the message list API returns
const MaxPageSize = 50

// Message is a chat message returned by ListMessages
type Message struct {
	MsgID      string
	MsgType    string // text, post, image...
	Content    string // Text content with mention placeholders resolved
	SenderID   string
	SenderType string // user, app
	CreateTime int64  // Milliseconds Unix timestamp
}

// Client is the Feishu API client
type Client struct {
	larkCli *lark.Client
}

// Option configures the underlying lark client
type Option = lark.ClientOptionFunc

// WithBaseURL points the client at another open platform host (Lark, tests)
func WithBaseURL(url string) Option {
	return lark.WithOpenBaseUrl(url)
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, opts ...Option) *Client {
	opts = append([]Option{
		lark.WithLogLevel(larkcore.LogLevelError),
		lark.WithReqTimeout(30 * time.Second),
	}, opts...)
	return &Client{larkCli: lark.NewClient(appID, appSecret, opts...)}
}

// ListMessages returns the latest messages of a chat, newest first.
// Deleted messages are skipped.
func (c *Client) ListMessages(ctx context.Context, chatID string, pageSize int) ([]*Message, error) {
	pageSize = ClampPageSize(pageSize)

	// Feishu defaults to ascending order, which would return the oldest
	// messages of the chat
	req := larkim.NewListMessageReqBuilder().
		ContainerIdType("chat").
		ContainerId(chatID).
		SortType("ByCreateTimeDesc").
		PageSize(pageSize).
		Build()

	resp, err := c.larkCli.Im.Message.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("list messages error: %d %s", resp.Code, resp.Msg)
	}

	var messages []*Message
	for _, item := range resp.Data.Items {
		if item.MessageId == nil || item.CreateTime == nil {
			continue
		}
		if item.Deleted != nil && *item.Deleted {
			continue
		}

		msg := &Message{MsgID: *item.MessageId}
		if item.MsgType != nil {
			msg.MsgType = *item.MsgType
		}
		if ts, err := strconv.ParseInt(*item.CreateTime, 10, 64); err == nil {
			msg.CreateTime = ts
		}

		mentionMap := make(map[string]string)
		for _, mention := range item.Mentions {
			if mention.Key != nil && mention.Name != nil {
				mentionMap[*mention.Key] = *mention.Name
			}
		}

		if item.Body != nil && item.Body.Content != nil {
			rawContent := *item.Body.Content
			switch msg.MsgType {
			case "text":
				msg.Content = parseTextContent(rawContent, mentionMap)
			case "post":
				msg.Content = parsePostContent(rawContent, mentionMap)
			default:
				msg.Content = "[" + msg.MsgType + "]"
			}
		}

		if item.Sender != nil {
			if item.Sender.Id != nil {
				msg.SenderID = *item.Sender.Id
			}
			if item.Sender.SenderType != nil {
				msg.SenderType = *item.Sender.SenderType
			}
		}

		messages = append(messages, msg)
	}

	logging.Debug().Str("chat_id", chatID).Int("count", len(messages)).Msg("[Feishu] Listed messages")
	return messages, nil
}

// SendText sends a text message to a chat and returns the message id
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: %d %s", resp.Code, resp.Msg)
	}

	logging.Info().Str("chat_id", chatID).Msg("[Feishu] Message sent")
	if resp.Data != nil && resp.Data.MessageId != nil {
		return *resp.Data.MessageId, nil
	}
	return "", nil
}

// ReplyText replies to a message and returns the reply's message id
func (c *Client) ReplyText(ctx context.Context, messageID, text string) (string, error) {
	req := larkim.NewReplyMessageReqBuilder().
		MessageId(messageID).
		Body(larkim.NewReplyMessageReqBodyBuilder().
			MsgType(larkim.MsgTypeText).
			Content(textContent(text)).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Reply(ctx, req)
	if err != nil {
		return "", fmt.Errorf("reply message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("reply message error: %d %s", resp.Code, resp.Msg)
	}

	logging.Info().Str("message_id", messageID).Msg("[Feishu] Reply sent")
	if resp.Data != nil && resp.Data.MessageId != nil {
		return *resp.Data.MessageId, nil
	}
	return "", nil
}

// AddReaction adds an emoji reaction to a message
func (c *Client) AddReaction(ctx context.Context, messageID, emojiType string) error {
	req := larkim.NewCreateMessageReactionReqBuilder().
		MessageId(messageID).
		Body(larkim.NewCreateMessageReactionReqBodyBuilder().
			ReactionType(larkim.NewEmojiBuilder().EmojiType(emojiType).Build()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.MessageReaction.Create(ctx, req)
	if err != nil {
		return fmt.Errorf("add reaction failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("add reaction error: %d %s", resp.Code, resp.Msg)
	}

	logging.Debug().Str("message_id", messageID).Str("emoji", emojiType).Msg("[Feishu] Reaction added")
	return nil
}

func textContent(text string) string {
	contentJSON, _ := json.Marshal(map[string]string{"text": text})
	return string(contentJSON)
}

// parseTextContent extracts text from a text message and replaces mention
// placeholders (@_user_1) with real names
func parseTextContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}
	return replaceMentions(parsed.Text, mentionMap)
}

// parsePostContent flattens a rich text message to plain text
func parsePostContent(content string, mentionMap map[string]string) string {
	var parsed struct {
		Title   string `json:"title"`
		Content [][]struct {
			Tag    string `json:"tag"`
			Text   string `json:"text,omitempty"`
			UserID string `json:"user_id,omitempty"` // for "at" tags
		} `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ""
	}

	var textParts []string
	if parsed.Title != "" {
		textParts = append(textParts, parsed.Title)
	}

	for _, line := range parsed.Content {
		var lineParts []string
		for _, elem := range line {
			switch elem.Tag {
			case "text", "a":
				if elem.Text != "" {
					lineParts = append(lineParts, elem.Text)
				}
			case "at":
				if elem.UserID == "" {
					continue
				}
				if name, ok := mentionMap[elem.UserID]; ok {
					lineParts = append(lineParts, "@"+name)
				} else {
					lineParts = append(lineParts, "@"+elem.UserID)
				}
			}
		}
		if len(lineParts) > 0 {
			textParts = append(textParts, strings.Join(lineParts, ""))
		}
	}

	return replaceMentions(strings.Join(textParts, "\n"), mentionMap)
}

// replaceMentions replaces mention placeholders (@_user_1, @_user_2, etc.) with real names
func replaceMentions(text string, mentionMap map[string]string) string {
	for key, name := range mentionMap {
		text = strings.ReplaceAll(text, key, "@"+name)
	}
	return text
}

// ClampPageSize keeps n within 1..50
func ClampPageSize(n int) int {
	if n <= 0 {
		return 20
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
