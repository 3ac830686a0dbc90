package data

import (
	"context"
	"fmt"
	"strconv"

	"github.com/DevRickLin/social-reactor/internal/biz/domain"
	"github.com/DevRickLin/social-reactor/internal/biz/repo"
	"github.com/DevRickLin/social-reactor/internal/infra/feishu"
)

// LikeEmoji is the reaction used for Like on Feishu
const LikeEmoji = "THUMBSUP"

type feishuAPI interface {
	ListMessages(ctx context.Context, chatID string, pageSize int) ([]*feishu.Message, error)
	SendText(ctx context.Context, chatID, text string) (string, error)
	ReplyText(ctx context.Context, messageID, text string) (string, error)
	AddReaction(ctx context.Context, messageID, emojiType string) error
}

// feishuRepo reads Feishu chats and performs Feishu actions.
// Message ids (om_...) carry no order, so the event id is the create time in
// milliseconds and the message id becomes the reply target.
type feishuRepo struct {
	client feishuAPI
	chatID string // Post target
}

// NewFeishuFeedRepo creates the feed repository for feishu_chat streams
func NewFeishuFeedRepo(client *feishu.Client) repo.FeedRepo {
	return &feishuRepo{client: client}
}

// NewFeishuOutboundRepo creates the Feishu outbound repository; Post sends to
// chatID
func NewFeishuOutboundRepo(client *feishu.Client, chatID string) repo.OutboundRepo {
	return &feishuRepo{client: client, chatID: chatID}
}

// FetchRecent returns the latest user messages of the stream's chat.
// Messages sent by apps (including this agent) are skipped.
func (r *feishuRepo) FetchRecent(ctx context.Context, stream domain.Stream) ([]domain.Event, error) {
	if stream.Kind != domain.StreamKindFeishuChat {
		return nil, fmt.Errorf("%w: %s: unsupported kind %s", domain.ErrFeedFetchFailed, stream.Name, stream.Kind)
	}

	msgs, err := r.client.ListMessages(ctx, stream.ChatID, stream.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFeedFetchFailed, stream.Name, err)
	}

	events := make([]domain.Event, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderType == "app" || m.CreateTime == 0 || m.Content == "" {
			continue
		}
		events = append(events, domain.Event{
			ID:        strconv.FormatInt(m.CreateTime, 10),
			Text:      m.Content,
			AuthorRef: m.SenderID,
			TargetID:  m.MsgID,
		})
	}
	return events, nil
}

// Post sends content to the configured chat
func (r *feishuRepo) Post(ctx context.Context, content string) (string, error) {
	if r.chatID == "" {
		return "", fmt.Errorf("%w: post: no chat configured", domain.ErrOutboundActionFailed)
	}
	id, err := r.client.SendText(ctx, r.chatID, content)
	if err != nil {
		return "", fmt.Errorf("%w: post: %w", domain.ErrOutboundActionFailed, err)
	}
	return id, nil
}

// Reply answers a message
func (r *feishuRepo) Reply(ctx context.Context, content, targetID string) (string, error) {
	id, err := r.client.ReplyText(ctx, targetID, content)
	if err != nil {
		return "", fmt.Errorf("%w: reply to %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return id, nil
}

// Quote is not available on Feishu
func (r *feishuRepo) Quote(ctx context.Context, content, targetID string) (string, error) {
	return "", fmt.Errorf("%w: %w: feishu quote", domain.ErrOutboundActionFailed, domain.ErrUnsupported)
}

// Like adds a thumbs-up reaction
func (r *feishuRepo) Like(ctx context.Context, targetID string) error {
	if err := r.client.AddReaction(ctx, targetID, LikeEmoji); err != nil {
		return fmt.Errorf("%w: like %s: %w", domain.ErrOutboundActionFailed, targetID, err)
	}
	return nil
}

// Retweet is not available on Feishu
func (r *feishuRepo) Retweet(ctx context.Context, targetID string) error {
	return fmt.Errorf("%w: %w: feishu retweet", domain.ErrOutboundActionFailed, domain.ErrUnsupported)
}
