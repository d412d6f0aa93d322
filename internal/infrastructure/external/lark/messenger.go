package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/infrastructure/notify"
)

// MessageSender sends one IM message. *SDKClient satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// Messenger delivers notices as Lark rich-text posts
type Messenger struct {
	sender   MessageSender
	renderer *notify.Renderer
	logger   *zap.Logger
}

// NewMessenger creates a Lark notification channel
func NewMessenger(sender MessageSender, renderer *notify.Renderer, logger *zap.Logger) *Messenger {
	return &Messenger{
		sender:   sender,
		renderer: renderer,
		logger:   logger,
	}
}

// Name identifies the channel in logs
func (m *Messenger) Name() string {
	return "lark"
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// postContent builds the JSON content of a "post" message
func postContent(msg *notify.Message) (string, error) {
	lines := strings.Split(msg.Text, "\n")
	body := postBody{Title: msg.Subject, Content: make([][]postElement, 0, len(lines))}
	for _, line := range lines {
		if line == "" {
			continue
		}
		body.Content = append(body.Content, []postElement{{Tag: "text", Text: line}})
	}

	data, err := json.Marshal(map[string]postBody{"en_us": body})
	if err != nil {
		return "", fmt.Errorf("marshal post content: %w", err)
	}
	return string(data), nil
}

// Send posts the rendered notice to each recipient. Every recipient is
// attempted; failures are joined.
func (m *Messenger) Send(ctx context.Context, kind entity.NotificationKind, recipients []entity.Address, payload map[string]interface{}) error {
	msg, err := m.renderer.Render(kind, payload)
	if err != nil {
		return err
	}

	content, err := postContent(msg)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range recipients {
		if r.Email == "" {
			continue
		}
		messageID, err := m.sender.SendMessage(ctx, ReceiveIDEmail, r.Email, "post", content)
		if err != nil {
			m.logger.Error("Failed to send Lark message",
				zap.String("kind", kind.String()),
				zap.String("receive_id", r.Email),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("send to %s: %w", r.Email, err))
			continue
		}
		m.logger.Debug("Lark message sent",
			zap.String("kind", kind.String()),
			zap.String("message_id", messageID))
	}

	return errors.Join(errs...)
}
