package profile

import (
	"context"
	"errors"

	"github.com/jonathan/job-scout/internal/types"
)

// ErrSessionClosed is returned by a conversation once its channel has ended.
var ErrSessionClosed = errors.New("conversation session closed")

// Message is one inbound conversation turn. A single turn may answer several
// pending questions and carry explicit toggle instructions.
type Message struct {
	Answers []Answer `json:"answers,omitempty"`
	Toggles []Toggle `json:"toggles,omitempty"`
}

// Empty reports whether the message carries no usable content
func (m *Message) Empty() bool {
	return m == nil || (len(m.Answers) == 0 && len(m.Toggles) == 0)
}

// Conversation is the ordered, bidirectional message stream the orchestrator
// talks to. At most one onboarding session is active per stream; messages are
// delivered in send order. Next blocks until the next inbound message, the
// context deadline, or session close.
type Conversation interface {
	Ask(ctx context.Context, questions []types.Question) error
	Next(ctx context.Context) (*Message, error)
}

// ChannelConversation is a Conversation backed by in-process channels, used
// by the CLI frontend and by tests. The transport collaborator adapts its
// stream to the same interface.
type ChannelConversation struct {
	Outbound chan []types.Question
	Inbound  chan *Message
}

// NewChannelConversation creates a buffered channel-backed conversation
func NewChannelConversation() *ChannelConversation {
	return &ChannelConversation{
		Outbound: make(chan []types.Question, 8),
		Inbound:  make(chan *Message, 8),
	}
}

// Ask delivers a question set to the user side of the stream
func (c *ChannelConversation) Ask(ctx context.Context, questions []types.Question) error {
	select {
	case c.Outbound <- questions:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next blocks for the next inbound message
func (c *ChannelConversation) Next(ctx context.Context) (*Message, error) {
	select {
	case msg, ok := <-c.Inbound:
		if !ok {
			return nil, ErrSessionClosed
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close ends the session from the user side
func (c *ChannelConversation) Close() {
	close(c.Inbound)
}
