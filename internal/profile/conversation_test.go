package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/job-scout/internal/types"
)

func TestChannelConversation_RoundTrip(t *testing.T) {
	conv := NewChannelConversation()

	questions := []types.Question{{Cluster: types.ClusterSkills, Text: "Which skills?"}}
	require.NoError(t, conv.Ask(context.Background(), questions))
	assert.Equal(t, questions, <-conv.Outbound)

	conv.Inbound <- &Message{Answers: []Answer{{Cluster: types.ClusterSkills, Text: "Go"}}}
	msg, err := conv.Next(context.Background())
	require.NoError(t, err)
	require.Len(t, msg.Answers, 1)
	assert.Equal(t, "Go", msg.Answers[0].Text)
}

func TestChannelConversation_NextTimesOut(t *testing.T) {
	conv := NewChannelConversation()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	msg, err := conv.Next(ctx)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelConversation_ClosedSession(t *testing.T) {
	conv := NewChannelConversation()
	conv.Close()

	msg, err := conv.Next(context.Background())
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestMessage_Empty(t *testing.T) {
	var nilMsg *Message
	assert.True(t, nilMsg.Empty())
	assert.True(t, (&Message{}).Empty())
	assert.False(t, (&Message{Answers: []Answer{{Text: "x"}}}).Empty())
	assert.False(t, (&Message{Toggles: []Toggle{{Cluster: "skills"}}}).Empty())
}
