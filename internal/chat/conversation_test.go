package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStreamingReply(t *testing.T) {
	c := NewConversation()

	c.AppendUser("run plate ABC123")
	c.ApplyDelta("Plate")
	c.ApplyDelta("Plate ABC123")
	c.ApplyDelta("Plate ABC123 is clear")
	c.Finish()

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Plate ABC123 is clear", msgs[1].Content)
	assert.False(t, c.InProgress())
}

func TestConversationFinishStartsNewReply(t *testing.T) {
	c := NewConversation()

	c.ApplyDelta("first")
	c.Finish()
	c.ApplyDelta("second")

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestConversationAppendSealsReply(t *testing.T) {
	c := NewConversation()

	c.ApplyDelta("partial")
	c.AppendUser("next question")
	c.ApplyDelta("answer")

	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "partial", msgs[0].Content)
	assert.Equal(t, "answer", msgs[2].Content)
}

func TestConversationFail(t *testing.T) {
	c := NewConversation()

	msg := c.Fail("Not authenticated")

	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "⚠ Error: Not authenticated", msg.Content)
	assert.Equal(t, 1, c.Len())
}

func TestConversationMessagesIsCopy(t *testing.T) {
	c := NewConversation()
	c.AppendUser("hello")

	msgs := c.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "hello", c.Messages()[0].Content)
}

func TestConversationSubscribe(t *testing.T) {
	c := NewConversation()

	var changes []Change
	cancel := c.Subscribe(func(ch Change) {
		changes = append(changes, ch)
	})

	c.AppendUser("q")
	c.ApplyDelta("a")
	c.ApplyDelta("ab")
	c.Clear()
	cancel()
	c.AppendUser("ignored")

	require.Len(t, changes, 4)
	assert.Equal(t, ChangeAppended, changes[0].Kind)
	assert.Equal(t, 0, changes[0].Index)
	assert.Equal(t, ChangeAppended, changes[1].Kind)
	assert.Equal(t, 1, changes[1].Index)
	assert.Equal(t, ChangeUpdated, changes[2].Kind)
	assert.Equal(t, "ab", changes[2].Message.Content)
	assert.Equal(t, ChangeCleared, changes[3].Kind)
}
