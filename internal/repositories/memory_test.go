package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoresUnreadScopedToActiveMembership(t *testing.T) {
	ctx := context.Background()
	conversations := NewMemoryConversationStore()
	messages := NewMemoryMessageStore(conversations)

	conv, err := conversations.CreateOrGetConversation(ctx, 1, 2)
	require.NoError(t, err)
	_, err = messages.CreateMessage(ctx, conv.ID, 2, "hello")
	require.NoError(t, err)

	counts, err := messages.UnreadCounts(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, counts.TotalUnread)

	conversations.MarkLeft(conv.ID, 1)

	member, err := conversations.IsParticipant(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.False(t, member)

	active, err := conversations.ActiveParticipants(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, []int{2}, active)

	// A departed participant carries no unread cursor for the conversation.
	counts, err = messages.UnreadCounts(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, counts.TotalUnread)
	require.Empty(t, counts.ConversationsWithUnread)

	convs, err := conversations.ListConversations(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, convs)
}
