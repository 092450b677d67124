package responder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatsla/sentinel/internal/store"
)

type fakeStore struct {
	chat *store.Chat
	err  error
}

func (f *fakeStore) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	return f.chat, f.err
}

func ptr64(v int64) *int64    { return &v }
func ptrStr(v string) *string { return &v }

func TestByTelegramIDSet(t *testing.T) {
	chat := &store.Chat{ID: 1, AccountantTelegramIDs: []int64{42}, AssignedAccountantID: ptrStr("acc-1")}
	id := New(&fakeStore{chat: chat})

	res := id.IsAccountantForChat(context.Background(), 1, Identity{UserID: 42})
	require.True(t, res.IsAccountant)
	require.Equal(t, "acc-1", res.AccountantID)
}

func TestByAssignedTelegramID(t *testing.T) {
	chat := &store.Chat{ID: 1, AssignedAccountant: &store.Accountant{ID: "acc-2", TelegramID: ptr64(99)}}
	id := New(&fakeStore{chat: chat})

	res := id.IsAccountantForChat(context.Background(), 1, Identity{UserID: 99})
	require.True(t, res.IsAccountant)
	require.Equal(t, "acc-2", res.AccountantID)
}

func TestByUsernameSetIsFoldedAndAtStripped(t *testing.T) {
	chat := &store.Chat{ID: 1, AccountantUsernames: []string{"Alice"}, AssignedAccountantID: ptrStr("acc-3")}
	id := New(&fakeStore{chat: chat})

	res := id.IsAccountantForChat(context.Background(), 1, Identity{Username: "@ALICE"})
	require.True(t, res.IsAccountant)
	require.Equal(t, "acc-3", res.AccountantID)
}

func TestByAssignedUsername(t *testing.T) {
	chat := &store.Chat{ID: 1, AssignedAccountant: &store.Accountant{ID: "acc-4", TelegramUsername: ptrStr("bob")}}
	id := New(&fakeStore{chat: chat})

	res := id.IsAccountantForChat(context.Background(), 1, Identity{Username: "Bob"})
	require.True(t, res.IsAccountant)
	require.Equal(t, "acc-4", res.AccountantID)
}

func TestNoMatchTreatedAsClient(t *testing.T) {
	chat := &store.Chat{ID: 1}
	id := New(&fakeStore{chat: chat})

	res := id.IsAccountantForChat(context.Background(), 1, Identity{UserID: 7, Username: "stranger"})
	require.False(t, res.IsAccountant)
	require.Empty(t, res.AccountantID)
}

func TestStoreFailureFailsClosed(t *testing.T) {
	id := New(&fakeStore{err: context.DeadlineExceeded})
	res := id.IsAccountantForChat(context.Background(), 1, Identity{UserID: 42})
	require.False(t, res.IsAccountant)
}

func TestAbsentChatFailsClosed(t *testing.T) {
	id := New(&fakeStore{chat: nil})
	res := id.IsAccountantForChat(context.Background(), 1, Identity{UserID: 42})
	require.False(t, res.IsAccountant)
}
