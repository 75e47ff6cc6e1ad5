package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/gateway"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memStore implements ChatStore and MessageStore in memory.
type memStore struct {
	mu       sync.Mutex
	chats    map[bson.ObjectID]*data.Chat
	messages []*data.Message

	failAppend    bool
	partialAppend bool // store the first message, then fail
	// afterReserve runs with mu held once ReserveSeq succeeds
	afterReserve func(m *memStore, id bson.ObjectID)
}

func newMemStore() *memStore {
	return &memStore{chats: map[bson.ObjectID]*data.Chat{}}
}

func (m *memStore) CreateChat(_ context.Context, chat *data.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *chat
	m.chats[chat.ID] = &c
	return nil
}

func (m *memStore) GetChat(_ context.Context, userID string, id bson.ObjectID) (*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok || c.UserID != userID {
		return nil, data.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ReserveSeq(_ context.Context, userID string, id bson.ObjectID, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok || c.UserID != userID {
		return 0, data.ErrNotFound
	}
	c.MessageCount += n
	first := c.MessageCount - n + 1
	if m.afterReserve != nil {
		m.afterReserve(m, id)
	}
	return first, nil
}

func (m *memStore) sorted(userID string) []*data.Chat {
	var out []*data.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListChats(_ context.Context, userID string, limit int64) ([]*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(userID)
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListChatsSince(_ context.Context, userID string, since time.Time) ([]*data.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Chat
	for _, c := range m.sorted(userID) {
		if !c.CreatedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteChats(_ context.Context, userID string, ids []bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if c, ok := m.chats[id]; ok && c.UserID == userID {
			delete(m.chats, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendMessages(_ context.Context, msgs []*data.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend {
		return errors.New("store unavailable")
	}
	if m.partialAppend && len(msgs) > 1 {
		m.messages = append(m.messages, msgs[0])
		return errors.New("write interrupted")
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *memStore) ListMessages(ctx context.Context, chatID bson.ObjectID) ([]*data.Message, error) {
	byChat, err := m.ListMessagesForChats(ctx, []bson.ObjectID{chatID})
	return byChat[chatID], err
}

func (m *memStore) ListMessagesForChats(_ context.Context, chatIDs []bson.ObjectID) (map[bson.ObjectID][]*data.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[bson.ObjectID]bool{}
	for _, id := range chatIDs {
		want[id] = true
	}
	out := map[bson.ObjectID][]*data.Message{}
	for _, msg := range m.messages {
		if want[msg.ChatID] {
			out[msg.ChatID] = append(out[msg.ChatID], msg)
		}
	}
	for _, msgs := range out {
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].Seq < msgs[j].Seq })
	}
	return out, nil
}

func (m *memStore) DeleteMessagesForChats(_ context.Context, chatIDs []bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[bson.ObjectID]bool{}
	for _, id := range chatIDs {
		drop[id] = true
	}
	kept := m.messages[:0]
	var n int64
	for _, msg := range m.messages {
		if drop[msg.ChatID] {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return n, nil
}

func (m *memStore) DeleteMessages(_ context.Context, ids []bson.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[bson.ObjectID]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.messages[:0]
	var n int64
	for _, msg := range m.messages {
		if drop[msg.ID] {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return n, nil
}

func (m *memStore) countMessages(chatID bson.ObjectID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			n++
		}
	}
	return n
}

type staticSnapshot string

func (s staticSnapshot) Snapshot(context.Context, string) (string, error) { return string(s), nil }

// fakeCompleter records prompts and answers with a canned reply.
type fakeCompleter struct {
	prompts [][]gateway.Message
	reply   string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, msgs []gateway.Message) ([]gateway.Choice, error) {
	f.prompts = append(f.prompts, msgs)
	if f.err != nil {
		return nil, f.err
	}
	return []gateway.Choice{{Index: 0, Message: gateway.Message{Role: gateway.RoleAssistant, Content: f.reply}, FinishReason: "stop"}}, nil
}

func newTestService(t *testing.T) (*Service, *memStore, *fakeCompleter) {
	t.Helper()
	store := newMemStore()
	comp := &fakeCompleter{reply: "Seu saldo é $ 10.00"}
	s := NewService(store, store, staticSnapshot("Currency: USD"), comp)
	s.now = func() time.Time { return time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC) }
	return s, store, comp
}

func TestTurnCreatesChatWithTwoMessages(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()

	res, err := s.Turn(ctx, "alice", "Qual meu saldo?", "")
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, res.Choices, 1)

	id, err := bson.ObjectIDFromHex(res.ChatID)
	require.NoError(t, err)
	chat, err := store.GetChat(ctx, "alice", id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, chat.MessageCount)

	msgs, err := store.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "Qual meu saldo?", msgs[0].Content)
	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "Seu saldo é $ 10.00", msgs[1].Content)
}

func TestTurnFreshCallerGetsNewChatIDs(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		res, err := s.Turn(ctx, "alice", "oi", "")
		require.NoError(t, err)
		assert.False(t, seen[res.ChatID], "chat id reused")
		seen[res.ChatID] = true
	}
}

func TestTurnAppendsAfterPriorMessages(t *testing.T) {
	s, store, comp := newTestService(t)
	ctx := context.Background()

	first, err := s.Turn(ctx, "alice", "first", "")
	require.NoError(t, err)
	comp.reply = "second reply"
	second, err := s.Turn(ctx, "alice", "second", first.ChatID)
	require.NoError(t, err)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.False(t, second.Created)

	id, _ := bson.ObjectIDFromHex(first.ChatID)
	msgs, err := store.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	var contents, roles []string
	for _, m := range msgs {
		contents = append(contents, m.Content)
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []string{"first", "Seu saldo é $ 10.00", "second", "second reply"}, contents)
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"}, roles)
	assert.EqualValues(t, []int64{1, 2, 3, 4}, []int64{msgs[0].Seq, msgs[1].Seq, msgs[2].Seq, msgs[3].Seq})
}

func TestTurnPromptOrderAndLegacyRole(t *testing.T) {
	s, store, comp := newTestService(t)
	ctx := context.Background()

	chat := &data.Chat{ID: bson.NewObjectID(), UserID: "alice", MessageCount: 2, CreatedAt: s.now()}
	require.NoError(t, store.CreateChat(ctx, chat))
	store.messages = append(store.messages,
		&data.Message{ChatID: chat.ID, Seq: 1, Role: "user", Content: "hello"},
		&data.Message{ChatID: chat.ID, Seq: 2, Role: "bot", Content: "hi, how can I help?"},
	)

	_, err := s.Turn(ctx, "alice", "  Qual meu saldo?  ", chat.ID.Hex())
	require.NoError(t, err)

	require.Len(t, comp.prompts, 1)
	prompt := comp.prompts[0]
	require.Len(t, prompt, 5)
	assert.Equal(t, gateway.Message{Role: "system", Content: SystemInstruction}, prompt[0])
	assert.Equal(t, "system", prompt[1].Role)
	assert.Contains(t, prompt[1].Content, "Currency: USD")
	assert.Equal(t, gateway.Message{Role: "user", Content: "hello"}, prompt[2])
	assert.Equal(t, gateway.Message{Role: "assistant", Content: "hi, how can I help?"}, prompt[3])
	assert.Equal(t, gateway.Message{Role: "user", Content: "Qual meu saldo?"}, prompt[4])
}

func TestTurnUnknownOrForeignChat(t *testing.T) {
	s, store, comp := newTestService(t)
	ctx := context.Background()

	bobs, err := s.Turn(ctx, "bob", "mine", "")
	require.NoError(t, err)
	calls := len(comp.prompts)

	for _, id := range []string{bobs.ChatID, bson.NewObjectID().Hex(), "not-an-id"} {
		_, err := s.Turn(ctx, "alice", "hello", id)
		assert.True(t, errors.Is(err, ErrChatNotFound), "id %s: %v", id, err)
	}
	assert.Equal(t, calls, len(comp.prompts), "gateway must not be called")
	bobID, _ := bson.ObjectIDFromHex(bobs.ChatID)
	assert.Equal(t, 2, store.countMessages(bobID))
}

func TestTurnEmptyMessage(t *testing.T) {
	s, _, comp := newTestService(t)
	_, err := s.Turn(context.Background(), "alice", "   ", "")
	assert.True(t, errors.Is(err, ErrEmptyMessage))
	assert.Empty(t, comp.prompts)
}

func TestTurnGatewayFailurePersistsNothing(t *testing.T) {
	s, store, comp := newTestService(t)
	ctx := context.Background()

	existing, err := s.Turn(ctx, "alice", "first", "")
	require.NoError(t, err)

	comp.err = errors.New("503 from provider")
	_, err = s.Turn(ctx, "alice", "new chat", "")
	assert.True(t, errors.Is(err, ErrGateway), "got %v", err)

	_, err = s.Turn(ctx, "alice", "existing chat", existing.ChatID)
	assert.True(t, errors.Is(err, ErrGateway))

	chats, err := store.ListChats(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
	id, _ := bson.ObjectIDFromHex(existing.ChatID)
	assert.Equal(t, 2, store.countMessages(id))
	assert.EqualValues(t, 2, store.chats[id].MessageCount)
}

func TestTurnStoreFailureLeavesNoChat(t *testing.T) {
	s, store, _ := newTestService(t)
	store.failAppend = true

	_, err := s.Turn(context.Background(), "alice", "hello", "")
	require.Error(t, err)
	assert.Empty(t, store.chats)
	assert.Empty(t, store.messages)
}

func TestTurnPartialAppendLeavesNoHalfTurn(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.Turn(ctx, "alice", "first", "")
	require.NoError(t, err)
	id, _ := bson.ObjectIDFromHex(first.ChatID)

	store.partialAppend = true
	_, err = s.Turn(ctx, "alice", "second", first.ChatID)
	require.Error(t, err)

	msgs, err := store.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "only the first exchange remains")
	assert.Equal(t, "first", msgs[0].Content)
}

func TestTurnOnChatSweptMidTurn(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()

	first, err := s.Turn(ctx, "alice", "first", "")
	require.NoError(t, err)
	id, _ := bson.ObjectIDFromHex(first.ChatID)

	// the chat and its messages disappear right after the seq is reserved
	store.afterReserve = func(m *memStore, chatID bson.ObjectID) {
		delete(m.chats, chatID)
		kept := m.messages[:0]
		for _, msg := range m.messages {
			if msg.ChatID != chatID {
				kept = append(kept, msg)
			}
		}
		m.messages = kept
	}

	_, err = s.Turn(ctx, "alice", "second", first.ChatID)
	assert.True(t, errors.Is(err, ErrChatNotFound), "got %v", err)
	assert.Zero(t, store.countMessages(id), "no messages left behind for a deleted chat")
}

// seedChats creates n chats C1..Cn for user, each with two messages, Cn newest.
func seedChats(t *testing.T, store *memStore, user string, n int) []bson.ObjectID {
	t.Helper()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]bson.ObjectID, n)
	for i := 0; i < n; i++ {
		c := &data.Chat{ID: bson.NewObjectID(), UserID: user, MessageCount: 2, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		require.NoError(t, store.CreateChat(context.Background(), c))
		require.NoError(t, store.AppendMessages(context.Background(), pair(c.ID, 1, fmt.Sprintf("C%d", i+1), "ok", c.CreatedAt)))
		ids[i] = c.ID
	}
	return ids
}

func TestSweepKeepsFiveNewest(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	ids := seedChats(t, store, "alice", 7)
	bobs := seedChats(t, store, "bob", 2)

	deleted, err := s.Sweep(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	remaining, err := store.ListChats(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, remaining, 5)
	// C7..C3
	for i, c := range remaining {
		assert.Equal(t, ids[6-i], c.ID)
	}
	assert.Zero(t, store.countMessages(ids[0]))
	assert.Zero(t, store.countMessages(ids[1]))
	assert.Equal(t, 2, store.countMessages(ids[2]))
	assert.Equal(t, 2, store.countMessages(bobs[0]), "other users are untouched")

	// idempotent
	deleted, err = s.Sweep(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	again, err := store.ListChats(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, remaining, again)
}

func TestSweepNoopAtOrBelowLimit(t *testing.T) {
	s, store, _ := newTestService(t)
	seedChats(t, store, "alice", 5)

	deleted, err := s.Sweep(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, store.chats, 5)
}

func TestRecentAndHistory(t *testing.T) {
	s, store, _ := newTestService(t)
	ctx := context.Background()
	ids := seedChats(t, store, "alice", 7)

	recent, err := s.Recent(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recent, 5)
	assert.Equal(t, ids[6], recent[0].ID)
	assert.Equal(t, ids[2], recent[4].ID)
	require.Len(t, recent[0].Messages, 2)
	assert.Equal(t, "C7", recent[0].Messages[0].Content)

	// seeded chats are from May 1st, "now" is May 10th
	old, err := s.History(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, old)

	res, err := s.Turn(ctx, "alice", "today", "")
	require.NoError(t, err)
	hist, err := s.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, res.ChatID, hist[0].ID.Hex())
	assert.Len(t, hist[0].Messages, 2)
}
