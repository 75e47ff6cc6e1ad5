// Package chat implements the assistant conversation: chat turns, the
// retention sweep and chat listings.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/gateway"
	"github.com/PaulBabatuyi/finance-organizer/internal/logger"
	"github.com/PaulBabatuyi/finance-organizer/internal/normalize"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	// MaxRetainedChats is how many chats a sweep keeps per user.
	MaxRetainedChats = 5
	// RecentChats is how many chats Recent returns.
	RecentChats = 5
	// HistoryWindow is how far back History looks.
	HistoryWindow = 7 * 24 * time.Hour
)

// SystemInstruction opens every prompt.
const SystemInstruction = "Você é uma assistente virtual, para auxiliar na organização financeira, " +
	"investimentos, auxilio com contas para quitação, amortização e etc ..."

// snapshotPreamble introduces the financial snapshot system message.
const snapshotPreamble = "Dados financeiros do usuário:\n"

var (
	// ErrEmptyMessage is returned when the message is blank after trimming.
	ErrEmptyMessage = errors.New("message is required")
	// ErrChatNotFound is returned when a chat id is unknown or owned by someone else.
	ErrChatNotFound = errors.New("chat not found")
	// ErrGateway wraps any failure of the completion provider.
	ErrGateway = errors.New("failed to communicate with completion gateway")
)

// ChatStore is the chat persistence used by Service.
type ChatStore interface {
	CreateChat(ctx context.Context, chat *data.Chat) error
	GetChat(ctx context.Context, userID string, id bson.ObjectID) (*data.Chat, error)
	ReserveSeq(ctx context.Context, userID string, id bson.ObjectID, n int64) (int64, error)
	ListChats(ctx context.Context, userID string, limit int64) ([]*data.Chat, error)
	ListChatsSince(ctx context.Context, userID string, since time.Time) ([]*data.Chat, error)
	DeleteChats(ctx context.Context, userID string, ids []bson.ObjectID) (int64, error)
}

// MessageStore is the message persistence used by Service.
type MessageStore interface {
	AppendMessages(ctx context.Context, msgs []*data.Message) error
	ListMessages(ctx context.Context, chatID bson.ObjectID) ([]*data.Message, error)
	ListMessagesForChats(ctx context.Context, chatIDs []bson.ObjectID) (map[bson.ObjectID][]*data.Message, error)
	DeleteMessagesForChats(ctx context.Context, chatIDs []bson.ObjectID) (int64, error)
	DeleteMessages(ctx context.Context, ids []bson.ObjectID) (int64, error)
}

// SnapshotSource renders the caller's financial snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context, userID string) (string, error)
}

// Service runs chat operations. Every method takes the caller's user id.
type Service struct {
	chats     ChatStore
	messages  MessageStore
	snapshots SnapshotSource
	completer gateway.Completer
	now       func() time.Time
}

// NewService returns a Service.
func NewService(chats ChatStore, messages MessageStore, snapshots SnapshotSource, completer gateway.Completer) *Service {
	return &Service{
		chats:     chats,
		messages:  messages,
		snapshots: snapshots,
		completer: completer,
		now:       time.Now,
	}
}

// TurnResult is the outcome of a chat turn.
type TurnResult struct {
	ChatID  string
	Choices []gateway.Choice
	Created bool
}

// Turn sends message to the assistant within chatID (a new chat when chatID
// is empty) and records the exchange. Nothing is written unless the
// completion succeeds.
func (s *Service) Turn(ctx context.Context, userID, message, chatID string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	var (
		chat    *data.Chat
		history []*data.Message
	)
	if chatID = strings.TrimSpace(chatID); chatID != "" {
		var err error
		if chat, err = s.resolve(ctx, userID, chatID); err != nil {
			return nil, err
		}
		if history, err = s.messages.ListMessages(ctx, chat.ID); err != nil {
			return nil, err
		}
	}

	snapshot, err := s.snapshots.Snapshot(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "build financial snapshot")
	}

	choices, err := s.completer.Complete(ctx, BuildPrompt(snapshot, history, message))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	reply := ""
	if len(choices) > 0 {
		reply = choices[0].Message.Content
	}

	now := s.now().UTC()
	res := &TurnResult{Choices: choices}
	if chat == nil {
		chat, err = s.createWithMessages(ctx, userID, message, reply, now)
		res.Created = true
	} else {
		err = s.append(ctx, userID, chat, message, reply, now)
	}
	if err != nil {
		return nil, err
	}
	res.ChatID = chat.ID.Hex()
	return res, nil
}

func (s *Service) resolve(ctx context.Context, userID, chatID string) (*data.Chat, error) {
	id, err := bson.ObjectIDFromHex(chatID)
	if err != nil {
		return nil, errors.Wrapf(ErrChatNotFound, "chat %q", chatID)
	}
	chat, err := s.chats.GetChat(ctx, userID, id)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, errors.Wrapf(ErrChatNotFound, "chat %q", chatID)
		}
		return nil, err
	}
	return chat, nil
}

// BuildPrompt orders the prompt: instruction, snapshot, prior messages with
// roles normalized, then the new user message.
func BuildPrompt(snapshot string, history []*data.Message, message string) []gateway.Message {
	prompt := make([]gateway.Message, 0, len(history)+3)
	prompt = append(prompt,
		gateway.Message{Role: gateway.RoleSystem, Content: SystemInstruction},
		gateway.Message{Role: gateway.RoleSystem, Content: snapshotPreamble + snapshot},
	)
	for _, m := range history {
		role := gateway.RoleUser
		if normalize.Role(m.Role) == normalize.RoleAssistant {
			role = gateway.RoleAssistant
		}
		prompt = append(prompt, gateway.Message{Role: role, Content: m.Content})
	}
	return append(prompt, gateway.Message{Role: gateway.RoleUser, Content: message})
}

func pair(chatID bson.ObjectID, first int64, message, reply string, now time.Time) []*data.Message {
	return []*data.Message{
		{ID: bson.NewObjectID(), ChatID: chatID, Seq: first, Role: normalize.RoleUser, Content: message, CreatedAt: now},
		{ID: bson.NewObjectID(), ChatID: chatID, Seq: first + 1, Role: normalize.RoleAssistant, Content: reply, CreatedAt: now},
	}
}

// createWithMessages writes the messages before the chat so a chat is never
// listed without its first exchange.
func (s *Service) createWithMessages(ctx context.Context, userID, message, reply string, now time.Time) (*data.Chat, error) {
	chat := &data.Chat{ID: bson.NewObjectID(), UserID: userID, MessageCount: 2, CreatedAt: now}
	if err := s.messages.AppendMessages(ctx, pair(chat.ID, 1, message, reply, now)); err != nil {
		s.cleanup(ctx, chat.ID)
		return nil, err
	}
	if err := s.chats.CreateChat(ctx, chat); err != nil {
		s.cleanup(ctx, chat.ID)
		return nil, err
	}
	return chat, nil
}

func (s *Service) append(ctx context.Context, userID string, chat *data.Chat, message, reply string, now time.Time) error {
	first, err := s.chats.ReserveSeq(ctx, userID, chat.ID, 2)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			// swept between resolve and reserve
			return errors.Wrapf(ErrChatNotFound, "chat %s", chat.ID.Hex())
		}
		return err
	}
	msgs := pair(chat.ID, first, message, reply, now)
	if err := s.messages.AppendMessages(ctx, msgs); err != nil {
		// an ordered insert may have stored the user message alone
		s.discard(ctx, msgs)
		return err
	}
	// a sweep may have removed the chat after ReserveSeq; its messages must go too
	if _, err := s.chats.GetChat(ctx, userID, chat.ID); err != nil {
		s.discard(ctx, msgs)
		if errors.Is(err, data.ErrNotFound) {
			return errors.Wrapf(ErrChatNotFound, "chat %s", chat.ID.Hex())
		}
		return err
	}
	return nil
}

func (s *Service) discard(ctx context.Context, msgs []*data.Message) {
	ids := make([]bson.ObjectID, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	if _, err := s.messages.DeleteMessages(context.WithoutCancel(ctx), ids); err != nil {
		logger.Get().Warn("failed to remove messages of failed turn",
			zap.String("chat_id", msgs[0].ChatID.Hex()), zap.Error(err))
	}
}

func (s *Service) cleanup(ctx context.Context, chatID bson.ObjectID) {
	if _, err := s.messages.DeleteMessagesForChats(context.WithoutCancel(ctx), []bson.ObjectID{chatID}); err != nil {
		logger.Get().Warn("failed to clean up messages of unsaved chat",
			zap.String("chat_id", chatID.Hex()), zap.Error(err))
	}
}

// Sweep keeps the caller's MaxRetainedChats newest chats and deletes the
// rest with their messages. It returns how many chats were deleted.
func (s *Service) Sweep(ctx context.Context, userID string) (int64, error) {
	chats, err := s.chats.ListChats(ctx, userID, 0)
	if err != nil {
		return 0, err
	}
	if len(chats) <= MaxRetainedChats {
		return 0, nil
	}

	ids := make([]bson.ObjectID, 0, len(chats)-MaxRetainedChats)
	for _, c := range chats[MaxRetainedChats:] {
		ids = append(ids, c.ID)
	}
	// messages first: a failure halfway leaves chats a retry can still find
	if _, err := s.messages.DeleteMessagesForChats(ctx, ids); err != nil {
		return 0, err
	}
	n, err := s.chats.DeleteChats(ctx, userID, ids)
	if err != nil {
		return 0, err
	}
	// a turn racing the sweep can append between the two deletes
	if _, err := s.messages.DeleteMessagesForChats(ctx, ids); err != nil {
		return n, err
	}
	return n, nil
}

// Recent returns the caller's RecentChats newest chats with their messages.
func (s *Service) Recent(ctx context.Context, userID string) ([]*data.ChatWithMessages, error) {
	chats, err := s.chats.ListChats(ctx, userID, RecentChats)
	if err != nil {
		return nil, err
	}
	return s.withMessages(ctx, chats)
}

// History returns the caller's chats created within HistoryWindow, newest
// first, with their messages.
func (s *Service) History(ctx context.Context, userID string) ([]*data.ChatWithMessages, error) {
	chats, err := s.chats.ListChatsSince(ctx, userID, s.now().UTC().Add(-HistoryWindow))
	if err != nil {
		return nil, err
	}
	return s.withMessages(ctx, chats)
}

func (s *Service) withMessages(ctx context.Context, chats []*data.Chat) ([]*data.ChatWithMessages, error) {
	ids := make([]bson.ObjectID, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	byChat, err := s.messages.ListMessagesForChats(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*data.ChatWithMessages, len(chats))
	for i, c := range chats {
		msgs := byChat[c.ID]
		if msgs == nil {
			msgs = []*data.Message{}
		}
		out[i] = &data.ChatWithMessages{Chat: c, Messages: msgs}
	}
	return out, nil
}
