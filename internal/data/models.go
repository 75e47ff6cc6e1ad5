package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to users collection (id, email, password hash, timestamps)
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

// Settings holds per-user preferences (one document per user).
type Settings struct {
	UserID    string    `bson:"user_id"`
	Currency  string    `bson:"currency"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// TransactionType tells income from expense for categories and transactions.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Category maps to categories collection; unique per (user, name, type).
type Category struct {
	ID        bson.ObjectID   `bson:"_id,omitempty"`
	UserID    string          `bson:"user_id"`
	Name      string          `bson:"name"`
	Icon      string          `bson:"icon"`
	Type      TransactionType `bson:"type"`
	CreatedAt time.Time       `bson:"created_at"`
}

// Transaction maps to transactions collection. Category and CategoryIcon are
// denormalized copies so deleting a category keeps the ledger readable.
type Transaction struct {
	ID           bson.ObjectID   `bson:"_id,omitempty"`
	UserID       string          `bson:"user_id"`
	Amount       bson.Decimal128 `bson:"amount"`
	Description  string          `bson:"description"`
	Date         time.Time       `bson:"date"`
	Type         TransactionType `bson:"type"`
	Category     string          `bson:"category"`
	CategoryIcon string          `bson:"category_icon"`
	CreatedAt    time.Time       `bson:"created_at"`
}

// MonthHistory is the per-day aggregate bucket (month_history collection).
// Month is 1-12.
type MonthHistory struct {
	UserID  string          `bson:"user_id"`
	Day     int             `bson:"day"`
	Month   int             `bson:"month"`
	Year    int             `bson:"year"`
	Income  bson.Decimal128 `bson:"income"`
	Expense bson.Decimal128 `bson:"expense"`
}

// YearHistory is the per-month aggregate bucket (year_history collection).
type YearHistory struct {
	UserID  string          `bson:"user_id"`
	Month   int             `bson:"month"`
	Year    int             `bson:"year"`
	Income  bson.Decimal128 `bson:"income"`
	Expense bson.Decimal128 `bson:"expense"`
}

// Chat maps to chats collection. MessageCount doubles as the sequence
// allocator for the chat's messages.
type Chat struct {
	ID           bson.ObjectID `bson:"_id"`
	UserID       string        `bson:"user_id"`
	MessageCount int64         `bson:"message_count"`
	CreatedAt    time.Time     `bson:"created_at"`
}

// Message maps to messages collection. Seq is the position in the chat,
// starting at 1; Role is normalized on read.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ChatID    bson.ObjectID `bson:"chat_id"`
	Seq       int64         `bson:"seq"`
	Role      string        `bson:"role"`
	Content   string        `bson:"content"`
	CreatedAt time.Time     `bson:"created_at"`
}

// ChatWithMessages is a chat and its full transcript.
type ChatWithMessages struct {
	*Chat
	Messages []*Message
}

// Board is a kanban board for one calendar day (UTC midnight).
type Board struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Date      time.Time     `bson:"date"`
	CreatedAt time.Time     `bson:"created_at"`
}

// Task is a card on a board.
type Task struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	BoardID     bson.ObjectID `bson:"board_id"`
	UserID      string        `bson:"user_id"`
	Text        string        `bson:"text"`
	Description string        `bson:"description"`
	CreatedAt   time.Time     `bson:"created_at"`
}

// BoardWithTasks is a board and its tasks in creation order.
type BoardWithTasks struct {
	*Board
	Tasks []*Task
}
