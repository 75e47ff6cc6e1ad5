package main

import (
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/data"
)

type messageView struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatView struct {
	ID        string        `json:"id"`
	UserID    string        `json:"userId"`
	CreatedAt time.Time     `json:"createdAt"`
	Messages  []messageView `json:"messages"`
}

func chatViews(chats []*data.ChatWithMessages) []chatView {
	out := make([]chatView, 0, len(chats))
	for _, c := range chats {
		v := chatView{
			ID:        c.ID.Hex(),
			UserID:    c.UserID,
			CreatedAt: c.CreatedAt,
			Messages:  make([]messageView, 0, len(c.Messages)),
		}
		for _, m := range c.Messages {
			v.Messages = append(v.Messages, messageView{
				ID:        m.ID.Hex(),
				ChatID:    m.ChatID.Hex(),
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
		out = append(out, v)
	}
	return out
}

type taskView struct {
	ID          string    `json:"id"`
	KanbanID    string    `json:"kanbanId"`
	Text        string    `json:"text"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type boardView struct {
	ID        string     `json:"id"`
	Date      time.Time  `json:"date"`
	CreatedAt time.Time  `json:"createdAt"`
	Tasks     []taskView `json:"tasks"`
}

func newTaskView(t *data.Task) taskView {
	return taskView{
		ID:          t.ID.Hex(),
		KanbanID:    t.BoardID.Hex(),
		Text:        t.Text,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

func newBoardView(b *data.Board, tasks []*data.Task) boardView {
	v := boardView{ID: b.ID.Hex(), Date: b.Date, CreatedAt: b.CreatedAt, Tasks: make([]taskView, 0, len(tasks))}
	for _, t := range tasks {
		v.Tasks = append(v.Tasks, newTaskView(t))
	}
	return v
}

type categoryView struct {
	ID   string               `json:"id"`
	Name string               `json:"name"`
	Icon string               `json:"icon"`
	Type data.TransactionType `json:"type"`
}

func newCategoryView(c *data.Category) categoryView {
	return categoryView{ID: c.ID.Hex(), Name: c.Name, Icon: c.Icon, Type: c.Type}
}

type settingsView struct {
	Currency string `json:"currency"`
}
