package main

import (
	"context"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/auth"
	"github.com/PaulBabatuyi/finance-organizer/internal/chat"
	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/finance"
	"github.com/PaulBabatuyi/finance-organizer/internal/middleware"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// UserStore is the subset of data.UsersStore used by the auth handlers and
// middleware.
type UserStore interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id bson.ObjectID) (*data.User, error)
	UserExists(ctx context.Context, email string) (bool, error)
}

// ChatService is implemented by chat.Service.
type ChatService interface {
	Turn(ctx context.Context, userID, message, chatID string) (*chat.TurnResult, error)
	Sweep(ctx context.Context, userID string) (int64, error)
	Recent(ctx context.Context, userID string) ([]*data.ChatWithMessages, error)
	History(ctx context.Context, userID string) ([]*data.ChatWithMessages, error)
}

// OrganizerService is implemented by organizer.Service.
type OrganizerService interface {
	Board(ctx context.Context, userID, date string) (*data.Board, error)
	Boards(ctx context.Context, userID string) ([]*data.BoardWithTasks, error)
	AddTask(ctx context.Context, userID, boardID, text, description string) (*data.Task, error)
}

// FinanceService is implemented by finance.Service.
type FinanceService interface {
	Now() time.Time
	ListCategories(ctx context.Context, userID, typ string) ([]*data.Category, error)
	CreateCategory(ctx context.Context, userID, name, icon, typ string) (*data.Category, error)
	DeleteCategory(ctx context.Context, userID, name, typ string) error
	CreateTransaction(ctx context.Context, userID string, in finance.NewTransaction) (*data.Transaction, error)
	DeleteTransaction(ctx context.Context, userID string, id bson.ObjectID) error
	ListTransactions(ctx context.Context, userID string, r finance.DateRange) ([]finance.TransactionView, error)
	View(ctx context.Context, userID string, tx *data.Transaction) (finance.TransactionView, error)
	Balance(ctx context.Context, userID string, r finance.DateRange) (finance.BalanceView, error)
	CategoryStats(ctx context.Context, userID string, r finance.DateRange) ([]finance.CategoryStat, error)
	Periods(ctx context.Context, userID string) ([]int, error)
	History(ctx context.Context, userID, timeframe string, year, month int) ([]finance.Bucket, error)
	Settings(ctx context.Context, userID string) (*data.Settings, error)
	UpdateCurrency(ctx context.Context, userID, code string) (*data.Settings, error)
}

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers' dependencies.
type Server struct {
	users     UserStore
	auth      *auth.JWTManager
	chat      ChatService
	organizer OrganizerService
	finance   FinanceService
	db        Pinger

	limiter    *middleware.LimiterStore
	corsOrigin string
	log        *zap.Logger
}

// serverDeps groups what newServer needs.
type serverDeps struct {
	Users      UserStore
	Auth       *auth.JWTManager
	Chat       ChatService
	Organizer  OrganizerService
	Finance    FinanceService
	DB         Pinger
	Limiter    *middleware.LimiterStore
	CORSOrigin string
	Log        *zap.Logger
}

// newServer returns a ready-to-use Server.
func newServer(d serverDeps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		users:      d.Users,
		auth:       d.Auth,
		chat:       d.Chat,
		organizer:  d.Organizer,
		finance:    d.Finance,
		db:         d.DB,
		limiter:    d.Limiter,
		corsOrigin: d.CORSOrigin,
		log:        log,
	}
}

// routes builds the gin engine with every API route registered.
func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.log), middleware.CORS(s.corsOrigin))

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")

	// register/login are limited per email; everything else needs a token
	authGroup := api.Group("/auth", middleware.RateLimit(s.limiter, middleware.EmailKey))
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)

	protected := api.Group("", authMiddleware(s.auth, s.users))

	protected.POST("/chat", middleware.RateLimit(s.limiter, callerKey), s.postChat)
	protected.GET("/chat", s.listChats)
	protected.DELETE("/chat", s.sweepChats)
	protected.GET("/chat-history", s.chatHistory)

	protected.POST("/kanban", s.postBoard)
	protected.GET("/kanban", s.listBoards)
	protected.POST("/kanban/task", s.postTask)

	protected.GET("/categories", s.listCategories)
	protected.POST("/categories", s.postCategory)
	protected.DELETE("/categories", s.deleteCategory)

	protected.GET("/transactions", s.listTransactions)
	protected.POST("/transactions", s.postTransaction)
	protected.DELETE("/transactions/:id", s.deleteTransaction)

	protected.GET("/stats/balance", s.balance)
	protected.GET("/stats/categories", s.categoryStats)

	protected.GET("/history/periods", s.historyPeriods)
	protected.GET("/history", s.history)

	protected.GET("/settings", s.getSettings)
	protected.PUT("/settings", s.putSettings)

	return r
}
