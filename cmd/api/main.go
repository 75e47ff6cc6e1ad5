package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulBabatuyi/finance-organizer/internal/auth"
	"github.com/PaulBabatuyi/finance-organizer/internal/chat"
	"github.com/PaulBabatuyi/finance-organizer/internal/config"
	"github.com/PaulBabatuyi/finance-organizer/internal/data"
	"github.com/PaulBabatuyi/finance-organizer/internal/db"
	"github.com/PaulBabatuyi/finance-organizer/internal/finance"
	"github.com/PaulBabatuyi/finance-organizer/internal/gateway"
	"github.com/PaulBabatuyi/finance-organizer/internal/logger"
	"github.com/PaulBabatuyi/finance-organizer/internal/middleware"
	"github.com/PaulBabatuyi/finance-organizer/internal/organizer"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	healthInterval  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var envFile string

	run := func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context(), v, envFile)
	}
	root := &cobra.Command{
		Use:          "finance-organizer",
		Short:        "Personal finance API with task organizer and AI assistant",
		SilenceUsage: true,
		RunE:         run,
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the gRPC health service",
		RunE:  run,
	})

	flags := root.PersistentFlags()
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("port", "", "HTTP listen port (env PORT)")
	flags.String("health-port", "", "gRPC health listen port, empty disables (env HEALTH_PORT)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.Bool("log-development", false, "human readable logs (env LOG_DEVELOPMENT)")
	for key, name := range map[string]string{
		config.KeyPort:           "port",
		config.KeyHealthPort:     "health-port",
		config.KeyLogLevel:       "log-level",
		config.KeyLogDevelopment: "log-development",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return root
}

// missingKeyCompleter answers every turn with an error when no provider key
// is configured, so the rest of the API still runs.
type missingKeyCompleter struct{}

func (missingKeyCompleter) Complete(context.Context, []gateway.Message) ([]gateway.Choice, error) {
	return nil, errors.Errorf("%s is not configured", config.KeyGroqAPIKey)
}

func serve(ctx context.Context, v *viper.Viper, envFile string) error {
	envErr := config.LoadDotEnv(envFile)

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.LogDevelopment, logger.LogLevel(cfg.LogLevel)); err != nil {
		return errors.Wrap(err, "init logger")
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()
	if envErr != nil {
		log.Debug("no dotenv file loaded", zap.String("file", envFile), zap.Error(envErr))
	}
	if !cfg.LogDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() { _ = dbClient.Close(context.Background()) }()
	if err := dbClient.CreateIndexes(ctx); err != nil {
		return err
	}

	users := data.NewUsersStore(dbClient.UsersCollection())
	financeSvc := finance.NewService(finance.Stores{
		Categories:   data.NewCategoriesStore(dbClient.CategoriesCollection()),
		Transactions: data.NewTransactionsStore(dbClient.TransactionsCollection()),
		History:      data.NewHistoryStore(dbClient.MonthHistoryCollection(), dbClient.YearHistoryCollection()),
		Settings:     data.NewSettingsStore(dbClient.SettingsCollection()),
	}, cfg.SnapshotMaxTransactions)

	var completer gateway.Completer = missingKeyCompleter{}
	if cfg.GroqAPIKey != "" {
		groq, err := gateway.NewGroq(gateway.Config{
			APIKey:  cfg.GroqAPIKey,
			BaseURL: cfg.GroqBaseURL,
			Model:   cfg.GroqModel,
			Timeout: cfg.GatewayTimeout,
		})
		if err != nil {
			return err
		}
		completer = groq
	} else {
		log.Warn("chat turns will fail until the provider key is set", zap.String("key", config.KeyGroqAPIKey))
	}
	chatSvc := chat.NewService(
		data.NewChatsStore(dbClient.ChatsCollection()),
		data.NewMessagesStore(dbClient.MessagesCollection()),
		financeSvc,
		completer,
	)
	organizerSvc := organizer.NewService(data.NewBoardsStore(dbClient.BoardsCollection(), dbClient.TasksCollection()))

	var jwtMgr *auth.JWTManager
	if len(cfg.JWTKeys) > 0 {
		jwtMgr = auth.NewJWTManagerFromKeys(cfg.JWTKeys, cfg.JWTActiveKid, cfg.JWTTTL)
	} else {
		jwtMgr = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	// small burst allows a couple of quick retries
	limiter := middleware.NewLimiterStore(cfg.RateLimitRPM, 3, time.Minute)
	defer limiter.Stop()

	srv := newServer(serverDeps{
		Users:      users,
		Auth:       jwtMgr,
		Chat:       chatSvc,
		Organizer:  organizerSvc,
		Finance:    financeSvc,
		DB:         dbClient,
		Limiter:    limiter,
		CORSOrigin: cfg.CORSOrigin,
		Log:        log,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	if cfg.HealthPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.HealthPort)
		if err != nil {
			return errors.Wrap(err, "listen health port")
		}
		grpcServer, hs := newHealthServer()
		g.Go(func() error {
			log.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			monitorHealth(gctx, hs, dbClient, healthInterval)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			hs.Shutdown() // NOT_SERVING while draining
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
