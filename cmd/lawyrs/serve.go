package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/lawyrs-chat/internal/adapters/backend"
	"github.com/PabloGalante/lawyrs-chat/internal/adapters/events"
	httpadapter "github.com/PabloGalante/lawyrs-chat/internal/adapters/http"
	"github.com/PabloGalante/lawyrs-chat/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/lawyrs-chat/internal/adapters/storage/redis"
	"github.com/PabloGalante/lawyrs-chat/internal/app/chat"
	"github.com/PabloGalante/lawyrs-chat/internal/app/conversation"
	"github.com/PabloGalante/lawyrs-chat/internal/app/dashboard"
	"github.com/PabloGalante/lawyrs-chat/internal/app/memories"
	"github.com/PabloGalante/lawyrs-chat/internal/config"
	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

// agentBackend is what the chat layer and the memory browser need from
// either backend.
type agentBackend interface {
	domain.AgentBackend
	domain.SummarySource
	memories.Source
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel == "" {
		observability.SetLevel(cfg.LogLevel)
	}
	log := observability.Logger()

	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	be, err := newBackend(ctx, cfg, &cleanups)
	if err != nil {
		return err
	}

	// Dashboard cache: Redis when configured, process memory otherwise.
	var summaryStore domain.SummaryStore = memstore.NewSummaryStore()
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, caching dashboard in memory", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			log.Info("caching dashboard in redis", "addr", cfg.RedisAddr)
			summaryStore = redisstore.NewSummaryCache(rdb)
			cleanups = append(cleanups, func() { _ = rdb.Close() })
		}
	}

	var publisher domain.EventPublisher = events.Nop{}
	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn("amqp unavailable, dashboard events are dropped", "error", err)
		} else {
			publisher = pub
			cleanups = append(cleanups, func() { _ = pub.Close() })
		}
	}

	reconciler := dashboard.NewReconciler(dashboard.NewCache(summaryStore, be), publisher, cfg.RefreshDelay)
	cleanups = append(cleanups, reconciler.Close)

	registry := chat.NewRegistry(&chat.AppContext{
		Backend:             be,
		Reconciler:          reconciler,
		DefaultJurisdiction: domain.ParseJurisdiction(cfg.DefaultJurisdiction, domain.JurisdictionMissouri),
		StatusInterval:      cfg.StatusInterval,
	})
	cleanups = append(cleanups, registry.CloseAll)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpadapter.NewServer(httpadapter.Deps{
			Chats:          registry,
			Memories:       memories.NewService(be, 0),
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("lawyrs chat listening", "addr", srv.Addr, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newBackend returns the upstream HTTP client when a backend URL is set,
// otherwise the in-process agent crew.
func newBackend(ctx context.Context, cfg *config.Config, cleanups *[]func()) (agentBackend, error) {
	log := observability.Logger()

	if cfg.BackendURL != "" {
		log.Info("using upstream agent backend", "url", cfg.BackendURL)
		client, err := backend.NewClient(backend.Config{BaseURL: cfg.BackendURL, Timeout: cfg.BackendTimeout})
		if err != nil {
			return nil, fmt.Errorf("backend client: %w", err)
		}
		return client, nil
	}

	var llmClient domain.LLMClient
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		llmClient = llm.NewMockLLM()
	} else {
		log.Info("using Vertex LLM client", "model", cfg.ModelName)
		vc, err := llm.NewVertexClient(ctx, llm.VertexConfig{
			ProjectID: cfg.GCPProjectID,
			Location:  cfg.GCPLocation,
			Model:     cfg.ModelName,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing Vertex LLM client: %w", err)
		}
		llmClient = vc
	}

	var (
		sessionStore domain.SessionStore
		messageStore domain.MessageStore
		memoryStore  domain.MemoryStore
	)
	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		*cleanups = append(*cleanups, func() { _ = fs.Close() })
		sessionStore, messageStore, memoryStore = fs, fs, fs
	default:
		log.Info("using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		messageStore = memstore.NewMessageStore()
		memoryStore = memstore.NewMemoryStore()
	}

	practice := memstore.NewPracticeStore(domain.DashboardSummary{})
	return conversation.NewService(llmClient, sessionStore, messageStore, memoryStore, practice), nil
}
