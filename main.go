package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"chatlink-service/internal/authclient"
	"chatlink-service/internal/bridge"
	"chatlink-service/internal/config"
	"chatlink-service/internal/db"
	"chatlink-service/internal/handlers"
	"chatlink-service/internal/middleware"
	"chatlink-service/internal/observability"
	"chatlink-service/internal/rabbitmq"
	"chatlink-service/internal/repositories"
	"chatlink-service/internal/sweeper"
	"chatlink-service/internal/telegram"
	"chatlink-service/internal/telemetry"
	"chatlink-service/internal/ws"
)

func main() {
	cfg := config.MustLoad()

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.Connect(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.chatlink", "chatlink-service", cfg.Env)

	if cfg.AMQP.URL != "" {
		eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Printf("amqp event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(eventPublisher)
			defer eventPublisher.Close()
		}
	}

	notifyBridge := buildBridge(cfg.Redis.Addr)
	defer notifyBridge.Close()

	tg := telegram.NewClient(cfg.Telegram.BotToken)

	intentRepo := repositories.NewIntentRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	accessRepo := repositories.NewAccessRepo(database)
	projectRepo := repositories.NewProjectRepo(database)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.New(
		intentRepo,
		time.Duration(cfg.Link.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.Link.RetentionDays)*24*time.Hour,
	).Run(sweepCtx)

	validator := authclient.New(cfg.Auth.BaseURL)
	auth := middleware.AuthMiddleware(validator)

	webhookHandler := handlers.NewWebhookHandler(cfg.Telegram.WebhookSecret, intentRepo, chatRepo, tg, notifyBridge, audit)
	linkHandler := handlers.NewLinkHandler(
		intentRepo, chatRepo, projectRepo, audit,
		cfg.Telegram.BotUsername,
		time.Duration(cfg.Link.DefaultTTLMinutes)*time.Minute,
		time.Duration(cfg.Link.MaxTTLMinutes)*time.Minute,
	)
	accessHandler := handlers.NewAccessHandler(accessRepo)
	notifyHandler := ws.NewNotifyHandler(notifyBridge, time.Duration(cfg.Link.NotifyTimeoutSeconds)*time.Second)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/telegram/webhook/:secret", webhookHandler.Handle)
	router.GET("/ws/link-status/:token", notifyHandler.Handle)

	api := router.Group("/", auth)
	api.POST("/projects/:project_id/link-intents", linkHandler.CreateLinkIntent)
	api.GET("/projects/:project_id/channels", linkHandler.ListProjectChannels)
	api.DELETE("/link-intents/:token", linkHandler.CancelLinkIntent)
	api.GET("/access/:chat_id", accessHandler.CheckAccess)

	if cfg.Debug {
		handlers.RegisterDebugRoutes(router, audit)
	}

	addr := cfg.Listen.BindIP + ":" + cfg.Listen.Port
	log.Printf("chatlink service listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// buildBridge prefers Redis so linked-event delivery survives running the
// service as more than one replica; without Redis the in-process bridge keeps
// single-node deployments working.
func buildBridge(redisAddr string) bridge.Bridge {
	if redisAddr == "" {
		log.Printf("bridge: redis not configured, using in-memory bridge")
		return bridge.NewMemoryBridge()
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("bridge: redis unreachable, using in-memory bridge: %v", err)
		_ = client.Close()
		return bridge.NewMemoryBridge()
	}

	log.Printf("bridge: using redis at %s", redisAddr)
	return bridge.NewRedisBridge(client, "chatlink:link-status")
}
