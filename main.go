package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/rs/zerolog/log"

	"line-order-intake/config"
	"line-order-intake/internal/adapters/clicksend"
	"line-order-intake/internal/adapters/line"
	"line-order-intake/internal/adapters/notion"
	"line-order-intake/internal/adapters/resend"
	"line-order-intake/internal/conversation"
	"line-order-intake/internal/db"
	"line-order-intake/internal/flow"
	"line-order-intake/internal/handlers"
	"line-order-intake/internal/notify"
	"line-order-intake/internal/records"
	"line-order-intake/internal/shop"
	"line-order-intake/pkg/logger"
)

func main() {
	logger.InitLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	log.Info().Msg("Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.InitLogger(cfg.LogLevel, cfg.LogFormat)

	shops, err := config.LoadShops(cfg.ShopsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.ShopsFile).Msg("Failed to load shops")
	}
	for _, s := range shops.All() {
		log.Info().Str("shopId", s.ID).Str("name", s.Name).Str("path", "/webhook/"+s.WebhookPath).Msg("Shop registered")
	}
	if cfg.PrintShopQR {
		printShopQRCodes(shops)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := initRecordStore(ctx, cfg)
	defer closeStore()

	states := initConversationStore(cfg)

	lineClient, err := line.NewClient(cfg.LineAPIBaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize LINE client")
	}

	dispatcher, closeDispatcher := initDispatcher(cfg)
	defer closeDispatcher()

	engine, err := flow.NewEngine(store, states, lineClient, dispatcher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize flow engine")
	}

	server, err := handlers.NewServer(shops, engine, dispatcher)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize HTTP handlers")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server starting on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func initRecordStore(ctx context.Context, cfg *config.Config) (records.Store, func()) {
	switch cfg.RecordStore {
	case config.RecordStoreSQL:
		log.Info().Str("driver", cfg.DatabaseDriver).Msg("Initializing SQL record store...")
		conn, err := db.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		store, err := records.NewSQLStore(conn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize SQL record store")
		}
		if err := store.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}
		return store, func() { conn.Close() }
	default:
		log.Info().Msg("Initializing Notion record store...")
		client, err := notion.NewClient(cfg.NotionBaseURL, cfg.NotionToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Notion client")
		}
		store, err := records.NewNotionStore(client, cfg.NotionDatabaseID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Notion record store")
		}
		return store, func() {}
	}
}

func initConversationStore(cfg *config.Config) conversation.Store {
	if cfg.ConversationStore == config.ConversationStoreRedis {
		log.Info().Msg("Initializing Redis conversation store...")
		client, err := conversation.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis client")
		}
		store, err := conversation.NewRedisStore(client, cfg.ConversationTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Redis conversation store")
		}
		return store
	}
	log.Info().Dur("ttl", cfg.ConversationTTL).Msg("Using in-memory conversation store")
	return conversation.NewMemoryStore(cfg.ConversationTTL)
}

func initDispatcher(cfg *config.Config) (*notify.Dispatcher, func()) {
	var channels []notify.Channel
	cleanup := func() {}

	if cfg.ResendAPIToken != "" {
		client, err := resend.NewClient(cfg.ResendBaseURL, cfg.ResendAPIToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Resend client")
		}
		email, err := notify.NewEmailChannel(client, cfg.EmailFrom)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize email channel")
		}
		channels = append(channels, email)
	} else {
		log.Warn().Msg("RESEND_API_TOKEN not set, email confirmations disabled")
	}

	var archive *notify.Archive
	if cfg.S3Bucket != "" {
		a, err := notify.NewS3Archive(notify.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3Endpoint != "",
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize S3 archive")
		}
		archive = a
		log.Info().Str("bucket", cfg.S3Bucket).Msg("Fax archive enabled")
	}

	var sender notify.FaxSender
	if cfg.ClickSendUsername != "" && cfg.ClickSendAPIKey != "" {
		client, err := clicksend.NewClient(cfg.ClickSendBaseURL, cfg.ClickSendUsername, cfg.ClickSendAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize ClickSend client")
		}
		sender = client
	}
	if sender != nil || !cfg.IsProduction() {
		fax, err := notify.NewFaxChannel(sender, archive, cfg.FaxFontPath, cfg.IsProduction())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize fax channel")
		}
		channels = append(channels, fax)
	} else {
		log.Warn().Msg("ClickSend credentials not set, fax confirmations disabled")
	}

	if cfg.RabbitMQURL != "" {
		ch, closeConn, err := notify.DialRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		broker, err := notify.NewBrokerChannel(ch, cfg.RabbitMQQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize broker channel")
		}
		channels = append(channels, broker)
		cleanup = closeConn
	}

	return notify.NewDispatcher(notify.DefaultTimeout, channels...), cleanup
}

// printShopQRCodes prints each shop's LINE add-friend link as a terminal QR code.
func printShopQRCodes(shops *shop.Registry) {
	for _, s := range shops.All() {
		link := "https://line.me/R/ti/p/" + url.PathEscape(s.ID)
		log.Info().Str("shopId", s.ID).Str("url", link).Msg("Add-friend QR code")
		qrterminal.GenerateHalfBlock(link, qrterminal.L, os.Stdout)
	}
}
