package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/attachment"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/config"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/contract"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/kafka"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/ledger"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/messaging"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/node"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/observability"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/outbox"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/storage/postgres"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/storage/redisstore"
	grpc_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/grpc"
	http_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/tx"
)

type storage struct {
	vault       ledger.Vault
	attachments attachment.Index
	uniqueness  ledger.UniquenessProvider
	db          *sql.DB
	notaryDB    *sql.DB
}

func main() {
	cfg := config.Load()

	// Observability
	observability.InitLogger(cfg.ServiceName)
	log := observability.Log

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Error("failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal("storage init failed", zap.Error(err))
	}
	if store.db != nil {
		defer store.db.Close()
	}
	if store.notaryDB != nil && store.notaryDB != store.db {
		defer store.notaryDB.Close()
	}

	redisClient := redisstore.New(cfg.RedisAddr)
	defer redisClient.Close()

	// Identities
	keys, err := ledger.NewKeyManagerFromSeed(cfg.KeySeed)
	if err != nil {
		log.Fatal("key init failed", zap.Error(err))
	}
	notaryKeys, err := ledger.NewKeyManagerFromSeed(cfg.NotaryKeySeed)
	if err != nil {
		log.Fatal("notary key init failed", zap.Error(err))
	}

	svc := &flow.Services{
		Identity:      domain.Party{Name: cfg.NodeName, OwningKey: keys.PublicKey()},
		Keys:          keys,
		Vault:         store.vault,
		Attachments:   store.attachments,
		Verifier:      ledger.NewVerifier(store.vault, store.attachments, contract.NewRegistry()),
		Notary:        ledger.NewNotaryService(cfg.NotaryName, notaryKeys, store.uniqueness),
		Checkpoints:   &redisstore.CheckpointStore{R: redisClient.Client, Node: cfg.NodeName},
		Timeout:       cfg.FlowTimeout,
		RetryInterval: cfg.FlowRetryInterval,
	}

	n, err := node.New(svc, messaging.NewRedisBus(redisClient.Client), &redisstore.NetworkMap{R: redisClient.Client})
	if err != nil {
		log.Fatal("node init failed", zap.Error(err))
	}
	if err := n.Start(ctx); err != nil {
		log.Fatal("node start failed", zap.Error(err))
	}

	// Kafka: committed transactions leave through the outbox.
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 && store.db != nil {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		worker := &outbox.Worker{
			DB:        store.db,
			Publisher: producer,
			BatchSize: 100,
			PollDelay: time.Second,
		}
		go worker.Start(ctx)
	}
	if cfg.KafkaAuditEnabled {
		consumer, err := kafka.New(cfg.KafkaBrokers, []string{cfg.KafkaTopic}, cfg.ServiceName+"-audit", kafka.AuditLog())
		if err != nil {
			log.Fatal("kafka consumer init failed", zap.Error(err))
		}
		defer consumer.Close()
		consumer.Start(ctx)
	}

	// HTTP Server for Observability (Metrics & Health)
	deps := []observability.Pinger{redisClient}
	if store.db != nil {
		deps = append(deps, store.db)
	}
	if store.notaryDB != nil && store.notaryDB != store.db {
		deps = append(deps, store.notaryDB)
	}
	obsMux := chi.NewRouter()
	obsMux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	obsMux.Handle("/metrics", promhttp.Handler())
	obsMux.Get("/health/live", observability.HealthLiveHandler)
	obsMux.Get("/health/ready", observability.HealthReadyHandler(deps...))

	obsSrv := &http.Server{Addr: cfg.ObsHTTPAddr, Handler: obsMux}
	go func() {
		log.Info("HTTP observability server started", zap.String("addr", cfg.ObsHTTPAddr))
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP observability server failed", zap.Error(err))
		}
	}()

	// Node API
	router := http_transport.NewRouter(
		http_transport.RouterConfig{
			ServiceName:       cfg.ServiceName,
			JWTSecret:         cfg.JWTSecret,
			JWTIssuer:         cfg.JWTIssuer,
			JWTAudience:       cfg.JWTAudience,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
		},
		http_transport.NewAttachmentHandler(store.attachments),
		http_transport.NewMessageHandler(n, store.vault, cfg.FlowTimeout+5*time.Second),
	)
	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.FlowTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		log.Info("node API started", zap.String("node", cfg.NodeName), zap.String("addr", cfg.HTTPAddr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// gRPC query + health
	grpcSrv := grpc_transport.New(
		&grpc_transport.QueryServer{Flows: n, Vault: store.vault},
		grpc_transport.Auth{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience},
	)
	go grpcSrv.Start(cfg.GRPCAddr)

	// Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("API shutdown failed", zap.Error(err))
	}
	grpcSrv.Stop()

	// Unfinished flows stay checkpointed and resume on the next start.
	cancel()
	n.Wait()

	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Error("kafka producer close failed", zap.Error(err))
		}
	}
	if err := obsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("observability shutdown failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		observability.Log.Warn("using in-memory storage: ledger and notary state are lost on restart")
		vault := ledger.NewMemoryVault()
		return &storage{
			vault:       vault,
			attachments: attachment.NewMemoryIndex(),
			uniqueness:  ledger.NewMemoryUniqueness(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	notaryDB := db
	if cfg.NotaryDatabaseURL != cfg.DatabaseURL {
		if notaryDB, err = sql.Open("postgres", cfg.NotaryDatabaseURL); err != nil {
			db.Close()
			return nil, err
		}
		if err := postgres.Migrate(ctx, notaryDB); err != nil {
			db.Close()
			notaryDB.Close()
			return nil, err
		}
	}

	txMgr := &tx.Manager{DB: db}
	return &storage{
		vault:       &postgres.Vault{DB: db, Tx: txMgr, Node: cfg.NodeName},
		attachments: &postgres.AttachmentIndex{DB: db, Tx: txMgr},
		uniqueness:  &postgres.Uniqueness{Tx: &tx.Manager{DB: notaryDB}},
		db:          db,
		notaryDB:    notaryDB,
	}, nil
}
