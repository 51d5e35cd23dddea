package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/storefront-orders/internal/config"
	"github.com/ariefcatur/storefront-orders/internal/httpx"
	"github.com/ariefcatur/storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/storefront-orders/internal/kafka"
	"github.com/ariefcatur/storefront-orders/internal/logging"
	"github.com/ariefcatur/storefront-orders/internal/memstore"
	"github.com/ariefcatur/storefront-orders/internal/metrics"
	"github.com/ariefcatur/storefront-orders/internal/notify"
	"github.com/ariefcatur/storefront-orders/internal/orders"
	"github.com/ariefcatur/storefront-orders/internal/postgres"
	"github.com/ariefcatur/storefront-orders/internal/redisx"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Store
	var store orders.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		mem := memstore.New()
		seedCatalogue(mem)
		store = mem
		logger.Warn("using in-memory store, data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = &postgres.Store{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := &redisx.Cache{RDB: rdb}

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderNotifications, 1024, logger.Named("producer"))
	prod.Start(ctx)
	notifier := &notify.KafkaNotifier{Producer: prod, Service: cfg.ServiceName}

	reg := metrics.NewRegistry()
	ledger := &inventory.Ledger{Log: logger.Named("ledger"), Metrics: reg}

	router := httpx.NewRouter(logger.Named("http"), reg)
	oh := &httpx.OrdersHandler{
		Builder: &orders.Builder{
			Store:    store,
			Ledger:   ledger,
			Notifier: notifier,
			Idem:     cache,
			Log:      logger.Named("builder"),
			Metrics:  reg,
		},
		Lifecycle: &orders.Lifecycle{
			Store:    store,
			Ledger:   ledger,
			Notifier: notifier,
			Cache:    cache,
			Log:      logger.Named("lifecycle"),
			Metrics:  reg,
		},
		Queries:  &orders.Queries{Store: store, Cache: cache, Log: logger.Named("queries")},
		Validate: httpx.NewValidator(),
		Log:      logger.Named("http"),
		Timeout:  cfg.RequestTimeout,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	prod.Close()
	prod.WaitClosed()
	cancel()
}

func seedCatalogue(s *memstore.Store) {
	for _, p := range []inventory.Product{
		{ID: "prod-espresso", Name: "Espresso Beans 1kg", Price: decimal.RequireFromString("24.90"), StockQuantity: 40},
		{ID: "prod-grinder", Name: "Hand Grinder", Price: decimal.RequireFromString("59.00"), StockQuantity: 8},
		{ID: "prod-filter", Name: "Paper Filters (100)", Price: decimal.RequireFromString("4.50"), StockQuantity: 200},
		{ID: "prod-kettle", Name: "Gooseneck Kettle", Price: decimal.RequireFromString("79.00"), StockQuantity: 0},
	} {
		s.PutProduct(p)
	}
}
