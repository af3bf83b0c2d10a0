package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/cache"
	"github.com/imrishuroy/go-table-orderflow/internal/config"
	"github.com/imrishuroy/go-table-orderflow/internal/gateway"
	"github.com/imrishuroy/go-table-orderflow/internal/handlers"
	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/ledger"
	"github.com/imrishuroy/go-table-orderflow/internal/ledgerclient"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
	"github.com/imrishuroy/go-table-orderflow/internal/menu"
	"github.com/imrishuroy/go-table-orderflow/internal/notify"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

func setupRouter(log *slog.Logger, ordersCfg handlers.OrdersConfig, menuCfg handlers.MenuConfig) *gin.Engine {
	r := handlers.NewEngine(log)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrderRoutes(r, "/api/orders", ordersCfg)
	handlers.RegisterMenuRoutes(r, menuCfg)

	return r
}

// newBackend returns the order backend the gateway fronts: a remote ledger
// when LEDGER_URL is configured, otherwise an in-process service.
func newBackend(ctx context.Context, cfg *config.Config, clients *aws.AWSClients, log *slog.Logger) (orders.Backend, func(), error) {
	if cfg.LedgerBackend == config.BackendRemote {
		log.Info("using remote ledger", "url", cfg.LedgerURL)
		return ledgerclient.New(cfg.LedgerURL, &http.Client{}), func() {}, nil
	}

	store, closeFn, err := ledger.Open(ctx, cfg, clients.DynamoDB, log)
	if err != nil {
		return nil, nil, err
	}
	opts := []orders.Option{
		orders.WithLogger(log),
		orders.WithLocation(cfg.Timezone),
		orders.WithIDGenerator(orders.NewIDGenerator(cfg.OrderPrefix, cfg.Timezone)),
	}
	if cfg.NotifyQueueURL != "" {
		pub := aws.NewPublisher(clients.SQS, cfg.NotifyQueueURL)
		opts = append(opts, orders.WithNotifier(notify.NewSQSNotifier(pub)))
	}
	return orders.NewService(store, opts...), closeFn, nil
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("api", cfg.LogLevel)

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	backend, closeBackend, err := newBackend(ctx, cfg, clients, log)
	if err != nil {
		log.Error("failed to open ledger", "backend", cfg.LedgerBackend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	gw := gateway.New(backend,
		gateway.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		gateway.WithCaches(cache.New[[]orders.Order](cfg.CacheTTL, time.Now), cache.New[orders.Stats](cfg.CacheTTL, time.Now)),
		gateway.WithLogger(log),
	)
	catalog := gateway.NewCatalog(menu.Open(cfg, clients.DynamoDB, log), cfg.ReadTimeout, cfg.WriteTimeout)

	ordersCfg := handlers.OrdersConfig{
		Backend: gw,
		Guard:   orders.NewGuard(gw, log),
		Catalog: catalog,
		Logger:  log,
	}
	// A remote ledger de-duplicates on its own side using the forwarded key.
	if cfg.LedgerBackend != config.BackendRemote && cfg.LedgerBackend != config.BackendMemory {
		ordersCfg.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	r := setupRouter(log, ordersCfg, handlers.MenuConfig{Catalog: catalog, Logger: log})

	if cfg.RunLocal {
		log.Info("running local server", "addr", cfg.HTTPAddr)
		if err := r.Run(cfg.HTTPAddr); err != nil {
			log.Error("local server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
