// Command ledger serves the action-style order protocol directly over a
// ledger backend. API gateways reach it with LEDGER_BACKEND=remote.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/config"
	"github.com/imrishuroy/go-table-orderflow/internal/handlers"
	"github.com/imrishuroy/go-table-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-table-orderflow/internal/ledger"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
	"github.com/imrishuroy/go-table-orderflow/internal/notify"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("ledger", cfg.LogLevel)

	if cfg.LedgerBackend == config.BackendRemote {
		log.Error("the ledger service needs a storage backend, not a remote one")
		os.Exit(1)
	}

	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := ledger.Open(ctx, cfg, clients.DynamoDB, log)
	if err != nil {
		log.Error("failed to open ledger", "backend", cfg.LedgerBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []orders.Option{
		orders.WithLogger(log),
		orders.WithLocation(cfg.Timezone),
		orders.WithIDGenerator(orders.NewIDGenerator(cfg.OrderPrefix, cfg.Timezone)),
	}
	if cfg.NotifyQueueURL != "" {
		opts = append(opts, orders.WithNotifier(notify.NewSQSNotifier(aws.NewPublisher(clients.SQS, cfg.NotifyQueueURL))))
	}
	svc := orders.NewService(store, opts...)

	ordersCfg := handlers.OrdersConfig{Backend: svc, Logger: log}
	if cfg.LedgerBackend != config.BackendMemory {
		ordersCfg.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	}

	r := handlers.NewEngine(log)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	handlers.RegisterOrderRoutes(r, "/", ordersCfg)

	if cfg.RunLocal {
		log.Info("running local ledger", "addr", cfg.HTTPAddr, "backend", cfg.LedgerBackend)
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
