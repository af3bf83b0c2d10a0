package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/config"
	"github.com/imrishuroy/go-table-orderflow/internal/logger"
	"github.com/imrishuroy/go-table-orderflow/internal/metrics"
	"github.com/imrishuroy/go-table-orderflow/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New("worker", cfg.LogLevel)

	var mailer Mailer
	if cfg.SMTP.Addr != "" {
		mailer = notify.NewMailer(cfg.SMTP.Addr, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password, cfg.Timezone)
	}

	// If RUN_LOCAL=true, simulate a single SQS event from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		p := NewProcessor(mailer, nil, cfg.NotificationEmail, log)
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"ORD-LOCAL-0001","table":"1","total":25000,"item_count":1}`
		}
		ev := events.SQSEvent{Records: []events.SQSMessage{{MessageId: "local-1", Body: body}}}
		resp, _ := p.Handle(context.Background(), ev)
		if len(resp.BatchItemFailures) > 0 {
			log.Error("local handler failed", "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}
	p := NewProcessor(mailer, metrics.NewRecorder(clients.CloudWatch, cfg.MetricsNamespace), cfg.NotificationEmail, log)

	lambda.Start(p.Handle)
}
