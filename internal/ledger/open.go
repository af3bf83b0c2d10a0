package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/config"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// Open returns the ledger selected by cfg.LedgerBackend and a func that
// releases it. The remote backend is not a ledger and is rejected here.
func Open(ctx context.Context, cfg *config.Config, dynamo aws.DynamoDBAPI, log *slog.Logger) (orders.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case config.BackendDynamoDB:
		return NewDynamoStore(dynamo, cfg.OrdersTable, cfg.OrderItemsTable), func() {}, nil
	case config.BackendPostgres:
		store, err := ConnectPostgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	case config.BackendMemory:
		log.Warn("using in-memory ledger, orders are lost on restart")
		return NewMemory(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("ledger backend %q cannot be opened locally", cfg.LedgerBackend)
}
