package menu

import (
	"log/slog"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/config"
)

// Open returns the catalog matching cfg: the in-memory catalog when the
// ledger runs in memory, so a local run needs no AWS at all, otherwise the
// DynamoDB tables named in cfg.
func Open(cfg *config.Config, dynamo aws.DynamoDBAPI, log *slog.Logger) Catalog {
	if cfg.LedgerBackend == config.BackendMemory {
		log.Warn("using in-memory menu catalog, changes are lost on restart")
		return NewMemory()
	}
	return NewDynamoCatalog(dynamo, cfg.MenuTable, cfg.CategoriesTable, log)
}
