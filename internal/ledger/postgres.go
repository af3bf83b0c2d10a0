package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

const uniqueViolation = "23505"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS orders (
	order_id      TEXT PRIMARY KEY,
	table_id      TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	status        TEXT NOT NULL,
	total         BIGINT NOT NULL,
	item_count    INTEGER NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS orders_table_created_idx ON orders (table_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
	item_id    TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL REFERENCES orders (order_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	menu_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	quantity   INTEGER NOT NULL,
	unit_price BIGINT NOT NULL,
	subtotal   BIGINT NOT NULL,
	notes      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (order_id, seq)
)`

const (
	insertOrderSQL = `
		INSERT INTO orders (order_id, table_id, customer_name, status, total, item_count, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertItemSQL = `
		INSERT INTO order_items (item_id, order_id, seq, menu_id, name, category, quantity, unit_price, subtotal, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	selectOrderColumns = `
		SELECT order_id, table_id, customer_name, status, total, item_count, notes, created_at, updated_at, completed_at
		FROM orders`

	selectItemsSQL = `
		SELECT item_id, order_id, seq, menu_id, name, category, quantity, unit_price, subtotal, notes, created_at
		FROM order_items WHERE order_id = $1 ORDER BY seq ASC`

	updateStatusSQL = `
		UPDATE orders SET status = $1, updated_at = $2, completed_at = COALESCE($3, completed_at)
		WHERE order_id = $4 AND status = $5`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`

	deleteOrderSQL = `DELETE FROM orders WHERE order_id = $1`
)

// PostgresStore is a Ledger over two PostgreSQL tables. Item rows cascade on
// order deletion.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ orders.Ledger = (*PostgresStore)(nil)

// ConnectPostgres opens a pool, retrying with a linear backoff until the
// database answers a ping.
func ConnectPostgres(ctx context.Context, url string, log *slog.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	const maxRetries = 5
	var pool *pgxpool.Pool
	for i := 0; i < maxRetries; i++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = pool.Ping(pingCtx)
			cancel()
			if err == nil {
				break
			}
			pool.Close()
		}
		if i < maxRetries-1 {
			wait := time.Duration(i+1) * 2 * time.Second
			log.Warn("database connection failed, retrying",
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to database after %d attempts: %w", maxRetries, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the ledger tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Append(ctx context.Context, order orders.Order, items []orders.LineItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, insertOrderSQL,
		order.OrderID, order.Table, order.CustomerName, string(order.Status),
		order.Total, order.ItemCount, order.Notes, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return orders.ErrDuplicateID
		}
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(insertItemSQL,
			it.ItemID, it.OrderID, it.Seq, it.MenuID, it.Name, it.Category,
			it.Quantity, it.UnitPrice, it.Subtotal, it.Notes, it.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	where, args := filterClause(f)
	rows, err := s.pool.Query(ctx, selectOrderColumns+where+" ORDER BY created_at ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// filterClause renders f as a WHERE clause with positional arguments.
func filterClause(f orders.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if t := strings.TrimSpace(f.Table); t != "" {
		add("btrim(table_id) = $%d", t)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o         orders.Order
		status    string
		completed *time.Time
	)
	err := row.Scan(&o.OrderID, &o.Table, &o.CustomerName, &status, &o.Total, &o.ItemCount,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt, &completed)
	if err != nil {
		return orders.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Status = orders.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	if completed != nil {
		o.CompletedAt = completed.UTC().Format(time.RFC3339Nano)
	}
	return o, nil
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (*orders.Order, []orders.LineItem, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, selectOrderColumns+" WHERE order_id = $1", orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, orders.ErrNotFound
		}
		return nil, nil, err
	}

	rows, err := s.pool.Query(ctx, selectItemsSQL, orderID)
	if err != nil {
		return nil, nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []orders.LineItem
	for rows.Next() {
		var it orders.LineItem
		if err := rows.Scan(&it.ItemID, &it.OrderID, &it.Seq, &it.MenuID, &it.Name, &it.Category,
			&it.Quantity, &it.UnitPrice, &it.Subtotal, &it.Notes, &it.CreatedAt); err != nil {
			return nil, nil, fmt.Errorf("scan line item: %w", err)
		}
		it.CreatedAt = it.CreatedAt.UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, u orders.StatusUpdate) error {
	completed, err := completedAt(u.CompletedAt)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, updateStatusSQL, string(u.To), u.UpdatedAt, completed, u.OrderID, string(u.From))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, orderExistsSQL, u.OrderID).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return orders.ErrNotFound
	}
	return orders.ErrStatusConflict
}

// completedAt parses an RFC3339 completion stamp; empty means "leave unchanged".
func completedAt(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("parse completed_at %q: %w", s, err)
	}
	return &t, nil
}

func (s *PostgresStore) Delete(ctx context.Context, orderID string) error {
	tag, err := s.pool.Exec(ctx, deleteOrderSQL, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return orders.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
