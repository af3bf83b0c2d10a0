package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
	"github.com/imrishuroy/go-table-orderflow/internal/orders"
)

// maxTransactItems is the DynamoDB TransactWriteItems limit; one slot is the order row.
const maxTransactItems = 100

// DynamoStore keeps orders in one table (PK order_id) and line items in another
// (PK order_id, SK seq).
type DynamoStore struct {
	client    aws.DynamoDBAPI
	ordersTbl string
	itemsTbl  string
}

// NewDynamoStore creates a DynamoDB-backed ledger.
func NewDynamoStore(client aws.DynamoDBAPI, ordersTable, itemsTable string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		ordersTbl: ordersTable,
		itemsTbl:  itemsTable,
	}
}

var _ orders.Ledger = (*DynamoStore)(nil)

// Append writes the order row and every item row in a single transaction,
// guarded by attribute_not_exists(order_id) on the order row.
func (s *DynamoStore) Append(ctx context.Context, order orders.Order, items []orders.LineItem) error {
	if len(items)+1 > maxTransactItems {
		return &orders.ValidationError{Field: "items", Message: fmt.Sprintf("an order may hold at most %d line items", maxTransactItems-1)}
	}

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := make([]types.TransactWriteItem, 0, len(items)+1)
	transactItems = append(transactItems, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           &s.ordersTbl,
			Item:                orderMap,
			ConditionExpression: awsString("attribute_not_exists(order_id)"),
		},
	})
	for _, it := range items {
		itemMap, err := attributevalue.MarshalMap(it)
		if err != nil {
			return fmt.Errorf("marshal line item %s: %w", it.ItemID, err)
		}
		transactItems = append(transactItems, types.TransactWriteItem{
			Put: &types.Put{TableName: &s.itemsTbl, Item: itemMap},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		if conditionFailedAt(err, 0) {
			return orders.ErrDuplicateID
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Query scans the orders table and applies f client-side.
func (s *DynamoStore) Query(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	var out []orders.Order
	p := dyn.NewScanPaginator(s.client, &dyn.ScanInput{TableName: &s.ordersTbl})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var batch []orders.Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		for _, o := range batch {
			if f.Match(o) {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

// Get fetches an order and its items in sequence order.
func (s *DynamoStore) Get(ctx context.Context, orderID string) (*orders.Order, []orders.LineItem, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.ordersTbl,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil, orders.ErrNotFound
	}
	var o orders.Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, nil, fmt.Errorf("unmarshal order: %w", err)
	}

	items, err := s.items(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return &o, items, nil
}

func (s *DynamoStore) items(ctx context.Context, orderID string) ([]orders.LineItem, error) {
	var items []orders.LineItem
	p := dyn.NewQueryPaginator(s.client, &dyn.QueryInput{
		TableName:                 &s.itemsTbl,
		KeyConditionExpression:    awsString("order_id = :o"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":o": &types.AttributeValueMemberS{Value: orderID}},
		ConsistentRead:            awsBool(true),
		ScanIndexForward:          awsBool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query line items: %w", err)
		}
		var batch []orders.LineItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal line items: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

// UpdateStatus conditionally moves the order from u.From to u.To.
// Returns ErrNotFound if the order is gone, ErrStatusConflict if the status moved.
func (s *DynamoStore) UpdateStatus(ctx context.Context, u orders.StatusUpdate) error {
	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(u.To)},
		":ua":       &types.AttributeValueMemberS{Value: u.UpdatedAt.Format(time.RFC3339Nano)},
		":expected": &types.AttributeValueMemberS{Value: string(u.From)},
	}
	if u.CompletedAt != "" {
		updateExpr += ", completed_at = :ca"
		values[":ca"] = &types.AttributeValueMemberS{Value: u.CompletedAt}
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.ordersTbl,
		Key:                       orderKey(u.OrderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("attribute_exists(order_id) AND #s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return s.conditionCause(ctx, u.OrderID)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// conditionCause tells a missing order apart from a status mismatch.
func (s *DynamoStore) conditionCause(ctx context.Context, orderID string) error {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.ordersTbl,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return orders.ErrNotFound
	}
	return orders.ErrStatusConflict
}

// Delete removes the order row and its item rows in one transaction.
func (s *DynamoStore) Delete(ctx context.Context, orderID string) error {
	items, err := s.items(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items)+1 > maxTransactItems {
		return fmt.Errorf("order %s has %d line items, above the transaction limit", orderID, len(items))
	}

	transactItems := make([]types.TransactWriteItem, 0, len(items)+1)
	transactItems = append(transactItems, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:           &s.ordersTbl,
			Key:                 orderKey(orderID),
			ConditionExpression: awsString("attribute_exists(order_id)"),
		},
	})
	for _, it := range items {
		transactItems = append(transactItems, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: &s.itemsTbl,
				Key: map[string]types.AttributeValue{
					"order_id": &types.AttributeValueMemberS{Value: orderID},
					"seq":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", it.Seq)},
				},
			},
		})
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		if conditionFailedAt(err, 0) {
			return orders.ErrNotFound
		}
		return fmt.Errorf("transact delete: %w", err)
	}
	return nil
}

// Ping issues a cheap point read against the orders table.
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.ordersTbl,
		Key:       orderKey("__ping__"),
	})
	if err != nil {
		return fmt.Errorf("ping orders table: %w", err)
	}
	return nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

// conditionFailedAt reports whether err is a transaction cancellation caused by
// the condition on the idx-th transact item.
func conditionFailedAt(err error, idx int) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	if idx >= len(tce.CancellationReasons) {
		return false
	}
	code := tce.CancellationReasons[idx].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
