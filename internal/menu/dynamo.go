package menu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-table-orderflow/internal/aws"
)

const maxStockRetries = 5

type categoryRow struct {
	Name      string    `dynamodbav:"name"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// DynamoCatalog stores items in one table (PK category, SK id) and the
// category set in another (PK name).
type DynamoCatalog struct {
	client        aws.DynamoDBAPI
	itemsTable    string
	categoryTable string
	log           *slog.Logger
	nowFunc       func() time.Time
}

// NewDynamoCatalog returns a DynamoDB-backed Catalog.
func NewDynamoCatalog(client aws.DynamoDBAPI, itemsTable, categoryTable string, log *slog.Logger) *DynamoCatalog {
	if log == nil {
		log = slog.Default()
	}
	return &DynamoCatalog{
		client:        client,
		itemsTable:    itemsTable,
		categoryTable: categoryTable,
		log:           log,
		nowFunc:       time.Now,
	}
}

var _ Catalog = (*DynamoCatalog)(nil)

func (c *DynamoCatalog) Get(ctx context.Context, category, id string) (*Item, error) {
	out, err := c.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &c.itemsTable,
		Key:            itemKey(category, id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal menu item: %w", err)
	}
	return &it, nil
}

func (c *DynamoCatalog) Find(ctx context.Context, id string) (*Item, error) {
	names, err := c.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	for _, cat := range names {
		it, err := c.Get(ctx, cat, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return it, err
	}
	return nil, ErrNotFound
}

func (c *DynamoCatalog) List(ctx context.Context, category string) ([]Item, error) {
	cats := []string{NormalizeCategory(category)}
	if cats[0] == "" {
		names, err := c.categoryNames(ctx)
		if err != nil {
			return nil, err
		}
		cats = names
	}

	var out []Item
	for _, cat := range cats {
		items, err := c.queryCategory(ctx, cat)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
		out = append(out, items...)
	}
	return out, nil
}

func (c *DynamoCatalog) queryCategory(ctx context.Context, category string) ([]Item, error) {
	var items []Item
	p := dyn.NewQueryPaginator(c.client, &dyn.QueryInput{
		TableName:                 &c.itemsTable,
		KeyConditionExpression:    awsString("category = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: category}},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query category %s: %w", category, err)
		}
		var batch []Item
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal menu items: %w", err)
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (c *DynamoCatalog) countCategory(ctx context.Context, category string) (int, error) {
	out, err := c.client.Query(ctx, &dyn.QueryInput{
		TableName:                 &c.itemsTable,
		KeyConditionExpression:    awsString("category = :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":c": &types.AttributeValueMemberS{Value: category}},
		Select:                    types.SelectCount,
	})
	if err != nil {
		return 0, fmt.Errorf("count category %s: %w", category, err)
	}
	return int(out.Count), nil
}

func (c *DynamoCatalog) categoryNames(ctx context.Context) ([]string, error) {
	var names []string
	p := dyn.NewScanPaginator(c.client, &dyn.ScanInput{TableName: &c.categoryTable})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan categories: %w", err)
		}
		var rows []categoryRow
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
		for _, r := range rows {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *DynamoCatalog) Categories(ctx context.Context) ([]Category, error) {
	names, err := c.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(names))
	for _, n := range names {
		count, err := c.countCategory(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, Category{Name: n, Count: count})
	}
	return out, nil
}

func validateItem(it Item) error {
	switch {
	case strings.TrimSpace(it.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalid)
	case strings.TrimSpace(it.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case it.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalid)
	case it.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case it.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalid)
	}
	return nil
}

// Create stores it and registers its category. Ids are unique across categories.
func (c *DynamoCatalog) Create(ctx context.Context, it Item) (*Item, error) {
	it.Category = NormalizeCategory(it.Category)
	if err := validateItem(it); err != nil {
		return nil, err
	}
	if _, err := c.Find(ctx, it.ID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	it.CreatedAt = c.nowFunc().UTC()
	if err := c.putWithCategory(ctx, it, nil); err != nil {
		return nil, err
	}
	c.log.Info("menu item created", slog.String("id", it.ID), slog.String("category", it.Category))
	return &it, nil
}

// putWithCategory writes it (which must not exist yet) and its category row in
// one transaction, optionally deleting the item's previous row.
func (c *DynamoCatalog) putWithCategory(ctx context.Context, it Item, previous *Item) error {
	itemMap, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal menu item: %w", err)
	}
	catMap, err := attributevalue.MarshalMap(categoryRow{Name: it.Category, CreatedAt: c.nowFunc().UTC()})
	if err != nil {
		return fmt.Errorf("marshal category: %w", err)
	}

	var tx []types.TransactWriteItem
	if previous != nil {
		tx = append(tx, types.TransactWriteItem{Delete: &types.Delete{
			TableName:           &c.itemsTable,
			Key:                 itemKey(previous.Category, previous.ID),
			ConditionExpression: awsString("attribute_exists(id)"),
		}})
	}
	tx = append(tx,
		types.TransactWriteItem{Put: &types.Put{
			TableName:           &c.itemsTable,
			Item:                itemMap,
			ConditionExpression: awsString("attribute_not_exists(id)"),
		}},
		types.TransactWriteItem{Put: &types.Put{
			TableName: &c.categoryTable,
			Item:      catMap,
		}},
	)

	_, err = c.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: tx})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if previous != nil && reasonIs(tce, 0, "ConditionalCheckFailed") {
				return ErrNotFound
			}
			return ErrDuplicate
		}
		return fmt.Errorf("transact write menu item: %w", err)
	}
	return nil
}

func (c *DynamoCatalog) Update(ctx context.Context, id string, p Patch) (*Item, error) {
	current, err := c.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := p.Apply(*current)
	updated.ID = current.ID
	if err := validateItem(updated); err != nil {
		return nil, err
	}

	if updated.Category != current.Category {
		if err := c.putWithCategory(ctx, updated, current); err != nil {
			return nil, err
		}
		c.log.Info("menu item moved",
			slog.String("id", id),
			slog.String("from", current.Category),
			slog.String("to", updated.Category),
		)
		return &updated, nil
	}

	itemMap, err := attributevalue.MarshalMap(updated)
	if err != nil {
		return nil, fmt.Errorf("marshal menu item: %w", err)
	}
	_, err = c.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &c.itemsTable,
		Item:                itemMap,
		ConditionExpression: awsString("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("put menu item: %w", err)
	}
	return &updated, nil
}

// Delete removes the item and drops its category once empty.
func (c *DynamoCatalog) Delete(ctx context.Context, id string) error {
	current, err := c.Find(ctx, id)
	if err != nil {
		return err
	}
	_, err = c.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &c.itemsTable,
		Key:                 itemKey(current.Category, id),
		ConditionExpression: awsString("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}

	remaining, err := c.countCategory(ctx, current.Category)
	if err != nil {
		return err
	}
	if remaining == 0 {
		if err := c.deleteCategoryRow(ctx, current.Category); err != nil {
			return err
		}
	}
	c.log.Info("menu item deleted", slog.String("id", id), slog.String("category", current.Category))
	return nil
}

func (c *DynamoCatalog) AdjustStock(ctx context.Context, id, category string, delta int) (StockResult, error) {
	var (
		it  *Item
		err error
	)
	if category = NormalizeCategory(category); category == "" {
		it, err = c.Find(ctx, id)
	} else {
		it, err = c.Get(ctx, category, id)
	}
	if err != nil {
		return StockResult{ID: id}, err
	}

	for attempt := 0; attempt < maxStockRetries; attempt++ {
		next := ClampStock(it.Stock, delta)
		_, err = c.client.UpdateItem(ctx, &dyn.UpdateItemInput{
			TableName:           &c.itemsTable,
			Key:                 itemKey(it.Category, it.ID),
			UpdateExpression:    awsString("SET stock = :new, available = :avail"),
			ConditionExpression: awsString("attribute_exists(id) AND stock = :prev"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":   &types.AttributeValueMemberN{Value: strconv.Itoa(next)},
				":avail": &types.AttributeValueMemberBOOL{Value: next > 0},
				":prev":  &types.AttributeValueMemberN{Value: strconv.Itoa(it.Stock)},
			},
		})
		if err == nil {
			return StockResult{ID: it.ID, Success: true, PreviousStock: it.Stock, NewStock: next, Available: next > 0}, nil
		}
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return StockResult{ID: id}, fmt.Errorf("update stock: %w", err)
		}
		// Stock moved underneath us (or the item vanished); re-read and retry.
		if it, err = c.Get(ctx, it.Category, it.ID); err != nil {
			return StockResult{ID: id}, err
		}
	}
	return StockResult{ID: id}, fmt.Errorf("update stock for %s: too much contention", id)
}

// BulkAdjustStock applies every update independently; one failure does not stop the rest.
func (c *DynamoCatalog) BulkAdjustStock(ctx context.Context, updates []StockUpdate) []StockResult {
	results := make([]StockResult, 0, len(updates))
	for _, u := range updates {
		res, err := c.AdjustStock(ctx, u.ID, u.Category, u.Delta)
		if err != nil {
			res = StockResult{ID: u.ID, Error: stockError(err)}
		}
		results = append(results, res)
	}
	return results
}

func stockError(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "Menu not found"
	}
	return err.Error()
}

func (c *DynamoCatalog) CreateCategory(ctx context.Context, name string) (string, error) {
	name = NormalizeCategory(name)
	if name == "" {
		return "", fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	row, err := attributevalue.MarshalMap(categoryRow{Name: name, CreatedAt: c.nowFunc().UTC()})
	if err != nil {
		return "", fmt.Errorf("marshal category: %w", err)
	}
	_, err = c.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &c.categoryTable,
		Item:                row,
		ConditionExpression: awsString("attribute_not_exists(#n)"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return "", ErrCategoryExists
		}
		return "", fmt.Errorf("put category: %w", err)
	}
	return name, nil
}

// DeleteCategory removes an empty category. Deleting an unknown category succeeds.
func (c *DynamoCatalog) DeleteCategory(ctx context.Context, name string) error {
	name = NormalizeCategory(name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	n, err := c.countCategory(ctx, name)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryNotEmpty
	}
	return c.deleteCategoryRow(ctx, name)
}

func (c *DynamoCatalog) deleteCategoryRow(ctx context.Context, name string) error {
	_, err := c.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &c.categoryTable,
		Key:       map[string]types.AttributeValue{"name": &types.AttributeValueMemberS{Value: name}},
	})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func itemKey(category, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"category": &types.AttributeValueMemberS{Value: category},
		"id":       &types.AttributeValueMemberS{Value: id},
	}
}

func reasonIs(tce *types.TransactionCanceledException, idx int, code string) bool {
	if idx >= len(tce.CancellationReasons) {
		return false
	}
	c := tce.CancellationReasons[idx].Code
	return c != nil && *c == code
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
