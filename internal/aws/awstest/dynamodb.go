// Package awstest provides in-memory stand-ins for the AWS client interfaces.
//
// FakeDynamoDB understands the small expression dialect the stores emit:
// conditions are clauses joined by AND (attribute_exists, attribute_not_exists,
// equality), updates are SET assignments and REMOVE lists, and key conditions
// are a single partition-key equality.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type table struct {
	pk, sk string
	items  map[string]map[string]types.AttributeValue
}

// FakeDynamoDB is a goroutine-safe in-memory implementation of aws.DynamoDBAPI.
type FakeDynamoDB struct {
	mu     sync.Mutex
	tables map[string]*table
	calls  map[string]int
	fail   map[string]error
}

// NewFakeDynamoDB returns an empty fake with no tables.
func NewFakeDynamoDB() *FakeDynamoDB {
	return &FakeDynamoDB{
		tables: map[string]*table{},
		calls:  map[string]int{},
		fail:   map[string]error{},
	}
}

// CreateTable registers a table with its key schema. sk may be empty.
func (f *FakeDynamoDB) CreateTable(name, pk, sk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{pk: pk, sk: sk, items: map[string]map[string]types.AttributeValue{}}
}

// FailWith makes every subsequent call of op (e.g. "Scan") return err. A nil err clears it.
func (f *FakeDynamoDB) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Calls reports how many times op was invoked.
func (f *FakeDynamoDB) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls reports the number of calls across all operations.
func (f *FakeDynamoDB) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Items returns a copy of every item in the table, ordered by key.
func (f *FakeDynamoDB) Items(name string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[name]
	if !ok {
		return nil
	}
	return t.sorted(nil)
}

// Put stores item directly, bypassing conditions. Handy for seeding tests.
func (f *FakeDynamoDB) Put(name string, item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.mustTable(name)
	k, err := t.key(item)
	if err != nil {
		panic(err)
	}
	t.items[k] = clone(item)
}

func (f *FakeDynamoDB) enter(op string) error {
	f.calls[op]++
	return f.fail[op]
}

func (f *FakeDynamoDB) mustTable(name string) *table {
	t, ok := f.tables[name]
	if !ok {
		t = &table{pk: "pk", items: map[string]map[string]types.AttributeValue{}}
		f.tables[name] = t
	}
	return t
}

func (f *FakeDynamoDB) lookup(name *string) (*table, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: sdkaws.String("table not found: " + *name)}
	}
	return t, nil
}

func (f *FakeDynamoDB) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t.items[k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	t.items[k] = clone(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *FakeDynamoDB) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(item)}, nil
}

func (f *FakeDynamoDB) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	updated, err := applyUpdate(in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current, in.Key)
	if err != nil {
		return nil, err
	}
	t.items[k] = updated
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

func (f *FakeDynamoDB) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := t.key(in.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[k]
	ok, err := evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
	}
	delete(t.items, k)
	out := &dyn.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && current != nil {
		out.Attributes = clone(current)
	}
	return out, nil
}

func (f *FakeDynamoDB) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, errors.New("missing key condition")
	}
	attr, val, err := parseEquality(*in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	items := t.sorted(func(item map[string]types.AttributeValue) bool {
		return reflect.DeepEqual(item[attr], val)
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	out := &dyn.QueryOutput{Count: int32(len(items))}
	if in.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}

func (f *FakeDynamoDB) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := f.lookup(in.TableName)
	if err != nil {
		return nil, err
	}
	items := t.sorted(nil)
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func (f *FakeDynamoDB) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	type op struct {
		t   *table
		k   string
		run func() error
	}
	ops := make([]op, 0, len(in.TransactItems))
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false

	for i, it := range in.TransactItems {
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		var (
			t    *table
			k    string
			ok   bool
			err  error
			key  map[string]types.AttributeValue
			tn   *string
			cond *string
			nm   map[string]string
			vals map[string]types.AttributeValue
		)
		switch {
		case it.Put != nil:
			tn, key, cond, nm, vals = it.Put.TableName, it.Put.Item, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues
		case it.Delete != nil:
			tn, key, cond, nm, vals = it.Delete.TableName, it.Delete.Key, it.Delete.ConditionExpression, it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues
		case it.Update != nil:
			tn, key, cond, nm, vals = it.Update.TableName, it.Update.Key, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues
		case it.ConditionCheck != nil:
			tn, key, cond, nm, vals = it.ConditionCheck.TableName, it.ConditionCheck.Key, it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues
		default:
			return nil, errors.New("empty transact item")
		}
		if t, err = f.lookup(tn); err != nil {
			return nil, err
		}
		if k, err = t.key(key); err != nil {
			return nil, err
		}
		if ok, err = evalCondition(cond, nm, vals, t.items[k]); err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: sdkaws.String("ConditionalCheckFailed")}
			failed = true
			continue
		}

		it := it
		tt, kk := t, k
		switch {
		case it.Put != nil:
			ops = append(ops, op{tt, kk, func() error { tt.items[kk] = clone(it.Put.Item); return nil }})
		case it.Delete != nil:
			ops = append(ops, op{tt, kk, func() error { delete(tt.items, kk); return nil }})
		case it.Update != nil:
			ops = append(ops, op{tt, kk, func() error {
				updated, err := applyUpdate(it.Update.UpdateExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, tt.items[kk], it.Update.Key)
				if err != nil {
					return err
				}
				tt.items[kk] = updated
				return nil
			}})
		}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, o := range ops {
		if err := o.run(); err != nil {
			return nil, err
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (t *table) key(item map[string]types.AttributeValue) (string, error) {
	pk, ok := scalar(item[t.pk])
	if !ok {
		return "", fmt.Errorf("missing partition key %q", t.pk)
	}
	if t.sk == "" {
		return pk, nil
	}
	sk, ok := scalar(item[t.sk])
	if !ok {
		return "", fmt.Errorf("missing sort key %q", t.sk)
	}
	return pk + "\x00" + sk, nil
}

func (t *table) sorted(keep func(map[string]types.AttributeValue) bool) []map[string]types.AttributeValue {
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, item := range t.items {
		if keep == nil || keep(item) {
			out = append(out, clone(item))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, _ := scalar(out[i][t.pk])
		pj, _ := scalar(out[j][t.pk])
		if pi != pj || t.sk == "" {
			return pi < pj
		}
		return lessAttr(out[i][t.sk], out[j][t.sk])
	})
	return out
}

func lessAttr(a, b types.AttributeValue) bool {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		af, _ := strconv.ParseFloat(an.Value, 64)
		bf, _ := strconv.ParseFloat(bn.Value, 64)
		return af < bf
	}
	as, _ := scalar(a)
	bs, _ := scalar(b)
	return as < bs
}

func scalar(v types.AttributeValue) (string, bool) {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return tv.Value, true
	case *types.AttributeValueMemberN:
		return tv.Value, true
	}
	return "", false
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func resolveName(tok string, names map[string]string) string {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

func resolveValue(tok string, values map[string]types.AttributeValue) (types.AttributeValue, error) {
	tok = strings.TrimSpace(tok)
	v, ok := values[tok]
	if !ok {
		return nil, fmt.Errorf("missing expression value %q", tok)
	}
	return v, nil
}

func parseEquality(expr string, names map[string]string, values map[string]types.AttributeValue) (string, types.AttributeValue, error) {
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("unsupported expression %q", expr)
	}
	lhs, rhs := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if strings.HasPrefix(lhs, ":") {
		lhs, rhs = rhs, lhs
	}
	v, err := resolveValue(rhs, values)
	if err != nil {
		return "", nil, err
	}
	return resolveName(lhs, names), v, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(clause[len("attribute_not_exists("):len(clause)-1], names)
			if _, ok := item[attr]; ok {
				return false, nil
			}
		case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
			attr := resolveName(clause[len("attribute_exists("):len(clause)-1], names)
			if _, ok := item[attr]; !ok {
				return false, nil
			}
		default:
			attr, v, err := parseEquality(clause, names, values)
			if err != nil {
				return false, err
			}
			if !reflect.DeepEqual(item[attr], v) {
				return false, nil
			}
		}
	}
	return true, nil
}

func applyUpdate(expr *string, names map[string]string, values map[string]types.AttributeValue, current, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	item := clone(current)
	if item == nil {
		item = clone(key)
	}
	if expr == nil {
		return item, nil
	}
	rest := strings.TrimSpace(*expr)
	for rest != "" {
		var section string
		switch {
		case strings.HasPrefix(rest, "SET "):
			section, rest = cutSection(rest[len("SET "):])
			for _, assign := range strings.Split(section, ",") {
				attr, v, err := parseEquality(assign, names, values)
				if err != nil {
					return nil, err
				}
				item[attr] = v
			}
		case strings.HasPrefix(rest, "REMOVE "):
			section, rest = cutSection(rest[len("REMOVE "):])
			for _, a := range strings.Split(section, ",") {
				delete(item, resolveName(a, names))
			}
		default:
			return nil, fmt.Errorf("unsupported update expression %q", *expr)
		}
	}
	return item, nil
}

// cutSection splits "a = :a, b = :b REMOVE c" into the SET body and the remainder.
func cutSection(s string) (string, string) {
	idx := len(s)
	for _, kw := range []string{" SET ", " REMOVE "} {
		if i := strings.Index(s, kw); i >= 0 && i < idx {
			idx = i
		}
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx:])
}
