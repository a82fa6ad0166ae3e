package services

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"tablematch_server/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type attrMap = map[string]types.AttributeValue

type memTable struct {
	partition, sort string
	indexSort       map[string]string // index name -> sort attribute
	items           map[string]attrMap
}

func (t *memTable) key(it attrMap) string {
	return utils.ExtractString(it, t.partition) + "\x00" + utils.ExtractString(it, t.sort)
}

// fakeDynamo is an in-memory DynamoDB covering the expressions the store
// issues. beforeTransact, when set, runs once ahead of the next transaction
// so a test can commit a competing write in between.
type fakeDynamo struct {
	mu             sync.Mutex
	tables         map[string]*memTable
	beforeTransact func()
	transactCalls  int
}

func newFakeDynamo(tables DynamoTables) *fakeDynamo {
	f := &fakeDynamo{tables: map[string]*memTable{}}
	for _, def := range tables.tableDefinitions() {
		t := &memTable{indexSort: map[string]string{}, items: map[string]attrMap{}}
		for _, k := range def.KeySchema {
			if k.KeyType == types.KeyTypeHash {
				t.partition = aws.ToString(k.AttributeName)
			} else {
				t.sort = aws.ToString(k.AttributeName)
			}
		}
		for _, idx := range def.LocalSecondaryIndexes {
			t.indexSort[aws.ToString(idx.IndexName)] = aws.ToString(idx.KeySchema[1].AttributeName)
		}
		f.tables[aws.ToString(def.TableName)] = t
	}
	return f
}

func newDynamoTestStore() (*DynamoStore, *fakeDynamo) {
	tables := NewDynamoTables("test-")
	fake := newFakeDynamo(tables)
	return NewDynamoStore(&DynamoService{Client: fake}, tables), fake
}

func (f *fakeDynamo) table(name *string) *memTable {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		panic("unknown table " + aws.ToString(name))
	}
	return t
}

func (f *fakeDynamo) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table].items)
}

func copyItem(it attrMap) attrMap {
	out := make(attrMap, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

var (
	notExistsExpr = regexp.MustCompile(`^attribute_not_exists\((\w+)\)$`)
	existsExpr    = regexp.MustCompile(`^attribute_exists\((\w+)\)$`)
	equalsExpr    = regexp.MustCompile(`^(\w+) = (:\w+)$`)
)

func conditionHolds(cond *string, existing attrMap, values attrMap) bool {
	expr := aws.ToString(cond)
	if expr == "" {
		return true
	}
	if m := notExistsExpr.FindStringSubmatch(expr); m != nil {
		return existing == nil || existing[m[1]] == nil
	}
	if m := existsExpr.FindStringSubmatch(expr); m != nil {
		return existing != nil && existing[m[1]] != nil
	}
	if m := equalsExpr.FindStringSubmatch(expr); m != nil {
		return existing != nil && reflect.DeepEqual(existing[m[1]], values[m[2]])
	}
	panic("unsupported condition " + expr)
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	k := t.key(in.Item)
	if !conditionHolds(in.ConditionExpression, t.items[k], in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}
	t.items[k] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	if it, ok := t.items[t.key(in.Key)]; ok {
		return &dynamodb.GetItemOutput{Item: copyItem(it)}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

var keyConditionExpr = regexp.MustCompile(`^(\w+) = (:\w+)(?: AND begins_with\((\w+), (:\w+)\))?$`)

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	m := keyConditionExpr.FindStringSubmatch(aws.ToString(in.KeyConditionExpression))
	if m == nil {
		panic("unsupported key condition " + aws.ToString(in.KeyConditionExpression))
	}
	partition := utils.ExtractString(in.ExpressionAttributeValues, m[2])

	sortAttr := t.sort
	if in.IndexName != nil {
		sortAttr = t.indexSort[aws.ToString(in.IndexName)]
	}

	var out []attrMap
	for _, it := range t.items {
		if utils.ExtractString(it, m[1]) != partition {
			continue
		}
		if m[3] != "" {
			prefix := utils.ExtractString(in.ExpressionAttributeValues, m[4])
			if !strings.HasPrefix(utils.ExtractString(it, m[3]), prefix) {
				continue
			}
		}
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		return utils.ExtractString(out[i], sortAttr) < utils.ExtractString(out[j], sortAttr)
	})

	if in.Select == types.SelectCount {
		return &dynamodb.QueryOutput{Count: int32(len(out))}, nil
	}
	return &dynamodb.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

var (
	setClauseExpr = regexp.MustCompile(`(\w+) = (?:if_not_exists\((\w+), (:\w+)\)|(:\w+))`)
	removeExpr    = regexp.MustCompile(`REMOVE (\w+(?:, \w+)*)$`)
)

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	k := t.key(in.Key)
	existing := t.items[k]
	if !conditionHolds(in.ConditionExpression, existing, in.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
	}

	updated := copyItem(in.Key)
	if existing != nil {
		updated = copyItem(existing)
	}
	expr := aws.ToString(in.UpdateExpression)
	setPart := expr
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		setPart = expr[:i]
	}
	for _, m := range setClauseExpr.FindAllStringSubmatch(setPart, -1) {
		switch {
		case m[4] != "":
			updated[m[1]] = in.ExpressionAttributeValues[m[4]]
		case updated[m[2]] == nil:
			updated[m[1]] = in.ExpressionAttributeValues[m[3]]
		}
	}
	if m := removeExpr.FindStringSubmatch(expr); m != nil {
		for _, attr := range strings.Split(m[1], ", ") {
			delete(updated, attr)
		}
	}
	t.items[k] = updated
	return &dynamodb.UpdateItemOutput{Attributes: copyItem(updated)}, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	hook := f.beforeTransact
	f.beforeTransact = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactCalls++

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, w := range in.TransactItems {
		if w.Put == nil {
			panic("only Put is supported in transactions")
		}
		t := f.table(w.Put.TableName)
		reasons[i].Code = aws.String("None")
		if !conditionHolds(w.Put.ConditionExpression, t.items[t.key(w.Put.Item)], w.Put.ExpressionAttributeValues) {
			reasons[i].Code = aws.String(reasonConditionFailed)
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range in.TransactItems {
		t := f.table(w.Put.TableName)
		t.items[t.key(w.Put.Item)] = copyItem(w.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]attrMap{}}
	for name, req := range in.RequestItems {
		t := f.table(aws.String(name))
		for _, key := range req.Keys {
			if it, ok := t.items[t.key(key)]; ok {
				out.Responses[name] = append(out.Responses[name], copyItem(it))
			}
		}
	}
	return out, nil
}

func (f *fakeDynamo) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tables[aws.ToString(in.TableName)]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	return nil, fmt.Errorf("fake cannot create table %s", aws.ToString(in.TableName))
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}
