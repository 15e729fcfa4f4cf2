// Package dynamo implements store.Store on Amazon DynamoDB.
package dynamo

import (
	"context"
	"fmt"

	"dndbot/schema"
	"dndbot/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const provisionedUnits = 5

// API is the subset of the DynamoDB client the store uses
type API interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store talks to DynamoDB through API
type Store struct {
	api API
}

// New wraps a DynamoDB client
func New(api API) *Store {
	return &Store{api: api}
}

func throughput() *types.ProvisionedThroughput {
	return &types.ProvisionedThroughput{
		ReadCapacityUnits:  aws.Int64(provisionedUnits),
		WriteCapacityUnits: aws.Int64(provisionedUnits),
	}
}

func scalarType(t schema.AttributeType) types.ScalarAttributeType {
	if t == schema.AttributeTypeNumber {
		return types.ScalarAttributeTypeN
	}
	return types.ScalarAttributeTypeS
}

func createTableInput(def schema.Table) *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:             aws.String(def.Name),
		ProvisionedThroughput: throughput(),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(def.PartitionKey.Name), KeyType: types.KeyTypeHash},
		},
	}
	if def.SortKey != nil {
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(def.SortKey.Name),
			KeyType:       types.KeyTypeRange,
		})
	}
	for _, attr := range def.AttributeDefinitions() {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr.Name),
			AttributeType: scalarType(attr.Type),
		})
	}
	for _, idx := range def.Indexes {
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName: aws.String(idx.Name),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(idx.PartitionKey.Name), KeyType: types.KeyTypeHash},
			},
			Projection:            &types.Projection{ProjectionType: types.ProjectionTypeAll},
			ProvisionedThroughput: throughput(),
		})
	}
	return in
}

// CreateTable issues CreateTable; the table starts out CREATING
func (s *Store) CreateTable(ctx context.Context, def schema.Table) error {
	_, err := s.api.CreateTable(ctx, createTableInput(def))
	return mapError("create table", def.Name, err)
}

// DeleteTable issues DeleteTable; the table lingers in DELETING for a while
func (s *Store) DeleteTable(ctx context.Context, name string) error {
	_, err := s.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(name)})
	return mapError("delete table", name, err)
}

// DescribeTable probes a table
func (s *Store) DescribeTable(ctx context.Context, name string) (*store.TableDescription, error) {
	out, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return nil, mapError("describe table", name, err)
	}

	desc := &store.TableDescription{Name: name}
	switch out.Table.TableStatus {
	case types.TableStatusActive:
		desc.Status = store.TableStatusActive
	case types.TableStatusDeleting:
		desc.Status = store.TableStatusDeleting
	default:
		desc.Status = store.TableStatusCreating
	}
	for _, idx := range out.Table.GlobalSecondaryIndexes {
		desc.Indexes = append(desc.Indexes, aws.ToString(idx.IndexName))
		// an index still backfilling is not usable yet
		if idx.IndexStatus != "" && idx.IndexStatus != types.IndexStatusActive && desc.Status == store.TableStatusActive {
			desc.Status = store.TableStatusCreating
		}
	}
	return desc, nil
}

// conditionExpression renders a store.Condition for PutItem
func conditionExpression(def schema.Table, cond store.Condition) (*string, map[string]string, map[string]types.AttributeValue, error) {
	switch cond.Kind {
	case store.CondNotExists:
		return aws.String("attribute_not_exists(#pk)"), map[string]string{"#pk": def.PartitionKey.Name}, nil, nil
	case store.CondExists:
		return aws.String("attribute_exists(#pk)"), map[string]string{"#pk": def.PartitionKey.Name}, nil, nil
	case store.CondEquals:
		v, err := marshalValue(cond.Value)
		if err != nil {
			return nil, nil, nil, err
		}
		return aws.String("#a = :v"), map[string]string{"#a": cond.Attribute}, map[string]types.AttributeValue{":v": v}, nil
	default:
		return nil, nil, nil, nil
	}
}

// Put writes an item if the condition holds
func (s *Store) Put(ctx context.Context, def schema.Table, item store.Item, cond store.Condition) error {
	av, err := marshalItem(item)
	if err != nil {
		return err
	}
	expr, names, values, err := conditionExpression(def, cond)
	if err != nil {
		return err
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(def.Name),
		Item:                      av,
		ConditionExpression:       expr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return mapError("put", def.Name, err)
}

func sortKeyName(def schema.Table) string {
	if def.SortKey == nil {
		return ""
	}
	return def.SortKey.Name
}

// Get reads one item with a strongly consistent read
func (s *Store) Get(ctx context.Context, def schema.Table, key store.Key) (store.Item, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(def.Name),
		Key:            keyAttributes(def.PartitionKey.Name, sortKeyName(def), key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, mapError("get", def.Name, err)
	}
	if len(out.Item) == 0 {
		return nil, store.ErrItemNotFound
	}
	return unmarshalItem(out.Item)
}

// keyCondition renders the key condition for a partition query
func keyCondition(def schema.Table, in store.QueryInput) (string, map[string]string, map[string]types.AttributeValue) {
	expr := "#pk = :pk"
	names := map[string]string{"#pk": def.PartitionKey.Name}
	values := map[string]types.AttributeValue{":pk": &types.AttributeValueMemberS{Value: in.Partition}}

	if def.SortKey == nil || (in.From == "" && in.To == "") {
		return expr, names, values
	}
	names["#sk"] = def.SortKey.Name
	switch {
	case in.From != "" && in.To != "":
		expr += " AND #sk BETWEEN :from AND :to"
		values[":from"] = &types.AttributeValueMemberS{Value: in.From}
		values[":to"] = &types.AttributeValueMemberS{Value: in.To}
	case in.From != "":
		expr += " AND #sk >= :from"
		values[":from"] = &types.AttributeValueMemberS{Value: in.From}
	default:
		expr += " AND #sk <= :to"
		values[":to"] = &types.AttributeValueMemberS{Value: in.To}
	}
	return expr, names, values
}

// Query returns the items of one partition ordered by sort key, following
// pagination until Limit items are collected
func (s *Store) Query(ctx context.Context, def schema.Table, in store.QueryInput) ([]store.Item, error) {
	expr, names, values := keyCondition(def, in)
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(def.Name),
		KeyConditionExpression:    aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(!in.Descending),
		ConsistentRead:            aws.Bool(true),
	}

	var items []store.Item
	for {
		if in.Limit > 0 {
			input.Limit = aws.Int32(int32(in.Limit - len(items)))
		}
		out, err := s.api.Query(ctx, input)
		if err != nil {
			return nil, mapError("query", def.Name, err)
		}
		for _, av := range out.Items {
			item, err := unmarshalItem(av)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		if len(out.LastEvaluatedKey) == 0 || (in.Limit > 0 && len(items) >= in.Limit) {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// GetByIndex looks an item up through a global secondary index. Index reads
// are eventually consistent.
func (s *Store) GetByIndex(ctx context.Context, def schema.Table, index string, value any) (store.Item, error) {
	var attr string
	for _, idx := range def.Indexes {
		if idx.Name == index {
			attr = idx.PartitionKey.Name
		}
	}
	if attr == "" {
		return nil, fmt.Errorf("table %s has no index %s", def.Name, index)
	}

	v, err := marshalValue(value)
	if err != nil {
		return nil, err
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(def.Name),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": v},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, mapError("query index", def.Name, err)
	}
	if len(out.Items) == 0 {
		return nil, store.ErrItemNotFound
	}
	return unmarshalItem(out.Items[0])
}

// Delete removes an item
func (s *Store) Delete(ctx context.Context, def schema.Table, key store.Key) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(def.Name),
		Key:       keyAttributes(def.PartitionKey.Name, sortKeyName(def), key),
	})
	return mapError("delete", def.Name, err)
}

// Close is a no-op; the HTTP client is shared
func (s *Store) Close() error {
	return nil
}
