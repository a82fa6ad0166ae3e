package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func stringKey(name string) types.AttributeDefinition {
	return types.AttributeDefinition{AttributeName: aws.String(name), AttributeType: types.ScalarAttributeTypeS}
}

func keySchema(partition, sort string) []types.KeySchemaElement {
	schema := []types.KeySchemaElement{{AttributeName: aws.String(partition), KeyType: types.KeyTypeHash}}
	if sort != "" {
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(sort), KeyType: types.KeyTypeRange})
	}
	return schema
}

// tableDefinitions describes every table the store needs
func (t DynamoTables) tableDefinitions() []*dynamodb.CreateTableInput {
	simple := func(name, partition, sort string) *dynamodb.CreateTableInput {
		defs := []types.AttributeDefinition{stringKey(partition)}
		if sort != "" {
			defs = append(defs, stringKey(sort))
		}
		return &dynamodb.CreateTableInput{
			TableName:            aws.String(name),
			AttributeDefinitions: defs,
			KeySchema:            keySchema(partition, sort),
			BillingMode:          types.BillingModePayPerRequest,
		}
	}

	deck := simple(t.DeckItems, "sessionId", "venueId")
	deck.AttributeDefinitions = append(deck.AttributeDefinitions, stringKey("groupRank"))
	deck.LocalSecondaryIndexes = []types.LocalSecondaryIndex{{
		IndexName:  aws.String(DeckOrderIndex),
		KeySchema:  keySchema("sessionId", "groupRank"),
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}}

	return []*dynamodb.CreateTableInput{
		simple(t.Sessions, "sessionId", ""),
		simple(t.SessionCodes, "code", ""),
		simple(t.Members, "sessionId", "userId"),
		simple(t.Venues, "venueId", ""),
		simple(t.VenueKeys, "providerKey", ""),
		deck,
		simple(t.Swipes, "sessionVenue", "userId"),
		simple(t.Snapshots, "sessionId", "venueId"),
	}
}

// EnsureTables creates any missing table and waits until each one is active.
// Meant for DynamoDB Local and first deploys; existing tables are left as they are.
func (s *DynamoStore) EnsureTables(ctx context.Context) error {
	waiter := dynamodb.NewTableExistsWaiter(s.Dynamo.Client)
	for _, input := range s.Tables.tableDefinitions() {
		name := aws.ToString(input.TableName)
		_, err := s.Dynamo.Client.CreateTable(ctx, input)
		var inUse *types.ResourceInUseException
		switch {
		case err == nil:
			log.Printf("✅ Created table %s", name)
		case errors.As(err, &inUse):
			continue
		default:
			return fmt.Errorf("failed to create table '%s': %w", name, err)
		}
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("table '%s' did not become active: %w", name, err)
		}
	}
	return nil
}
