package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// NewClientFromConfig accepts an AWS SDK config and returns a DynamoDB client.
func NewClientFromConfig(cfg sdkaws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

// TableSpec describes a table keyed by a single string hash key, with optional
// string-keyed global secondary indexes (index name -> attribute).
type TableSpec struct {
	Name    string
	HashKey string
	Indexes map[string]string
}

// EnsureTables creates any missing table with on-demand billing and waits for it
// to become active. Production tables are provisioned by IaC; this is for
// LocalStack and first-run environments.
func EnsureTables(ctx context.Context, client *dynamodb.Client, specs ...TableSpec) error {
	for _, spec := range specs {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(spec.Name)})
		if err == nil {
			continue
		}
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("describe table %s: %w", spec.Name, err)
		}

		attrs := []types.AttributeDefinition{{
			AttributeName: sdkaws.String(spec.HashKey),
			AttributeType: types.ScalarAttributeTypeS,
		}}
		var gsis []types.GlobalSecondaryIndex
		for index, attr := range spec.Indexes {
			attrs = append(attrs, types.AttributeDefinition{
				AttributeName: sdkaws.String(attr),
				AttributeType: types.ScalarAttributeTypeS,
			})
			gsis = append(gsis, types.GlobalSecondaryIndex{
				IndexName:  sdkaws.String(index),
				KeySchema:  []types.KeySchemaElement{{AttributeName: sdkaws.String(attr), KeyType: types.KeyTypeHash}},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			})
		}

		input := &dynamodb.CreateTableInput{
			TableName:            sdkaws.String(spec.Name),
			AttributeDefinitions: attrs,
			KeySchema:            []types.KeySchemaElement{{AttributeName: sdkaws.String(spec.HashKey), KeyType: types.KeyTypeHash}},
			BillingMode:          types.BillingModePayPerRequest,
		}
		if len(gsis) > 0 {
			input.GlobalSecondaryIndexes = gsis
		}
		if _, err := client.CreateTable(ctx, input); err != nil {
			return fmt.Errorf("create table %s: %w", spec.Name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(spec.Name)}, 2*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", spec.Name, err)
		}
	}
	return nil
}
