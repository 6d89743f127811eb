package store

import (
	"context"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo understands the condition and update expressions DynamoStore issues.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(key map[string]types.AttributeValue) string {
	return key["imageId"].(*types.AttributeValueMemberS).Value
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := keyOf(params.Item)
	if _, ok := f.items[id]; ok {
		return nil, &types.ConditionalCheckFailedException{Message: stringPtr("exists")}
	}
	f.items[id] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := keyOf(params.Key)
	item, ok := f.items[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: stringPtr("missing")}
	}

	from := params.ExpressionAttributeValues[":from"].(*types.AttributeValueMemberS).Value
	if item["processingStatus"].(*types.AttributeValueMemberS).Value != from {
		return nil, &types.ConditionalCheckFailedException{Message: stringPtr("status"), Item: copyItem(item)}
	}

	item = copyItem(item)
	item["processingStatus"] = params.ExpressionAttributeValues[":to"]
	item["updatedAt"] = params.ExpressionAttributeValues[":time"]
	delete(item, "extractedData")
	delete(item, "errorMessage")
	if v, ok := params.ExpressionAttributeValues[":data"]; ok {
		item["extractedData"] = v
	}
	if v, ok := params.ExpressionAttributeValues[":error"]; ok {
		item["errorMessage"] = v
	}
	f.items[id] = item

	return &dynamodb.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[keyOf(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func stringPtr(s string) *string {
	return &s
}

func TestDynamoStore(t *testing.T) {
	runJobStoreContract(t, func(t *testing.T) JobStore {
		return NewDynamoStore(newFakeDynamo(), "ProductOCRResults", discardLogger())
	})
}
