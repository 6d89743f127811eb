package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// dynamoItem is the table item; imageId is the partition key.
type dynamoItem struct {
	ImageID          string     `dynamodbav:"imageId"`
	StorageKey       string     `dynamodbav:"s3Key"`
	FileName         string     `dynamodbav:"fileName"`
	ContentType      string     `dynamodbav:"contentType"`
	ProcessingStatus string     `dynamodbav:"processingStatus"`
	CreatedAt        time.Time  `dynamodbav:"createdAt"`
	UpdatedAt        *time.Time `dynamodbav:"updatedAt,omitempty"`
	ExtractedData    string     `dynamodbav:"extractedData,omitempty"`
	ErrorMessage     string     `dynamodbav:"errorMessage,omitempty"`
}

// DynamoStore keeps job records in a DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	logger    *slog.Logger
}

// NewDynamoStore creates a new DynamoStore for the given table
func NewDynamoStore(client DynamoAPI, tableName string, logger *slog.Logger) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create writes a new item, refusing to overwrite an existing imageId
func (s *DynamoStore) Create(ctx context.Context, job *domain.Job) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		ImageID:          job.JobID,
		StorageKey:       job.StorageKey,
		FileName:         job.FileName,
		ContentType:      job.ContentType,
		ProcessingStatus: string(job.Status),
		CreatedAt:        job.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DynamoDB item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(imageId)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, job.JobID)
		}
		return fmt.Errorf("failed to put job item: %w", err)
	}

	s.logger.Debug("Job created",
		slog.String("job_id", job.JobID),
		slog.String("storage_key", job.StorageKey),
	)

	return nil
}

// Update applies a conditional status change and returns the updated item
func (s *DynamoStore) Update(ctx context.Context, jobID string, update domain.JobUpdate) (*domain.Job, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	updatedAt, err := attributevalue.Marshal(update.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal updatedAt: %w", err)
	}

	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: string(update.To)},
		":from": &types.AttributeValueMemberS{Value: string(update.From)},
		":time": updatedAt,
	}

	var expr string
	switch update.To {
	case domain.JobStatusCompleted:
		data, err := json.Marshal(update.ExtractedData)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extracted data: %w", err)
		}
		values[":data"] = &types.AttributeValueMemberS{Value: string(data)}
		expr = "SET processingStatus = :to, updatedAt = :time, extractedData = :data REMOVE errorMessage"
	case domain.JobStatusFailed:
		values[":error"] = &types.AttributeValueMemberS{Value: update.ErrorMessage}
		expr = "SET processingStatus = :to, updatedAt = :time, errorMessage = :error REMOVE extractedData"
	default:
		expr = "SET processingStatus = :to, updatedAt = :time REMOVE extractedData, errorMessage"
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"imageId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String("attribute_exists(imageId) AND processingStatus = :from"),
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, domain.ErrNotFound
			}
			current, decodeErr := decodeDynamoItem(ccf.Item)
			if decodeErr != nil {
				return nil, decodeErr
			}
			s.logger.Warn("Job status update rejected",
				slog.String("job_id", jobID),
				slog.String("status", string(current.Status)),
				slog.String("expected", string(update.From)),
				slog.String("target", string(update.To)),
			)
			return nil, fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidTransition, jobID, current.Status, update.From)
		}
		return nil, fmt.Errorf("failed to update job item: %w", err)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", string(update.To)),
	)

	return decodeDynamoItem(out.Attributes)
}

// Get reads a job with a strongly consistent read
func (s *DynamoStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"imageId": &types.AttributeValueMemberS{Value: jobID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, domain.ErrNotFound
	}

	return decodeDynamoItem(out.Item)
}

func decodeDynamoItem(av map[string]types.AttributeValue) (*domain.Job, error) {
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB item: %w", err)
	}

	job := &domain.Job{
		JobID:       item.ImageID,
		StorageKey:  item.StorageKey,
		FileName:    item.FileName,
		ContentType: item.ContentType,
		Status:      domain.Status(item.ProcessingStatus),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}

	if item.ExtractedData != "" {
		var data domain.ExtractedData
		if err := json.Unmarshal([]byte(item.ExtractedData), &data); err != nil {
			return nil, fmt.Errorf("failed to decode extracted data for job %s: %w", item.ImageID, err)
		}
		job.ExtractedData = &data
	}

	if item.ErrorMessage != "" {
		msg := item.ErrorMessage
		job.ErrorMessage = &msg
	}

	return job, nil
}
