package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"brand-relay/internal/domain"
)

const (
	pkPrefixUsage = "USAGE#"
	ttlDuration   = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client writes usage records to a DynamoDB table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// usagePK partitions records by UTC day.
func usagePK(ts time.Time) string {
	return pkPrefixUsage + ts.UTC().Format(time.DateOnly)
}

// usageSK orders records within a day and keeps them unique per request.
func usageSK(ts time.Time, requestID string) string {
	return ts.UTC().Format(time.RFC3339Nano) + "#" + requestID
}

// RecordUsage stores one record. Keys, timestamp and TTL are filled in when
// the caller left them empty.
func (c *Client) RecordUsage(ctx context.Context, rec domain.UsageRecord) error {
	if strings.TrimSpace(rec.RequestID) == "" {
		return errors.New("repository: RecordUsage: request id is required")
	}
	now := c.now().UTC()
	if rec.PK == "" {
		rec.PK = usagePK(now)
	}
	if rec.SK == "" {
		rec.SK = usageSK(now, rec.RequestID)
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = now.Format(time.RFC3339)
	}
	if rec.TTL == 0 {
		rec.TTL = now.Add(ttlDuration).Unix()
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                usageItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordUsage: %w", err)
	}
	return nil
}

func usageItem(rec domain.UsageRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":            &types.AttributeValueMemberS{Value: rec.PK},
		"SK":            &types.AttributeValueMemberS{Value: rec.SK},
		"requestId":     &types.AttributeValueMemberS{Value: rec.RequestID},
		"brand":         &types.AttributeValueMemberS{Value: rec.Brand},
		"site":          &types.AttributeValueMemberS{Value: rec.Site},
		"kind":          &types.AttributeValueMemberS{Value: rec.Kind},
		"status":        &types.AttributeValueMemberN{Value: strconv.Itoa(rec.Status)},
		"originAllowed": &types.AttributeValueMemberBOOL{Value: rec.OriginAllowed},
		"latencyMs":     &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.LatencyMs, 10)},
		"createdAt":     &types.AttributeValueMemberS{Value: rec.CreatedAt},
		"ttl":           &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}
