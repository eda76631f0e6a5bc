// Package db holds the trading log and position stores.
package db

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"tradingapi/internal/trading"
)

type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	tradeLogPK = "TRADELOG"
	// fixed width so sort keys order chronologically
	skTimeLayout = "2006-01-02T15:04:05.000000000Z"
)

type tradeLogItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	Date       string   `dynamodbav:"Date"`
	Ticker     string   `dynamodbav:"Ticker"`
	Action     string   `dynamodbav:"Action"`
	Quantity   float64  `dynamodbav:"Quantity"`
	Price      *float64 `dynamodbav:"Price,omitempty"`
	Note       string   `dynamodbav:"Note"`
	RecordedAt string   `dynamodbav:"RecordedAt"`
}

// DynamoTradeLog keeps the trading log in a single partition ordered by
// recording time. Entries sharing a timestamp are ordered by a sequence number
// that keeps counting across Append calls.
type DynamoTradeLog struct {
	client DynamoAPI
	table  string
	seq    atomic.Uint64
}

func NewDynamoTradeLog(client DynamoAPI, table string) (*DynamoTradeLog, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("db: missing trading log table")
	}
	return &DynamoTradeLog{client: client, table: table}, nil
}

var _ trading.TradeLog = &DynamoTradeLog{}

func (l *DynamoTradeLog) Append(ctx context.Context, entries ...trading.LogEntry) error {
	for _, e := range entries {
		recorded := e.RecordedAt.UTC()
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		item := tradeLogItem{
			PK:         tradeLogPK,
			SK:         fmt.Sprintf("%s#%012d#%s", recorded.Format(skTimeLayout), l.seq.Add(1), uuid.NewString()[:8]),
			Date:       e.Date,
			Ticker:     e.Ticker,
			Action:     e.Action,
			Quantity:   e.Quantity,
			Price:      e.Price,
			Note:       e.Note,
			RecordedAt: recorded.Format(time.RFC3339Nano),
		}

		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("marshal log entry: %w", err)
		}
		if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(l.table),
			Item:      av,
		}); err != nil {
			return fmt.Errorf("dynamodb put %s: %w", l.table, err)
		}
	}
	return nil
}

func (l *DynamoTradeLog) Recent(ctx context.Context, limit int) ([]trading.LogEntry, error) {
	if limit <= 0 {
		return []trading.LogEntry{}, nil
	}
	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: tradeLogPK},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb query %s: %w", l.table, err)
	}

	entries, err := unmarshalEntries(out.Items)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// ForDay returns every entry recorded on day (YYYY-MM-DD, UTC), oldest first.
func (l *DynamoTradeLog) ForDay(ctx context.Context, day string) ([]trading.LogEntry, error) {
	var (
		all      []trading.LogEntry
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := l.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(l.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :day)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":  &types.AttributeValueMemberS{Value: tradeLogPK},
				":day": &types.AttributeValueMemberS{Value: day},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamodb query %s: %w", l.table, err)
		}

		entries, err := unmarshalEntries(out.Items)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return all, nil
}

func unmarshalEntries(items []map[string]types.AttributeValue) ([]trading.LogEntry, error) {
	var rows []tradeLogItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal log entries: %w", err)
	}
	out := make([]trading.LogEntry, 0, len(rows))
	for _, r := range rows {
		recorded, _ := time.Parse(time.RFC3339Nano, r.RecordedAt)
		out = append(out, trading.LogEntry{
			Date:       r.Date,
			Ticker:     r.Ticker,
			Action:     r.Action,
			Quantity:   r.Quantity,
			Price:      r.Price,
			Note:       r.Note,
			RecordedAt: recorded,
		})
	}
	return out, nil
}
