package advisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type CacheClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// SummaryCache stores generated summaries keyed by a hash of their prompt, so
// the same portfolio state is summarized once per TTL. Items carry ExpiresAt for
// DynamoDB TTL.
type SummaryCache struct {
	ddb   CacheClient
	table string
	ttl   time.Duration
	now   func() time.Time
}

func NewSummaryCache(ddb CacheClient, table string, ttl time.Duration) (*SummaryCache, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, errors.New("advisor: missing summary cache table")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SummaryCache{ddb: ddb, table: table, ttl: ttl, now: time.Now}, nil
}

func hashKeyMaterial(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func cacheKey(prompt string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: "SUMMARY"},
		"SK": &ddbtypes.AttributeValueMemberS{Value: "PROMPT#" + hashKeyMaterial(prompt)},
	}
}

// Get treats items past ExpiresAt as misses; DynamoDB deletes expired items lazily.
func (c *SummaryCache) Get(ctx context.Context, prompt string) (string, bool, error) {
	out, err := c.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            cacheKey(prompt),
		ConsistentRead: aws.Bool(false),
	})
	if err != nil {
		return "", false, fmt.Errorf("cache GetItem: %w", err)
	}
	if len(out.Item) == 0 {
		return "", false, nil
	}

	if exp, ok := out.Item["ExpiresAt"].(*ddbtypes.AttributeValueMemberN); ok {
		n, err := strconv.ParseInt(exp.Value, 10, 64)
		if err == nil && n <= c.now().UTC().Unix() {
			return "", false, nil
		}
	}
	text, ok := out.Item["Summary"].(*ddbtypes.AttributeValueMemberS)
	if !ok || text.Value == "" {
		return "", false, nil
	}
	return text.Value, true, nil
}

func (c *SummaryCache) Put(ctx context.Context, prompt, summary string) error {
	now := c.now().UTC()
	item := cacheKey(prompt)
	item["Summary"] = &ddbtypes.AttributeValueMemberS{Value: summary}
	item["CreatedAt"] = &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)}
	item["ExpiresAt"] = &ddbtypes.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(c.ttl).Unix(), 10)}

	_, err := c.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("cache PutItem: %w", err)
	}
	return nil
}
