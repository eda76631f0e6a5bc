package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingapi/internal/trading"
)

type fakeCacheDB struct {
	items  map[string]map[string]ddbtypes.AttributeValue
	getErr error
	puts   int
}

func newFakeCacheDB() *fakeCacheDB {
	return &fakeCacheDB{items: map[string]map[string]ddbtypes.AttributeValue{}}
}

func itemID(key map[string]ddbtypes.AttributeValue) string {
	pk := key["PK"].(*ddbtypes.AttributeValueMemberS).Value
	sk := key["SK"].(*ddbtypes.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeCacheDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemID(in.Key)]}, nil
}

func (f *fakeCacheDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts++
	f.items[itemID(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func newTestCache(t *testing.T, db CacheClient, now time.Time) *SummaryCache {
	t.Helper()
	c, err := NewSummaryCache(db, "summary-cache", time.Minute)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	db := newFakeCacheDB()
	c := newTestCache(t, db, now)

	_, ok, err := c.Get(context.Background(), "prompt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(context.Background(), "prompt", "all good"))
	got, ok, err := c.Get(context.Background(), "prompt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "all good", got)

	for _, item := range db.items {
		assert.Equal(t, strconv.FormatInt(now.Add(time.Minute).Unix(), 10), item["ExpiresAt"].(*ddbtypes.AttributeValueMemberN).Value)
	}
}

func TestSummaryCacheIgnoresExpired(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	db := newFakeCacheDB()
	c := newTestCache(t, db, now)
	require.NoError(t, c.Put(context.Background(), "prompt", "stale"))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, ok, err := c.Get(context.Background(), "prompt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSummaryCacheRequiresTable(t *testing.T) {
	_, err := NewSummaryCache(newFakeCacheDB(), " ", time.Minute)
	assert.Error(t, err)
}

func TestSummarizeUsesCache(t *testing.T) {
	db := newFakeCacheDB()
	cache := newTestCache(t, db, time.Now())
	fb := &fakeBedrock{replies: []string{"first summary", "second summary"}}
	a, err := New(fb, "anthropic.claude-test", Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:  cache,
	})
	require.NoError(t, err)

	positions := []trading.Position{{Ticker: "AAPL", Quantity: 1, PurchasePrice: 100}}

	got, err := a.Summarize(context.Background(), positions, nil)
	require.NoError(t, err)
	assert.Equal(t, "first summary", got)

	got, err = a.Summarize(context.Background(), positions, nil)
	require.NoError(t, err)
	assert.Equal(t, "first summary", got)
	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, 1, db.puts)

	positions[0].Quantity = 2
	got, err = a.Summarize(context.Background(), positions, nil)
	require.NoError(t, err)
	assert.Equal(t, "second summary", got)
	assert.Equal(t, 2, fb.calls)
}

func TestSummarizeFallsThroughOnCacheError(t *testing.T) {
	db := newFakeCacheDB()
	db.getErr = errors.New("throttled")
	fb := &fakeBedrock{replies: []string{"fresh"}}
	a, err := New(fb, "anthropic.claude-test", Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Cache:  newTestCache(t, db, time.Now()),
	})
	require.NoError(t, err)

	got, err := a.Summarize(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}
