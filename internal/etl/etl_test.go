package etl

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"tradingapi/internal/trading"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeDays map[string][]trading.LogEntry

func (f fakeDays) ForDay(_ context.Context, day string) ([]trading.LogEntry, error) {
	return f[day], nil
}

type putCall struct {
	bucket, key string
	body        []byte
}

type fakePutter struct{ puts []putCall }

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.puts = append(f.puts, putCall{bucket: aws.ToString(in.Bucket), key: aws.ToString(in.Key), body: b})
	return &s3.PutObjectOutput{}, nil
}

type fakeGlue struct{ location string }

func (f fakeGlue) GetTable(_ context.Context, in *glue.GetTableInput, _ ...func(*glue.Options)) (*glue.GetTableOutput, error) {
	return &glue.GetTableOutput{Table: &gluetypes.Table{
		Name:              in.Name,
		StorageDescriptor: &gluetypes.StorageDescriptor{Location: aws.String(f.location)},
	}}, nil
}

type fakeAthena struct {
	states []athenatypes.QueryExecutionState
	polls  int
	query  string
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.query = aws.ToString(in.QueryString)
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qid-1")}, nil
}

func (f *fakeAthena) GetQueryExecution(context.Context, *athena.GetQueryExecutionInput, ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	state := f.states[min(f.polls, len(f.states)-1)]
	f.polls++
	return &athena.GetQueryExecutionOutput{QueryExecution: &athenatypes.QueryExecution{
		Status: &athenatypes.QueryExecutionStatus{State: state, StateChangeReason: aws.String("syntax")},
	}}, nil
}

func readRows(t *testing.T, data []byte) []TradeLogRow {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(TradeLogRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	rows := make([]TradeLogRow, pr.GetNumRows())
	require.NoError(t, pr.Read(&rows))
	return rows
}

func newRepairer(t *testing.T, a AthenaClient) *Repairer {
	t.Helper()
	r, err := NewRepairer(a, "analytics", "trading_log", "", "s3://results/athena/", quietLogger())
	require.NoError(t, err)
	r.PollInterval = time.Millisecond
	r.Timeout = time.Second
	return r
}

func TestExportWritesPartitionedParquet(t *testing.T) {
	now := time.Date(2026, 6, 2, 8, 0, 0, 0, time.UTC)
	price := 101.25
	days := fakeDays{
		"2026-06-02": {
			{Date: "2026-06-02", Ticker: "AAPL", Action: trading.ActionTickUpdate, Quantity: 3, Price: &price, Note: "Tick received", RecordedAt: now},
			{Date: "2026-06-02", Ticker: "AAPL", Action: trading.ActionBuy, Quantity: 1, Note: "AI recommendation", RecordedAt: now},
		},
	}
	putter := &fakePutter{}
	athenaFake := &fakeAthena{states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateRunning, athenatypes.QueryExecutionStateSucceeded}}

	e := NewExporter(days, putter, fakeGlue{location: "s3://lake/warehouse/trading_log"}, newRepairer(t, athenaFake),
		ExportConfig{Database: "analytics", Table: "trading_log", DaysBack: 2}, quietLogger())
	e.now = func() time.Time { return now }

	res, err := e.Handle(context.Background(), events.CloudWatchEvent{})
	require.NoError(t, err)
	assert.True(t, res.Ok)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "lake", res.Bucket)
	assert.Equal(t, "warehouse/trading_log/", res.Prefix)

	require.Len(t, putter.puts, 1)
	put := putter.puts[0]
	assert.Equal(t, "lake", put.bucket)
	assert.True(t, strings.HasPrefix(put.key, "warehouse/trading_log/dt=2026-06-02/part-"), put.key)
	assert.True(t, strings.HasSuffix(put.key, ".parquet"))

	rows := readRows(t, put.body)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Ticker)
	require.NotNil(t, rows[0].Price)
	assert.Equal(t, 101.25, *rows[0].Price)
	assert.Nil(t, rows[1].Price)
	assert.Equal(t, trading.ActionBuy, rows[1].Action)

	require.NotNil(t, res.Repair)
	assert.True(t, res.Repair.Ok)
	assert.Equal(t, "MSCK REPAIR TABLE trading_log", athenaFake.query)
	assert.Equal(t, 2, athenaFake.polls)
}

func TestExportSkipsEmptyDaysAndRepair(t *testing.T) {
	athenaFake := &fakeAthena{states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateSucceeded}}
	e := NewExporter(fakeDays{}, &fakePutter{}, nil, newRepairer(t, athenaFake),
		ExportConfig{Bucket: "b", Prefix: "p"}, quietLogger())

	res, err := e.Handle(context.Background(), events.CloudWatchEvent{})
	require.NoError(t, err)
	assert.Zero(t, res.Written)
	assert.Nil(t, res.Repair)
	assert.Zero(t, athenaFake.polls)
}

func TestExportNeedsDestination(t *testing.T) {
	e := NewExporter(fakeDays{}, &fakePutter{}, nil, nil, ExportConfig{}, quietLogger())
	_, err := e.Handle(context.Background(), events.CloudWatchEvent{})
	assert.Error(t, err)
}

func TestRepairFailure(t *testing.T) {
	r := newRepairer(t, &fakeAthena{states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateFailed}})
	res, err := r.Repair(context.Background())
	assert.ErrorContains(t, err, "repair FAILED: syntax")
	assert.False(t, res.Ok)
	assert.Equal(t, "qid-1", res.QueryID)
}

func TestRepairTimeout(t *testing.T) {
	r := newRepairer(t, &fakeAthena{states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateRunning}})
	r.Timeout = 20 * time.Millisecond

	res, err := r.Repair(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "TIMEOUT", res.State)
}

func TestNewRepairerValidates(t *testing.T) {
	_, err := NewRepairer(&fakeAthena{}, "db", "t", "", "bucket/path", nil)
	assert.Error(t, err)
	_, err = NewRepairer(&fakeAthena{}, "", "t", "", "s3://x/", nil)
	assert.Error(t, err)
}

func TestParseS3Location(t *testing.T) {
	b, p, err := ParseS3Location("s3://lake/a/b")
	require.NoError(t, err)
	assert.Equal(t, "lake", b)
	assert.Equal(t, "a/b/", p)

	b, p, err = ParseS3Location("s3://lake")
	require.NoError(t, err)
	assert.Equal(t, "lake", b)
	assert.Equal(t, "", p)

	_, _, err = ParseS3Location("https://lake/a")
	assert.Error(t, err)
}

func TestTableLocationErrors(t *testing.T) {
	_, err := TableLocation(context.Background(), fakeGlue{}, "db", "t")
	assert.ErrorContains(t, err, "no location")
}
