// Package etl exports the trading log to partitioned parquet files for Athena.
package etl

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"tradingapi/internal/trading"
)

// TradeLogRow matches the Glue table columns; dt is the partition.
type TradeLogRow struct {
	Date       string   `parquet:"name=trade_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	RecordedAt string   `parquet:"name=recorded_at, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker     string   `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Action     string   `parquet:"name=action, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Quantity   float64  `parquet:"name=quantity, type=DOUBLE"`
	Price      *float64 `parquet:"name=price, type=DOUBLE, repetitiontype=OPTIONAL"`
	Note       string   `parquet:"name=note, type=BYTE_ARRAY, convertedtype=UTF8"`
}

type DayReader interface {
	ForDay(ctx context.Context, day string) ([]trading.LogEntry, error)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type ExportConfig struct {
	Bucket string
	Prefix string
	// Database and Table, when set, make the Glue table location win over Bucket and Prefix.
	Database string
	Table    string
	DaysBack int
}

type Exporter struct {
	log      DayReader
	s3       ObjectPutter
	glue     GlueClient
	repairer *Repairer
	cfg      ExportConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewExporter wires the export. glue and repairer may be nil.
func NewExporter(log DayReader, s3c ObjectPutter, glue GlueClient, repairer *Repairer, cfg ExportConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DaysBack <= 0 {
		cfg.DaysBack = 1
	}
	if cfg.DaysBack > 90 {
		cfg.DaysBack = 90
	}
	return &Exporter{log: log, s3: s3c, glue: glue, repairer: repairer, cfg: cfg, logger: logger, now: time.Now}
}

type ExportResult struct {
	Ok       bool          `json:"ok"`
	DaysBack int           `json:"days_back"`
	Written  int           `json:"written"`
	Rows     int           `json:"rows"`
	Bucket   string        `json:"bucket"`
	Prefix   string        `json:"prefix"`
	Keys     []string      `json:"keys,omitempty"`
	Repair   *RepairResult `json:"repair,omitempty"`
}

// Handle is triggered by an EventBridge schedule. For each UTC day in the window
// (today included) it writes the day's trading log to
// <prefix>dt=YYYY-MM-DD/part-<rand>.parquet, then repairs the table partitions.
func (e *Exporter) Handle(ctx context.Context, _ events.CloudWatchEvent) (ExportResult, error) {
	bucket, prefix, err := e.destination(ctx)
	if err != nil {
		return ExportResult{}, err
	}

	res := ExportResult{Ok: true, DaysBack: e.cfg.DaysBack, Bucket: bucket, Prefix: prefix}
	now := e.now().UTC()

	for i := 0; i < e.cfg.DaysBack; i++ {
		dt := now.AddDate(0, 0, -i).Format("2006-01-02")

		entries, err := e.log.ForDay(ctx, dt)
		if err != nil {
			return res, fmt.Errorf("read trading log dt=%s: %w", dt, err)
		}
		if len(entries) == 0 {
			e.logger.InfoContext(ctx, "no trading log entries", slog.String("dt", dt))
			continue
		}

		key := fmt.Sprintf("%sdt=%s/part-%s.parquet", ensureTrailingSlash(prefix), dt, randHex(8))
		if err := e.writeParquetToS3(ctx, bucket, key, toRows(entries)); err != nil {
			return res, fmt.Errorf("write parquet dt=%s: %w", dt, err)
		}
		e.logger.InfoContext(ctx, "trading log exported",
			slog.String("dt", dt),
			slog.Int("rows", len(entries)),
			slog.String("key", key),
		)

		res.Written++
		res.Rows += len(entries)
		res.Keys = append(res.Keys, key)
	}

	if e.repairer != nil && res.Written > 0 {
		rr, err := e.repairer.Repair(ctx)
		res.Repair = &rr
		if err != nil {
			res.Ok = false
			return res, err
		}
	}
	return res, nil
}

func (e *Exporter) destination(ctx context.Context) (bucket, prefix string, err error) {
	if e.glue != nil && e.cfg.Database != "" && e.cfg.Table != "" {
		loc, err := TableLocation(ctx, e.glue, e.cfg.Database, e.cfg.Table)
		if err != nil {
			return "", "", err
		}
		return ParseS3Location(loc)
	}
	if strings.TrimSpace(e.cfg.Bucket) == "" {
		return "", "", errors.New("missing analytics bucket")
	}
	return e.cfg.Bucket, e.cfg.Prefix, nil
}

func toRows(entries []trading.LogEntry) []TradeLogRow {
	rows := make([]TradeLogRow, 0, len(entries))
	for _, en := range entries {
		rows = append(rows, TradeLogRow{
			Date:       en.Date,
			RecordedAt: en.RecordedAt.UTC().Format(time.RFC3339Nano),
			Ticker:     en.Ticker,
			Action:     en.Action,
			Quantity:   en.Quantity,
			Price:      en.Price,
			Note:       en.Note,
		})
	}
	return rows
}

func (e *Exporter) writeParquetToS3(ctx context.Context, bucket, key string, rows []TradeLogRow) error {
	localPath := filepath.Join(os.TempDir(), "trading_log_"+randHex(8)+".parquet")
	defer func() { _ = os.Remove(localPath) }()

	fw, err := local.NewLocalFileWriter(localPath)
	if err != nil {
		return fmt.Errorf("parquet file writer: %w", err)
	}

	pw, err := writer.NewParquetWriter(fw, new(TradeLogRow), 1)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return fmt.Errorf("parquet write row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet write stop: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read parquet tmp: %w", err)
	}

	_, err = e.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		ACL:         s3types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("s3 putobject failed: %w", err)
	}
	return nil
}

func ensureTrailingSlash(s string) string {
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func randHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
