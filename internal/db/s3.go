package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tradingapi/internal/trading"
)

type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3PositionStore keeps the current positions as one JSON document.
type S3PositionStore struct {
	client S3API
	bucket string
	key    string
}

func NewS3PositionStore(client S3API, bucket, key string) (*S3PositionStore, error) {
	bucket, key = strings.TrimSpace(bucket), strings.TrimLeft(strings.TrimSpace(key), "/")
	if bucket == "" {
		return nil, errors.New("db: missing positions bucket")
	}
	if key == "" {
		key = "positions.json"
	}
	return &S3PositionStore{client: client, bucket: bucket, key: key}, nil
}

var _ trading.PositionStore = &S3PositionStore{}

// LoadPositions returns an empty list when the document does not exist yet.
func (s *S3PositionStore) LoadPositions(ctx context.Context) ([]trading.Position, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return []trading.Position{}, nil
		}
		return nil, fmt.Errorf("s3 get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}
	var positions []trading.Position
	if err := json.Unmarshal(raw, &positions); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	if positions == nil {
		positions = []trading.Position{}
	}
	return positions, nil
}

func (s *S3PositionStore) SavePositions(ctx context.Context, positions []trading.Position) error {
	b, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
