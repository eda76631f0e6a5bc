package etl

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
)

type GlueClient interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// TableLocation returns the table's storage location, e.g. s3://bucket/trading_log/.
func TableLocation(ctx context.Context, c GlueClient, database, table string) (string, error) {
	out, err := c.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(table),
	})
	if err != nil {
		return "", fmt.Errorf("glue GetTable %s.%s: %w", database, table, err)
	}
	if out.Table == nil || out.Table.StorageDescriptor == nil {
		return "", fmt.Errorf("glue table %s.%s has no storage descriptor", database, table)
	}
	loc := strings.TrimSpace(aws.ToString(out.Table.StorageDescriptor.Location))
	if loc == "" {
		return "", fmt.Errorf("glue table %s.%s has no location", database, table)
	}
	return loc, nil
}

// ParseS3Location splits s3://bucket/prefix into bucket and a prefix ending in "/".
func ParseS3Location(loc string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(loc, "s3://")
	if !ok {
		rest, ok = strings.CutPrefix(loc, "s3a://")
	}
	if !ok {
		return "", "", fmt.Errorf("location %q is not an s3 url", loc)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("location %q has no bucket", loc)
	}
	return bucket, ensureTrailingSlash(prefix), nil
}
