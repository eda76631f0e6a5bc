package etl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
}

type RepairResult struct {
	Ok        bool   `json:"ok"`
	QueryID   string `json:"query_id,omitempty"`
	State     string `json:"state,omitempty"`
	Database  string `json:"database,omitempty"`
	Table     string `json:"table,omitempty"`
	Workgroup string `json:"workgroup,omitempty"`
	Output    string `json:"output,omitempty"`
}

// Repairer runs MSCK REPAIR TABLE so Athena picks up new dt= partitions.
type Repairer struct {
	client    AthenaClient
	database  string
	table     string
	workgroup string
	output    string
	logger    *slog.Logger

	PollInterval time.Duration
	Timeout      time.Duration
}

func NewRepairer(client AthenaClient, database, table, workgroup, output string, logger *slog.Logger) (*Repairer, error) {
	database, table, output = strings.TrimSpace(database), strings.TrimSpace(table), strings.TrimSpace(output)
	if database == "" || table == "" || output == "" {
		return nil, errors.New("athena repair needs database, table and output location")
	}
	if !strings.HasPrefix(output, "s3://") {
		return nil, fmt.Errorf("athena output must start with s3://")
	}
	if strings.TrimSpace(workgroup) == "" {
		workgroup = "primary"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repairer{
		client:       client,
		database:     database,
		table:        table,
		workgroup:    workgroup,
		output:       output,
		logger:       logger,
		PollInterval: 2 * time.Second,
		Timeout:      60 * time.Second,
	}, nil
}

// Repair starts the query and polls until it finishes or Timeout passes.
func (r *Repairer) Repair(ctx context.Context) (RepairResult, error) {
	res := RepairResult{Database: r.database, Table: r.table, Workgroup: r.workgroup, Output: r.output}

	startOut, err := r.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(fmt.Sprintf("MSCK REPAIR TABLE %s", r.table)),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(r.database),
		},
		WorkGroup: aws.String(r.workgroup),
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(r.output),
		},
	})
	if err != nil {
		return res, fmt.Errorf("StartQueryExecution: %w", err)
	}

	res.QueryID = aws.ToString(startOut.QueryExecutionId)
	r.logger.InfoContext(ctx, "repair started", slog.String("query_id", res.QueryID), slog.String("table", r.table))

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	ticker := time.NewTicker(r.PollInterval)
	defer ticker.Stop()

	for {
		st, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(res.QueryID),
		})
		if err != nil {
			return res, fmt.Errorf("GetQueryExecution: %w", err)
		}

		res.State = string(st.QueryExecution.Status.State)
		switch st.QueryExecution.Status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			res.Ok = true
			r.logger.InfoContext(ctx, "repair succeeded", slog.String("query_id", res.QueryID))
			return res, nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return res, fmt.Errorf("repair %s: %s", res.State, aws.ToString(st.QueryExecution.Status.StateChangeReason))
		}

		select {
		case <-ctx.Done():
			res.State = "TIMEOUT"
			return res, fmt.Errorf("repair timed out waiting for qid=%s: %w", res.QueryID, ctx.Err())
		case <-ticker.C:
		}
	}
}
