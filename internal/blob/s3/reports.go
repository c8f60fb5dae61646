package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rfenwick/tradedesk/internal/domain"
)

// ReportArchiver implements domain.ReportArchiver by writing each finished
// audit run as a JSON object under audit-reports/<date>/<run-id>.json.
type ReportArchiver struct {
	client *Client
	prefix string
}

// NewReportArchiver creates a ReportArchiver. An empty prefix defaults to
// "audit-reports".
func NewReportArchiver(c *Client, prefix string) *ReportArchiver {
	if prefix == "" {
		prefix = "audit-reports"
	}
	return &ReportArchiver{client: c, prefix: prefix}
}

// ArchiveRun uploads the run and returns its object key.
func (a *ReportArchiver) ArchiveRun(ctx context.Context, run domain.AuditRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal report %s: %w", run.ID, err)
	}

	key := fmt.Sprintf("%s/%s/%s.json",
		a.prefix,
		run.FinishedAt.UTC().Format("2006-01-02"),
		run.ID,
	)

	_, err = a.client.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.client.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: put report %s: %w", key, err)
	}
	return key, nil
}

// Compile-time interface check.
var _ domain.ReportArchiver = (*ReportArchiver)(nil)
