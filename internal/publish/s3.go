package publish

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"go.uber.org/zap"

	"salesdata/internal/sales"
)

// ObjectPutter uploads objects. *s3.S3 satisfies it.
type ObjectPutter interface {
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
}

// NewS3Client opens an S3 client for region.
func NewS3Client(region string) (*s3.S3, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return s3.New(sess), nil
}

// S3Publisher uploads every dataset file under <prefix>/<run_id>/.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Publisher creates a publisher writing to bucket.
func NewS3Publisher(client ObjectPutter, bucket, prefix string, logger *zap.Logger) *S3Publisher {
	return &S3Publisher{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger,
	}
}

func (p *S3Publisher) Name() string { return "s3" }

// Key returns the object key of file for a run.
func (p *S3Publisher) Key(runID, file string) string {
	return path.Join(p.prefix, runID, file)
}

// Publish uploads the manifest last, so its presence marks a complete upload.
func (p *S3Publisher) Publish(ctx context.Context, ds *sales.Dataset) error {
	files, err := sales.EncodeTables(ds)
	if err != nil {
		return err
	}

	for _, name := range sales.DatasetFiles {
		key := p.Key(ds.Manifest.RunID, name)
		contentType := "text/csv"
		if strings.HasSuffix(name, ".json") {
			contentType = "application/json"
		}

		_, err := p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(files[name]),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return fmt.Errorf("failed to upload s3://%s/%s: %w", p.bucket, key, err)
		}
		p.logger.Debug("object uploaded", zap.String("bucket", p.bucket), zap.String("key", key))
	}
	return nil
}
