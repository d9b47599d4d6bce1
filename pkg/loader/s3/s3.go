package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ravenloom/backend/pkg/loader"
)

// S3SourceLoader is a SourceLoader implementation that loads file
// contents from an Amazon S3 bucket. It uses the AWS SDK v2 for Go.
//
// Uploaded documents and inline text documents are both stored in the
// bucket, so every non-web source goes through this loader.
type S3SourceLoader struct {
	bucket string
	client *s3.Client
	memo   loader.Memo
}

// NewS3SourceLoaderWithClient creates a new S3SourceLoader using an
// existing s3.Client. This is useful if you want to reuse a preconfigured
// AWS client (e.g., with custom middleware or credentials).
func NewS3SourceLoaderWithClient(bucket string, client *s3.Client) *S3SourceLoader {
	return &S3SourceLoader{
		bucket: bucket,
		client: client,
	}
}

// NewS3SourceLoaderParams defines the configuration parameters for
// creating a new S3SourceLoader.
//
// Bucket specifies the S3 bucket name.
// Endpoint allows overriding the S3 endpoint (useful for S3-compatible
// storage like MinIO).
// Region specifies the AWS region.
// AccessKey and SecretKey provide static credentials.
type NewS3SourceLoaderParams struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3SourceLoader creates a new S3SourceLoader using the provided
// parameters. It initializes an AWS S3 client with static credentials and
// the given endpoint/region.
//
// Example:
//
//	l, err := s3.NewS3SourceLoader(ctx, s3.NewS3SourceLoaderParams{
//		Bucket:    "my-bucket",
//		Endpoint:  "https://s3.amazonaws.com",
//		Region:    "us-east-1",
//		AccessKey: os.Getenv("AWS_ACCESS_KEY"),
//		SecretKey: os.Getenv("AWS_SECRET_KEY"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	src := loader.Source{ID: "1", Path: "teams/1/documents/a.md", Loader: l}
//	text, err := src.GetText(ctx)
func NewS3SourceLoader(ctx context.Context, params NewS3SourceLoaderParams) (*S3SourceLoader, error) {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(params.Region),
		config.WithBaseEndpoint(params.Endpoint),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			params.AccessKey,
			params.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return NewS3SourceLoaderWithClient(params.Bucket, client), nil
}

// GetSourceBytes retrieves the object at src.Path from the configured
// bucket. It implements the SourceLoader interface.
func (l *S3SourceLoader) GetSourceBytes(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.memo.Do(loader.CacheKey(src), func() ([]byte, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(l.bucket),
			Key:    aws.String(src.Path),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get object %s: %w", src.Path, err)
		}
		defer out.Body.Close()

		buf := new(bytes.Buffer)
		if _, err := io.Copy(buf, out.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}
