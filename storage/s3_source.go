package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"videoIngest/utils"
)

// S3API is the subset of the S3 client used for video sources.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3Client builds a client from the default AWS credential chain.
func NewS3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}
	return s3.NewFromConfig(cfg), nil
}

// S3Source is a video stored as an S3 object. Identity reads only the requested prefix through a
// ranged GET.
type S3Source struct {
	client S3API
	Bucket string
	Key    string

	mu    sync.Mutex
	size  int64
	sized bool
}

func NewS3Source(client S3API, bucket, key string) *S3Source {
	return &S3Source{client: client, Bucket: bucket, Key: key}
}

func (s *S3Source) Name() string {
	return path.Base(s.Key)
}

// Size looks the object up with HeadObject. Only a successful lookup is cached.
func (s *S3Source) Size(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sized {
		return s.size, nil
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return 0, errors.Wrapf(err, "head s3://%s/%s", s.Bucket, s.Key)
	}
	s.size, s.sized = aws.ToInt64(out.ContentLength), true
	return s.size, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", s.Bucket, s.Key)
	}
	return out.Body, nil
}

// OpenPrefix fetches at most the first n bytes.
func (s *S3Source) OpenPrefix(ctx context.Context, n int64) (io.ReadCloser, error) {
	size, err := s.Size(ctx)
	if err != nil {
		return nil, err
	}
	if size == 0 || n <= 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get range s3://%s/%s", s.Bucket, s.Key)
	}
	return out.Body, nil
}

// ListS3Sources returns every video object under prefix, in key order.
func ListS3Sources(ctx context.Context, client S3API, bucket, prefix string) ([]*S3Source, error) {
	var sources []*S3Source
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "list s3://%s/%s", bucket, prefix)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if utils.IsMediaFile(key) {
				sources = append(sources, NewS3Source(client, bucket, key))
			}
		}
	}
	return sources, nil
}
