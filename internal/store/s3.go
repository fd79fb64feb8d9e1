package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/xuantien37/telegram-guess-number-bot/internal/player"
)

// S3Options configure an object-storage snapshot. Endpoint is optional and
// enables S3-compatible services (R2, MinIO) with path-style addressing.
type S3Options struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// objectAPI is the subset of the S3 client the snapshot store uses.
type objectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 keeps the whole mapping as one JSON object.
type S3 struct {
	api    objectAPI
	bucket string
	key    string
}

// OpenS3 builds a client from the default AWS config chain, overridden by
// static credentials when both keys are set.
func OpenS3(ctx context.Context, o S3Options) (*S3, error) {
	if o.Bucket == "" || o.Key == "" {
		return nil, errors.New("s3 store: bucket and key are required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})
	return &S3{api: client, bucket: o.Bucket, key: o.Key}, nil
}

// Load fetches the snapshot. A missing object is an empty store.
func (s *S3) Load(ctx context.Context) (map[string]*player.Record, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.key)})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return map[string]*player.Record{}, nil
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	recs := make(map[string]*player.Record, len(raw))
	for id, b := range raw {
		rec, err := decodeRecord(id, b)
		if err != nil {
			return nil, err
		}
		recs[id] = rec
	}
	return recs, nil
}

// Save overwrites the snapshot object.
func (s *S3) Save(ctx context.Context, records map[string]*player.Record) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
