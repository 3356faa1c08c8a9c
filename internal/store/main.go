// Package store moves column files to and from S3 object storage.
package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Store struct {
	client   *s3.Client
	transfer *transfermanager.Client
	bucket   string
}

// New builds a store for the given bucket using the ambient AWS
// configuration (environment, shared config profile).
func New(ctx context.Context, bucket string) (*Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &Store{
		client:   client,
		transfer: transfermanager.NewFromConfig(client, cfg),
		bucket:   bucket,
	}, nil
}

// Upload pushes a local file to the bucket under key. Large files are split
// into concurrent multipart uploads by the transfer manager.
func (s *Store) Upload(ctx context.Context, key, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = s.transfer.PutObject(ctx, &transfermanager.PutObjectInput{
		Bucket: s.bucket,
		Key:    key,
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Download fetches an object from the bucket into a local file.
func (s *Store) Download(ctx context.Context, key, path string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := io.Copy(file, out.Body); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return file.Close()
}
