// Copyright 2025 The BigList Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package path

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3Store is the S3 objStore implementation, grounded in the teacher's
// storage/aws objStore interface (getObject/setObject/setObjectIfNoneMatch).
type s3Store struct {
	client     *s3.Client
	bucketName string
}

func newS3FromURI(ctx context.Context, uri string) (*Blob, error) {
	rest := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("config.LoadDefaultConfig: %w", err)
	}
	return &Blob{store: &s3Store{client: s3.NewFromConfig(cfg), bucketName: bucket}, key: strings.Trim(key, "/")}, nil
}

func (s *s3Store) scheme() string { return "s3" }
func (s *s3Store) bucket() string { return s.bucketName }

func (s *s3Store) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := withBackendRetry(ctx, func() error {
		var err error
		data, err = s.getOnce(ctx, key)
		return err
	})
	return data, err
}

func (s *s3Store) getOnce(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucketName), Key: aws.String(key)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		var rnf *types.NotFound
		if errors.As(err, &rnf) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *s3Store) put(ctx context.Context, key string, data []byte) error {
	return withBackendRetry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
}

func (s *s3Store) putIfAbsent(ctx context.Context, key string, data []byte) error {
	return withBackendRetry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucketName),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			IfNoneMatch: aws.String("*"),
		})
		if err != nil {
			var ae smithy.APIError
			if errors.As(err, &ae) && (ae.ErrorCode() == "PreconditionFailed" || ae.ErrorCode() == "412") {
				return fmt.Errorf("%s: %w", key, ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

func (s *s3Store) delete(ctx context.Context, key string) error {
	return withBackendRetry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucketName), Key: aws.String(key)})
		return err
	})
}

func (s *s3Store) list(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := withBackendRetry(ctx, func() error {
		out = nil
		p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucketName),
			Prefix: aws.String(prefix),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return err
			}
			for _, obj := range page.Contents {
				out = append(out, aws.ToString(obj.Key))
			}
		}
		return nil
	})
	return out, err
}
