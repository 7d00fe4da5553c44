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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// gcsStore is the GCS objStore implementation, grounded in the same
// get/set-with-conditions pattern the teacher uses to back its tile and
// entry-bundle storage on Google Cloud Storage.
type gcsStore struct {
	client     *gcs.Client
	bucketName string
}

func newGCSFromURI(ctx context.Context, uri string) (*Blob, error) {
	rest := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(rest, "/", 2)
	bucket := parts[0]
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs.NewClient: %w", err)
	}
	return &Blob{store: &gcsStore{client: c, bucketName: bucket}, key: strings.Trim(key, "/")}, nil
}

func (g *gcsStore) scheme() string { return "gs" }
func (g *gcsStore) bucket() string { return g.bucketName }

func (g *gcsStore) get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := withBackendRetry(ctx, func() error {
		var err error
		data, err = g.getOnce(ctx, key)
		return err
	})
	return data, err
}

func (g *gcsStore) getOnce(ctx context.Context, key string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *gcsStore) put(ctx context.Context, key string, data []byte) error {
	return withBackendRetry(ctx, func() error {
		w := g.client.Bucket(g.bucketName).Object(key).NewWriter(ctx)
		return writeAndClose(w, data)
	})
}

func (g *gcsStore) putIfAbsent(ctx context.Context, key string, data []byte) error {
	return withBackendRetry(ctx, func() error {
		w := g.client.Bucket(g.bucketName).Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
		if err := writeAndClose(w, data); err != nil {
			var apiErr interface{ Error() string }
			if errors.As(err, &apiErr) && strings.Contains(err.Error(), "412") {
				return fmt.Errorf("%s: %w", key, ErrAlreadyExists)
			}
			if strings.Contains(err.Error(), "Precondition Failed") {
				return fmt.Errorf("%s: %w", key, ErrAlreadyExists)
			}
			return err
		}
		return nil
	})
}

func writeAndClose(w *gcs.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *gcsStore) delete(ctx context.Context, key string) error {
	return withBackendRetry(ctx, func() error {
		err := g.client.Bucket(g.bucketName).Object(key).Delete(ctx)
		if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
			return err
		}
		return nil
	})
}

func (g *gcsStore) list(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := withBackendRetry(ctx, func() error {
		out = nil
		it := g.client.Bucket(g.bucketName).Objects(ctx, &gcs.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			out = append(out, attrs.Name)
		}
		return nil
	})
	return out, err
}
