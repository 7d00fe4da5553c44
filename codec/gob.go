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

package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

func init() {
	// Common leaf types seen in element payloads. encoding/gob needs every
	// concrete type that might flow through an interface{} registered up
	// front; this mirrors the small, fixed scalar set the teacher's own
	// gob-based sequencer value types (storage/aws, storage/gcp) rely on.
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register([]byte(nil))
	gob.Register([]any(nil))
	gob.Register(map[string]any(nil))
}

// pickleZstdCodec is "pickle-zstd", the default row-oriented format: each
// batch is gob-encoded (standing in for Python's pickle as the generic
// object serializer) and zstd-compressed.
type pickleZstdCodec struct{}

func (pickleZstdCodec) Name() string   { return "pickle-zstd" }
func (pickleZstdCodec) Ext() string    { return "pickle_zstd" }
func (pickleZstdCodec) Columnar() bool { return false }

func (pickleZstdCodec) SerializeBatch(elems []any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(elems); err != nil {
		return nil, fmt.Errorf("pickle-zstd: gob encode: %w", err)
	}
	return zstdCompress(buf.Bytes())
}

func (pickleZstdCodec) DeserializeBatch(data []byte) ([]any, error) {
	raw, err := zstdDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("pickle-zstd: %w", err)
	}
	var out []any
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, fmt.Errorf("pickle-zstd: gob decode: %w", err)
	}
	return out, nil
}

// pickleLZ4Codec is "pickle-lz4": the same gob encoding as pickle-zstd, but
// wrapped with lz4 instead of zstd for callers that want faster, weaker
// compression over slower, stronger compression.
type pickleLZ4Codec struct{}

func (pickleLZ4Codec) Name() string   { return "pickle-lz4" }
func (pickleLZ4Codec) Ext() string    { return "pickle_lz4" }
func (pickleLZ4Codec) Columnar() bool { return false }

func (pickleLZ4Codec) SerializeBatch(elems []any) ([]byte, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(elems); err != nil {
		return nil, fmt.Errorf("pickle-lz4: gob encode: %w", err)
	}
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("pickle-lz4: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("pickle-lz4: compress: %w", err)
	}
	return out.Bytes(), nil
}

func (pickleLZ4Codec) DeserializeBatch(data []byte) ([]any, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pickle-lz4: decompress: %w", err)
	}
	var out []any
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, fmt.Errorf("pickle-lz4: gob decode: %w", err)
	}
	return out, nil
}
