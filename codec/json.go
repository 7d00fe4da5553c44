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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"
)

// jsonCodec is the "json" entry: one JSON array of elements per file.
type jsonCodec struct{}

func (jsonCodec) Name() string     { return "json" }
func (jsonCodec) Ext() string      { return "json" }
func (jsonCodec) Columnar() bool   { return false }
func (jsonCodec) SerializeBatch(elems []any) ([]byte, error) {
	return json.Marshal(elems)
}
func (jsonCodec) DeserializeBatch(data []byte) ([]any, error) {
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return out, nil
}

// jsonZstdCodec is "json-zstd": a JSON array compressed with zstd.
type jsonZstdCodec struct{}

func (jsonZstdCodec) Name() string   { return "json-zstd" }
func (jsonZstdCodec) Ext() string    { return "json_zstd" }
func (jsonZstdCodec) Columnar() bool { return false }

func (jsonZstdCodec) SerializeBatch(elems []any) ([]byte, error) {
	raw, err := json.Marshal(elems)
	if err != nil {
		return nil, err
	}
	return zstdCompress(raw)
}

func (jsonZstdCodec) DeserializeBatch(data []byte) ([]any, error) {
	raw, err := zstdDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("json-zstd: %w", err)
	}
	var out []any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("json-zstd: %w", err)
	}
	return out, nil
}

// orjsonCodec is "orjson": the fast-path JSON codec, standing in for
// Python's orjson by using json-iterator/go's fastest configuration.
type orjsonCodec struct{}

var jsoniterFastest = jsoniter.ConfigFastest

func (orjsonCodec) Name() string   { return "orjson" }
func (orjsonCodec) Ext() string    { return "json" }
func (orjsonCodec) Columnar() bool { return false }

func (orjsonCodec) SerializeBatch(elems []any) ([]byte, error) {
	return jsoniterFastest.Marshal(elems)
}

func (orjsonCodec) DeserializeBatch(data []byte) ([]any, error) {
	var out []any
	if err := jsoniterFastest.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("orjson: %w", err)
	}
	return out, nil
}

// ndjsonZstdCodec is "newline-delimited-json": one JSON value per line,
// zstd-compressed, per the `.ndjson_zstd` extension in the filename grammar.
type ndjsonZstdCodec struct{}

func (ndjsonZstdCodec) Name() string   { return "newline-delimited-json" }
func (ndjsonZstdCodec) Ext() string    { return "ndjson_zstd" }
func (ndjsonZstdCodec) Columnar() bool { return false }

func (ndjsonZstdCodec) SerializeBatch(elems []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range elems {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return zstdCompress(buf.Bytes())
}

func (ndjsonZstdCodec) DeserializeBatch(data []byte) ([]any, error) {
	raw, err := zstdDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("newline-delimited-json: %w", err)
	}
	var out []any
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("newline-delimited-json: %w", err)
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func zstdCompress(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

func zstdDecompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
