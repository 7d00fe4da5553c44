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

// Package codec provides the named (de)serializer registry referenced by a
// BigList's storage_format field. Entries are either row-oriented (a batch
// of elements round-trips through one file) or columnar (read by the
// ExternalBigList / row-group machinery).
package codec

import "fmt"

// Codec (de)serializes one batch of elements into one data file's bytes.
type Codec interface {
	// Name is the registry key, e.g. "json", "pickle-zstd".
	Name() string
	// Ext is the file extension this codec's files use, without the dot.
	Ext() string
	// Columnar reports whether this format exposes row-group structure
	// (and is therefore read via the ColumnarCodec interface rather than
	// DeserializeBatch).
	Columnar() bool
	// SerializeBatch encodes a batch of elements, in order, into one file's bytes.
	SerializeBatch(elems []any) ([]byte, error)
	// DeserializeBatch decodes one file's bytes back into its elements, in order.
	DeserializeBatch(data []byte) ([]any, error)
}

// registry is the process-wide table of named codecs, mirroring the info
// manifest's storage_format field so files remain readable across versions
// regardless of which serializer a given BigList instance was opened with.
var registry = map[string]Codec{}

// Register adds (or replaces) a codec under its own Name().
func Register(c Codec) {
	registry[c.Name()] = c
}

// Get returns the codec registered under name, or an error if none is registered.
func Get(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("codec: no serializer registered for storage_format %q", name)
	}
	return c, nil
}

func init() {
	Register(jsonCodec{})
	Register(jsonZstdCodec{})
	Register(orjsonCodec{})
	Register(ndjsonZstdCodec{})
	Register(pickleZstdCodec{})
	Register(pickleLZ4Codec{})
	Register(csvCodec{})
	Register(newColumnarCodec("parquet", "parquet"))
	Register(newColumnarCodec("avro", "avro"))
}
