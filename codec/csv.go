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
	"encoding/csv"
	"fmt"
)

// csvCodec is the "csv" entry. Elements are []string rows; no third-party
// CSV library appears anywhere in the example pack, so this is implemented
// directly on encoding/csv (see DESIGN.md for the standard-library
// justification).
type csvCodec struct{}

func (csvCodec) Name() string   { return "csv" }
func (csvCodec) Ext() string    { return "csv" }
func (csvCodec) Columnar() bool { return false }

func (csvCodec) SerializeBatch(elems []any) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for i, e := range elems {
		row, ok := e.([]string)
		if !ok {
			return nil, fmt.Errorf("csv: element %d is %T, want []string", i, e)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("csv: write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (csvCodec) DeserializeBatch(data []byte) ([]any, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		out[i] = row
	}
	return out, nil
}
