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

package biglist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clabernetes/biglist/path"
)

// storageVersion is the current on-disk manifest schema version.
const storageVersion = 3

// dataFileInfo is one entry of a manifest's data_files_info list.
type dataFileInfo struct {
	RelativePath   string `json:"relative_path"`
	Count          int    `json:"count"`
	CumulativeCount int   `json:"cumulative_count"`
}

// manifest is the decoded form of a BigList's info.json.
type manifest struct {
	StorageFormat string                 `json:"storage_format"`
	StorageVersion int                   `json:"storage_version"`
	BatchSize     int                    `json:"batch_size"`
	DataFilesInfo []dataFileInfo         `json:"data_files_info"`
	Extra         map[string]any         `json:"extra,omitempty"`
}

// validate checks the invariants the manifest schema promises: cumulative
// counts are the running sum of counts, and relative paths are unique.
func (m *manifest) validate() error {
	seen := make(map[string]struct{}, len(m.DataFilesInfo))
	running := 0
	for i, d := range m.DataFilesInfo {
		if _, dup := seen[d.RelativePath]; dup {
			return fmt.Errorf("%w: duplicate data file %q", ErrCorruptManifest, d.RelativePath)
		}
		seen[d.RelativePath] = struct{}{}
		running += d.Count
		if d.CumulativeCount != running {
			return fmt.Errorf("%w: entry %d cumulative_count %d disagrees with running sum %d", ErrCorruptManifest, i, d.CumulativeCount, running)
		}
	}
	return nil
}

func (m *manifest) total() int {
	if len(m.DataFilesInfo) == 0 {
		return 0
	}
	return m.DataFilesInfo[len(m.DataFilesInfo)-1].CumulativeCount
}

func readManifest(ctx context.Context, infoPath path.UPath) (*manifest, error) {
	raw, err := infoPath.ReadBytes(ctx)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func marshalManifest(m *manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return raw, nil
}

// writeManifest atomically overwrites the manifest at infoPath. Manifest
// writes always overwrite: the caller is expected to hold infoPath's lock
// and to have just read the prior version (read-modify-write).
func writeManifest(ctx context.Context, infoPath path.UPath, m *manifest) error {
	raw, err := marshalManifest(m)
	if err != nil {
		return err
	}
	return infoPath.WriteBytes(ctx, raw, true)
}

// writeInitialManifest creates a brand new manifest file, failing if one
// already exists at infoPath.
func writeInitialManifest(ctx context.Context, infoPath path.UPath, m *manifest) error {
	raw, err := marshalManifest(m)
	if err != nil {
		return err
	}
	return infoPath.WriteBytes(ctx, raw, false)
}
