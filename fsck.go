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

	"github.com/clabernetes/biglist/codec"
	"github.com/clabernetes/biglist/path"
)

// FsckReport lists every manifest invariant violation found by Fsck.
// Duplicate relative paths and cumulative-count mismatches are the
// violations readManifest also rejects; Fsck additionally checks things
// readManifest doesn't, like on-disk presence of every listed data file and
// whether storage_format is registered, so a non-empty report does not by
// itself mean readManifest would fail.
type FsckReport struct {
	Violations []string
}

func (r *FsckReport) add(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

// OK reports whether Fsck found no violations.
func (r *FsckReport) OK() bool { return len(r.Violations) == 0 }

// Fsck validates a BigList's manifest invariants — monotonic cumulative
// counts, unique relative paths, known storage_format, and on-disk
// presence of every listed data file — without repairing anything.
func Fsck(ctx context.Context, root path.UPath) (*FsckReport, error) {
	report := &FsckReport{}
	info := root.Joinpath("info.json")

	raw, err := info.ReadBytes(ctx)
	if err != nil {
		return nil, err
	}
	m, decodeErr := decodeManifestLoose(raw)
	if decodeErr != nil {
		report.add("info.json does not parse: %v", decodeErr)
		return report, nil
	}

	if _, err := codec.Get(m.StorageFormat); err != nil {
		report.add("unknown storage_format %q", m.StorageFormat)
	}

	seen := make(map[string]struct{}, len(m.DataFilesInfo))
	running := 0
	for i, d := range m.DataFilesInfo {
		if _, dup := seen[d.RelativePath]; dup {
			report.add("entry %d: duplicate relative_path %q", i, d.RelativePath)
		}
		seen[d.RelativePath] = struct{}{}
		running += d.Count
		if d.CumulativeCount != running {
			report.add("entry %d: cumulative_count %d disagrees with running sum %d", i, d.CumulativeCount, running)
		}
		exists, err := root.Joinpath(d.RelativePath).Exists(ctx)
		if err != nil {
			report.add("entry %d: %v", i, err)
			continue
		}
		if !exists {
			report.add("entry %d: data file %q is missing on disk", i, d.RelativePath)
		}
	}
	return report, nil
}

// decodeManifestLoose parses a manifest without enforcing its invariants,
// so Fsck can report every violation rather than stopping at the first.
func decodeManifestLoose(raw []byte) (*manifest, error) {
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
