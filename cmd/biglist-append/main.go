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

// biglist-append reads stdin line by line and appends each non-empty line,
// as a string, to a BigList, creating it first if requested. Lines are not
// parsed as JSON, and no input other than stdin is read.
package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"os"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/path"
	"k8s.io/klog/v2"
)

var (
	root          = flag.String("root", "", "Root URI of the BigList (local path, gs://bucket/prefix, or s3://bucket/prefix).")
	initialise    = flag.Bool("initialise", false, "Create the BigList if it doesn't already exist.")
	batchSize     = flag.Int("batch_size", 1000, "Flush threshold; only used with -initialise.")
	storageFormat = flag.String("storage_format", "pickle-zstd", "Serializer registered in the codec package; only used with -initialise.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	ctx := context.Background()

	if *root == "" {
		klog.Exit("-root is required")
	}
	r, err := path.Parse(ctx, *root)
	if err != nil {
		klog.Exitf("parse -root %q: %v", *root, err)
	}

	var bl *biglist.BigList
	if *initialise {
		bl, err = biglist.New(ctx, r, *batchSize, *storageFormat)
	} else {
		bl, err = biglist.Open(ctx, r)
	}
	if err != nil {
		klog.Exitf("open BigList at %q: %v", *root, err)
	}
	defer func() {
		if cerr := bl.Close(ctx); cerr != nil {
			klog.Errorf("close: %v", cerr)
		}
	}()

	n := 0
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := bl.Append(ctx, line); err != nil {
			klog.Exitf("append line %d: %v", n+1, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		klog.Exitf("read stdin: %v", err)
	}
	if err := bl.Flush(ctx, true); err != nil {
		klog.Exitf("flush: %v", err)
	}
	klog.Infof("appended %d entries to %s (total length %d)", n, *root, bl.Len())
}
