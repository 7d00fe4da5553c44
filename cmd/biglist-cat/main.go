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

// biglist-cat streams every element of a BigList (or, with -external, an
// ExternalBigList) to stdout, one JSON value per line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/path"
	"k8s.io/klog/v2"
)

var (
	root         = flag.String("root", "", "Root URI of the list to read.")
	external     = flag.Bool("external", false, "Treat -root as an ExternalBigList (columnar, read-only) rather than a BigList.")
	manifestRoot = flag.String("manifest_root", "", "Manifest location for -external; defaults to -root itself.")
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

	enc := json.NewEncoder(os.Stdout)

	if *external {
		mr := r
		if *manifestRoot != "" {
			mr, err = path.Parse(ctx, *manifestRoot)
			if err != nil {
				klog.Exitf("parse -manifest_root %q: %v", *manifestRoot, err)
			}
		}
		ebl, err := biglist.OpenExternal(ctx, r, mr)
		if err != nil {
			klog.Exitf("open ExternalBigList at %q: %v", *root, err)
		}
		for v, err := range ebl.All(ctx) {
			if err != nil {
				klog.Exitf("read: %v", err)
			}
			if err := enc.Encode(v); err != nil {
				klog.Exitf("write stdout: %v", err)
			}
		}
		return
	}

	bl, err := biglist.Open(ctx, r)
	if err != nil {
		klog.Exitf("open BigList at %q: %v", *root, err)
	}
	defer func() {
		if cerr := bl.Close(ctx); cerr != nil {
			klog.Errorf("close: %v", cerr)
		}
	}()
	for v, err := range bl.All(ctx) {
		if err != nil {
			klog.Exitf("read: %v", err)
		}
		if err := enc.Encode(v); err != nil {
			klog.Exitf("write stdout: %v", err)
		}
	}
}
