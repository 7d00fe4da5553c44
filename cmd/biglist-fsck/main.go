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

// biglist-fsck validates a BigList's manifest against itself and against the
// files actually present on disk, and, with -gc, separately reports any
// orphaned data files left behind by a writer that crashed before its
// manifest update.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/clabernetes/biglist"
	"github.com/clabernetes/biglist/path"
	"k8s.io/klog/v2"
)

var (
	root = flag.String("root", "", "Root URI of the BigList to check.")
	gc   = flag.Bool("gc", false, "Also scan for orphaned data files not referenced by the manifest.")
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

	report, err := biglist.Fsck(ctx, r)
	if err != nil {
		klog.Exitf("fsck: %v", err)
	}
	for _, v := range report.Violations {
		klog.Error(v)
	}
	if report.OK() {
		klog.Info("fsck: no violations")
	}

	exitCode := 0
	if !report.OK() {
		exitCode = 1
	}

	if *gc {
		orphans, err := biglist.GC(ctx, r)
		if err != nil {
			klog.Exitf("gc: %v", err)
		}
		klog.Infof("gc: scanned %d files, found %d orphans", orphans.Scanned, len(orphans.Orphans))
		for _, o := range orphans.Orphans {
			klog.Warningf("orphan: %s", o)
		}
		if len(orphans.Orphans) > 0 {
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}
