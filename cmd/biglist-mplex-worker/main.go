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

// biglist-mplex-worker claims items from a Multiplexer session until
// exhausted, printing each claimed (index, item) pair to stdout. Run the
// same command from any number of processes or hosts against the same
// -session to exercise the at-most-once distribution guarantee.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/clabernetes/biglist/multiplexer"
	"github.com/clabernetes/biglist/path"
	"k8s.io/klog/v2"
)

var (
	root    = flag.String("root", "", "Root URI of the Multiplexer control directory.")
	session = flag.String("session", "", "Session id to claim items from; create one first with -create_session.")
	create  = flag.Bool("create_session", false, "Create a fresh session and print its id instead of claiming items.")
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

	m, err := multiplexer.Open(ctx, r)
	if err != nil {
		klog.Exitf("open multiplexer at %q: %v", *root, err)
	}

	if *create {
		id, err := m.CreateReadSession(ctx)
		if err != nil {
			klog.Exitf("create session: %v", err)
		}
		fmt.Println(id)
		return
	}

	if *session == "" {
		klog.Exit("-session is required unless -create_session is set")
	}
	s := m.OpenSession(*session)

	claimed := 0
	for item, idx, err := range s.All(ctx) {
		if err != nil {
			klog.Exitf("claim item: %v", err)
		}
		fmt.Printf("%d\t%v\n", idx, item)
		claimed++
	}
	klog.Infof("session %s: claimed %d items this run", *session, claimed)
}
