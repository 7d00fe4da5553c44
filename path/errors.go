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

package path

import "errors"

// Sentinel errors produced by UPath implementations. The root biglist
// package re-exports these under its own names so callers never need to
// import this package just to check an error kind.
var (
	ErrNotFound         = errors.New("path: not found")
	ErrAlreadyExists    = errors.New("path: already exists")
	ErrLockTimeout      = errors.New("path: lock timeout")
	ErrLockLost         = errors.New("path: lock lost")
	ErrBackendUnavailable = errors.New("path: backend unavailable")
)
