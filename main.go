// Copyright 2024 Google Inc. All Rights Reserved.
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

// corefs drives a sector-addressable file-system image and a demand-paged
// virtual memory core on top of it.
//
// Usage:
//
//	corefs mkfs|fsck|shell [flags]
package main

import "github.com/gocorefs/corefs/cmd"

func main() {
	cmd.Execute()
}
