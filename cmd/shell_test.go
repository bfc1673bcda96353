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

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/corefs"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/sched"
)

func newShellFS(t *testing.T) (*corefs.FS, context.Context) {
	t.Helper()
	dev := blockdev.NewMemory(1024)
	fs, err := corefs.Mkfs(dev)
	require.NoError(t, err)
	ctx := sched.WithThread(context.Background(), sched.NewThread(1, freemap.RootDirSector))
	return fs, ctx
}

func TestShell_MkdirLsCdWriteCat(t *testing.T) {
	fs, ctx := newShellFS(t)
	var out bytes.Buffer

	require.NoError(t, dispatchShellLine(ctx, fs, "mkdir /sub", &out))
	require.NoError(t, dispatchShellLine(ctx, fs, "write /sub/hello.txt hi there", &out))

	out.Reset()
	require.NoError(t, dispatchShellLine(ctx, fs, "ls /sub", &out))
	assert.Contains(t, out.String(), "hello.txt")

	out.Reset()
	require.NoError(t, dispatchShellLine(ctx, fs, "cat /sub/hello.txt", &out))
	assert.Equal(t, "hi there", out.String())
}

func TestShell_UnknownCommandErrors(t *testing.T) {
	fs, ctx := newShellFS(t)
	var out bytes.Buffer
	err := dispatchShellLine(ctx, fs, "frobnicate", &out)
	assert.Error(t, err)
}

func TestRunShell_ExitsOnQuit(t *testing.T) {
	fs, ctx := newShellFS(t)
	in := bytes.NewBufferString("mkdir /x\nquit\n")
	var out bytes.Buffer

	require.NoError(t, runShell(ctx, fs, in, &out))

	out2 := bytes.Buffer{}
	require.NoError(t, dispatchShellLine(ctx, fs, "ls /", &out2))
	assert.Contains(t, out2.String(), "x")
}
