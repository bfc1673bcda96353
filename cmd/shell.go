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
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gocorefs/corefs/internal/corefs"
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/handle"
	"github.com/gocorefs/corefs/internal/logger"
	"github.com/gocorefs/corefs/internal/sched"
	"github.com/gocorefs/corefs/internal/telemetry"
)

var shellMetricsAddr string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell over the mounted file system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := openDevice(MountConfig.Device)
		if err != nil {
			return fmt.Errorf("shell: open device: %w", err)
		}
		if c, ok := dev.(io.Closer); ok {
			defer c.Close()
		}

		fs, err := corefs.Mount(dev)
		if err != nil {
			return fmt.Errorf("shell: mount: %w", err)
		}
		defer fs.Unmount()

		if shellMetricsAddr != "" {
			serveMetrics(shellMetricsAddr)
		}

		ctx := sched.WithThread(cmd.Context(), sched.NewThread(0, freemap.RootDirSector))
		return runShell(ctx, fs, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	shellCmd.Flags().StringVar(&shellMetricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics on this address (e.g. :9100) for the life of the shell")
}

// serveMetrics starts a Prometheus exposition endpoint in the background,
// plus a second endpoint for the legacy OpenCensus view registry
// (internal/telemetry.SetupOpenCensus) so both metrics stacks stay
// observable during the OTel migration. The shell's own lifetime bounds the
// server; there is no graceful shutdown since the process exits when the
// command loop returns.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if ocHandler, err := telemetry.SetupOpenCensus(); err != nil {
		logger.Errorf("shell: opencensus metrics: %v", err)
	} else {
		mux.Handle("/metrics/oc", ocHandler)
	}
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Errorf("shell: metrics server: %v", err)
		}
	}()
}

// runShell implements a small line-oriented command loop over fs, in the
// style of a rescue-mode debug console: one command per line, no quoting,
// errors reported but never fatal to the loop.
func runShell(ctx context.Context, fs *corefs.FS, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "corefs> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if line == "exit" || line == "quit" {
				return nil
			}
			if err := dispatchShellLine(ctx, fs, line, out); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		fmt.Fprint(out, "corefs> ")
	}
	return scanner.Err()
}

func dispatchShellLine(ctx context.Context, fs *corefs.FS, line string, out io.Writer) error {
	fields := strings.Fields(line)
	cmdName, rest := fields[0], fields[1:]

	switch cmdName {
	case "ls":
		path := "."
		if len(rest) > 0 {
			path = rest[0]
		}
		return shellLs(ctx, fs, path, out)
	case "mkdir":
		if len(rest) != 1 {
			return fmt.Errorf("usage: mkdir <path>")
		}
		return fs.Mkdir(ctx, rest[0])
	case "create":
		if len(rest) != 2 {
			return fmt.Errorf("usage: create <path> <size>")
		}
		size, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil {
			return fmt.Errorf("create: bad size: %w", err)
		}
		return fs.Create(ctx, rest[0], size, false)
	case "rm":
		if len(rest) != 1 {
			return fmt.Errorf("usage: rm <path>")
		}
		return fs.Remove(ctx, rest[0])
	case "cd":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cd <path>")
		}
		return fs.Chdir(ctx, rest[0])
	case "cat":
		if len(rest) != 1 {
			return fmt.Errorf("usage: cat <path>")
		}
		return shellCat(ctx, fs, rest[0], out)
	case "write":
		if len(rest) < 2 {
			return fmt.Errorf("usage: write <path> <text...>")
		}
		return shellWrite(ctx, fs, rest[0], strings.Join(rest[1:], " "))
	default:
		return fmt.Errorf("unknown command %q", cmdName)
	}
}

func shellLs(ctx context.Context, fs *corefs.FS, path string, out io.Writer) error {
	in, err := fs.Open(ctx, path)
	if err != nil {
		return err
	}
	defer fs.Table().Close(in)
	if !in.IsDir() {
		return corefs.ErrNotADirectory
	}

	d := handle.NewDir(directory.New(in))
	defer d.Close(fs.Table())
	for {
		name, ok, err := d.ReadDir()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintln(out, name)
	}
}

func shellCat(ctx context.Context, fs *corefs.FS, path string, out io.Writer) error {
	in, err := fs.Open(ctx, path)
	if err != nil {
		return err
	}
	f := handle.NewFile(in)
	defer f.Close(fs.Table())

	buf := make([]byte, 512)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err == io.EOF || n == 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func shellWrite(ctx context.Context, fs *corefs.FS, path string, text string) error {
	in, err := fs.Open(ctx, path)
	if err != nil {
		if err != corefs.ErrNotFound {
			return err
		}
		if err := fs.Create(ctx, path, int64(len(text)), false); err != nil {
			return err
		}
		in, err = fs.Open(ctx, path)
		if err != nil {
			return err
		}
	}
	f := handle.NewFile(in)
	defer f.Close(fs.Table())
	_, err = f.Write([]byte(text))
	return err
}
