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
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/gocorefs/corefs/internal/blockdev"
	"github.com/gocorefs/corefs/internal/corefs"
	"github.com/gocorefs/corefs/internal/directory"
	"github.com/gocorefs/corefs/internal/freemap"
	"github.com/gocorefs/corefs/internal/sched"
)

// walkConcurrency bounds how many subdirectories fsck --walk descends into
// at once, so a deep tree doesn't open every inode in the table at the
// same time.
const walkConcurrency = 8

type fsckReport struct {
	SessionID    string `yaml:"session_id"`
	TotalSectors int64  `yaml:"total_sectors"`
	SectorsInUse int    `yaml:"sectors_in_use"`
	SectorsFree  int64  `yaml:"sectors_free"`
	OpenInodes   int    `yaml:"open_inodes"`
	WalkedDirs   int32  `yaml:"walked_dirs,omitempty"`
	WalkedFiles  int32  `yaml:"walked_files,omitempty"`
	WalkedBytes  int64  `yaml:"walked_bytes,omitempty"`
	WalkSkipped  bool   `yaml:"walk_skipped"`
}

var (
	fsckReportFormat string
	fsckWalk         bool
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Report free-sector and open-inode-table statistics for the configured image",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := openDevice(MountConfig.Device)
		if err != nil {
			return fmt.Errorf("fsck: open device: %w", err)
		}
		if c, ok := dev.(io.Closer); ok {
			defer c.Close()
		}

		fs, err := corefs.Mount(dev)
		if err != nil {
			return fmt.Errorf("fsck: mount: %w", err)
		}
		defer fs.Unmount()

		stats := fs.Table().Stats()
		inUse := fs.FreeMap().InUse()
		total := int64(dev.SectorCount())

		report := fsckReport{
			SessionID:    uuid.New().String(),
			TotalSectors: total,
			SectorsInUse: inUse,
			SectorsFree:  total - int64(inUse),
			OpenInodes:   stats.OpenCount,
			WalkSkipped:  !fsckWalk,
		}

		if fsckWalk {
			ctx := sched.WithThread(cmd.Context(), sched.NewThread(0, freemap.RootDirSector))
			dirs, files, bytes, err := walkTree(ctx, fs, freemap.RootDirSector)
			if err != nil {
				return fmt.Errorf("fsck: walk: %w", err)
			}
			report.WalkedDirs, report.WalkedFiles, report.WalkedBytes = dirs, files, bytes
		}

		return printReport(cmd.OutOrStdout(), report)
	},
}

func printReport(out io.Writer, report fsckReport) error {
	if fsckReportFormat == "yaml" {
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(report)
	}

	fmt.Fprintf(out, "session: %s\n", report.SessionID)
	fmt.Fprintf(out, "sectors: %d total, %d in use, %d free\n", report.TotalSectors, report.SectorsInUse, report.SectorsFree)
	fmt.Fprintf(out, "open inodes: %d\n", report.OpenInodes)
	if !report.WalkSkipped {
		fmt.Fprintf(out, "walked: %d dirs, %d files, %d bytes\n", report.WalkedDirs, report.WalkedFiles, report.WalkedBytes)
	}
	return nil
}

// walkTree descends the directory tree rooted at sector concurrently,
// bounded by walkConcurrency, tallying directory and file counts and total
// file bytes. Each subdirectory is a separate errgroup task; file inodes
// are opened, measured, and closed inline.
func walkTree(ctx context.Context, fs *corefs.FS, sector blockdev.Sector) (dirs, files int32, totalBytes int64, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(walkConcurrency)

	var walk func(sector blockdev.Sector) error
	walk = func(sector blockdev.Sector) error {
		in, err := fs.Table().Open(sector)
		if err != nil {
			return err
		}
		defer fs.Table().Close(in)
		atomic.AddInt32(&dirs, 1)

		dir := directory.New(in)
		pos := 0
		for {
			name, next, ok, rerr := dir.ReadEntries(pos)
			if rerr != nil {
				return rerr
			}
			if !ok {
				return nil
			}
			pos = next

			if name == "." || name == ".." {
				continue
			}

			childSector, lerr := dir.Lookup(name)
			if lerr != nil {
				return lerr
			}

			childIn, oerr := fs.Table().Open(childSector)
			if oerr != nil {
				return oerr
			}
			isDir := childIn.IsDir()
			length := childIn.Length()
			fs.Table().Close(childIn)

			if isDir {
				g.Go(func() error { return walk(childSector) })
			} else {
				atomic.AddInt32(&files, 1)
				atomic.AddInt64(&totalBytes, length)
			}
		}
	}

	g.Go(func() error { return walk(sector) })
	if err := g.Wait(); err != nil {
		return 0, 0, 0, err
	}
	return atomic.LoadInt32(&dirs), atomic.LoadInt32(&files), atomic.LoadInt64(&totalBytes), nil
}

func init() {
	fsckCmd.Flags().StringVar(&fsckReportFormat, "report", "text", "Report format: text or yaml")
	fsckCmd.Flags().BoolVar(&fsckWalk, "walk", false, "Concurrently walk the directory tree tallying files and bytes")
}
