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
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gocorefs/corefs/internal/corefs"
	"github.com/gocorefs/corefs/internal/logger"
)

var mkfsCmd = &cobra.Command{
	Use:   "mkfs",
	Short: "Format the configured file-system image",
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := openDevice(MountConfig.Device)
		if err != nil {
			return fmt.Errorf("mkfs: open device: %w", err)
		}
		if c, ok := dev.(io.Closer); ok {
			defer c.Close()
		}

		fs, err := corefs.Mkfs(dev)
		if err != nil {
			return fmt.Errorf("mkfs: %w", err)
		}
		defer fs.Unmount()

		// The on-disk format has no room for a volume id; this one only
		// ever appears in the diagnostic log line and fsck's yaml report.
		volumeID := uuid.New()
		logger.Infof("formatted %s: %d sectors, volume %s", MountConfig.Device.FileSystemImage, MountConfig.Device.ImageSectors, volumeID)
		return nil
	},
}
