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

package cfg

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidDeviceConfig(config *DeviceConfig) error {
	if config.FileSystemImage == "" {
		return fmt.Errorf("file-system-image must not be empty")
	}
	if config.SwapImage == "" {
		return fmt.Errorf("swap-image must not be empty")
	}
	if config.ImageSectors <= 0 {
		return fmt.Errorf("image-sectors must be positive")
	}
	if config.IORateHz < 0 {
		return fmt.Errorf("io-rate-hz must not be negative")
	}
	return nil
}

func isValidVmConfig(config *VmConfig) error {
	if config.NumFrames <= 0 {
		return fmt.Errorf("num-frames must be positive")
	}
	if config.SwapPages < 0 {
		return fmt.Errorf("swap-pages must not be negative")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidDeviceConfig(&config.Device); err != nil {
		return fmt.Errorf("error parsing device config: %w", err)
	}
	if err := isValidVmConfig(&config.Vm); err != nil {
		return fmt.Errorf("error parsing vm config: %w", err)
	}
	return nil
}
