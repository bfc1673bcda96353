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

// Configuration types and flag bindings, written by hand.

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Debug DebugConfig `yaml:"debug"`

	Device DeviceConfig `yaml:"device"`

	Vm VmConfig `yaml:"vm"`

	Logging LoggingConfig `yaml:"logging"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

// DeviceConfig names the two backing files: the file-system image and the
// swap image, both raw sector-addressable files opened with the same driver
// (internal/blockdev).
type DeviceConfig struct {
	FileSystemImage string `yaml:"file-system-image"`

	SwapImage string `yaml:"swap-image"`

	// ImageSectors sizes a freshly created image; ignored by mount against
	// an existing one.
	ImageSectors int64 `yaml:"image-sectors"`

	ImageMode Octal `yaml:"image-mode"`

	// IORateHz caps sector reads and writes to a steady rate, the way the
	// teacher throttles GCS object reads with a token bucket. Zero (the
	// default) disables throttling entirely.
	IORateHz float64 `yaml:"io-rate-hz"`
}

// VmConfig sizes the demand-paging subsystem.
type VmConfig struct {
	NumFrames int `yaml:"num-frames"`

	SwapPages int `yaml:"swap-pages"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`

	Format LogFormat `yaml:"format"`

	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb int `yaml:"max-file-size-mb"`

	BackupFileCount int `yaml:"backup-file-count"`

	Compress bool `yaml:"compress"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "corefs", "The application name reported in logs.")

	err = viper.BindPFlag("app-name", flagSet.Lookup("app-name"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-invariants", "", false, "Stored as debug.exit-on-invariant-violation; no component reads it.")

	err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug-invariants"))
	if err != nil {
		return err
	}

	flagSet.BoolP("debug-mutex", "", false, "Stored as debug.log-mutex; no component reads it.")

	err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug-mutex"))
	if err != nil {
		return err
	}

	flagSet.StringP("fs-image", "", DefaultFileSystemImg, "Path to the file-system backing image.")

	err = viper.BindPFlag("device.file-system-image", flagSet.Lookup("fs-image"))
	if err != nil {
		return err
	}

	flagSet.StringP("swap-image", "", DefaultSwapImg, "Path to the swap backing image.")

	err = viper.BindPFlag("device.swap-image", flagSet.Lookup("swap-image"))
	if err != nil {
		return err
	}

	flagSet.Int64P("image-sectors", "", 65536, "Sector count used when creating a new file-system image.")

	err = viper.BindPFlag("device.image-sectors", flagSet.Lookup("image-sectors"))
	if err != nil {
		return err
	}

	flagSet.IntP("image-mode", "", 0600, "Permission bits in octal, stored as device.image-mode; blockdev.NewFile creates images with mode 0644 regardless.")

	err = viper.BindPFlag("device.image-mode", flagSet.Lookup("image-mode"))
	if err != nil {
		return err
	}

	flagSet.Float64P("io-rate-hz", "", 0, "If positive, cap sector reads and writes to this many sectors per second.")

	err = viper.BindPFlag("device.io-rate-hz", flagSet.Lookup("io-rate-hz"))
	if err != nil {
		return err
	}

	flagSet.IntP("num-frames", "", DefaultNumFrames, "Number of physical frames the demand pager manages.")

	err = viper.BindPFlag("vm.num-frames", flagSet.Lookup("num-frames"))
	if err != nil {
		return err
	}

	flagSet.IntP("swap-pages", "", DefaultSwapPages, "Number of page-sized slots reserved on the swap image.")

	err = viper.BindPFlag("vm.swap-pages", flagSet.Lookup("swap-pages"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")

	err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-format", "", string(TextLogFormat), "Log handler format: text or json.")

	err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format"))
	if err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to write logs to. Empty means stderr.")

	err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file"))
	if err != nil {
		return err
	}

	return nil
}
