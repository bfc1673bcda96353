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

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlags_PopulatesViperDefaults(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse(nil))

	assert.Equal(t, "corefs", viper.GetString("app-name"))
	assert.Equal(t, DefaultNumFrames, viper.GetInt("vm.num-frames"))
	assert.Equal(t, DefaultSwapPages, viper.GetInt("vm.swap-pages"))
	assert.Equal(t, DefaultFileSystemImg, viper.GetString("device.file-system-image"))
}

func TestBindFlags_OverridesFromArgs(t *testing.T) {
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--num-frames=64", "--log-severity=DEBUG"}))

	assert.Equal(t, 64, viper.GetInt("vm.num-frames"))
	assert.Equal(t, "DEBUG", viper.GetString("logging.severity"))
}
