// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud
// services. This file implements the hierarchical configuration loader: a
// base TOML file is read first, then an environment-specific file overlays
// it (e.g. ".env.toml" then ".env.test.toml"). The directory and runtime
// name come from environment variables so deployments and tests can point
// at their own files without code changes.
package cloud

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Configuration loading constants.
const (
	ConfigFileBaseName  = ".env"                // Base name for configuration files (".env.toml").
	ConfigFileExtension = ".toml"               // Extension for configuration files.
	ConfigSeparator     = "."                   // Separator in override names (".env.local.toml").
	EnvConfigFilePrefix = "SCENE_CONFIG_PREFIX" // Environment variable naming the config directory.
	EnvConfigRuntime    = "SCENE_RUNTIME"       // Environment variable naming the runtime context (local, test, prod).
)

// fileExists reports whether a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// LoadConfig populates baseConfig from the base TOML file and then from the
// runtime-specific override file, in that order, so override values win.
//
// Inputs:
//   - baseConfig: A pointer to the target configuration struct.
func LoadConfig(baseConfig interface{}) {
	configurationFilePrefix := os.Getenv(EnvConfigFilePrefix)
	if len(configurationFilePrefix) > 0 && !strings.HasSuffix(configurationFilePrefix, string(os.PathSeparator)) {
		configurationFilePrefix = configurationFilePrefix + string(os.PathSeparator)
	}

	runtimeEnvironment := os.Getenv(EnvConfigRuntime)
	if runtimeEnvironment == "" {
		runtimeEnvironment = "test"
	}

	baseConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigFileExtension
	envConfigFileName := configurationFilePrefix + ConfigFileBaseName + ConfigSeparator + runtimeEnvironment + ConfigFileExtension

	if fileExists(baseConfigFileName) {
		if _, err := toml.DecodeFile(baseConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode base configuration file %s with error: %s", baseConfigFileName, err)
		}
	}

	if fileExists(envConfigFileName) {
		if _, err := toml.DecodeFile(envConfigFileName, baseConfig); err != nil {
			log.Fatalf("failed to decode environment configuration file: %s with error: %s", envConfigFileName, err)
		}
	}
}
