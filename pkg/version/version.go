/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package version reports the fleetsched build stamped in via -ldflags.
package version

//nolint:gochecknoglobals // set with -ldflags "-X github.com/carverauto/fleetsched/pkg/version.version=..."
var (
	version = "dev"
	commit  = "unknown"
)

// Version returns the release version.
func Version() string {
	return version
}

// String formats the version and commit for --version output.
func String() string {
	return "fleetsched " + version + " (" + commit + ")"
}
