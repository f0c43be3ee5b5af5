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

package fleet

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultADBPath    = "adb"
	defaultADBTimeout = 15 * time.Second

	adbStateDevice       = "device"
	adbStateUnauthorized = "unauthorized"
	adbPackagePrefix     = "package:"
)

// ADBConfig locates adb and selects which installed packages are reported as capabilities.
type ADBConfig struct {
	Path          string          `json:"path,omitempty"`
	PackagePrefix string          `json:"package_prefix,omitempty"`
	Timeout       models.Duration `json:"timeout,omitempty"`
}

func (c *ADBConfig) applyDefaults() {
	if c.Path == "" {
		c.Path = defaultADBPath
	}

	if c.Timeout <= 0 {
		c.Timeout = models.Duration(defaultADBTimeout)
	}
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}

		return nil, err
	}

	return out, nil
}

// ADBEnumerator discovers devices attached to the local adb server.
type ADBEnumerator struct {
	cfg    ADBConfig
	run    commandRunner
	logger logger.Logger
}

var _ DeviceEnumerator = (*ADBEnumerator)(nil)

// NewADBEnumerator builds an enumerator. A nil cfg uses adb from PATH.
func NewADBEnumerator(cfg *ADBConfig, log logger.Logger) *ADBEnumerator {
	var c ADBConfig
	if cfg != nil {
		c = *cfg
	}

	c.applyDefaults()

	return &ADBEnumerator{
		cfg:    c,
		run:    runCommand,
		logger: logger.Component(log, "adb"),
	}
}

// EnumerateDevices lists serials in the "device" state. When a package prefix is configured,
// each device's matching packages are reported as its capabilities.
func (a *ADBEnumerator) EnumerateDevices(ctx context.Context) ([]models.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout.Std())
	defer cancel()

	out, err := a.run(ctx, a.cfg.Path, "devices")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			a.logger.Error().Str("path", a.cfg.Path).Msg("adb not found, install it or set the adb path")
		}

		return nil, fmt.Errorf("failed to run adb devices: %w", err)
	}

	serials := parseADBDevices(out, a.logger)
	if len(serials) == 0 {
		a.logger.Warn().Msg("no active adb devices detected")
	}

	infos := make([]models.DeviceInfo, 0, len(serials))

	for _, serial := range serials {
		info := models.DeviceInfo{ID: serial}

		if a.cfg.PackagePrefix != "" {
			packages, err := a.packages(ctx, serial)
			if err != nil {
				a.logger.Warn().Err(err).Str("device_id", serial).Msg("failed to list device packages")
			} else {
				info.Capabilities = packages
			}
		}

		infos = append(infos, info)
	}

	return infos, nil
}

func (a *ADBEnumerator) packages(ctx context.Context, serial string) ([]string, error) {
	out, err := a.run(ctx, a.cfg.Path, "-s", serial, "shell", "pm", "list", "packages", a.cfg.PackagePrefix)
	if err != nil {
		return nil, err
	}

	return parsePackages(out, a.cfg.PackagePrefix), nil
}

func parseADBDevices(out []byte, log logger.Logger) []string {
	var serials []string

	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		serial, state := fields[0], fields[1]

		switch state {
		case adbStateDevice:
			serials = append(serials, serial)
		case adbStateUnauthorized:
			log.Warn().Str("device_id", serial).Msg("unauthorized adb device, authorize it on the device")
		default:
			log.Warn().Str("device_id", serial).Str("state", state).Msg("skipping adb device")
		}
	}

	return serials
}

func parsePackages(out []byte, prefix string) []string {
	var packages []string

	scanner := bufio.NewScanner(bytes.NewReader(out))

	for scanner.Scan() {
		name, ok := strings.CutPrefix(strings.TrimSpace(scanner.Text()), adbPackagePrefix)
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}

		packages = append(packages, name)
	}

	slices.Sort(packages)

	return slices.Compact(packages)
}
