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

// Package executor runs a session as an external command.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/fleetsched/pkg/fleet"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultOutputTail = 2048
	defaultWaitDelay  = 5 * time.Second

	EnvDeviceID      = "FLEET_DEVICE_ID"
	EnvProxyURL      = "FLEET_PROXY_URL"
	EnvProxyAddress  = "FLEET_PROXY_ADDRESS"
	EnvAccountEmail  = "FLEET_ACCOUNT_EMAIL"
	EnvAccountSecret = "FLEET_ACCOUNT_SECRET"
	EnvSessionID     = "FLEET_SESSION_ID"
	EnvStartedAt     = "FLEET_SESSION_STARTED_AT"
)

var (
	ErrNilConfig       = errors.New("executor config is nil")
	ErrCommandRequired = errors.New("session command is required")
	ErrNegativeTimeout = errors.New("session timeout must not be negative")
)

// Config describes the command run for every session.
type Config struct {
	Command string          `json:"command"`
	Args    []string        `json:"args,omitempty"`
	Dir     string          `json:"dir,omitempty"`
	Env     []string        `json:"env,omitempty"`
	Timeout models.Duration `json:"timeout,omitempty"`

	// OutputTail is how many trailing bytes of output become the failure diagnostic.
	OutputTail int `json:"output_tail,omitempty"`
}

// Validate checks the command and fills defaults.
func (c *Config) Validate() error {
	if c.Command == "" {
		return ErrCommandRequired
	}

	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}

	if c.OutputTail <= 0 {
		c.OutputTail = defaultOutputTail
	}

	return nil
}

// Command is a fleet.SessionExecutor backed by an external program. Exit status 0 is success.
type Command struct {
	cfg    *Config
	logger logger.Logger
}

var _ fleet.SessionExecutor = (*Command)(nil)

// New validates cfg and builds the executor.
func New(cfg *Config, log logger.Logger) (*Command, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Command{cfg: cfg, logger: logger.Component(log, "executor")}, nil
}

// ExecuteSession runs the command with the lease in its environment. A non-zero exit or a
// timeout is a failed outcome; failing to start the command is an error.
func (c *Command) ExecuteSession(ctx context.Context, lease *models.Lease) (fleet.Outcome, error) {
	if timeout := c.cfg.Timeout.Std(); timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out := newTailBuffer(c.cfg.OutputTail)

	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	cmd.Dir = c.cfg.Dir
	cmd.Env = append(append(os.Environ(), c.cfg.Env...), leaseEnv(lease)...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = defaultWaitDelay

	c.logger.Debug().
		Str("device_id", lease.DeviceID).
		Str("lease_id", lease.ID).
		Str("command", c.cfg.Command).
		Msg("running session command")

	err := cmd.Run()
	tail := strings.TrimSpace(out.String())

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return fleet.Outcome{Success: true, Diagnostic: tail}, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fleet.Outcome{Diagnostic: joinDiagnostic("session timed out after "+c.cfg.Timeout.Std().String(), tail)}, nil
	case errors.As(err, &exitErr):
		return fleet.Outcome{Diagnostic: joinDiagnostic("exit status "+strconv.Itoa(exitErr.ExitCode()), tail)}, nil
	default:
		return fleet.Outcome{}, fmt.Errorf("failed to run session command: %w", err)
	}
}

func joinDiagnostic(head, tail string) string {
	if tail == "" {
		return head
	}

	return head + ": " + tail
}

func leaseEnv(lease *models.Lease) []string {
	env := []string{
		EnvDeviceID + "=" + lease.DeviceID,
		EnvSessionID + "=" + lease.ID,
		EnvStartedAt + "=" + lease.StartedAt.UTC().Format(time.RFC3339),
	}

	if lease.Proxy.Address != "" {
		env = append(env,
			EnvProxyAddress+"="+lease.Proxy.Address,
			EnvProxyURL+"="+lease.Proxy.URL().String(),
		)
	}

	if lease.Account != nil {
		env = append(env,
			EnvAccountEmail+"="+lease.Account.Email,
			EnvAccountSecret+"="+lease.Account.Secret,
		)
	}

	return env
}
