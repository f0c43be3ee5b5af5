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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/carverauto/fleetsched/pkg/config"
	"github.com/carverauto/fleetsched/pkg/kv"
	"github.com/carverauto/fleetsched/pkg/lifecycle"
	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/scheduler"
	"github.com/carverauto/fleetsched/pkg/version"
)

const (
	cmdRun    = "run"
	cmdStatus = "status"
	cmdReset  = "reset"

	kvEnvPrefix = "FLEETSCHED_CONFIG_KV_"
)

var errUnknownCommand = errors.New("unknown command")

func main() {
	if err := run(); err != nil {
		log.Fatalf("fleetsched: %v", err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("fleetsched", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "/etc/fleetsched/fleetsched.json", "Path to config file")
	showVersion := flags.Bool("version", false, "Print version and exit")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fleetsched [flags] [run|status|reset]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	if *showVersion {
		fmt.Println(version.String())

		return nil
	}

	command := cmdRun
	if flags.NArg() > 0 {
		command = flags.Arg(0)
	}

	ctx := context.Background()

	cfg, closeKV, err := loadConfig(ctx, *configPath)
	if err != nil {
		return err
	}
	defer closeKV()

	svcLog, err := lifecycle.CreateLogger(loggingFor(command, cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.ShutdownOTel(context.Background()) }()

	opts := []scheduler.Option{scheduler.WithLogger(svcLog)}
	if command == cmdStatus {
		opts = append(opts, scheduler.WithReadOnly())
	}

	svc, err := scheduler.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	switch command {
	case cmdRun:
		if _, err := logger.InitializeMetrics(ctx, cfg.Metrics, version.Version()); err == nil {
			defer func() { _ = logger.ShutdownMetrics(context.Background()) }()
		} else if !errors.Is(err, logger.ErrOTelMetricsDisabled) {
			svcLog.Warn().Err(err).Msg("failed to initialize metrics export")
		}

		if cfg.Logging != nil {
			if _, err := logger.InitializeTracing(ctx, cfg.Logging.OTel, version.Version()); err != nil &&
				!errors.Is(err, logger.ErrOTelTracingDisabled) {
				svcLog.Warn().Err(err).Msg("failed to initialize trace export")
			}
		}

		return lifecycle.Run(ctx, svc, &lifecycle.RunOptions{
			ServiceName: "fleetsched",
			StopTimeout: cfg.Workers.StopTimeout.Std(),
			Logger:      svcLog,
		})
	case cmdStatus:
		return oneShot(ctx, svc, func() any { return svc.Status() })
	case cmdReset:
		return oneShot(ctx, svc, func() any { return svc.Reset(ctx) })
	default:
		_ = svc.Close()

		return fmt.Errorf("%w: %q", errUnknownCommand, command)
	}
}

// loggingFor keeps OTel export to the long-running service; one-shot commands log locally.
func loggingFor(command string, cfg *logger.Config) *logger.Config {
	if cfg == nil || command == cmdRun {
		return cfg
	}

	local := *cfg
	local.OTel = nil

	return &local
}

// loadConfig reads the scheduler config. With CONFIG_SOURCE=kv the KV connection itself comes
// from FLEETSCHED_CONFIG_KV_* variables.
func loadConfig(ctx context.Context, path string) (*scheduler.Config, func(), error) {
	closeKV := func() {}

	bootCfg := logger.DefaultConfig()
	bootCfg.OTel = nil

	bootLog, err := lifecycle.CreateLogger(bootCfg)
	if err != nil {
		return nil, closeKV, err
	}

	loader := config.NewConfig(bootLog)

	if config.Source() == "kv" {
		var kvCfg kv.Config

		if err := config.NewEnvConfigLoader(bootLog, kvEnvPrefix).Load(ctx, "", &kvCfg); err != nil {
			return nil, closeKV, fmt.Errorf("failed to read kv settings: %w", err)
		}

		if err := kvCfg.Validate(); err != nil {
			return nil, closeKV, fmt.Errorf("invalid kv settings: %w", err)
		}

		store, err := kv.NewNatsStore(ctx, &kvCfg, bootLog)
		if err != nil {
			return nil, closeKV, err
		}

		loader.SetKVStore(store)

		closeKV = func() { _ = store.Close() }
	}

	cfg := scheduler.DefaultConfig()
	if err := loader.LoadAndValidate(ctx, path, cfg); err != nil {
		closeKV()

		return nil, func() {}, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, closeKV, nil
}

func oneShot(ctx context.Context, svc *scheduler.Scheduler, result func() any) error {
	defer func() { _ = svc.Close() }()

	if err := svc.Load(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(result())
}
