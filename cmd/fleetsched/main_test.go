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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsched/pkg/logger"
)

func TestLoggingForKeepsExportToRun(t *testing.T) {
	cfg := &logger.Config{Level: "info", OTel: &logger.OTelConfig{Enabled: true, Endpoint: "collector:4317"}}

	assert.Same(t, cfg, loggingFor(cmdRun, cfg))

	for _, command := range []string{cmdStatus, cmdReset} {
		local := loggingFor(command, cfg)
		require.NotNil(t, local)
		assert.Nil(t, local.OTel, command)
		assert.Equal(t, "info", local.Level)
	}

	require.NotNil(t, cfg.OTel)
	assert.Nil(t, loggingFor(cmdStatus, nil))
}
