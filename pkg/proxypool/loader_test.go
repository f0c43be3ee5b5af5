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

package proxypool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    models.Proxy
		wantErr error
	}{
		{
			name: "host and port",
			line: "10.0.0.1:8080",
			want: models.Proxy{Address: "10.0.0.1:8080", Scheme: models.SchemeHTTP, Health: models.HealthUnknown},
		},
		{
			name: "with credentials",
			line: "proxy.example.com:3128:alice:s3cret",
			want: models.Proxy{
				Address:  "proxy.example.com:3128",
				Scheme:   models.SchemeHTTP,
				Username: "alice",
				Password: "s3cret",
				Health:   models.HealthUnknown,
			},
		},
		{
			name: "socks5 prefix",
			line: "socks5://10.0.0.2:1080",
			want: models.Proxy{Address: "10.0.0.2:1080", Scheme: models.SchemeSOCKS5, Health: models.HealthUnknown},
		},
		{name: "three fields", line: "10.0.0.1:80:user", wantErr: ErrMalformedLine},
		{name: "missing host", line: ":80", wantErr: ErrMalformedLine},
		{name: "bad port", line: "10.0.0.1:http", wantErr: ErrInvalidPort},
		{name: "port out of range", line: "10.0.0.1:70000", wantErr: ErrInvalidPort},
		{name: "unknown scheme", line: "ftp://10.0.0.1:21", wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseProxiesSkipsCommentsAndDuplicates(t *testing.T) {
	input := strings.Join([]string{
		"# primary",
		"",
		"10.0.0.1:8080",
		"not a proxy",
		"10.0.0.1:8080:dup:dup",
		"  10.0.0.2:8080:bob:pw  ",
	}, "\n")

	proxies, err := ParseProxies(strings.NewReader(input), logger.NewTestLogger())
	require.NoError(t, err)
	require.Len(t, proxies, 2)

	assert.Equal(t, "10.0.0.1:8080", proxies[0].Address)
	assert.Empty(t, proxies[0].Username)
	assert.Equal(t, "10.0.0.2:8080", proxies[1].Address)
	assert.Equal(t, "bob", proxies[1].Username)
}

func TestMergeProxiesKeepsSnapshotOnlyEntries(t *testing.T) {
	file := []models.Proxy{models.NewProxy("10.0.0.1", "80", "", "")}
	saved := []models.Proxy{{Address: "10.0.0.3:80", InUse: true}}

	merged := mergeProxies(file, saved)
	require.Len(t, merged, 2)
	assert.Equal(t, models.HealthUnknown, merged[1].Health)
	assert.False(t, merged[1].InUse)
}
