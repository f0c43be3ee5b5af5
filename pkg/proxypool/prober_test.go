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
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsched/pkg/models"
)

const probeTarget = "http://probe.test/ip"

// forwardProxy answers absolute-form requests directly, standing in for an HTTP proxy.
func forwardProxy(t *testing.T, status int, wantAuth string) models.Proxy {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "probe.test", r.Host)

		if wantAuth != "" {
			assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(wantAuth)), r.Header.Get("Proxy-Authorization"))
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"origin":"198.51.100.7"}`))
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)

	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)

	return models.NewProxy(host, port, "", "")
}

func TestHTTPProberHealthy(t *testing.T) {
	proxy := forwardProxy(t, http.StatusOK, "")

	err := NewHTTPProber(probeTarget, 2*time.Second).Probe(context.Background(), proxy)
	require.NoError(t, err)
}

func TestHTTPProberSendsProxyCredentials(t *testing.T) {
	proxy := forwardProxy(t, http.StatusOK, "alice:s3cret")
	proxy.Username = "alice"
	proxy.Password = "s3cret"

	require.NoError(t, NewHTTPProber(probeTarget, 2*time.Second).Probe(context.Background(), proxy))
}

func TestHTTPProberNon2xxFails(t *testing.T) {
	proxy := forwardProxy(t, http.StatusServiceUnavailable, "")

	err := NewHTTPProber(probeTarget, 2*time.Second).Probe(context.Background(), proxy)
	require.ErrorIs(t, err, ErrProbeStatus)
}

func TestHTTPProberUnreachableProxy(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	err = NewHTTPProber(probeTarget, time.Second).Probe(context.Background(), models.NewProxy(host, port, "", ""))
	require.Error(t, err)
}

func TestHTTPProberRejectsUnknownScheme(t *testing.T) {
	proxy := models.NewProxy("10.0.0.1", "21", "", "")
	proxy.Scheme = "ftp"

	err := NewHTTPProber(probeTarget, time.Second).Probe(context.Background(), proxy)
	require.ErrorIs(t, err, ErrUnsupportedScheme)
}
