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
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/carverauto/fleetsched/pkg/models"
)

const maxProbeBodyBytes = 4096

// HTTPProber fetches a URL through the proxy and treats any 2xx as healthy.
type HTTPProber struct {
	url     string
	timeout time.Duration
}

// NewHTTPProber probes target with the given per-probe timeout.
func NewHTTPProber(target string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{url: target, timeout: timeout}
}

func (h *HTTPProber) Probe(ctx context.Context, proxy models.Proxy) error {
	transport, err := h.transportFor(&proxy)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{Transport: transport, Timeout: h.timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe through %s failed: %w", proxy.Address, err)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxProbeBodyBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrProbeStatus, resp.StatusCode)
	}

	return nil
}

func (h *HTTPProber) transportFor(proxy *models.Proxy) (*http.Transport, error) {
	switch proxy.Scheme {
	case "", models.SchemeHTTP:
		return &http.Transport{
			Proxy:                 http.ProxyURL(proxy.URL()),
			TLSHandshakeTimeout:   h.timeout,
			ResponseHeaderTimeout: h.timeout,
			DisableKeepAlives:     true,
		}, nil
	case models.SchemeSOCKS5:
		var auth *xproxy.Auth
		if proxy.HasAuth() {
			auth = &xproxy.Auth{User: proxy.Username, Password: proxy.Password}
		}

		dialer, err := xproxy.SOCKS5("tcp", proxy.Address, auth, &net.Dialer{Timeout: h.timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to build socks5 dialer for %s: %w", proxy.Address, err)
		}

		contextDialer, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: socks5 dialer lacks context support", ErrUnsupportedScheme)
		}

		return &http.Transport{
			DialContext:           contextDialer.DialContext,
			TLSHandshakeTimeout:   h.timeout,
			ResponseHeaderTimeout: h.timeout,
			DisableKeepAlives:     true,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, proxy.Scheme)
	}
}

var _ Prober = (*HTTPProber)(nil)
