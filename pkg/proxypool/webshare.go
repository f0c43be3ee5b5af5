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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
)

const (
	defaultWebshareURL        = "https://proxy.webshare.io/api/v2/proxy/list/"
	defaultWebshareMode       = "direct"
	defaultWebshareTimeout    = 20 * time.Second
	defaultWebshareMaxElapsed = time.Minute
	maxErrorBodyBytes         = 512
)

// WebshareConfig points the supplier at a Webshare-style proxy list API.
type WebshareConfig struct {
	APIURL     string          `json:"api_url,omitempty"`
	Token      string          `json:"token"`
	Mode       string          `json:"mode,omitempty"`
	Timeout    models.Duration `json:"timeout,omitempty"`
	MaxElapsed models.Duration `json:"max_elapsed,omitempty"`
}

// Validate requires a token and fills defaults.
func (c *WebshareConfig) Validate() error {
	if c.Token == "" {
		return ErrSupplierTokenEmpty
	}

	if c.APIURL == "" {
		c.APIURL = defaultWebshareURL
	}

	if c.Mode == "" {
		c.Mode = defaultWebshareMode
	}

	if c.Timeout == 0 {
		c.Timeout = models.Duration(defaultWebshareTimeout)
	}

	if c.MaxElapsed == 0 {
		c.MaxElapsed = models.Duration(defaultWebshareMaxElapsed)
	}

	return nil
}

type websharePage struct {
	Count   int             `json:"count"`
	Results []webshareProxy `json:"results"`
}

type webshareProxy struct {
	ProxyAddress string `json:"proxy_address"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	Valid        bool   `json:"valid"`
}

// WebshareSupplier fetches proxies from the Webshare list API.
type WebshareSupplier struct {
	cfg    *WebshareConfig
	client *http.Client
	logger logger.Logger
}

// NewWebshareSupplier builds a supplier. cfg must already be validated.
func NewWebshareSupplier(cfg *WebshareConfig, log logger.Logger) *WebshareSupplier {
	return &WebshareSupplier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout.Std()},
		logger: logger.Component(log, "webshare"),
	}
}

// FetchProxies returns up to limit valid proxies. Transient failures (network errors, 429 and
// 5xx) are retried with exponential backoff; other statuses fail immediately.
func (w *WebshareSupplier) FetchProxies(ctx context.Context, limit int) ([]models.Proxy, error) {
	reqURL, err := url.Parse(w.cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webshare api url: %w", err)
	}

	query := reqURL.Query()
	query.Set("mode", w.cfg.Mode)
	query.Set("page_size", strconv.Itoa(limit))
	reqURL.RawQuery = query.Encode()

	operation := func() (*websharePage, error) {
		return w.fetchPage(ctx, reqURL.String())
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	page, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxElapsedTime(w.cfg.MaxElapsed.Std()))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proxies from webshare: %w", err)
	}

	return convertWebshare(page.Results, limit), nil
}

func (w *WebshareSupplier) fetchPage(ctx context.Context, target string) (*websharePage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Authorization", "Token "+w.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn().Err(err).Msg("webshare request failed, retrying")

		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := fmt.Errorf("%w: %d %s", ErrSupplierStatus, resp.StatusCode, string(body))

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			w.logger.Warn().Int("status", resp.StatusCode).Msg("webshare unavailable, retrying")

			return nil, statusErr
		}

		return nil, backoff.Permanent(statusErr)
	}

	var page websharePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode webshare response: %w", err))
	}

	return &page, nil
}

func convertWebshare(results []webshareProxy, limit int) []models.Proxy {
	out := make([]models.Proxy, 0, len(results))
	seen := make(map[string]struct{}, len(results))

	for _, r := range results {
		if !r.Valid || r.ProxyAddress == "" || r.Port <= 0 {
			continue
		}

		proxy := models.NewProxy(r.ProxyAddress, strconv.Itoa(r.Port), r.Username, r.Password)
		if _, dup := seen[proxy.Address]; dup {
			continue
		}

		seen[proxy.Address] = struct{}{}
		out = append(out, proxy)

		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}

var _ Supplier = (*WebshareSupplier)(nil)
