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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

// ParseLine parses host:port or host:port:user:pass, optionally prefixed with http:// or socks5://.
func ParseLine(line string) (models.Proxy, error) {
	line = strings.TrimSpace(line)
	scheme := models.SchemeHTTP

	if i := strings.Index(line, "://"); i >= 0 {
		scheme = strings.ToLower(line[:i])
		line = line[i+3:]

		if scheme != models.SchemeHTTP && scheme != models.SchemeSOCKS5 {
			return models.Proxy{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
		}
	}

	parts := strings.Split(line, ":")

	var host, port, user, pass string

	switch len(parts) {
	case 2:
		host, port = parts[0], parts[1]
	case 4:
		host, port, user, pass = parts[0], parts[1], parts[2], parts[3]
	default:
		return models.Proxy{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	if host == "" {
		return models.Proxy{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return models.Proxy{}, fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}

	proxy := models.NewProxy(host, port, user, pass)
	proxy.Scheme = scheme

	return proxy, nil
}

// ParseProxies reads one proxy per line. Blank lines and # comments are ignored; malformed
// lines are logged and skipped. Duplicate addresses keep the first entry.
func ParseProxies(r io.Reader, log logger.Logger) ([]models.Proxy, error) {
	log = logger.Component(log, "proxypool")

	var out []models.Proxy

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		proxy, err := ParseLine(line)
		if err != nil {
			log.Warn().Err(err).Int("line", lineNo).Msg("skipping invalid proxy line")

			continue
		}

		if _, dup := seen[proxy.Address]; dup {
			log.Warn().Int("line", lineNo).Str("proxy", proxy.Address).Msg("duplicate proxy ignored")

			continue
		}

		seen[proxy.Address] = struct{}{}
		out = append(out, proxy)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read proxies: %w", err)
	}

	return out, nil
}

// LoadFile parses the proxies file at path.
func LoadFile(path string, log logger.Logger) ([]models.Proxy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxies file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseProxies(f, log)
}

// Load replaces the registry with the proxies file merged with the persisted snapshot. File
// entries keep their order and credentials; snapshot metadata overlays matching addresses and
// snapshot-only proxies (earlier supplier fetches) are kept. No proxy is in use after a load. A
// snapshot that cannot be read is an error and leaves the registry untouched.
func (p *Pool) Load(ctx context.Context) error {
	var fromFile []models.Proxy

	if p.cfg.ProxiesFile != "" {
		list, err := LoadFile(p.cfg.ProxiesFile, p.logger)

		switch {
		case errors.Is(err, fs.ErrNotExist):
			p.logger.Warn().Str("path", p.cfg.ProxiesFile).Msg("proxies file not found")
		case err != nil:
			return err
		default:
			fromFile = list
		}
	}

	var keyed map[string]models.Proxy

	// an unreadable snapshot must not be replaced by a file-only registry
	if _, err := p.snap.Load(ctx, &keyed); err != nil {
		return fmt.Errorf("failed to load proxy registry: %w", err)
	}

	saved := store.Records(keyed, setProxyKey)

	merged := mergeProxies(fromFile, saved)

	p.mu.Lock()

	p.proxies = make([]*models.Proxy, 0, len(merged))
	p.index = make(map[string]*models.Proxy, len(merged))
	p.cursor = 0

	for i := range merged {
		proxy := merged[i]
		p.proxies = append(p.proxies, &proxy)
		p.index[proxy.Address] = &proxy
	}

	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	p.logger.Info().
		Int("from_file", len(fromFile)).
		Int("from_snapshot", len(saved)).
		Int("total", len(merged)).
		Msg("loaded proxies")

	return nil
}

func mergeProxies(fromFile, saved []models.Proxy) []models.Proxy {
	savedByAddr := make(map[string]models.Proxy, len(saved))
	for i := range saved {
		savedByAddr[saved[i].Address] = saved[i]
	}

	out := make([]models.Proxy, 0, len(fromFile)+len(saved))
	seen := make(map[string]struct{}, len(fromFile)+len(saved))

	for i := range fromFile {
		proxy := fromFile[i].Clone()

		if prev, ok := savedByAddr[proxy.Address]; ok {
			prev = prev.Clone()
			proxy.Health = prev.Health
			proxy.LastUsedAt = prev.LastUsedAt
			proxy.LastCheckedAt = prev.LastCheckedAt
			proxy.ConsecutiveFailures = prev.ConsecutiveFailures
		}

		proxy.InUse = false
		seen[proxy.Address] = struct{}{}
		out = append(out, proxy)
	}

	for i := range saved {
		if saved[i].Address == "" {
			continue
		}

		if _, ok := seen[saved[i].Address]; ok {
			continue
		}

		proxy := saved[i].Clone()
		proxy.InUse = false

		if proxy.Health == "" {
			proxy.Health = models.HealthUnknown
		}

		seen[proxy.Address] = struct{}{}
		out = append(out, proxy)
	}

	return out
}
