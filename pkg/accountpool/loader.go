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

package accountpool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/carverauto/fleetsched/pkg/logger"
	"github.com/carverauto/fleetsched/pkg/models"
	"github.com/carverauto/fleetsched/pkg/store"
)

// ParseAccounts reads email:secret lines. The secret may itself contain colons. Blank lines and
// # comments are ignored, malformed lines are logged and skipped and the first occurrence of a
// duplicate email wins.
func ParseAccounts(r io.Reader, log logger.Logger) ([]models.Account, error) {
	log = logger.Component(log, "accountpool")

	var out []models.Account

	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		email, secret, ok := strings.Cut(line, ":")
		email = strings.TrimSpace(email)

		if !ok || email == "" || secret == "" {
			log.Warn().Int("line", lineNo).Msg("skipping malformed account line")

			continue
		}

		if _, dup := seen[email]; dup {
			log.Warn().Int("line", lineNo).Str("account", email).Msg("duplicate account, keeping first instance")

			continue
		}

		seen[email] = struct{}{}
		out = append(out, models.Account{Email: email, Secret: secret, Status: models.AccountActive})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}

	return out, nil
}

// LoadFile parses the accounts file at path.
func LoadFile(path string, log logger.Logger) ([]models.Account, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseAccounts(f, log)
}

// Load replaces the registry with the accounts file merged into the persisted snapshot. The file
// supplies credentials; the snapshot supplies usage metadata. Accounts known only to the
// snapshot are kept. No account is leased after a load. A snapshot that cannot be read is an
// error and leaves the registry untouched.
func (p *Pool) Load(ctx context.Context) error {
	var fromFile []models.Account

	if p.cfg.AccountsFile != "" {
		list, err := LoadFile(p.cfg.AccountsFile, p.logger)

		switch {
		case errors.Is(err, fs.ErrNotExist):
			p.logger.Warn().Str("path", p.cfg.AccountsFile).Msg("accounts file not found")
		case err != nil:
			return err
		default:
			fromFile = list
		}
	}

	var keyed map[string]models.Account

	// an unreadable snapshot must not be replaced by a file-only registry
	if _, err := p.snap.Load(ctx, &keyed); err != nil {
		return fmt.Errorf("failed to load account registry: %w", err)
	}

	saved := store.Records(keyed, setAccountKey)

	merged := make(map[string]*models.Account, len(fromFile)+len(saved))

	for i := range saved {
		account := saved[i].Clone()
		if account.Email == "" {
			continue
		}

		if !account.Status.Valid() {
			p.logger.Warn().Str("account", account.Email).Str("status", string(account.Status)).Msg("unknown status, treating as active")
			account.Status = models.AccountActive
		}

		account.InUse = false
		merged[account.Email] = &account
	}

	created := 0

	for i := range fromFile {
		if existing, ok := merged[fromFile[i].Email]; ok {
			existing.Secret = fromFile[i].Secret

			continue
		}

		account := fromFile[i].Clone()
		merged[account.Email] = &account
		created++
	}

	p.mu.Lock()
	p.accounts = merged
	version, snapshot := p.snapshotLocked()
	p.mu.Unlock()

	p.persist(ctx, version, snapshot)

	p.logger.Info().
		Int("from_file", len(fromFile)).
		Int("from_snapshot", len(saved)).
		Int("new", created).
		Int("total", len(merged)).
		Msg("loaded accounts")

	return nil
}
