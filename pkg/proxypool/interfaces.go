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

//go:generate mockgen -destination=mock_proxypool.go -package=proxypool github.com/carverauto/fleetsched/pkg/proxypool Supplier,Prober

package proxypool

import (
	"context"

	"github.com/carverauto/fleetsched/pkg/models"
)

// Supplier fetches fresh proxies from an external source.
type Supplier interface {
	FetchProxies(ctx context.Context, limit int) ([]models.Proxy, error)
}

// Prober checks that a proxy can reach the outside world. A nil error means healthy.
type Prober interface {
	Probe(ctx context.Context, proxy models.Proxy) error
}
