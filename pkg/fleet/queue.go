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

package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/carverauto/fleetsched/pkg/clock"
)

// queue is a FIFO of device ids. A device is held at most once; pushing one that is already
// waiting is a no-op.
type queue struct {
	mu      sync.Mutex
	items   []string
	waiting map[string]struct{}
	notify  chan struct{}
	clock   clock.Clock
}

func newQueue(clk clock.Clock) *queue {
	return &queue{
		clock:   clk,
		waiting: make(map[string]struct{}),
		notify:  make(chan struct{}, 1),
	}
}

func (q *queue) push(id string) {
	q.mu.Lock()

	if _, ok := q.waiting[id]; ok {
		q.mu.Unlock()

		return
	}

	q.waiting[id] = struct{}{}
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false
	}

	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.waiting, id)

	// wake another waiter if work remains
	if len(q.items) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return id, true
}

// pop waits up to timeout for a device. It returns false on timeout, when done is closed or when
// ctx ends.
func (q *queue) pop(ctx context.Context, done <-chan struct{}, timeout time.Duration) (string, bool) {
	if id, ok := q.tryPop(); ok {
		return id, true
	}

	timer := q.clock.Timer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", false
		case <-done:
			return "", false
		case <-timer.Chan():
			return q.tryPop()
		case <-q.notify:
			if id, ok := q.tryPop(); ok {
				return id, true
			}
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
