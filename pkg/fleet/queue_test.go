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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/fleetsched/pkg/clock"
)

func TestQueueIsFIFOAndDeduplicates(t *testing.T) {
	q := newQueue(clock.Real())
	q.push("a")
	q.push("b")
	q.push("a")

	assert.Equal(t, 2, q.len())

	done := make(chan struct{})

	id, ok := q.pop(context.Background(), done, time.Millisecond)
	assert.True(t, ok)
	assert.Equal(t, "a", id)

	q.push("a")

	id, _ = q.pop(context.Background(), done, time.Millisecond)
	assert.Equal(t, "b", id)

	id, _ = q.pop(context.Background(), done, time.Millisecond)
	assert.Equal(t, "a", id)
}

func TestQueuePopTimesOut(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	q := newQueue(fc)

	result := make(chan bool, 1)

	go func() {
		_, ok := q.pop(context.Background(), make(chan struct{}), time.Minute)
		result <- ok
	}()

	require.Eventually(t, func() bool { return fc.Timers() == 1 }, waitFor, tick)

	fc.Advance(59 * time.Second)

	select {
	case <-result:
		t.Fatal("pop returned before its timeout")
	case <-time.After(20 * time.Millisecond):
	}

	fc.Advance(time.Second)

	select {
	case ok := <-result:
		assert.False(t, ok)
	case <-time.After(waitFor):
		t.Fatal("pop did not time out")
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := newQueue(clock.Real())

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push("late")
	}()

	id, ok := q.pop(context.Background(), make(chan struct{}), 5*time.Second)
	assert.True(t, ok)
	assert.Equal(t, "late", id)
}

func TestQueuePopObservesShutdown(t *testing.T) {
	q := newQueue(clock.Real())
	done := make(chan struct{})
	close(done)

	_, ok := q.pop(context.Background(), done, 5*time.Second)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok = q.pop(ctx, make(chan struct{}), 5*time.Second)
	assert.False(t, ok)
}
