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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeAdvanceFiresDueTicker(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	tk := fc.Ticker(time.Minute)
	defer tk.Stop()

	fc.Advance(30 * time.Second)

	select {
	case <-tk.Chan():
		t.Fatal("ticker fired early")
	default:
	}

	fc.Advance(30 * time.Second)

	select {
	case got := <-tk.Chan():
		assert.Equal(t, start.Add(time.Minute), got)
	default:
		t.Fatal("ticker did not fire")
	}

	assert.Equal(t, start.Add(time.Minute), fc.Now())
}

func TestFakeStoppedTickerIsSilent(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	tk := fc.Ticker(time.Second)
	tk.Stop()

	fc.Advance(time.Hour)

	select {
	case <-tk.Chan():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeTimerFiresOnceAtDeadline(t *testing.T) {
	start := time.Unix(0, 0)
	fc := NewFake(start)

	tm := fc.Timer(time.Second)
	assert.Equal(t, 1, fc.Timers())

	fc.Advance(999 * time.Millisecond)

	select {
	case <-tm.Chan():
		t.Fatal("timer fired early")
	default:
	}

	fc.Advance(time.Millisecond)

	select {
	case got := <-tm.Chan():
		assert.Equal(t, start.Add(time.Second), got)
	default:
		t.Fatal("timer did not fire")
	}

	assert.Zero(t, fc.Timers())
	assert.False(t, tm.Stop())

	fc.Advance(time.Hour)

	select {
	case <-tm.Chan():
		t.Fatal("timer fired twice")
	default:
	}
}

func TestFakeStoppedTimerIsSilent(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))
	tm := fc.Timer(time.Second)

	assert.True(t, tm.Stop())
	assert.Zero(t, fc.Timers())

	fc.Advance(time.Hour)

	select {
	case <-tm.Chan():
		t.Fatal("stopped timer fired")
	default:
	}
}

func TestFakeZeroTimerFiresImmediately(t *testing.T) {
	fc := NewFake(time.Unix(0, 0))

	select {
	case <-fc.Timer(0).Chan():
	default:
		t.Fatal("zero timer did not fire")
	}
}
