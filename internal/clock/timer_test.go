/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
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
)

func TestRandomDurationWithinBounds(t *testing.T) {
	lo, hi := 10*time.Millisecond, 20*time.Millisecond
	for i := 0; i < 200; i++ {
		d := RandomDuration(lo, hi)
		if d < lo || d >= hi {
			t.Fatalf("RandomDuration() = %s, want in [%s, %s)", d, lo, hi)
		}
	}
}

func TestElectionTimerFires(t *testing.T) {
	timer := NewElectionTimer(5*time.Millisecond, 10*time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("election timer never fired")
	}
}

func TestElectionTimerResetDelaysFiring(t *testing.T) {
	timer := NewElectionTimer(40*time.Millisecond, 60*time.Millisecond)
	defer timer.Stop()

	deadline := time.After(100 * time.Millisecond)
	resets := 0
resetLoop:
	for {
		select {
		case <-deadline:
			break resetLoop
		case <-time.After(5 * time.Millisecond):
			timer.Reset()
			resets++
		case <-timer.C:
			t.Fatal("timer fired despite repeated resets")
		}
	}
	if resets == 0 {
		t.Fatal("expected at least one reset to have happened")
	}
}
