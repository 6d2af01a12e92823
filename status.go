//----------------------------------------------------------------------
// This file is part of scanblink.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// scanblink is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// scanblink is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package scanblink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// status codes
const (
	StatUNK    = iota // unknown status (init)
	StatOK            // processing active
	StatDEV           // device failure
	StatPOOL          // stack resources exhausted
	StatWIFI          // radio initialization failed
	StatSTACK         // network stack construction failed
	StatGPIO          // output configuration failed
	StatIP            // invalid IP address
	StatPORT          // invalid port specified
	StatSRV           // can't serve diagnostics
	StatLISTEN        // failed to create listener
	StatEXCP          // exception (panic) occured
)

var statNames = [...]string{
	"UNK", "OK", "DEV", "POOL", "WIFI", "STACK", "GPIO",
	"IP", "PORT", "SRV", "LISTEN", "EXCP",
}

// StatName returns the short name of a status code.
func StatName(code int) string {
	if code < 0 || code >= len(statNames) {
		return fmt.Sprintf("STAT%d", code)
	}
	return statNames[code]
}

// blink timing
const (
	haltPause = 5 * time.Second
	longOn    = 1000 * time.Millisecond
	longOff   = 300 * time.Millisecond
	shortOn   = 150 * time.Millisecond
	shortOff  = 150 * time.Millisecond
)

// Status handler.
// Keeps the current status code; after a fatal failure the code is
// blinked on the device LED. A transient status is kept for <repeat>
// blink cycles and then falls back to StatOK.
type Status struct {
	curr   atomic.Int32 // current state
	repeat atomic.Int32 // current repeat counter
	until  atomic.Int64 // expiry of a transient state (unix nanos)

	now func() time.Time // clock (for testing)
}

// NewStatus creates a new status in state StatUNK.
func NewStatus() *Status {
	return &Status{now: time.Now}
}

// Set status and keep it for <num> blink cycles (0: keep).
func (state *Status) Set(flag, num int) {
	if state != nil {
		var until int64
		if num > 0 {
			until = state.clock().Add(time.Duration(num) * haltPause).UnixNano()
		}
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
		state.until.Store(until)
	}
}

// Get current state and repeat counter
func (state *Status) Get() (int, int) {
	state.expire()
	return int(state.curr.Load()), int(state.repeat.Load())
}

// Report returns the current status for diagnostics.
func (state *Status) Report() string {
	s, _ := state.Get()
	return fmt.Sprintf("%d %s\n", s, StatName(s))
}

// expire a transient status.
func (state *Status) expire() {
	u := state.until.Load()
	if u == 0 || state.clock().UnixNano() < u {
		return
	}
	if state.until.CompareAndSwap(u, 0) {
		state.curr.Store(StatOK)
		state.repeat.Store(0)
	}
}

func (state *Status) clock() time.Time {
	if state.now == nil {
		return time.Now()
	}
	return state.now()
}

// Halt blinks the status code on the device LED until ctx is done:
// one long blink for every 5, a short blink for each remaining count.
func (state *Status) Halt(ctx context.Context, dev Device, timer Timer) {
	blink := func(on, off time.Duration) bool {
		dev.LED(true)
		if timer.Sleep(ctx, on) != nil {
			return false
		}
		dev.LED(false)
		return timer.Sleep(ctx, off) == nil
	}
	for {
		if timer.Sleep(ctx, haltPause) != nil {
			return
		}
		num, _ := state.Get()
		for ; num >= 5; num -= 5 {
			if !blink(longOn, longOff) {
				return
			}
		}
		for range num {
			if !blink(shortOn, shortOff) {
				return
			}
		}
	}
}

// Trap critical failures (panic) and halt. Must be deferred.
func (state *Status) Trap(ctx context.Context, dev Device) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		state.Set(StatEXCP, 0)
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	state.Halt(ctx, dev, ClockTimer{})
}
