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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"
)

// fakeTimer advances a virtual clock on every sleep and cancels the
// context once the limit is reached.
type fakeTimer struct {
	mu     sync.Mutex
	now    time.Duration
	limit  time.Duration
	sleeps int
	cancel context.CancelFunc
}

func newFakeTimer(limit time.Duration) (*fakeTimer, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeTimer{limit: limit, cancel: cancel}, ctx
}

func (t *fakeTimer) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	t.now += d
	t.sleeps++
	done := t.limit > 0 && t.now >= t.limit
	t.mu.Unlock()
	if done {
		t.cancel()
		return ctx.Err()
	}
	return nil
}

func (t *fakeTimer) elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

//----------------------------------------------------------------------

type record struct {
	level slog.Level
	msg   string
	attrs map[string]string
}

// recorder is a slog handler keeping all records.
type recorder struct {
	mu   sync.Mutex
	recs []record
}

func newRecorder() (*recorder, *slog.Logger) {
	r := new(recorder)
	return r, slog.New(r)
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	attrs := make(map[string]string)
	rec.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	r.mu.Lock()
	r.recs = append(r.recs, record{level: rec.Level, msg: rec.Message, attrs: attrs})
	r.mu.Unlock()
	return nil
}

func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.recs))
	for i, rec := range r.recs {
		out[i] = rec.msg
	}
	return out
}

func (r *recorder) find(msg string) []record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []record
	for _, rec := range r.recs {
		if rec.msg == msg {
			out = append(out, rec)
		}
	}
	return out
}

func (r *recorder) count(msg string) int {
	return len(r.find(msg))
}

//----------------------------------------------------------------------

type scanOutcome struct {
	nets []Network
	err  error
}

// scriptedController returns preset outcomes. The last scan outcome
// repeats.
type scriptedController struct {
	modeErr    error
	startErr   error
	startedErr error
	scans      []scanOutcome

	started    bool
	modeCalls  int
	startCalls int
	scanCalls  int
}

func (c *scriptedController) Capabilities() Capabilities {
	return Capabilities{ModeStation}
}

func (c *scriptedController) SetMode(Mode) error {
	c.modeCalls++
	return c.modeErr
}

func (c *scriptedController) Start(context.Context) error {
	c.startCalls++
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *scriptedController) IsStarted() (bool, error) {
	if c.startedErr != nil {
		return false, c.startedErr
	}
	return c.started, nil
}

func (c *scriptedController) Scan(context.Context, ScanConfig) ([]Network, error) {
	c.scanCalls++
	if len(c.scans) == 0 {
		return nil, nil
	}
	out := c.scans[min(c.scanCalls-1, len(c.scans)-1)]
	return out.nets, out.err
}

// joiningController can associate; join fails for the first failures
// attempts.
type joiningController struct {
	scriptedController
	failures  int
	joinCalls int
	joined    bool
}

func (c *joiningController) Join(_ context.Context, _, _ string) error {
	c.joinCalls++
	if c.joinCalls <= c.failures {
		return errors.New("auth timeout")
	}
	c.joined = true
	return nil
}

func (c *joiningController) IsJoined() bool {
	return c.joined
}

//----------------------------------------------------------------------

// fakeOutput counts toggles.
type fakeOutput struct {
	level   bool
	toggles int
}

func (o *fakeOutput) Toggle()     { o.level = !o.level; o.toggles++ }
func (o *fakeOutput) Set(on bool) { o.level = on }
func (o *fakeOutput) Level() bool { return o.level }

type countingRunner struct {
	drives int
	stop   int
	cancel context.CancelFunc
}

func (r *countingRunner) Drive(context.Context) {
	r.drives++
	if r.drives == r.stop {
		r.cancel()
	}
}

//----------------------------------------------------------------------

// fakeDevice records the order of initialization calls.
type fakeDevice struct {
	calls     []string
	leds      []bool
	ctrlErr   error
	stackErr  error
	outputErr error
	sockets   int // TCP slots held by the device
	pool      *Pool
	timer     Timer
}

func (d *fakeDevice) LED(on bool)          { d.leds = append(d.leds, on) }
func (d *fakeDevice) LogWriter() io.Writer { return io.Discard }

func (d *fakeDevice) Timer() Timer {
	d.calls = append(d.calls, "timer")
	if d.timer == nil {
		return ClockTimer{}
	}
	return d.timer
}

func (d *fakeDevice) Reserve(pool *Pool) error {
	for range d.sockets {
		if _, err := pool.Reserve(SlotTCP, "device"); err != nil {
			return err
		}
	}
	return nil
}

func (d *fakeDevice) NewController(*slog.Logger) (Controller, error) {
	d.calls = append(d.calls, "controller")
	if d.ctrlErr != nil {
		return nil, d.ctrlErr
	}
	return new(scriptedController), nil
}

func (d *fakeDevice) NewStack(pool *Pool, _ *slog.Logger) (StackRunner, Stack, error) {
	d.calls = append(d.calls, "stack")
	d.pool = pool
	if d.stackErr != nil {
		return nil, nil, d.stackErr
	}
	return new(countingRunner), new(fakeStack), nil
}

func (d *fakeDevice) Outputs() ([]Output, error) {
	d.calls = append(d.calls, "outputs")
	if d.outputErr != nil {
		return nil, d.outputErr
	}
	return []Output{new(fakeOutput), new(fakeOutput)}, nil
}

func (d *fakeDevice) ledOns() (n int) {
	for _, on := range d.leds {
		if on {
			n++
		}
	}
	return
}

// fakeStack fails to listen until a listener is provided.
type fakeStack struct {
	mu       sync.Mutex
	attempts int
	lst      net.Listener
}

func (s *fakeStack) Listen(context.Context, uint16) (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.lst == nil {
		return nil, errors.New("no address")
	}
	return s.lst, nil
}

func (s *fakeStack) RequestAddr(context.Context) (netip.Addr, error) {
	return netip.MustParseAddr("192.168.4.2"), nil
}

// scriptedAddresser fails the first failures requests.
type scriptedAddresser struct {
	failures int
	calls    int
}

func (a *scriptedAddresser) RequestAddr(context.Context) (netip.Addr, error) {
	a.calls++
	if a.calls <= a.failures {
		return netip.Addr{}, errors.New("no DHCP reply")
	}
	return netip.MustParseAddr("192.168.4.2"), nil
}

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
