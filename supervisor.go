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
	"log/slog"
	"time"
)

// SupervisorState of the connectivity supervisor
type SupervisorState int

// supervisor states
const (
	Unconfigured SupervisorState = iota // mode not set
	Configured                          // station mode set
	Started                             // radio started
)

// String returns the state name.
func (s SupervisorState) String() string {
	switch s {
	case Configured:
		return "configured"
	case Started:
		return "started"
	}
	return "unconfigured"
}

// Supervisor owns the radio controller. It configures station mode,
// starts the radio and then scans for networks on a fixed interval.
// Failures are logged and retried on the next tick; the loop never
// ends on its own.
type Supervisor struct {
	ctrl     Controller
	timer    Timer
	logger   *slog.Logger
	interval time.Duration
	ssid     string
	passwd   string
	addr     Addresser // address acquisition after join (optional)

	state SupervisorState
	bound bool
}

// NewSupervisor takes ownership of the controller.
func NewSupervisor(ctrl Controller, timer Timer, cfg *Config, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		ctrl:     ctrl,
		timer:    timer,
		logger:   logger.With(slog.String("task", "supervisor")),
		interval: cfg.ScanInterval(),
		ssid:     cfg.SSID,
		passwd:   cfg.Passwd,
		state:    Unconfigured,
	}
}

// SetAddresser hands the address acquisition of the stack to the
// supervisor; an address is requested once the network is joined.
func (s *Supervisor) SetAddresser(a Addresser) {
	s.addr = a
}

// State of the supervisor. Only meaningful to the goroutine running it.
func (s *Supervisor) State() SupervisorState {
	return s.state
}

// Run the supervisor until ctx is done (which never happens on the
// device).
func (s *Supervisor) Run(ctx context.Context) {
	s.logger.Info("starting wifi connection task")
	s.bringUp(ctx)
	for {
		s.tick(ctx)
		if s.timer.Sleep(ctx, s.interval) != nil {
			return
		}
	}
}

// bringUp sets station mode and starts the radio. Both steps are
// attempted regardless of the outcome of the other; the state only
// advances to Started from Configured.
func (s *Supervisor) bringUp(ctx context.Context) {
	s.logger.Info("device capabilities", slog.String("caps", s.ctrl.Capabilities().String()))

	if err := s.ctrl.SetMode(ModeStation); err != nil {
		s.logger.Error("problem setting station mode", slog.String("err", err.Error()))
	} else {
		s.state = Configured
	}
	if err := s.ctrl.Start(ctx); err != nil {
		s.logger.Error("controller start failure", slog.String("err", err.Error()))
	} else if s.state == Configured {
		s.state = Started
	}
	started, err := s.ctrl.IsStarted()
	if err != nil {
		s.logger.Info("wifi started", slog.Bool("started", false), slog.String("err", err.Error()))
		return
	}
	s.logger.Info("wifi started", slog.Bool("started", started))
}

// tick performs one supervision round. Nothing is attempted while the
// controller is not started.
func (s *Supervisor) tick(ctx context.Context) {
	if ok, err := s.ctrl.IsStarted(); err != nil || !ok {
		return
	}
	s.join(ctx)

	s.logger.Info("scanning networks...")
	nets, err := s.ctrl.Scan(ctx, ScanConfig{})
	if err != nil {
		// TODO: rp2350 always fails with ErrScanUnsupported until the
		// cyw43439 driver exposes escan results.
		s.logger.Error("problem scanning for networks", slog.String("err", err.Error()))
		return
	}
	s.logger.Info(fmt.Sprintf("scan finished with %d STAs found", len(nets)), slog.Int("count", len(nets)))
	for _, n := range nets {
		s.logger.Info("network",
			slog.String("ssid", n.SSID),
			slog.Int("channel", int(n.Channel)),
			slog.Int("rssi", int(n.RSSI)))
	}
}

// join the configured network (if any and not joined yet) and request
// an address once joined.
func (s *Supervisor) join(ctx context.Context) {
	if len(s.ssid) == 0 {
		return
	}
	a, ok := s.ctrl.(Associator)
	if !ok {
		return
	}
	if !a.IsJoined() {
		if len(s.passwd) == 0 {
			s.logger.Info("joining open network", slog.String("ssid", s.ssid))
		} else {
			s.logger.Info("joining WPA secure network", slog.String("ssid", s.ssid), slog.Int("passlen", len(s.passwd)))
		}
		if err := a.Join(ctx, s.ssid, s.passwd); err != nil {
			s.logger.Error("wifi join failed", slog.String("err", err.Error()))
			return
		}
		s.logger.Info("wifi join success!", slog.String("ssid", s.ssid))
	}
	s.requestAddr(ctx)
}

// requestAddr runs address acquisition until it succeeds once.
func (s *Supervisor) requestAddr(ctx context.Context) {
	if s.addr == nil || s.bound {
		return
	}
	ip, err := s.addr.RequestAddr(ctx)
	if err != nil {
		s.logger.Error("address request failed", slog.String("err", err.Error()))
		return
	}
	s.bound = true
	s.logger.Info("address assigned", slog.String("ip", ip.String()))
}
