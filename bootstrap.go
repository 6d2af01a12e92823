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
	"errors"
	"fmt"
	"log/slog"
)

// BootError is a fatal failure during bootstrap.
type BootError struct {
	Stat int    // status code to report
	Step string // bootstrap step that failed
	Err  error  // cause
}

// Error returns the failed step and cause.
func (e *BootError) Error() string {
	return fmt.Sprintf("bootstrap %s: %v", e.Step, e.Err)
}

// Unwrap returns the cause.
func (e *BootError) Unwrap() error {
	return e.Err
}

// BootStat returns the status code of a bootstrap error (or StatDEV
// for other errors).
func BootStat(err error) int {
	var be *BootError
	if errors.As(err, &be) {
		return be.Stat
	}
	return StatDEV
}

// Bootstrap initializes the platform in a fixed order and returns the
// registry of handles for the tasks. Every failure is fatal; there is
// no retry.
func Bootstrap(dev Device, cfg *Config, logger *slog.Logger) (*Registry, error) {
	fail := func(stat int, step string, err error) (*Registry, error) {
		be := &BootError{Stat: stat, Step: step, Err: err}
		logger.Error("bootstrap failed", slog.String("step", step), slog.String("err", err.Error()))
		return nil, be
	}
	if c, ok := dev.(Configurer); ok {
		c.Configure(cfg)
	}
	reg := new(Registry)
	reg.timer = dev.Timer()
	logger.Info("scheduler initialized")

	// stack resources: DHCP needs a UDP port, diagnostics a TCP port.
	reg.Pool = new(Pool)
	if len(cfg.SSID) > 0 {
		if _, err := reg.Pool.Reserve(SlotUDP, "dhcp"); err != nil {
			return fail(StatPOOL, "pool", err)
		}
	}
	if cfg.Diagnostics() {
		if _, err := reg.Pool.Reserve(SlotTCP, "9p"); err != nil {
			return fail(StatPOOL, "pool", err)
		}
	}
	if r, ok := dev.(Reserver); ok {
		if err := r.Reserve(reg.Pool); err != nil {
			return fail(StatPOOL, "pool", err)
		}
	}

	ctrl, err := dev.NewController(logger)
	if err != nil {
		return fail(StatWIFI, "radio", err)
	}
	reg.ctrl.put(ctrl)

	runner, stack, err := dev.NewStack(reg.Pool, logger)
	if err != nil {
		return fail(StatSTACK, "stack", err)
	}
	reg.runner.put(runner)
	reg.stack.put(stack)
	if a, ok := stack.(Addresser); ok {
		reg.addr.put(a)
	}

	outputs, err := dev.Outputs()
	if err != nil {
		return fail(StatGPIO, "outputs", err)
	}
	reg.outputs.put(outputs)

	logger.Info("bootstrap complete",
		slog.Int("resources", reg.Pool.Len()),
		slog.Int("outputs", len(outputs)))
	return reg, nil
}
